package winternitz

import (
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/script"
	"github.com/btcsuite/btcd/txscript"
)

// CheckSigVerifyScript builds the on-chain verifier for a signature over
// pk: for each of the N digits it clamps the revealed (times, hash) pair,
// hash-chains forward to every possible depth, picks the one matching the
// claimed number of hashes, and checks it against the hardcoded public key
// chain tip; it then recomputes the checksum from the revealed message
// digits and requires it to match the two checksum digits, exactly as
// checksig_verify_script does in the original. On success it leaves the N0
// message digit values on the main stack, digit 0 on top, ready for
// RecoveryScript.
//
// Witness layout on entry (pushed by Signature.ToWitnessScript, consumed
// top-down): digit0 (hash, times), digit1 (hash, times), ..., digit7,
// checksum0 (hash, times), checksum1 (hash, times).
func CheckSigVerifyScript(pk PublicKey) (script.Script, error) {
	b := script.NewBuilder()

	for j := 0; j < N; j++ {
		// Clamp the claimed digit value defensively (mirrors the
		// original's `{D} OP_MIN` guard against an out-of-range times).
		b.AddInt64(D)
		b.AddOp(txscript.OP_MIN)
		b.AddOp(txscript.OP_DUP)
		b.AddOp(txscript.OP_TOALTSTACK)
		b.AddOp(txscript.OP_TOALTSTACK)

		// Hash the revealed value D times, leaving every intermediate
		// hash 0..D on the stack (D+1 values, index 0 = as revealed).
		for i := 0; i < D; i++ {
			b.AddOp(txscript.OP_DUP)
			b.AddOp(txscript.OP_HASH160)
		}

		// Select the intermediate at the claimed digit's offset and
		// compare against the hardcoded chain tip for this digit.
		b.AddOp(txscript.OP_FROMALTSTACK)
		b.AddOp(txscript.OP_PICK)
		b.AddData(pk.Chains[j])
		b.AddOp(txscript.OP_EQUALVERIFY)

		// Drop the remaining D+1 intermediate hashes.
		for i := 0; i < (D+1)/2; i++ {
			b.AddOp(txscript.OP_2DROP)
		}
		if (D+1)%2 != 0 {
			b.AddOp(txscript.OP_DROP)
		}
	}

	// The loop above left one surviving copy of every revealed digit value
	// on the alt stack, top to bottom: digit9 (checksum high nibble),
	// digit8 (checksum low nibble), digit7, ..., digit0.
	//
	// Combine the two checksum digits into the claimed checksum value.
	b.AddOp(txscript.OP_FROMALTSTACK) // digit9
	b.AddOp(txscript.OP_FROMALTSTACK) // digit8
	b.AddOp(txscript.OP_SWAP)
	for i := 0; i < BitsPerDigit; i++ {
		b.AddOp(txscript.OP_DUP)
		b.AddOp(txscript.OP_ADD)
	}
	b.AddOp(txscript.OP_ADD) // checksumFromDigits = digit9*16 + digit8
	b.AddOp(txscript.OP_TOALTSTACK)

	// Pull the message digits back onto the main stack, digit0 ending on
	// top, with checksumFromDigits left just beneath them.
	b.AddOp(txscript.OP_FROMALTSTACK) // checksumFromDigits
	for i := 0; i < N0; i++ {
		b.AddOp(txscript.OP_FROMALTSTACK) // digit7, digit6, ..., digit0
	}

	// Sum the N0 message digits without disturbing them: each is at a
	// constant depth (i+1) below the running sum being accumulated on top.
	b.AddInt64(0)
	for i := 0; i < N0; i++ {
		b.AddInt64(int64(i + 1))
		b.AddOp(txscript.OP_PICK)
		b.AddOp(txscript.OP_ADD)
	}
	b.AddOp(txscript.OP_NEGATE)
	b.AddInt64(int64(D * N0))
	b.AddOp(txscript.OP_ADD) // checksumFromMessage = D*N0 - sum(digits)

	// Bring checksumFromDigits (at depth N0+1, below the message digits) to
	// the top and require it to match checksumFromMessage. This consumes
	// both, leaving exactly the N0 message digits on the stack, digit0 on
	// top.
	b.AddInt64(int64(N0 + 1))
	b.AddOp(txscript.OP_ROLL)
	b.AddOp(txscript.OP_EQUALVERIFY)

	return b.Script()
}
