// Package assert assembles the Taproot output a BitVM2-style operator
// posts: one payout leaf reachable after a relative timelock, and one
// disprove leaf per shard, combined into a Huffman-weighted script tree so
// the payout leaf that is expected to be spent sits shallower and costs less
// witness overhead than the (statistically never taken) disprove leaves. Ported from
// distributed-lab/bitvm2-splitter's core/src/assert/{mod,payout_script}.rs.
package assert

import (
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/bvmerr"
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/script"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
)

// PayoutLocktime is the default relative timelock (in blocks) an operator
// must wait before sweeping the payout path: two weeks at ~10 minutes per
// block.
const PayoutLocktime = 6 * 24 * 14

// PayoutScript is the happy-path leaf: after Locktime blocks of relative
// maturity, the operator can spend with a plain P2PKH-style check against
// their own key.
type PayoutScript struct {
	OperatorPubKey *btcec.PublicKey
	Locktime       uint16
}

// NewPayoutScript builds a PayoutScript with the default locktime.
func NewPayoutScript(operatorPubKey *btcec.PublicKey) PayoutScript {
	return PayoutScript{OperatorPubKey: operatorPubKey, Locktime: PayoutLocktime}
}

// WithLocktime overrides the default relative locktime.
func (p PayoutScript) WithLocktime(locktime uint16) PayoutScript {
	p.Locktime = locktime
	return p
}

// ToScript renders: <locktime> OP_CSV OP_DROP OP_DUP OP_HASH160
// <hash160(pubkey)> OP_EQUALVERIFY OP_CHECKSIG.
func (p PayoutScript) ToScript() (script.Script, error) {
	if p.OperatorPubKey == nil {
		return script.Script{}, bvmerr.New("assert.PayoutScript.ToScript", bvmerr.MalformedProgram,
			"operator public key is required", nil)
	}
	pubKeyHash := btcutilHash160(p.OperatorPubKey.SerializeCompressed())

	b := script.NewBuilder()
	b.AddInt64(int64(p.Locktime))
	b.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	b.AddOp(txscript.OP_DROP)
	b.AddOp(txscript.OP_DUP)
	b.AddOp(txscript.OP_HASH160)
	b.AddData(pubKeyHash)
	b.AddOp(txscript.OP_EQUALVERIFY)
	b.AddOp(txscript.OP_CHECKSIG)
	return b.Script()
}

// XOnlyPubKey is the schnorr x-only encoding used in the payout script's
// witness (a taproot script-path spend always signs with a schnorr sig).
func (p PayoutScript) XOnlyPubKey() []byte {
	return schnorr.SerializePubKey(p.OperatorPubKey)
}
