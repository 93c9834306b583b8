// Package winternitz implements a Winternitz one-time-signature scheme
// tailored to sign a single uint32 stack element, ported from
// distributed-lab/bitvm2-splitter's bitcoin-winternitz/src/u32.rs. Digits
// are base-16 (one nibble each), with a two-digit checksum appended so a
// forged digit cannot simply be hashed forward to a lower value.
package winternitz

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/bvmerr"
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/script"
	"github.com/btcsuite/btcd/txscript"
	"golang.org/x/crypto/ripemd160"
)

const (
	// D is the maximum hash-chain depth per digit (base 16, so digits
	// range 0..D).
	D = 15
	// BitsPerDigit is the width of one digit.
	BitsPerDigit = 4
	// V is the maximum possible checksum value: D * N0.
	V = D * N0
	// N0 is the number of message digits (32 bits / 4 bits per digit).
	N0 = 8
	// N1 is the number of checksum digits needed to represent V in base 16.
	N1 = 2
	// N is the total number of signed digits.
	N = N0 + N1

	hashSize = 20 // RIPEMD160 digest size
)

// hash160Once is Bitcoin's HASH160: RIPEMD160(SHA256(x)), matching
// vm.Engine's OP_HASH160 so the in-script verifier and the off-chain
// signer agree on every chain value.
func hash160Once(b []byte) []byte {
	sha := sha256.Sum256(b)
	h := ripemd160.New()
	h.Write(sha[:])
	return h.Sum(nil)
}

func hashChain(seed []byte, times int) []byte {
	cur := append([]byte(nil), seed...)
	for i := 0; i < times; i++ {
		cur = hash160Once(cur)
	}
	return cur
}

// SecretKey is N independently random 20-byte chain roots.
type SecretKey struct {
	Chains [N][]byte
}

// NewSecretKey generates a fresh SecretKey from a CSPRNG.
func NewSecretKey() (SecretKey, error) {
	var sk SecretKey
	for i := range sk.Chains {
		seed := make([]byte, hashSize)
		if _, err := rand.Read(seed); err != nil {
			return SecretKey{}, bvmerr.New("winternitz.NewSecretKey", bvmerr.Transient, "reading randomness", err)
		}
		sk.Chains[i] = seed
	}
	return sk, nil
}

// PublicKey derives the public key: every chain hashed D times.
func (sk SecretKey) PublicKey() PublicKey {
	var pk PublicKey
	for i, chain := range sk.Chains {
		pk.Chains[i] = hashChain(chain, D)
	}
	return pk
}

// Sign signs msg, hashing each digit's chain root by its digit value.
func (sk SecretKey) Sign(msg uint32) (Signature, error) {
	m, err := EncodeMessage(msg)
	if err != nil {
		return Signature{}, err
	}
	var sig Signature
	for i, digit := range m.Digits {
		sig.Elements[i] = SignatureElement{
			Times: digit,
			Hash:  hashChain(sk.Chains[i], int(digit)),
		}
	}
	return sig, nil
}

// PublicKey is N chain tips (each chain hashed D times from its secret
// root).
type PublicKey struct {
	Chains [N][]byte
}

// Verify checks sig against msg: each signature hash is re-hashed
// (D-times) more times and compared to the matching public chain tip.
func (pk PublicKey) Verify(msg uint32, sig Signature) (bool, error) {
	m, err := EncodeMessage(msg)
	if err != nil {
		return false, err
	}
	for i, digit := range m.Digits {
		elem := sig.Elements[i]
		if elem.Times != digit {
			return false, nil
		}
		got := hashChain(elem.Hash, D-int(digit))
		if !bytesEqual(got, pk.Chains[i]) {
			return false, nil
		}
	}
	return true, nil
}

// Message is the N0-digit base-16 partition of a uint32 plus its 2-digit
// checksum (N digits in all), least-significant message digit first, checksum digits last.
type Message struct {
	Digits [N]byte
}

// EncodeMessage partitions msg into N0 base-16 digits (least significant
// first) and appends the 2-digit checksum D*N0 - sum(digits).
func EncodeMessage(msg uint32) (Message, error) {
	var m Message
	sum := 0
	v := msg
	for i := 0; i < N0; i++ {
		d := byte(v & 0xF)
		m.Digits[i] = d
		sum += int(d)
		v >>= BitsPerDigit
	}
	checksum := D*N0 - sum
	if checksum < 0 || checksum > V {
		return Message{}, bvmerr.New("winternitz.EncodeMessage", bvmerr.InvalidEncoding,
			fmt.Sprintf("checksum %d out of range", checksum), nil)
	}
	m.Digits[N0] = byte(checksum & 0xF)
	m.Digits[N0+1] = byte(checksum >> BitsPerDigit)
	return m, nil
}

// DecodeMessage reassembles the uint32 encoded by the first N0 digits
// (checksum digits are not part of the value).
func (m Message) DecodeMessage() uint32 {
	var result uint32
	for i := 0; i < N0; i++ {
		result |= uint32(m.Digits[i]) << uint(BitsPerDigit*i)
	}
	return result
}

// SignatureElement pairs a revealed hash-chain value with the digit value
// it encodes (the number of chain-hash applications from the secret root).
type SignatureElement struct {
	Times byte
	Hash  []byte
}

// Signature is N signed digits, message digits first then checksum digits.
type Signature struct {
	Elements [N]SignatureElement
}

// ToWitnessScript builds the script pushing this signature's witness
// elements onto the stack, highest digit index first so that, once pushed,
// digit 0 (the message's least significant nibble) sits on top: this is the
// order CheckSigVerifyScript consumes and the order RecoveryScript expects
// to find the message digits in afterward, mirroring Signature::to_script_sig.
func (sig Signature) ToWitnessScript() (script.Script, error) {
	b := script.NewBuilder()
	for i := N - 1; i >= 0; i-- {
		e := sig.Elements[i]
		b.AddData(e.Hash)
		b.AddInt64(int64(e.Times))
	}
	return b.Script()
}

// RecoveryScript emits the script that recovers the uint32 value encoded
// by the message digits, assuming the least-significant digit is on top of
// the stack and the checksum digits have already been consumed. Uses only
// OP_DUP/OP_ADD doubling (no OP_MUL, matching Tapscript's arithmetic
// opcodes), shuttling partial sums through the alt stack.
func RecoveryScript() (script.Script, error) {
	b := script.NewBuilder()
	// Stack, top to bottom, starts as digit_0 .. digit_{N0-1} (digit_0 on
	// top, least significant). Move every digit onto the alt stack: this
	// reverses the order, so popping the alt stack back off yields the
	// most significant digit first.
	for i := 0; i < N0; i++ {
		b.AddOp(txscript.OP_TOALTSTACK)
	}
	// Seed the running sum with the most significant digit.
	b.AddOp(txscript.OP_FROMALTSTACK)
	// Horner's method: result = result*16 + digit, using only doubling
	// (OP_DUP OP_ADD) since Tapscript has no OP_MUL.
	for i := 0; i < N0-1; i++ {
		for j := 0; j < BitsPerDigit; j++ {
			b.AddOp(txscript.OP_DUP)
			b.AddOp(txscript.OP_ADD)
		}
		b.AddOp(txscript.OP_FROMALTSTACK)
		b.AddOp(txscript.OP_ADD)
	}
	return b.Script()
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
