// Package disprove builds the per-shard Disprove script a challenger
// broadcasts to prove a committed state transition was wrong, ported from
// distributed-lab/bitvm2-splitter's core/src/disprove/{mod,signing}.rs.
package disprove

import (
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/bvmerr"
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/script"
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/state"
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/winternitz"
	"github.com/btcsuite/btcd/txscript"
)

// MaxStackElementValue is the largest value SignStackItem accepts,
// 2^31-1 (the largest positive 4-byte script number). pkg/winternitz's
// N0=8-digit encoding itself covers the full uint32 range.
const MaxStackElementValue = (1 << 31) - 1

// SignedStackItem is one stack element committed via a fresh one-time
// Winternitz keypair.
type SignedStackItem struct {
	Value     uint32
	PublicKey winternitz.PublicKey
	Signature winternitz.Signature
}

// SignStackItem signs value under a freshly generated keypair.
func SignStackItem(value uint32) (SignedStackItem, error) {
	if value > MaxStackElementValue {
		return SignedStackItem{}, bvmerr.New("disprove.SignStackItem", bvmerr.InvalidEncoding,
			"stack element exceeds the signable range", nil)
	}
	sk, err := winternitz.NewSecretKey()
	if err != nil {
		return SignedStackItem{}, err
	}
	sig, err := sk.Sign(value)
	if err != nil {
		return SignedStackItem{}, err
	}
	return SignedStackItem{Value: value, PublicKey: sk.PublicKey(), Signature: sig}, nil
}

// SignedIntermediateState is an IntermediateState where every stack and alt
// stack element has been committed with its own Winternitz keypair.
type SignedIntermediateState struct {
	Stack    []SignedStackItem
	AltStack []SignedStackItem
}

// Sign converts an IntermediateState's stack elements to u32 and signs
// each one independently, the analogue of SignedIntermediateState::sign.
func Sign(st state.IntermediateState) (SignedIntermediateState, error) {
	stackU32, err := state.AsU32(st.Stack)
	if err != nil {
		return SignedIntermediateState{}, err
	}
	altU32, err := state.AsU32(st.AltStack)
	if err != nil {
		return SignedIntermediateState{}, err
	}

	out := SignedIntermediateState{
		Stack:    make([]SignedStackItem, len(stackU32)),
		AltStack: make([]SignedStackItem, len(altU32)),
	}
	for i, v := range stackU32 {
		item, err := SignStackItem(v)
		if err != nil {
			return SignedIntermediateState{}, err
		}
		out.Stack[i] = item
	}
	for i, v := range altU32 {
		item, err := SignStackItem(v)
		if err != nil {
			return SignedIntermediateState{}, err
		}
		out.AltStack[i] = item
	}
	return out, nil
}

// TotalLen returns the combined element count of stack and alt stack.
func (s SignedIntermediateState) TotalLen() int { return len(s.Stack) + len(s.AltStack) }

// WitnessScript pushes every signature's witness elements: stack signatures
// in order, then alt stack signatures in reverse order, matching
// SignedIntermediateState::witness_script.
func (s SignedIntermediateState) WitnessScript() (script.Script, error) {
	b := script.NewBuilder()
	for _, item := range s.Stack {
		ws, err := item.Signature.ToWitnessScript()
		if err != nil {
			return script.Script{}, err
		}
		b.AddScript(ws)
	}
	for i := len(s.AltStack) - 1; i >= 0; i-- {
		ws, err := s.AltStack[i].Signature.ToWitnessScript()
		if err != nil {
			return script.Script{}, err
		}
		b.AddScript(ws)
	}
	return b.Script()
}

// VerificationScriptToAltStack verifies every element's signature and
// recovers its value, pushing each recovered value to the alt stack: first
// the alt stack elements in order, then the main stack elements in reverse
// order, matching verification_script_toaltstack.
func (s SignedIntermediateState) VerificationScriptToAltStack() (script.Script, error) {
	b := script.NewBuilder()
	verifyOne := func(item SignedStackItem) error {
		vs, err := winternitz.CheckSigVerifyScript(item.PublicKey)
		if err != nil {
			return err
		}
		b.AddScript(vs)
		rs, err := winternitz.RecoveryScript()
		if err != nil {
			return err
		}
		b.AddScript(rs)
		b.AddOp(txscript.OP_TOALTSTACK)
		return nil
	}
	for _, item := range s.AltStack {
		if err := verifyOne(item); err != nil {
			return script.Script{}, err
		}
	}
	for i := len(s.Stack) - 1; i >= 0; i-- {
		if err := verifyOne(s.Stack[i]); err != nil {
			return script.Script{}, err
		}
	}
	return b.Script()
}

// VerificationScriptFromAltStack pops len(Stack) recovered values back from
// the alt stack onto the main stack.
func (s SignedIntermediateState) VerificationScriptFromAltStack() (script.Script, error) {
	b := script.NewBuilder()
	for i := 0; i < len(s.Stack); i++ {
		b.AddOp(txscript.OP_FROMALTSTACK)
	}
	return b.Script()
}

// VerificationScript combines VerificationScriptToAltStack and
// VerificationScriptFromAltStack, matching verification_script.
func (s SignedIntermediateState) VerificationScript() (script.Script, error) {
	b := script.NewBuilder()
	toAlt, err := s.VerificationScriptToAltStack()
	if err != nil {
		return script.Script{}, err
	}
	b.AddScript(toAlt)
	fromAlt, err := s.VerificationScriptFromAltStack()
	if err != nil {
		return script.Script{}, err
	}
	b.AddScript(fromAlt)
	return b.Script()
}
