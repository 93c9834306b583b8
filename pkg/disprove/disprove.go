package disprove

import (
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/bvmerr"
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/script"
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/split"
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/state"
	"github.com/btcsuite/btcd/txscript"
)

// DisproveScript is the Tapscript leaf that lets a challenger prove shard i
// of a committed execution transitioned the wrong way: it verifies the
// claimed "from" state, recomputes the shard's function over it, verifies
// the claimed "to" state, and leaves true on the stack exactly when the two
// disagree.
//
// Stack evolution through script_pubkey, mirroring the original's diagram:
//
//	verify(to) -> altstack: to.mainstack ++ to.altstack
//	verify(from) -> mainstack: from.mainstack, altstack: [from.altstack, to.*]
//	apply shard script -> mainstack: f(from).mainstack, altstack: [f(from).altstack, to.*]
//	pull to.mainstack back, OP_LONGNOTEQUAL against f(from).mainstack
//	pull to.altstack back, OP_LONGNOTEQUAL against f(from).altstack
//	OP_BOOLOR the two inequality results
type DisproveScript struct {
	WitnessScript script.Script
	ScriptPubKey  script.Script
}

// New builds the DisproveScript proving that shardScript applied to from
// does not produce to.
func New(from, to state.IntermediateState, shardScript script.Script) (DisproveScript, error) {
	fromSigned, err := Sign(from)
	if err != nil {
		return DisproveScript{}, err
	}
	toSigned, err := Sign(to)
	if err != nil {
		return DisproveScript{}, err
	}

	fromWitness, err := fromSigned.WitnessScript()
	if err != nil {
		return DisproveScript{}, err
	}
	toWitness, err := toSigned.WitnessScript()
	if err != nil {
		return DisproveScript{}, err
	}
	witness := script.Script{}
	witness.Instructions = append(witness.Instructions, fromWitness.Instructions...)
	witness.Instructions = append(witness.Instructions, toWitness.Instructions...)

	b := script.NewBuilder()

	toAltVerify, err := toSigned.VerificationScriptToAltStack()
	if err != nil {
		return DisproveScript{}, err
	}
	b.AddScript(toAltVerify)

	fromVerify, err := fromSigned.VerificationScript()
	if err != nil {
		return DisproveScript{}, err
	}
	b.AddScript(fromVerify)

	b.AddScript(shardScript)

	for i := 0; i < len(toSigned.AltStack); i++ {
		b.AddOp(txscript.OP_FROMALTSTACK)
	}
	toFromAlt, err := toSigned.VerificationScriptFromAltStack()
	if err != nil {
		return DisproveScript{}, err
	}
	b.AddScript(toFromAlt)

	rollCount := toSigned.TotalLen() + len(toSigned.Stack) - 1
	for i := 0; i < len(toSigned.Stack); i++ {
		b.AddInt64(int64(rollCount))
		b.AddOp(txscript.OP_ROLL)
	}
	if err := addLongNotEqual(b, len(toSigned.Stack)); err != nil {
		return DisproveScript{}, err
	}

	for i := 0; i < len(toSigned.AltStack); i++ {
		b.AddOp(txscript.OP_FROMALTSTACK)
	}
	for i := 0; i < len(toSigned.AltStack); i++ {
		b.AddInt64(int64(2 * len(toSigned.AltStack)))
		b.AddOp(txscript.OP_ROLL)
	}
	if err := addLongNotEqual(b, len(toSigned.AltStack)); err != nil {
		return DisproveScript{}, err
	}

	b.AddOp(txscript.OP_BOOLOR)

	scriptPubKey, err := b.Script()
	if err != nil {
		return DisproveScript{}, err
	}
	return DisproveScript{WitnessScript: witness, ScriptPubKey: scriptPubKey}, nil
}

// addLongNotEqual compares n pairs of stack elements laid out as two blocks
// (a_0..a_{n-1} below b_0..b_{n-1}, b_{n-1} on top), pairing a_i with b_i,
// and leaves true iff any pair differs.
// This is the OP_LONGNOTEQUAL(n) primitive the original's disprove script
// relies on: Tapscript has no bulk array-compare opcode, so it expands to
// n single-element comparisons OR'd together.
func addLongNotEqual(b *script.Builder, n int) error {
	if n == 0 {
		b.AddOp(txscript.OP_0)
		return nil
	}
	for i := 0; i < n; i++ {
		// Roll a_{n-1-i} to the top; below the running result its partner
		// then sits two deep.
		if i == 0 {
			b.AddInt64(int64(n))
		} else {
			b.AddInt64(int64(n - i + 1))
		}
		b.AddOp(txscript.OP_ROLL)
		if i > 0 {
			b.AddInt64(2)
			b.AddOp(txscript.OP_ROLL)
		}
		b.AddOp(txscript.OP_EQUAL)
		b.AddOp(txscript.OP_NOT)
		if i > 0 {
			b.AddOp(txscript.OP_BOOLOR)
		}
	}
	return nil
}

// WitnessElements extracts the concrete byte strings (or minimally-encoded
// small-int pushes) a broadcaster must place on the witness stack to spend
// this leaf, in push order.
func (d DisproveScript) WitnessElements() ([][]byte, error) {
	var out [][]byte
	for _, ins := range d.WitnessScript.Instructions {
		if ins.Data != nil {
			out = append(out, ins.Data)
			continue
		}
		switch {
		case ins.Op == txscript.OP_0:
			out = append(out, nil)
		case ins.Op == txscript.OP_1NEGATE:
			out = append(out, []byte{0x81})
		case ins.Op >= txscript.OP_1 && ins.Op <= txscript.OP_16:
			out = append(out, []byte{ins.Op - txscript.OP_1 + 1})
		default:
			return nil, bvmerr.New("disprove.WitnessElements", bvmerr.MalformedProgram,
				"witness script contains a non-push opcode", nil)
		}
	}
	return out, nil
}

// FormDisproveScripts splits prog and materializes a DisproveScript for
// every resulting shard, the analogue of form_disprove_scripts.
func FormDisproveScripts(input, prog script.Script, splitType split.SplitType, chunkSize int) ([]DisproveScript, error) {
	splitResult, err := split.Split(prog, chunkSize, splitType)
	if err != nil {
		return nil, err
	}

	var scripts []DisproveScript
	from, err := state.FromInputScript(input, script.Script{})
	if err != nil {
		return nil, err
	}
	for i, shard := range splitResult.Shards {
		to, err := state.FromIntermediateResult(from, shard.Script)
		if err != nil {
			return nil, bvmerr.NewShard("disprove.FormDisproveScripts", bvmerr.VmHalt, i, "materializing shard output", err)
		}
		ds, err := New(from, to, shard.Script)
		if err != nil {
			return nil, bvmerr.NewShard("disprove.FormDisproveScripts", bvmerr.VmHalt, i, "building disprove script", err)
		}
		scripts = append(scripts, ds)
		from = to
	}
	return scripts, nil
}

// FormDisproveScriptsDistorted is a test/QA helper: it behaves like
// FormDisproveScripts but corrupts the resulting "to" state of shard
// distortShard, an index the caller chooses, so the resulting disprove
// script set is provably triggerable. It does not pick the shard itself.
// Ported from form_disprove_scripts_distorted.
func FormDisproveScriptsDistorted(input, prog script.Script, splitType split.SplitType, chunkSize int, distortShard int) ([]DisproveScript, error) {
	splitResult, err := split.Split(prog, chunkSize, splitType)
	if err != nil {
		return nil, err
	}
	if distortShard < 0 || distortShard >= len(splitResult.Shards) {
		return nil, bvmerr.New("disprove.FormDisproveScriptsDistorted", bvmerr.MalformedProgram,
			"distortShard out of range", nil)
	}

	var scripts []DisproveScript
	from, err := state.FromInputScript(input, script.Script{})
	if err != nil {
		return nil, err
	}
	for i, shard := range splitResult.Shards {
		to, err := state.FromIntermediateResult(from, shard.Script)
		if err != nil {
			return nil, bvmerr.NewShard("disprove.FormDisproveScriptsDistorted", bvmerr.VmHalt, i, "materializing shard output", err)
		}
		if i == distortShard {
			to = distort(to)
		}
		ds, err := New(from, to, shard.Script)
		if err != nil {
			return nil, bvmerr.NewShard("disprove.FormDisproveScriptsDistorted", bvmerr.VmHalt, i, "building disprove script", err)
		}
		scripts = append(scripts, ds)
		from = to
	}
	return scripts, nil
}

// distort corrupts the top of a state's main stack, matching the original's
// `OP_DROP OP_0` corruption applied to the distorted shard's output.
func distort(st state.IntermediateState) state.IntermediateState {
	if len(st.Stack) == 0 {
		return state.IntermediateState{Stack: [][]byte{nil}, AltStack: st.AltStack}
	}
	out := state.IntermediateState{
		Stack:    append([][]byte(nil), st.Stack[:len(st.Stack)-1]...),
		AltStack: st.AltStack,
	}
	out.Stack = append(out.Stack, nil)
	return out
}
