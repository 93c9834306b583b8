// Package state materializes the intermediate stack/altstack snapshots
// between shards, ported from
// distributed-lab/bitvm2-splitter's bitcoin-splitter/src/split/intermediate_state.rs.
package state

import (
	"encoding/binary"

	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/script"
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/vm"
	"github.com/btcsuite/btcd/txscript"
)

// IntermediateState is the stack and alt-stack snapshot produced by running
// a shard to completion.
type IntermediateState struct {
	Stack    [][]byte
	AltStack [][]byte
}

// Size returns the serialized byte size of the state, the term pkg/split's
// ComplexityIndex charges against a shard boundary.
func (s IntermediateState) Size() int {
	n := 0
	for _, it := range s.Stack {
		n += len(it)
	}
	for _, it := range s.AltStack {
		n += len(it)
	}
	return n
}

// AsU32 reinterprets every stack element as one or more little-endian
// uint32s, the representation pkg/winternitz signs (interpret_as_u32_array
// in the original). An element of 4 bytes or fewer becomes a single,
// zero-padded u32. A wider element is split into 4-byte little-endian
// segments in order, each becoming its own u32 (the final segment
// zero-padded if short), rather than rejected: a stack item of 5 bytes
// becomes two u32s.
func AsU32(items [][]byte) ([]uint32, error) {
	var out []uint32
	for _, it := range items {
		if len(it) == 0 {
			out = append(out, 0)
			continue
		}
		for len(it) > 0 {
			n := len(it)
			if n > 4 {
				n = 4
			}
			var buf [4]byte
			copy(buf[:], it[:n])
			out = append(out, binary.LittleEndian.Uint32(buf[:]))
			it = it[n:]
		}
	}
	return out, nil
}

// FromInputScript executes input followed by shardScript and captures the
// resulting stacks, the direct analogue of from_input_script.
func FromInputScript(input, shardScript script.Script) (IntermediateState, error) {
	prog := script.Script{}
	prog.Instructions = append(prog.Instructions, input.Instructions...)
	prog.Instructions = append(prog.Instructions, shardScript.Instructions...)

	e := vm.New(prog, nil)
	if err := e.Execute(); err != nil {
		return IntermediateState{}, err
	}
	return IntermediateState{Stack: e.MainStack(), AltStack: e.AltStack()}, nil
}

// InjectScript builds the script that, when run against an empty VM, leaves
// exactly the prior shard's stacks primed for the next shard: push the main
// stack bottom-to-top, then push the alt stack and roll each element into
// place via OP_ROLL/OP_TOALTSTACK in reverse order. Ported from
// stack_to_script + the altstack-reconstruction loop in
// from_intermediate_result.
func (s IntermediateState) InjectScript() (script.Script, error) {
	b := script.NewBuilder()
	for _, it := range s.Stack {
		b.AddData(it)
	}
	for _, it := range s.AltStack {
		b.AddData(it)
	}
	for i := len(s.AltStack) - 1; i >= 0; i-- {
		b.AddInt64(int64(i))
		b.AddOp(txscript.OP_ROLL)
		b.AddOp(txscript.OP_TOALTSTACK)
	}
	return b.Script()
}

// FromIntermediateResult materializes the next shard's resulting state by
// injecting the previous state and then running the next shard, the direct
// analogue of from_intermediate_result.
func FromIntermediateResult(prev IntermediateState, next script.Script) (IntermediateState, error) {
	inject, err := prev.InjectScript()
	if err != nil {
		return IntermediateState{}, err
	}
	return FromInputScript(inject, next)
}
