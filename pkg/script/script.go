// Package script defines the instruction-level model of a Tapscript-like
// program that the rest of this module splits, replays and proves against.
// It mirrors the subset of github.com/btcsuite/btcd/txscript that this
// module's virtual machine actually executes, reusing txscript's own
// opcode constants and push-data encoding instead of redefining them.
package script

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
)

// Instruction is a single parsed element of a script: either an opcode or a
// data push. Exactly one of Data being nil/non-nil distinguishes the two,
// matching how txscript.ScriptTokenizer exposes a parsed program.
type Instruction struct {
	Op   byte
	Data []byte // nil for bare opcodes, including OP_0..OP_16 small ints
}

// IsPush reports whether this instruction pushes data (including the
// minimal small-integer push opcodes OP_1..OP_16 and OP_1NEGATE).
func (ins Instruction) IsPush() bool {
	return ins.Op <= txscript.OP_PUSHDATA4 || ins.Op == txscript.OP_1NEGATE ||
		(ins.Op >= txscript.OP_1 && ins.Op <= txscript.OP_16)
}

// Script is a parsed, shardable sequence of instructions.
type Script struct {
	Instructions []Instruction
}

// Len returns the number of instructions.
func (s Script) Len() int { return len(s.Instructions) }

// Bytes re-serializes the instruction sequence into raw script bytes.
func (s Script) Bytes() ([]byte, error) {
	b := txscript.NewScriptBuilder()
	for _, ins := range s.Instructions {
		switch {
		case ins.Data != nil:
			b.AddData(ins.Data)
		default:
			b.AddOp(ins.Op)
		}
	}
	return b.Script()
}

// Parse decodes raw script bytes into a Script, preserving every opcode and
// push exactly as encountered (no minimal-push normalization), since shard
// boundaries must be computed over the program as originally authored.
func Parse(raw []byte) (Script, error) {
	var out Script
	tokenizer := txscript.MakeScriptTokenizer(0, raw)
	for tokenizer.Next() {
		data := tokenizer.Data()
		var cp []byte
		if data != nil {
			cp = append(cp, data...)
		}
		out.Instructions = append(out.Instructions, Instruction{
			Op:   tokenizer.Opcode(),
			Data: cp,
		})
	}
	if err := tokenizer.Err(); err != nil {
		return Script{}, fmt.Errorf("script: parse: %w", err)
	}
	return out, nil
}

// Builder is a thin wrapper that accumulates Instructions instead of bytes,
// so that callers can build a Script value directly (e.g. for injected
// shard-boundary scripts) without a serialize/reparse round trip.
type Builder struct {
	ins []Instruction
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// AddOp appends a bare opcode.
func (b *Builder) AddOp(op byte) *Builder {
	b.ins = append(b.ins, Instruction{Op: op})
	return b
}

// AddData appends a data push, always using the smallest-length encoding.
func (b *Builder) AddData(data []byte) *Builder {
	op := dataPushOpcode(data)
	b.ins = append(b.ins, Instruction{Op: op, Data: append([]byte(nil), data...)})
	return b
}

// AddInt64 appends a minimal numeric push, reusing OP_1..OP_16/OP_1NEGATE
// for small values the way txscript.ScriptBuilder.AddInt64 does.
func (b *Builder) AddInt64(n int64) *Builder {
	if n == 0 {
		b.ins = append(b.ins, Instruction{Op: txscript.OP_0})
		return b
	}
	if n == -1 {
		b.ins = append(b.ins, Instruction{Op: txscript.OP_1NEGATE})
		return b
	}
	if n >= 1 && n <= 16 {
		b.ins = append(b.ins, Instruction{Op: byte(txscript.OP_1 + n - 1)})
		return b
	}
	return b.AddData(scriptNumBytes(n))
}

// AddScript appends every instruction of another Script in order, used to
// concatenate sub-scripts (witness scripts, verification scripts, function
// scripts) the way component assembly throughout this module requires.
func (b *Builder) AddScript(s Script) *Builder {
	b.ins = append(b.ins, s.Instructions...)
	return b
}

// Script finalizes the builder into a Script value.
func (b *Builder) Script() (Script, error) {
	return Script{Instructions: append([]Instruction(nil), b.ins...)}, nil
}

func dataPushOpcode(data []byte) byte {
	n := len(data)
	switch {
	case n == 0:
		return txscript.OP_0
	case n == 1 && data[0] >= 1 && data[0] <= 16:
		return byte(txscript.OP_1 + data[0] - 1)
	case n == 1 && data[0] == 0x81:
		return txscript.OP_1NEGATE
	case n < txscript.OP_PUSHDATA1:
		return byte(n)
	case n <= 0xff:
		return txscript.OP_PUSHDATA1
	case n <= 0xffff:
		return txscript.OP_PUSHDATA2
	default:
		return txscript.OP_PUSHDATA4
	}
}

// scriptNumBytes encodes n the way Bitcoin Script numbers are encoded:
// little-endian magnitude with a sign bit in the top bit of the last byte.
func scriptNumBytes(n int64) []byte {
	if n == 0 {
		return nil
	}
	negative := n < 0
	abs := n
	if negative {
		abs = -n
	}
	var result []byte
	for abs > 0 {
		result = append(result, byte(abs&0xff))
		abs >>= 8
	}
	if result[len(result)-1]&0x80 != 0 {
		if negative {
			result = append(result, 0x80)
		} else {
			result = append(result, 0x00)
		}
	} else if negative {
		result[len(result)-1] |= 0x80
	}
	return result
}
