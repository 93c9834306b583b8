// Package vm is a small Tapscript-flavored virtual machine, forked in
// spirit from github.com/btcsuite/btcd/txscript the way pkg/arkade forks
// the full consensus engine: its own Engine, its own Step/StepInfo debug
// hook, its own typed errors. Unlike a consensus engine it never validates
// a transaction input: it only replays a shard of script against whatever
// stacks the caller primes it with, and always runs with minimal-push and
// stack-size enforcement disabled, matching this module's splitting and
// state-materialization needs.
package vm

import (
	"crypto/sha256"
	"fmt"

	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/bvmerr"
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/script"
	"github.com/btcsuite/btcd/txscript"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ripemd160"
)

// StepInfo snapshots engine state after executing one instruction, the way
// pkg/arkade's Engine.stepCallback reports ScriptIndex/OpcodeIndex/Stack
// for debug tracing.
type StepInfo struct {
	InstructionIndex int
	Op               byte
	Stack            [][]byte
	AltStack         [][]byte
}

// StepCallback is invoked after every instruction when set on an Engine,
// mirroring pkg/arkade's stepCallback hook.
type StepCallback func(StepInfo)

// Engine executes a single script.Script against primed stacks.
type Engine struct {
	prog     script.Script
	ip       int
	dstack   Stack
	astack   Stack
	condStack []condFrame

	log      *logrus.Entry
	onStep   StepCallback
}

type condFrame struct {
	executing    bool
	everExecuted bool
	isElse       bool
}

// New builds an Engine for prog, priming the main stack with initial in
// bottom-to-top order.
func New(prog script.Script, initial [][]byte) *Engine {
	e := &Engine{prog: prog, log: logrus.WithField("component", "vm")}
	for _, it := range initial {
		e.dstack.Push(it)
	}
	return e
}

// SetAltStack primes the alt stack, used when resuming a shard whose
// predecessor left alt-stack state for it (see pkg/state).
func (e *Engine) SetAltStack(items [][]byte) {
	for _, it := range items {
		e.astack.Push(it)
	}
}

// SetStepCallback installs a debug hook invoked after each instruction.
func (e *Engine) SetStepCallback(cb StepCallback) { e.onStep = cb }

// MainStack returns a copy of the current main stack, bottom-to-top.
func (e *Engine) MainStack() [][]byte { return e.dstack.Items() }

// AltStack returns a copy of the current alt stack, bottom-to-top.
func (e *Engine) AltStack() [][]byte { return e.astack.Items() }

func (e *Engine) isBranchExecuting() bool {
	for i := len(e.condStack) - 1; i >= 0; i-- {
		if !e.condStack[i].executing {
			return false
		}
	}
	return true
}

// Execute runs every instruction in the program to completion. It does not
// require a clean single-true-bool stack at the end (unlike consensus
// validation) since shards are replayed for their resulting stack state,
// not for a pass/fail verdict.
func (e *Engine) Execute() error {
	for e.ip < len(e.prog.Instructions) {
		ins := e.prog.Instructions[e.ip]
		if err := e.step(ins); err != nil {
			return bvmerr.New("vm.Execute", bvmerr.VmHalt,
				fmt.Sprintf("instruction %d: opcode 0x%02x: %v", e.ip, ins.Op, err), err)
		}
		if e.onStep != nil {
			e.onStep(StepInfo{
				InstructionIndex: e.ip,
				Op:               ins.Op,
				Stack:            e.MainStack(),
				AltStack:         e.AltStack(),
			})
		}
		e.ip++
	}
	if len(e.condStack) != 0 {
		return bvmerr.New("vm.Execute", bvmerr.MalformedProgram, "unbalanced conditional at end of script", nil)
	}
	return nil
}

func (e *Engine) step(ins script.Instruction) error {
	// Conditional-opening opcodes are tracked regardless of whether the
	// enclosing branch executes, so IF/ENDIF balance is always correct.
	switch ins.Op {
	case txscript.OP_IF, txscript.OP_NOTIF:
		cond := false
		if e.isBranchExecuting() {
			top, err := e.dstack.Pop()
			if err != nil {
				return err
			}
			cond = asBool(top)
			if ins.Op == txscript.OP_NOTIF {
				cond = !cond
			}
		}
		e.condStack = append(e.condStack, condFrame{executing: cond, everExecuted: cond})
		return nil
	case txscript.OP_ELSE:
		if len(e.condStack) == 0 {
			return bvmerr.New("vm.step", bvmerr.MalformedProgram, "OP_ELSE without matching OP_IF", nil)
		}
		top := &e.condStack[len(e.condStack)-1]
		top.executing = !top.everExecuted
		top.everExecuted = top.everExecuted || top.executing
		top.isElse = true
		return nil
	case txscript.OP_ENDIF:
		if len(e.condStack) == 0 {
			return bvmerr.New("vm.step", bvmerr.MalformedProgram, "OP_ENDIF without matching OP_IF", nil)
		}
		e.condStack = e.condStack[:len(e.condStack)-1]
		return nil
	}

	if !e.isBranchExecuting() {
		return nil
	}

	if ins.Data != nil || ins.IsPush() {
		return e.execPush(ins)
	}
	return e.execOp(ins.Op)
}

func (e *Engine) execPush(ins script.Instruction) error {
	switch {
	case ins.Op == txscript.OP_0:
		e.dstack.Push(nil)
	case ins.Op == txscript.OP_1NEGATE:
		e.dstack.Push(scriptNum(-1).Bytes())
	case ins.Op >= txscript.OP_1 && ins.Op <= txscript.OP_16:
		e.dstack.Push(scriptNum(int64(ins.Op-txscript.OP_1+1)).Bytes())
	default:
		e.dstack.Push(append([]byte(nil), ins.Data...))
	}
	return nil
}

func (e *Engine) execOp(op byte) error {
	switch op {
	case txscript.OP_DUP:
		return e.dstack.Pick(0)
	case txscript.OP_DROP:
		_, err := e.dstack.Pop()
		return err
	case txscript.OP_2DROP:
		if _, err := e.dstack.Pop(); err != nil {
			return err
		}
		_, err := e.dstack.Pop()
		return err
	case txscript.OP_SWAP:
		a, err := e.dstack.Pop()
		if err != nil {
			return err
		}
		b, err := e.dstack.Pop()
		if err != nil {
			return err
		}
		e.dstack.Push(a)
		e.dstack.Push(b)
		return nil
	case txscript.OP_TUCK:
		a, err := e.dstack.Pop()
		if err != nil {
			return err
		}
		b, err := e.dstack.Pop()
		if err != nil {
			return err
		}
		e.dstack.Push(a)
		e.dstack.Push(b)
		e.dstack.Push(a)
		return nil
	case txscript.OP_ROLL:
		n, err := e.popInt()
		if err != nil {
			return err
		}
		return e.dstack.Roll(n)
	case txscript.OP_PICK:
		n, err := e.popInt()
		if err != nil {
			return err
		}
		return e.dstack.Pick(n)
	case txscript.OP_TOALTSTACK:
		v, err := e.dstack.Pop()
		if err != nil {
			return err
		}
		e.astack.Push(v)
		return nil
	case txscript.OP_FROMALTSTACK:
		v, err := e.astack.Pop()
		if err != nil {
			return err
		}
		e.dstack.Push(v)
		return nil
	case txscript.OP_ADD:
		return e.binaryNumOp(func(a, b scriptNum) scriptNum { return a + b })
	case txscript.OP_SUB:
		return e.binaryNumOp(func(a, b scriptNum) scriptNum { return b - a })
	case txscript.OP_NEGATE:
		n, err := e.popNum()
		if err != nil {
			return err
		}
		e.dstack.Push((-n).Bytes())
		return nil
	case txscript.OP_MIN:
		return e.binaryNumOp(func(a, b scriptNum) scriptNum {
			if a < b {
				return a
			}
			return b
		})
	case txscript.OP_EQUAL:
		a, err := e.dstack.Pop()
		if err != nil {
			return err
		}
		b, err := e.dstack.Pop()
		if err != nil {
			return err
		}
		e.dstack.Push(boolBytes(bytesEqual(a, b)))
		return nil
	case txscript.OP_EQUALVERIFY:
		a, err := e.dstack.Pop()
		if err != nil {
			return err
		}
		b, err := e.dstack.Pop()
		if err != nil {
			return err
		}
		if !bytesEqual(a, b) {
			return bvmerr.New("vm.OP_EQUALVERIFY", bvmerr.VmHalt, "equality check failed", nil)
		}
		return nil
	case txscript.OP_NOT:
		v, err := e.dstack.Pop()
		if err != nil {
			return err
		}
		e.dstack.Push(boolBytes(!asBool(v)))
		return nil
	case txscript.OP_BOOLOR:
		a, err := e.dstack.Pop()
		if err != nil {
			return err
		}
		b, err := e.dstack.Pop()
		if err != nil {
			return err
		}
		e.dstack.Push(boolBytes(asBool(a) || asBool(b)))
		return nil
	case txscript.OP_VERIFY:
		v, err := e.dstack.Pop()
		if err != nil {
			return err
		}
		if !asBool(v) {
			return bvmerr.New("vm.OP_VERIFY", bvmerr.VmHalt, "verify failed", nil)
		}
		return nil
	case txscript.OP_RIPEMD160:
		v, err := e.dstack.Pop()
		if err != nil {
			return err
		}
		h := ripemd160.New()
		h.Write(v)
		e.dstack.Push(h.Sum(nil))
		return nil
	case txscript.OP_HASH160:
		v, err := e.dstack.Pop()
		if err != nil {
			return err
		}
		sha := sha256.Sum256(v)
		h := ripemd160.New()
		h.Write(sha[:])
		e.dstack.Push(h.Sum(nil))
		return nil
	case txscript.OP_CHECKSEQUENCEVERIFY:
		// No-op in this VM: the splitter/materializer never evaluate the
		// payout timelock, it is only ever emitted into pkg/assert output.
		return nil
	case txscript.OP_NOP:
		return nil
	default:
		return bvmerr.New("vm.execOp", bvmerr.VmHalt, fmt.Sprintf("unsupported opcode 0x%02x", op), nil)
	}
}

func (e *Engine) popInt() (int, error) {
	n, err := e.popNum()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (e *Engine) popNum() (scriptNum, error) {
	v, err := e.dstack.Pop()
	if err != nil {
		return 0, err
	}
	return makeScriptNum(v)
}

func (e *Engine) binaryNumOp(f func(a, b scriptNum) scriptNum) error {
	a, err := e.popNum()
	if err != nil {
		return err
	}
	b, err := e.popNum()
	if err != nil {
		return err
	}
	e.dstack.Push(f(a, b).Bytes())
	return nil
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
