// Package split divides a long script into shards small enough to fit in a
// single Tapscript leaf, preserving OP_IF/OP_ENDIF balance across every
// shard boundary. It is the Go port of
// distributed-lab/bitvm2-splitter's bitcoin-splitter/src/split/core.rs,
// translated instruction-for-instruction rather than line-for-line.
package split

import (
	"fmt"

	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/bvmerr"
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/script"
	"github.com/btcsuite/btcd/txscript"
	"github.com/sirupsen/logrus"
)

// SplitType selects how shard boundaries are measured.
type SplitType int

const (
	// ByInstructions seals a shard once the script-wide instruction index
	// modulo ChunkSize, plus one, reaches ChunkSize (subject to the IF/ENDIF
	// balance invariant below). A shard that follows one that closed late
	// therefore holds fewer than ChunkSize instructions.
	ByInstructions SplitType = iota
	// ByBytes seals a shard once its serialized size reaches ChunkSize
	// bytes.
	ByBytes
)

const (
	// DefaultScriptSize is the chunk size DefaultSplit uses.
	DefaultScriptSize = 7000
	// MaxScriptSize is the hard ceiling a sealed shard must never exceed.
	MaxScriptSize = 50000
	// stackSizeIndex weights the state-size term of the complexity index.
	stackSizeIndex = 1000
)

// Shard is one contiguous slice of the original program.
type Shard struct {
	Script script.Script
}

// Result is the output of splitting a script: N shards, producing N+1
// intermediate states once materialized (state 0 is the pre-shard-0 input,
// state N is the final output) — materialization itself lives in pkg/state.
type Result struct {
	Shards []Shard
}

// Split divides prog into shards under chunkSize using splitType, sealing
// each shard only when the running IF/ENDIF counters are balanced so that
// no shard boundary falls inside an open conditional.
func Split(prog script.Script, chunkSize int, splitType SplitType) (Result, error) {
	if chunkSize <= 0 {
		return Result{}, bvmerr.New("split.Split", bvmerr.MalformedProgram, "chunk size must be positive", nil)
	}

	var (
		result       Result
		current      []script.Instruction
		ifCount      int
		endifCount   int
		currentSize  int
		instructionN int
	)

	sealShard := func() {
		result.Shards = append(result.Shards, Shard{Script: script.Script{Instructions: current}})
		current = nil
		currentSize = 0
		ifCount = 0
		endifCount = 0
	}

	for _, ins := range prog.Instructions {
		current = append(current, ins)

		switch ins.Op {
		case txscript.OP_IF, txscript.OP_NOTIF:
			ifCount++
		case txscript.OP_ENDIF:
			endifCount++
		}

		switch splitType {
		case ByInstructions:
			// Preserve the original's modular drift: the shard's size is
			// (instructionN % ChunkSize) + 1 over the whole script, not the
			// current shard's own instruction count.
			currentSize = instructionN%chunkSize + 1
		case ByBytes:
			currentSize += instructionSize(ins)
		default:
			return Result{}, bvmerr.New("split.Split", bvmerr.MalformedProgram,
				fmt.Sprintf("unknown split type %d", splitType), nil)
		}
		instructionN++

		if currentSize >= chunkSize && ifCount == endifCount {
			if currentSize > MaxScriptSize {
				return Result{}, bvmerr.NewShard("split.Split", bvmerr.MalformedProgram,
					len(result.Shards), fmt.Sprintf("shard size %d exceeds max %d", currentSize, MaxScriptSize), nil)
			}
			sealShard()
		}
	}
	if len(current) > 0 {
		if ifCount != endifCount {
			return Result{}, bvmerr.New("split.Split", bvmerr.MalformedProgram,
				"script ends with unbalanced OP_IF/OP_ENDIF", nil)
		}
		if currentSize > MaxScriptSize {
			return Result{}, bvmerr.NewShard("split.Split", bvmerr.MalformedProgram,
				len(result.Shards), fmt.Sprintf("shard size %d exceeds max %d", currentSize, MaxScriptSize), nil)
		}
		sealShard()
	}
	return result, nil
}

func instructionSize(ins script.Instruction) int {
	if ins.Data == nil {
		return 1
	}
	return 1 + len(ins.Data)
}

// NaiveSplit splits with a fixed chunk size and no search, the direct
// analogue of naive_split in the original Rust.
func NaiveSplit(prog script.Script, chunkSize int, splitType SplitType) (Result, error) {
	return Split(prog, chunkSize, splitType)
}

// DefaultSplit splits using DefaultScriptSize/ByInstructions.
func DefaultSplit(prog script.Script) (Result, error) {
	return Split(prog, DefaultScriptSize, ByInstructions)
}

// ComplexityIndex scores a Result by the heaviest shard, combining its own
// byte size with the stack-state sizes that must cross its boundaries,
// weighted by stackSizeIndex — ported from SplitResult::complexity_index.
// stateSize(i) returns the serialized size of the intermediate state
// produced after shard i (i == len(shards)-1 for the final state); the
// input state before shard 0 is not charged.
func ComplexityIndex(r Result, shardSize func(int) int, stateSize func(int) int) int {
	max := 0
	for i := range r.Shards {
		prevSize := 0
		if i > 0 {
			prevSize = stateSize(i - 1)
		}
		cur := shardSize(i) + (stateSize(i)+prevSize)*stackSizeIndex
		if cur > max {
			max = cur
		}
	}
	return max
}

// FuzzySweep is the search space FuzzySplit sweeps, mirroring the original's
// `(100..MAX_SCRIPT_SIZE).step_by(20)`.
func FuzzySweep() []int {
	sizes := make([]int, 0, (MaxScriptSize-100)/20+1)
	for size := 100; size < MaxScriptSize; size += 20 {
		sizes = append(sizes, size)
	}
	return sizes
}

// FuzzySplit sweeps candidate chunk sizes and returns the split whose
// ComplexityIndex (via complexity, evaluated on the candidate Result) is
// lowest. A candidate chunk size whose Split or complexity evaluation
// panics or errors is skipped, mirroring the original's
// panic::catch_unwind-based fault isolation via a deferred recover.
func FuzzySplit(prog script.Script, splitType SplitType, complexity func(Result) int) (best Result, bestSize int, err error) {
	log := logrus.WithField("component", "split.fuzzy")
	bestScore := -1
	for _, size := range FuzzySweep() {
		candidate, ok := trySplit(prog, size, splitType)
		if !ok {
			continue
		}
		score := safeComplexity(complexity, candidate)
		if score < 0 {
			continue
		}
		if bestScore == -1 || score < bestScore {
			bestScore = score
			best = candidate
			bestSize = size
		}
	}
	if bestScore == -1 {
		return Result{}, 0, bvmerr.New("split.FuzzySplit", bvmerr.Transient,
			"no candidate chunk size produced a valid split", nil)
	}
	log.WithField("chunk_size", bestSize).WithField("complexity", bestScore).Debug("fuzzy split selected candidate")
	return best, bestSize, nil
}

func trySplit(prog script.Script, size int, splitType SplitType) (r Result, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	res, err := Split(prog, size, splitType)
	if err != nil {
		return Result{}, false
	}
	return res, true
}

func safeComplexity(complexity func(Result) int, r Result) (score int) {
	defer func() {
		if recover() != nil {
			score = -1
		}
	}()
	return complexity(r)
}
