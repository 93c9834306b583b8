package split

import (
	"testing"

	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/script"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

func buildProgram(t *testing.T, n int) script.Script {
	t.Helper()
	b := script.NewBuilder()
	for i := 0; i < n; i++ {
		b.AddInt64(1)
		b.AddOp(txscript.OP_DROP)
	}
	prog, err := b.Script()
	require.NoError(t, err)
	return prog
}

func TestSplitPreservesInstructionCount(t *testing.T) {
	prog := buildProgram(t, 100)
	result, err := Split(prog, 10, ByInstructions)
	require.NoError(t, err)

	total := 0
	for _, shard := range result.Shards {
		total += shard.Script.Len()
	}
	require.Equal(t, prog.Len(), total)
	require.Greater(t, len(result.Shards), 1)
}

func TestSplitNeverBreaksConditionalBalance(t *testing.T) {
	b := script.NewBuilder()
	for i := 0; i < 50; i++ {
		b.AddInt64(1)
		b.AddOp(txscript.OP_IF)
		b.AddInt64(2)
		b.AddOp(txscript.OP_ENDIF)
	}
	prog, err := b.Script()
	require.NoError(t, err)

	result, err := Split(prog, 3, ByInstructions)
	require.NoError(t, err)

	for _, shard := range result.Shards {
		ifs, endifs := 0, 0
		for _, ins := range shard.Script.Instructions {
			switch ins.Op {
			case txscript.OP_IF, txscript.OP_NOTIF:
				ifs++
			case txscript.OP_ENDIF:
				endifs++
			}
		}
		require.Equal(t, ifs, endifs, "every shard must have balanced IF/ENDIF")
	}
}

func TestSplitRejectsNonPositiveChunkSize(t *testing.T) {
	prog := buildProgram(t, 10)
	_, err := Split(prog, 0, ByInstructions)
	require.Error(t, err)
}

func TestFuzzySplitPicksLowestComplexity(t *testing.T) {
	prog := buildProgram(t, 500)
	complexity := func(r Result) int {
		return len(r.Shards)
	}
	best, size, err := FuzzySplit(prog, ByInstructions, complexity)
	require.NoError(t, err)
	require.NotZero(t, size)
	require.NotEmpty(t, best.Shards)
}

func TestDefaultSplitUsesDefaultScriptSize(t *testing.T) {
	prog := buildProgram(t, 10)
	result, err := DefaultSplit(prog)
	require.NoError(t, err)
	require.Len(t, result.Shards, 1)
}
