package disprove

import (
	"testing"

	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/script"
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/split"
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/state"
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/vm"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

func addShardScript(t *testing.T) script.Script {
	t.Helper()
	b := script.NewBuilder()
	b.AddOp(txscript.OP_ADD)
	prog, err := b.Script()
	require.NoError(t, err)
	return prog
}

func runDisproveScript(t *testing.T, ds DisproveScript) []byte {
	t.Helper()
	prog := script.Script{}
	prog.Instructions = append(prog.Instructions, ds.WitnessScript.Instructions...)
	prog.Instructions = append(prog.Instructions, ds.ScriptPubKey.Instructions...)

	e := vm.New(prog, nil)
	require.NoError(t, e.Execute())

	stack := e.MainStack()
	require.Len(t, stack, 1)
	return stack[0]
}

// TestDisproveScriptDetectsCorrectTransitionAsSound proves that, when the
// committed "to" state genuinely is f(from), the disprove script leaves
// false: a challenger cannot disprove a correct shard.
func TestDisproveScriptDetectsCorrectTransitionAsSound(t *testing.T) {
	from := state.IntermediateState{Stack: [][]byte{{3}, {4}}}
	to := state.IntermediateState{Stack: [][]byte{{7}}}
	shard := addShardScript(t)

	ds, err := New(from, to, shard)
	require.NoError(t, err)

	require.Nil(t, runDisproveScript(t, ds))
}

// TestDisproveScriptDetectsDistortedTransitionAsDisprovable proves that a
// corrupted "to" state (claiming 3+4=8) is caught: the disprove script
// leaves true, so a challenger can successfully disprove the shard.
func TestDisproveScriptDetectsDistortedTransitionAsDisprovable(t *testing.T) {
	from := state.IntermediateState{Stack: [][]byte{{3}, {4}}}
	to := state.IntermediateState{Stack: [][]byte{{8}}}
	shard := addShardScript(t)

	ds, err := New(from, to, shard)
	require.NoError(t, err)

	require.Equal(t, []byte{1}, runDisproveScript(t, ds))
}

func buildAddProgram(t *testing.T) script.Script {
	t.Helper()
	b := script.NewBuilder()
	b.AddInt64(2)
	b.AddInt64(3)
	b.AddOp(txscript.OP_ADD)
	b.AddInt64(4)
	b.AddInt64(5)
	b.AddOp(txscript.OP_ADD)
	prog, err := b.Script()
	require.NoError(t, err)
	return prog
}

func TestSignStackItemRejectsOutOfRangeValue(t *testing.T) {
	_, err := SignStackItem(MaxStackElementValue + 1)
	require.Error(t, err)
}

func TestSignedIntermediateStateWitnessAndVerificationScriptsBuild(t *testing.T) {
	st := state.IntermediateState{Stack: [][]byte{{5}, {9}}, AltStack: [][]byte{{1}}}
	signed, err := Sign(st)
	require.NoError(t, err)
	require.Len(t, signed.Stack, 2)
	require.Len(t, signed.AltStack, 1)

	witness, err := signed.WitnessScript()
	require.NoError(t, err)
	require.NotZero(t, witness.Len())

	verify, err := signed.VerificationScript()
	require.NoError(t, err)
	require.NotZero(t, verify.Len())
}

func TestFormDisproveScriptsProducesOneScriptPerShard(t *testing.T) {
	prog := buildAddProgram(t)
	result, err := split.Split(prog, 3, split.ByInstructions)
	require.NoError(t, err)

	scripts, err := FormDisproveScripts(script.Script{}, prog, split.ByInstructions, 3)
	require.NoError(t, err)
	require.Len(t, scripts, len(result.Shards))

	for _, ds := range scripts {
		elements, err := ds.WitnessElements()
		require.NoError(t, err)
		require.NotEmpty(t, elements)
		require.NotZero(t, ds.ScriptPubKey.Len())
	}
}

func TestFormDisproveScriptsDistortedMarksOneShard(t *testing.T) {
	prog := buildAddProgram(t)
	scripts, err := FormDisproveScriptsDistorted(script.Script{}, prog, split.ByInstructions, 3, 0)
	require.NoError(t, err)
	require.NotEmpty(t, scripts)
}

func TestFormDisproveScriptsDistortedRejectsOutOfRangeIndex(t *testing.T) {
	prog := buildAddProgram(t)
	_, err := FormDisproveScriptsDistorted(script.Script{}, prog, split.ByInstructions, 3, 1000)
	require.Error(t, err)
}
