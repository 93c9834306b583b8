package state

import (
	"testing"

	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/script"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

func TestFromInputScriptCapturesStacks(t *testing.T) {
	b := script.NewBuilder()
	b.AddInt64(7)
	b.AddOp(txscript.OP_TOALTSTACK)
	b.AddInt64(3)
	prog, err := b.Script()
	require.NoError(t, err)

	st, err := FromInputScript(script.Script{}, prog)
	require.NoError(t, err)
	require.Len(t, st.Stack, 1)
	require.Len(t, st.AltStack, 1)
}

func TestInjectThenFromIntermediateRoundTrips(t *testing.T) {
	first := script.NewBuilder()
	first.AddInt64(5)
	first.AddInt64(9)
	first.AddOp(txscript.OP_TOALTSTACK)
	firstProg, err := first.Script()
	require.NoError(t, err)

	from, err := FromInputScript(script.Script{}, firstProg)
	require.NoError(t, err)

	second := script.NewBuilder()
	second.AddOp(txscript.OP_FROMALTSTACK)
	second.AddOp(txscript.OP_ADD)
	secondProg, err := second.Script()
	require.NoError(t, err)

	to, err := FromIntermediateResult(from, secondProg)
	require.NoError(t, err)
	require.Len(t, to.Stack, 1)

	num, err := AsU32(to.Stack)
	require.NoError(t, err)
	require.Equal(t, uint32(14), num[0])
}

func TestAsU32WidensElementsWiderThanFourBytes(t *testing.T) {
	out, err := AsU32([][]byte{{1, 2, 3, 4, 5}})
	require.NoError(t, err)
	require.Equal(t, []uint32{0x04030201, 0x00000005}, out)
}

func TestAsU32EmptyElementIsZero(t *testing.T) {
	out, err := AsU32([][]byte{{}})
	require.NoError(t, err)
	require.Equal(t, []uint32{0}, out)
}
