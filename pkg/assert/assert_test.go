package assert

import (
	"testing"

	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/disprove"
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/script"
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/split"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func testOperatorKey(t *testing.T) *btcec.PublicKey {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv.PubKey()
}

func buildProgram(t *testing.T) script.Script {
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

func TestPayoutScriptBuilds(t *testing.T) {
	p := NewPayoutScript(testOperatorKey(t))
	s, err := p.ToScript()
	require.NoError(t, err)
	require.NotZero(t, s.Len())
}

func TestPayoutScriptRequiresPubKey(t *testing.T) {
	p := PayoutScript{}
	_, err := p.ToScript()
	require.Error(t, err)
}

func TestUnspendableInternalKeyIsStable(t *testing.T) {
	k1, err := UnspendableInternalKey()
	require.NoError(t, err)
	k2, err := UnspendableInternalKey()
	require.NoError(t, err)
	require.Equal(t, k1.SerializeCompressed(), k2.SerializeCompressed())
}

func TestBuildHuffmanTreePutsHeavierLeafCloserToRoot(t *testing.T) {
	internalKey, err := UnspendableInternalKey()
	require.NoError(t, err)

	leaves := []txscript.TapLeaf{
		txscript.NewBaseTapLeaf([]byte{0x51}),
		txscript.NewBaseTapLeaf([]byte{0x52}),
		txscript.NewBaseTapLeaf([]byte{0x53}),
	}
	weights := []int{PayoutLeafWeight, DisproveLeafWeight, DisproveLeafWeight}

	tree, err := BuildHuffmanTree(internalKey, leaves, weights)
	require.NoError(t, err)

	payoutProof, err := tree.ControlBlock(0)
	require.NoError(t, err)
	disproveProof, err := tree.ControlBlock(1)
	require.NoError(t, err)

	require.LessOrEqual(t, len(payoutProof.InclusionProof), len(disproveProof.InclusionProof))
}

func TestAssertTransactionAssembly(t *testing.T) {
	prog := buildProgram(t)
	ds, err := disprove.FormDisproveScripts(script.Script{}, prog, split.ByInstructions, 3)
	require.NoError(t, err)
	require.NotEmpty(t, ds)

	operatorKey := testOperatorKey(t)
	input := &wire.OutPoint{}
	assertTx, err := New(input, operatorKey, 100000, ds, DefaultOptions())
	require.NoError(t, err)

	out, err := assertTx.TxOut()
	require.NoError(t, err)
	require.NotZero(t, out.Value)

	witness, err := assertTx.DisproveWitness(0)
	require.NoError(t, err)
	require.NotEmpty(t, witness)

	payoutWitness, err := assertTx.PayoutWitness([]byte{0x01})
	require.NoError(t, err)
	require.Len(t, payoutWitness, 3)
}

func TestBuildFundingTransactionRejectsUnderfundedInput(t *testing.T) {
	operatorKey := testOperatorKey(t)
	out := wire.NewTxOut(100000, []byte{0x51})
	_, err := BuildFundingTransaction(out, FundingParams{
		OperatorPubKey: operatorKey,
		InputAmount:    50000,
		AssertAmount:   100000,
		FeeRateSatPerV: 2,
	})
	require.Error(t, err)
}

func TestBuildFundingTransactionAddsChangeAboveDust(t *testing.T) {
	operatorKey := testOperatorKey(t)
	out := wire.NewTxOut(100000, []byte{0x51})
	pkt, err := BuildFundingTransaction(out, FundingParams{
		OperatorPubKey: operatorKey,
		InputAmount:    200000,
		AssertAmount:   100000,
		FeeRateSatPerV: 2,
		ChangePkScript: []byte{0x00, 0x14},
	})
	require.NoError(t, err)
	require.Len(t, pkt.UnsignedTx.TxOut, 2)
}
