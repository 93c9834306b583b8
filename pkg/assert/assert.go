package assert

import (
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/bvmerr"
	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/disprove"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Options configures AssertTransaction assembly.
type Options struct {
	PayoutLocktime uint16
}

// DefaultOptions returns the standard two-week payout timelock.
func DefaultOptions() Options {
	return Options{PayoutLocktime: PayoutLocktime}
}

// AssertTransaction is the fully assembled Taproot output a BitVM2-style
// operator posts on-chain: a payout leaf plus one disprove leaf per shard
// of the committed program, combined into a single Huffman-weighted P2TR
// output. Ported from core/src/assert/mod.rs::AssertTransaction.
type AssertTransaction struct {
	Input           *wire.OutPoint
	OperatorPubKey  *btcec.PublicKey
	Amount          int64
	PayoutScript    PayoutScript
	DisproveScripts []disprove.DisproveScript
	Tree            *Taptree
}

// New assembles an AssertTransaction from the operator's key, the funding
// outpoint, the output amount, and the already-built per-shard disprove
// scripts (see pkg/disprove.FormDisproveScripts).
func New(input *wire.OutPoint, operatorPubKey *btcec.PublicKey, amount int64, disproveScripts []disprove.DisproveScript, opts Options) (*AssertTransaction, error) {
	payout := NewPayoutScript(operatorPubKey).WithLocktime(opts.PayoutLocktime)
	payoutBytes, err := scriptBytes(payout)
	if err != nil {
		return nil, err
	}

	leaves := make([]txscript.TapLeaf, 0, len(disproveScripts)+1)
	weights := make([]int, 0, len(disproveScripts)+1)
	leaves = append(leaves, txscript.NewBaseTapLeaf(payoutBytes))
	weights = append(weights, PayoutLeafWeight)

	for _, ds := range disproveScripts {
		dsBytes, err := ds.ScriptPubKey.Bytes()
		if err != nil {
			return nil, bvmerr.New("assert.New", bvmerr.MalformedProgram, "serializing disprove script", err)
		}
		leaves = append(leaves, txscript.NewBaseTapLeaf(dsBytes))
		weights = append(weights, DisproveLeafWeight)
	}

	internalKey, err := UnspendableInternalKey()
	if err != nil {
		return nil, err
	}
	tree, err := BuildHuffmanTree(internalKey, leaves, weights)
	if err != nil {
		return nil, err
	}

	return &AssertTransaction{
		Input:           input,
		OperatorPubKey:  operatorPubKey,
		Amount:          amount,
		PayoutScript:    payout,
		DisproveScripts: disproveScripts,
		Tree:            tree,
	}, nil
}

func scriptBytes(p PayoutScript) ([]byte, error) {
	s, err := p.ToScript()
	if err != nil {
		return nil, err
	}
	return s.Bytes()
}

// TxOut builds the Assert output itself: a P2TR output paying the Huffman
// tree's tweaked output key.
func (a *AssertTransaction) TxOut() (*wire.TxOut, error) {
	pkScript, err := a.Tree.OutputScript()
	if err != nil {
		return nil, err
	}
	return wire.NewTxOut(a.Amount, pkScript), nil
}

// PayoutLeafIndex is always 0: New appends the payout leaf first.
const PayoutLeafIndex = 0

// DisproveLeafIndex returns the leaf index of disprove script i (shard i).
func (a *AssertTransaction) DisproveLeafIndex(i int) int { return i + 1 }

// PayoutTransaction builds the unsigned, CSV-sequenced transaction that
// sweeps the Assert output via the payout path. The caller supplies the
// schnorr signature over the computed sighash (this module never holds
// operator key material).
func (a *AssertTransaction) PayoutTransaction(payoutPkScript []byte, payoutAmount int64) (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(2)
	in := wire.NewTxIn(a.Input, nil, nil)
	in.Sequence = uint32(a.PayoutScript.Locktime)
	tx.AddTxIn(in)
	tx.AddTxOut(wire.NewTxOut(payoutAmount, payoutPkScript))
	return tx, nil
}

// PayoutWitness assembles the script-path spend witness for the payout
// leaf: [signature, operator_pubkey_script, control_block].
func (a *AssertTransaction) PayoutWitness(sig []byte) (wire.TxWitness, error) {
	leafScript, err := scriptBytes(a.PayoutScript)
	if err != nil {
		return nil, err
	}
	cb, err := a.Tree.ControlBlock(PayoutLeafIndex)
	if err != nil {
		return nil, err
	}
	cbBytes, err := cb.ToBytes()
	if err != nil {
		return nil, err
	}
	return wire.TxWitness{sig, leafScript, cbBytes}, nil
}

// DisproveTransaction builds the unsigned transaction spending the Assert
// output via disprove leaf i, paying the reward to rewardPkScript.
func (a *AssertTransaction) DisproveTransaction(i int, rewardPkScript []byte, rewardAmount int64) (*wire.MsgTx, error) {
	if i < 0 || i >= len(a.DisproveScripts) {
		return nil, bvmerr.New("assert.DisproveTransaction", bvmerr.MalformedProgram, "disprove index out of range", nil)
	}
	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(a.Input, nil, nil))
	tx.AddTxOut(wire.NewTxOut(rewardAmount, rewardPkScript))
	return tx, nil
}

// DisproveWitness assembles the script-path spend witness for disprove
// leaf i: the revealed Winternitz witness elements, the leaf script, and
// the control block.
func (a *AssertTransaction) DisproveWitness(i int) (wire.TxWitness, error) {
	if i < 0 || i >= len(a.DisproveScripts) {
		return nil, bvmerr.New("assert.DisproveWitness", bvmerr.MalformedProgram, "disprove index out of range", nil)
	}
	ds := a.DisproveScripts[i]
	elements, err := ds.WitnessElements()
	if err != nil {
		return nil, err
	}
	leafScript, err := ds.ScriptPubKey.Bytes()
	if err != nil {
		return nil, err
	}
	cb, err := a.Tree.ControlBlock(a.DisproveLeafIndex(i))
	if err != nil {
		return nil, err
	}
	cbBytes, err := cb.ToBytes()
	if err != nil {
		return nil, err
	}
	witness := make(wire.TxWitness, 0, len(elements)+2)
	for _, e := range elements {
		witness = append(witness, e)
	}
	witness = append(witness, leafScript, cbBytes)
	return witness, nil
}
