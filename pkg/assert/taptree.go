package assert

import (
	"container/heap"

	"github.com/ArkLabsHQ/bitvm2-splitter/pkg/bvmerr"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
)

const (
	// DisproveLeafWeight is the Huffman weight given to each disprove
	// leaf: cheap, since almost every Assert output is swept via the
	// payout path instead.
	DisproveLeafWeight = 1
	// PayoutLeafWeight is the Huffman weight given to the payout leaf:
	// five times a disprove leaf's, so it sits shallower in the tree and
	// costs a shorter inclusion proof on the expected path.
	PayoutLeafWeight = 5
)

// huffmanNode is an unmerged leaf or a merged subtree, tracked with its
// subtree weight (sum of its leaves' weights) for the priority queue and
// the set of original leaf indices underneath it.
type huffmanNode struct {
	weight int
	node   txscript.TapNode
	leaves []int
}

type nodeHeap []*huffmanNode

func (h nodeHeap) Len() int            { return len(h) }
func (h nodeHeap) Less(i, j int) bool  { return h[i].weight < h[j].weight }
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(*huffmanNode)) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Taptree is a manually assembled, Huffman-weighted Taproot script tree:
// the real github.com/btcsuite/btcd/txscript.AssembleTaprootScriptTree only
// builds a balanced tree, so every merge step here is done by hand via
// txscript.NewTapBranch, with each leaf's inclusion proof extended by the
// sibling subtree's TapHash at every merge.
type Taptree struct {
	InternalKey     *btcec.PublicKey
	OutputKey       *btcec.PublicKey
	RootHash        chainhash.Hash
	leaves          []txscript.TapLeaf
	inclusionProofs [][]byte
}

// BuildHuffmanTree assembles leaves weighted by weights (parallel slices)
// under internalKey using a classic Huffman merge: repeatedly combine the
// two lowest-weight nodes into a txscript.TapBranch until one node remains.
func BuildHuffmanTree(internalKey *btcec.PublicKey, leaves []txscript.TapLeaf, weights []int) (*Taptree, error) {
	if len(leaves) == 0 {
		return nil, bvmerr.New("assert.BuildHuffmanTree", bvmerr.MalformedProgram, "no leaves supplied", nil)
	}
	if len(leaves) != len(weights) {
		return nil, bvmerr.New("assert.BuildHuffmanTree", bvmerr.MalformedProgram, "leaves/weights length mismatch", nil)
	}

	proofs := make([][]byte, len(leaves))

	h := &nodeHeap{}
	heap.Init(h)
	for i, leaf := range leaves {
		heap.Push(h, &huffmanNode{weight: weights[i], node: leaf, leaves: []int{i}})
	}

	for h.Len() > 1 {
		a := heap.Pop(h).(*huffmanNode)
		b := heap.Pop(h).(*huffmanNode)

		aHash := a.node.TapHash()
		bHash := b.node.TapHash()
		for _, idx := range a.leaves {
			proofs[idx] = append(proofs[idx], bHash[:]...)
		}
		for _, idx := range b.leaves {
			proofs[idx] = append(proofs[idx], aHash[:]...)
		}

		merged := &huffmanNode{
			weight: a.weight + b.weight,
			node:   txscript.NewTapBranch(a.node, b.node),
			leaves: append(append([]int(nil), a.leaves...), b.leaves...),
		}
		heap.Push(h, merged)
	}

	root := heap.Pop(h).(*huffmanNode)
	rootHash := root.node.TapHash()
	outputKey := txscript.ComputeTaprootOutputKey(internalKey, rootHash[:])

	return &Taptree{
		InternalKey:     internalKey,
		OutputKey:       outputKey,
		RootHash:        rootHash,
		leaves:          leaves,
		inclusionProofs: proofs,
	}, nil
}

// ControlBlock builds the txscript.ControlBlock for spending leaf index i.
func (t *Taptree) ControlBlock(i int) (*txscript.ControlBlock, error) {
	if i < 0 || i >= len(t.leaves) {
		return nil, bvmerr.New("assert.Taptree.ControlBlock", bvmerr.MalformedProgram, "leaf index out of range", nil)
	}
	outputKeyYIsOdd := t.OutputKey.SerializeCompressed()[0] == 0x03
	return &txscript.ControlBlock{
		LeafVersion:     txscript.BaseLeafVersion,
		InternalKey:     t.InternalKey,
		OutputKeyYIsOdd: outputKeyYIsOdd,
		InclusionProof:  t.inclusionProofs[i],
	}, nil
}

// Leaf returns leaf i's script.
func (t *Taptree) Leaf(i int) txscript.TapLeaf { return t.leaves[i] }

// OutputScript returns the P2TR scriptPubKey: OP_1 <32-byte output key>.
func (t *Taptree) OutputScript() ([]byte, error) {
	b := txscript.NewScriptBuilder()
	b.AddOp(txscript.OP_1)
	b.AddData(schnorrXOnly(t.OutputKey))
	return b.Script()
}
