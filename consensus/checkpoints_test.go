package consensus

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

type fakeIndex map[common.Hash]bool

func (f fakeIndex) HasTransaction(txHash common.Hash) bool { return f[txHash] }

func TestVerifyCheckpointSkipsUncheckedHeights(t *testing.T) {
	p := MainParams()
	computed := 0
	err := p.VerifyCheckpoint(4020001, common.Hash{}, func() common.Hash {
		computed++
		return common.Hash{}
	}, nil)
	if err != nil {
		t.Fatalf("non-multiple height verified: %v", err)
	}
	if computed != 0 {
		t.Fatal("consensus hash computed off-interval")
	}
}

func TestVerifyCheckpointMatch(t *testing.T) {
	p := MainParams()
	cp := p.Checkpoints()[0]
	err := p.VerifyCheckpoint(cp.Height, cp.BlockHash, func() common.Hash {
		return cp.ConsensusHash
	}, nil)
	if err != nil {
		t.Fatalf("matching checkpoint rejected: %v", err)
	}
}

func TestVerifyCheckpointBlockHashMismatch(t *testing.T) {
	p := MainParams()
	cp := p.Checkpoints()[0]
	err := p.VerifyCheckpoint(cp.Height, common.HexToHash("0xdead"), func() common.Hash {
		t.Fatal("consensus hash computed despite block hash mismatch")
		return common.Hash{}
	}, nil)
	if err == nil {
		t.Fatal("block hash mismatch not reported")
	}
}

func TestVerifyCheckpointConsensusHashMismatch(t *testing.T) {
	p := MainParams()
	cp := p.Checkpoints()[0]
	err := p.VerifyCheckpoint(cp.Height, cp.BlockHash, func() common.Hash {
		return common.HexToHash("0xbeef")
	}, nil)
	if err == nil {
		t.Fatal("consensus hash mismatch not reported")
	}
}

func TestVerifyTransactionExistence(t *testing.T) {
	p := MainParams()
	cps := p.TransactionCheckpoints()
	index := fakeIndex{}
	for _, cp := range cps {
		index[cp.TxHash] = true
	}

	if err := p.VerifyTransactionExistence(5000000, index, nil); err != nil {
		t.Fatalf("complete index rejected: %v", err)
	}

	// Dropping one pinned transaction fails verification at or past its
	// height but not before it.
	delete(index, cps[len(cps)-1].TxHash)
	if err := p.VerifyTransactionExistence(5000000, index, nil); err == nil {
		t.Fatal("missing pinned transaction not reported")
	}
	if err := p.VerifyTransactionExistence(cps[len(cps)-1].Height-1, index, nil); err != nil {
		t.Fatalf("future checkpoint enforced early: %v", err)
	}
}

func TestHasherDeterminism(t *testing.T) {
	a, b := NewHasher(), NewHasher()
	for _, h := range []*Hasher{a, b} {
		h.Fold("balance", "alice", uint32(1), int64(100))
		h.Fold("property", uint32(3), "alice")
	}
	if a.Sum() != b.Sum() {
		t.Fatal("equal folds produced different digests")
	}

	c := NewHasher()
	c.Fold("property", uint32(3), "alice")
	c.Fold("balance", "alice", uint32(1), int64(100))
	if c.Sum() == a.Sum() {
		t.Fatal("fold order does not affect the digest")
	}
}
