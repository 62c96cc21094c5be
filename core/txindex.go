package core

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// txIndexSection persists the processed-transaction index alongside the
// balance state so that transaction-existence checkpoints survive a
// restart.
type txIndexSection map[common.Hash]bool

func (s *txIndexSection) SectionKey() []byte { return []byte("txindex") }

func (s *txIndexSection) EncodeSection() ([]byte, error) {
	hashes := make([]common.Hash, 0, len(*s))
	for h := range *s {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool {
		return hashes[i].Cmp(hashes[j]) < 0
	})
	return rlp.EncodeToBytes(hashes)
}

func (s *txIndexSection) DecodeSection(data []byte) error {
	var hashes []common.Hash
	if err := rlp.DecodeBytes(data, &hashes); err != nil {
		return err
	}
	index := make(map[common.Hash]bool, len(hashes))
	for _, h := range hashes {
		index[h] = true
	}
	*s = index
	return nil
}
