package consensus

import (
	"crypto/sha256"
	"fmt"
	"hash"

	"github.com/ethereum/go-ethereum/common"
)

// Hasher folds an ordered sequence of state records into the rolling
// consensus digest. Callers are responsible for feeding records in a
// deterministic order; the hasher itself is a plain SHA-256 accumulator
// over pipe-delimited preimage lines.
type Hasher struct {
	h hash.Hash
}

// NewHasher returns an empty consensus hasher.
func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

// Fold appends one preimage line built from the supplied fields.
func (c *Hasher) Fold(fields ...interface{}) {
	for i, f := range fields {
		if i > 0 {
			c.h.Write([]byte("|"))
		}
		fmt.Fprintf(c.h, "%v", f)
	}
	c.h.Write([]byte("\n"))
}

// Sum finalises the digest.
func (c *Hasher) Sum() common.Hash {
	return common.BytesToHash(c.h.Sum(nil))
}
