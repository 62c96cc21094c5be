package consensus

import (
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
)

// TransactionIndex answers whether a processed token-layer transaction is
// known. The engine maintains the index; the verifier only reads it.
type TransactionIndex interface {
	HasTransaction(txHash common.Hash) bool
}

// VerifyCheckpoint compares the supplied block hash and freshly computed
// consensus hash against the hardcoded checkpoint for the height, if one
// exists. A mismatch is consensus divergence and the caller must halt. The
// consensus hash is computed lazily because folding the full state is
// expensive and only needed on checkpointed heights.
func (p *Params) VerifyCheckpoint(block int64, blockHash common.Hash, consensusHash func() common.Hash, logger *slog.Logger) error {
	if block%CheckpointInterval != 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	for _, cp := range p.checkpoints {
		if cp.Height != block {
			continue
		}
		if cp.BlockHash != blockHash {
			logger.Error("checkpoint block hash mismatch",
				slog.Int64("height", block),
				slog.String("expected", cp.BlockHash.Hex()),
				slog.String("received", blockHash.Hex()))
			return fmt.Errorf("consensus: block hash mismatch at checkpoint %d", block)
		}
		computed := consensusHash()
		if cp.ConsensusHash != computed {
			logger.Error("checkpoint consensus hash mismatch",
				slog.Int64("height", block),
				slog.String("expected", cp.ConsensusHash.Hex()),
				slog.String("computed", computed.Hex()))
			return fmt.Errorf("consensus: consensus hash mismatch at checkpoint %d", block)
		}
		break
	}
	return nil
}

// VerifyTransactionExistence checks that every historical transaction
// checkpoint at or below the given block is present in the index. Used
// after restarts to detect an inconsistent transaction database.
func (p *Params) VerifyTransactionExistence(block int64, index TransactionIndex, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for _, cp := range p.txCheckpoints {
		if block < cp.Height {
			continue
		}
		if !index.HasTransaction(cp.TxHash) {
			logger.Error("historical transaction missing",
				slog.Int64("height", cp.Height), slog.String("tx", cp.TxHash.Hex()))
			return fmt.Errorf("consensus: missing historical transaction %s at block %d", cp.TxHash.Hex(), cp.Height)
		}
	}
	return nil
}
