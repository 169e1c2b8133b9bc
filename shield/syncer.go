package shield

import (
	"context"
	"fmt"

	"github.com/mypivxwallet/wallet_engine/blockchain"
	"github.com/mypivxwallet/wallet_engine/config"
	"github.com/mypivxwallet/wallet_engine/storage"
)

type (
	Block   = blockchain.Block
	BlockTx = blockchain.BlockTx
)

// Syncer yields shield blocks in ascending height order.
type Syncer interface {
	// GetNextBlocks returns the next batch, or nil when the sync is complete.
	GetNextBlocks(ctx context.Context) ([]Block, error)
	// Length is the total amount of work, in the unit of ReadBytes. Negative when unknown.
	Length() int64
	ReadBytes() int64
}

// Saver is implemented by syncers that keep their own resume point.
type Saver interface {
	Save(ctx context.Context) error
}

// NewSyncer picks the strategy configured in cfg.ShieldSync, resuming after state's last block.
func NewSyncer(ctx context.Context, cfg *config.Config, source blockchain.Source, store storage.AccountStore, state State) (Syncer, error) {
	switch cfg.ShieldSync.Mode {
	case config.ShieldModeBinary:
		return NewBinarySyncer(ctx, source, store, state.LastSyncedBlock(), cfg.ShieldSync.BatchBlocks)
	case config.ShieldModePolling:
		return NewNetworkSyncer(ctx, source, state.LastSyncedBlock(), cfg.ShieldSync.Concurrency)
	default:
		return nil, fmt.Errorf("unsupported shield sync mode: %s, supported modes: binary, polling", cfg.ShieldSync.Mode)
	}
}
