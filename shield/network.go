package shield

import (
	"context"

	"github.com/mypivxwallet/wallet_engine/blockchain"
)

const (
	maxBatchBlocks = 100
	maxBatchTries  = 200
)

// NetworkSyncer polls the source block by block.
type NetworkSyncer struct {
	source           blockchain.Source
	window           int
	lastSyncedBlock  int
	firstSyncedBlock int
	totalBlocks      int
}

func NewNetworkSyncer(ctx context.Context, source blockchain.Source, lastSyncedBlock, window int) (*NetworkSyncer, error) {
	total, err := source.GetBlockCount(ctx)
	if err != nil {
		return nil, err
	}
	if window < 1 {
		window = 1
	}
	return &NetworkSyncer{
		source:           source,
		window:           window,
		lastSyncedBlock:  lastSyncedBlock,
		firstSyncedBlock: lastSyncedBlock,
		totalBlocks:      total,
	}, nil
}

// GetNextBlocks fetches up to the tip, stopping once the batch holds more than 100
// non-empty blocks or more than 200 blocks were looked at. Empty blocks are dropped.
func (s *NetworkSyncer) GetNextBlocks(ctx context.Context) ([]Block, error) {
	tip, err := s.source.GetBlockCount(ctx)
	if err != nil {
		return nil, err
	}
	if tip > s.totalBlocks {
		s.totalBlocks = tip
	}

	var (
		blocks []Block
		tries  int
		capped bool
	)
	apply := func(_ int, b *Block) error {
		if capped {
			return nil
		}
		s.lastSyncedBlock = b.Height
		if len(b.Txs) > 0 {
			blocks = append(blocks, *b)
		}
		tries++
		capped = len(blocks) > maxBatchBlocks || tries > maxBatchTries
		return nil
	}

	for s.lastSyncedBlock < tip {
		start := s.lastSyncedBlock + 1
		n := min(s.window, tip-s.lastSyncedBlock)
		err := OrderedFetch(ctx, n, s.window,
			func(ctx context.Context, seq int) (*Block, error) {
				return s.source.GetBlock(ctx, start+seq)
			},
			apply,
		)
		if err != nil {
			return nil, err
		}
		if capped {
			if len(blocks) > 0 {
				break
			}
			// a long run of empty blocks is not the end of the chain
			tries, capped = 0, false
		}
	}
	if len(blocks) == 0 {
		return nil, nil
	}
	return blocks, nil
}

func (s *NetworkSyncer) LastSyncedBlock() int {
	return s.lastSyncedBlock
}

func (s *NetworkSyncer) Length() int64 {
	return int64(s.totalBlocks - s.firstSyncedBlock)
}

func (s *NetworkSyncer) ReadBytes() int64 {
	return int64(s.lastSyncedBlock - s.firstSyncedBlock)
}
