package blockchain

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mypivxwallet/wallet_engine/config"
	"github.com/mypivxwallet/wallet_engine/transaction"
)

var ErrBroadcastRejected = errors.New("transaction rejected by the network")

// BlockTx is a transaction as served by a source: raw hex plus its id.
type BlockTx struct {
	Hex  string `json:"hex"`
	TxID string `json:"txid"`
}

type Block struct {
	Height int       `json:"height"`
	Time   int64     `json:"time"`
	Txs    []BlockTx `json:"txs"`
}

// Transactions decodes every tx of the block and stamps it with the block's height and time.
func (b *Block) Transactions() ([]*transaction.Transaction, error) {
	txs := make([]*transaction.Transaction, 0, len(b.Txs))
	for _, raw := range b.Txs {
		tx, err := transaction.FromHex(raw.Hex)
		if err != nil {
			return nil, fmt.Errorf("block %d tx %s: %w", b.Height, raw.TxID, err)
		}
		tx.BlockHeight = b.Height
		tx.BlockTime = b.Time
		txs = append(txs, tx)
	}
	return txs, nil
}

// Source is the chain data provider the wallet syncs from.
type Source interface {
	Name() string
	GetBlockCount(ctx context.Context) (int, error)
	GetBlock(ctx context.Context, height int) (*Block, error)
	SendTransaction(ctx context.Context, hex string) (string, error)
	GetTxInfo(ctx context.Context, txid string) (string, error)
	// GetShieldBlockList lists the heights of blocks carrying shield transactions.
	GetShieldBlockList(ctx context.Context) ([]int, error)
	// GetShieldData streams the compact shield frames from fromHeight on.
	GetShieldData(ctx context.Context, fromHeight int) (io.ReadCloser, int64, error)
}

// NewSource builds the source selected by cfg.Source.
func NewSource(cfg *config.Config) (Source, error) {
	switch cfg.Source {
	case config.SourceRPC:
		return NewRPCSource(cfg)
	case config.SourceExplorer:
		return NewExplorerSource(cfg.ExplorerURL, cfg.ShieldURL), nil
	default:
		return nil, fmt.Errorf("unsupported source: %s, supported sources: rpc, explorer", cfg.Source)
	}
}
