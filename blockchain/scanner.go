package blockchain

import (
	"context"
	"fmt"
	"time"

	"github.com/mypivxwallet/wallet_engine/logger"
	"github.com/mypivxwallet/wallet_engine/metrics"
	"github.com/mypivxwallet/wallet_engine/storage"
	"github.com/mypivxwallet/wallet_engine/syslogs"
	"github.com/mypivxwallet/wallet_engine/wallet"
)

const persistEvery = 100

// Scanner follows the transparent chain and feeds the wallet the transactions that touch it.
type Scanner struct {
	source  Source
	wallet  *wallet.Wallet
	store   storage.AccountStore
	journal *syslogs.Journal
	logger  logger.Logger
}

type ScannerOption func(*Scanner)

func WithJournal(j *syslogs.Journal) ScannerOption {
	return func(s *Scanner) { s.journal = j }
}

func WithScannerLogger(l logger.Logger) ScannerOption {
	return func(s *Scanner) { s.logger = l }
}

func NewScanner(source Source, w *wallet.Wallet, store storage.AccountStore, opts ...ScannerOption) *Scanner {
	metrics.Init()
	s := &Scanner{
		source: source,
		wallet: w,
		store:  store,
		logger: logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync scans from the persisted height to the tip and returns the last scanned height.
func (s *Scanner) Sync(ctx context.Context) (int, error) {
	account, err := s.store.GetAccount()
	if err != nil {
		return 0, fmt.Errorf("load account: %w", err)
	}
	from := account.LastScannedHeight
	tip, err := s.source.GetBlockCount(ctx)
	if err != nil {
		return from, s.fail(from, err)
	}

	start := time.Now()
	var blocks, found int
	for h := from + 1; h <= tip; h++ {
		if err := ctx.Err(); err != nil {
			break
		}
		n, err := s.scanBlock(ctx, h)
		if err != nil {
			_ = s.persist(account)
			return account.LastScannedHeight, s.fail(h, err)
		}
		found += n
		blocks++
		account.LastScannedHeight = h
		metrics.TransparentBlocks.Inc()
		metrics.TransparentHeight.Set(float64(h))
		if blocks%persistEvery == 0 {
			if err := s.persist(account); err != nil {
				return h, err
			}
		}
	}
	if blocks == 0 {
		return account.LastScannedHeight, nil
	}
	if err := s.persist(account); err != nil {
		return account.LastScannedHeight, err
	}

	s.logger.Infof("scanned blocks %d..%d, %d wallet transactions", from+1, account.LastScannedHeight, found)
	if s.journal != nil {
		err := s.journal.InsertSyncLog(syslogs.SyncLog{
			Kind:       syslogs.KindTransparent,
			FromHeight: from + 1,
			ToHeight:   account.LastScannedHeight,
			Blocks:     blocks,
			TxNum:      found,
			DurationMs: time.Since(start).Milliseconds(),
			Timestamp:  time.Now().Unix(),
		})
		if err != nil {
			s.logger.Warnf("failed to write sync log: %v", err)
		}
	}
	return account.LastScannedHeight, ctx.Err()
}

// scanBlock applies the wallet transactions of block h in chain order.
func (s *Scanner) scanBlock(ctx context.Context, h int) (int, error) {
	block, err := s.source.GetBlock(ctx, h)
	if err != nil {
		return 0, err
	}
	txs, err := block.Transactions()
	if err != nil {
		return 0, err
	}
	sorted, err := SortBlock(txs)
	if err != nil {
		return 0, err
	}
	var found int
	for i := len(sorted) - 1; i >= 0; i-- {
		tx := sorted[i]
		if !s.wallet.IsRelevant(tx) {
			continue
		}
		s.wallet.AddTransaction(tx)
		found++
	}
	return found, nil
}

func (s *Scanner) persist(account *storage.Account) error {
	if err := s.store.UpdateAccount(account); err != nil {
		return fmt.Errorf("persist scanned height %d: %w", account.LastScannedHeight, err)
	}
	return nil
}

func (s *Scanner) fail(height int, err error) error {
	metrics.SyncErrors.WithLabelValues(syslogs.KindTransparent).Inc()
	s.logger.Errorf("transparent sync failed at %d: %v", height, err)
	if s.journal != nil {
		_ = s.journal.InsertErrLog(syslogs.ErrLog{
			Kind:         syslogs.KindTransparent,
			Height:       height,
			Timestamp:    time.Now().Unix(),
			ErrorMessage: err.Error(),
		})
	}
	return err
}
