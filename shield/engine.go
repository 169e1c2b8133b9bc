package shield

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mypivxwallet/wallet_engine/logger"
	"github.com/mypivxwallet/wallet_engine/metrics"
	"github.com/mypivxwallet/wallet_engine/storage"
	"github.com/mypivxwallet/wallet_engine/syslogs"
	"github.com/schollz/progressbar/v3"
)

// Engine applies syncer batches to the shield state and persists it after every round.
type Engine struct {
	state    State
	store    storage.AccountStore
	logger   logger.Logger
	journal  *syslogs.Journal
	progress io.Writer
}

type Option func(*Engine)

func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithJournal(j *syslogs.Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithProgress renders a progress bar to w.
func WithProgress(w io.Writer) Option {
	return func(e *Engine) { e.progress = w }
}

func NewEngine(state State, store storage.AccountStore, opts ...Option) *Engine {
	metrics.Init()
	e := &Engine{
		state:    state,
		store:    store,
		logger:   logger.NewNop(),
		progress: io.Discard,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) State() State {
	return e.state
}

// Restore loads the persisted state blob, if any.
func (e *Engine) Restore() error {
	account, err := e.store.GetAccount()
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if len(account.ShieldSyncState) == 0 {
		return nil
	}
	if err := e.state.Load(account.ShieldSyncState); err != nil {
		return err
	}
	metrics.ShieldHeight.Set(float64(e.state.LastSyncedBlock()))
	return nil
}

// Sync drives syncer until it reports completion or ctx is cancelled, and returns the
// last applied height.
func (e *Engine) Sync(ctx context.Context, syncer Syncer) (int, error) {
	from := e.state.LastSyncedBlock()
	bar := progressbar.NewOptions64(syncer.Length(),
		progressbar.OptionSetWriter(e.progress),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetDescription("Syncing shield blocks..."),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetRenderBlankState(false),
	)

	start := time.Now()
	var blocks, txs int
	syncErr := e.run(ctx, syncer, bar, &blocks, &txs)

	if saver, ok := syncer.(Saver); ok {
		if err := saver.Save(ctx); err != nil && syncErr == nil {
			syncErr = err
		}
	}
	_ = bar.Finish()

	last := e.state.LastSyncedBlock()
	if syncErr != nil {
		return last, e.fail(last, syncErr)
	}
	if blocks > 0 {
		e.logger.Infof("shield synced %d..%d, %d blocks, %d transactions", from+1, last, blocks, txs)
		if e.journal != nil {
			err := e.journal.InsertSyncLog(syslogs.SyncLog{
				Kind:       syslogs.KindShield,
				FromHeight: from + 1,
				ToHeight:   last,
				Blocks:     blocks,
				TxNum:      txs,
				DurationMs: time.Since(start).Milliseconds(),
				Timestamp:  time.Now().Unix(),
			})
			if err != nil {
				e.logger.Warnf("failed to write sync log: %v", err)
			}
		}
	}
	return last, ctx.Err()
}

func (e *Engine) run(ctx context.Context, syncer Syncer, bar *progressbar.ProgressBar, blocks, txs *int) error {
	for ctx.Err() == nil {
		batch, err := syncer.GetNextBlocks(ctx)
		if err != nil {
			return err
		}
		if batch == nil {
			return nil
		}
		for _, b := range batch {
			if err := e.state.HandleBlock(ctx, b); err != nil {
				if perr := e.persist(); perr != nil {
					e.logger.Errorf("failed to persist shield state: %v", perr)
				}
				return fmt.Errorf("apply block %d: %w", b.Height, err)
			}
			*blocks++
			*txs += len(b.Txs)
			metrics.ShieldBlocksApplied.Inc()
			metrics.ShieldHeight.Set(float64(b.Height))
		}
		if err := e.persist(); err != nil {
			return err
		}
		_ = bar.Set64(syncer.ReadBytes())
	}
	return nil
}

func (e *Engine) persist() error {
	blob, err := e.state.Save()
	if err != nil {
		return fmt.Errorf("save shield state: %w", err)
	}
	account, err := e.store.GetAccount()
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	account.ShieldSyncState = blob
	account.LastShieldBlock = e.state.LastSyncedBlock()
	if err := e.store.UpdateAccount(account); err != nil {
		return fmt.Errorf("persist shield state: %w", err)
	}
	return nil
}

func (e *Engine) fail(height int, err error) error {
	metrics.SyncErrors.WithLabelValues(syslogs.KindShield).Inc()
	e.logger.Errorf("shield sync failed after %d: %v", height, err)
	if e.journal != nil {
		_ = e.journal.InsertErrLog(syslogs.ErrLog{
			Kind:         syslogs.KindShield,
			Height:       height,
			Timestamp:    time.Now().Unix(),
			ErrorMessage: err.Error(),
		})
	}
	return err
}
