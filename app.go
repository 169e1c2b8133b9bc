package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mypivxwallet/wallet_engine/blockchain"
	"github.com/mypivxwallet/wallet_engine/config"
	"github.com/mypivxwallet/wallet_engine/logger"
	"github.com/mypivxwallet/wallet_engine/shield"
	"github.com/mypivxwallet/wallet_engine/storage"
	"github.com/mypivxwallet/wallet_engine/syslogs"
	"github.com/mypivxwallet/wallet_engine/wallet"
)

// app holds the long-lived collaborators shared by the commands.
type app struct {
	cfg     *config.Config
	params  *config.ChainParams
	log     logger.Logger
	store   *storage.Store
	journal *syslogs.Journal
	source  blockchain.Source
	wallet  *wallet.Wallet
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	params, err := cfg.ChainParams()
	if err != nil {
		return nil, err
	}
	log := logger.New("walletd", logger.WithLevel(cfg.Log.Level), logger.WithPretty(cfg.Log.Pretty))

	store, err := storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open account storage: %w", err)
	}
	a := &app{
		cfg:    cfg,
		params: params,
		log:    log,
		store:  store,
		wallet: wallet.New(params,
			wallet.WithFeeStrategy(wallet.PerByteFee{SatPerByte: cfg.FeePerByte}),
			wallet.WithLogger(log.New("wallet")),
		),
	}
	if a.journal, err = syslogs.Open(filepath.Join(cfg.DataDir, "walletd.db")); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if a.source, err = blockchain.NewSource(cfg); err != nil {
		a.close()
		return nil, err
	}
	log.Infof("network %s, source %s, storage %s", cfg.Network, a.source.Name(), cfg.StorageEngine)
	return a, nil
}

func (a *app) close() {
	if s, ok := a.source.(interface{ Shutdown() }); ok {
		s.Shutdown()
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.Warnf("failed to close journal: %v", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warnf("failed to close storage: %v", err)
	}
}

// loadWallet restores the account key and rewinds the scan cursor to rescanFrom, unless it
// is negative: the ledger lives in memory and is rebuilt every session.
func (a *app) loadWallet(password string, rescanFrom int) error {
	account, err := a.store.GetAccount()
	if errors.Is(err, storage.ErrNotFound) {
		return errors.New("no account found, run `walletd import` first")
	}
	if err != nil {
		return err
	}
	key, err := wallet.RestoreMasterKey(account, password, a.params)
	if err != nil {
		return fmt.Errorf("failed to restore key: %w", err)
	}
	if err := a.wallet.SetMasterKey(key, a.cfg.AccountIndex); err != nil {
		return err
	}
	if key.IsViewOnly() {
		a.log.Infof("loaded view only account %s", account.PublicKey)
	}
	if rescanFrom >= 0 && account.LastScannedHeight > rescanFrom {
		account.LastScannedHeight = rescanFrom
		return a.store.UpdateAccount(account)
	}
	return nil
}

func (a *app) scanner() *blockchain.Scanner {
	return blockchain.NewScanner(a.source, a.wallet, a.store,
		blockchain.WithJournal(a.journal),
		blockchain.WithScannerLogger(a.log.New("scanner")),
	)
}

// shieldEngine restores the shield state; progress is drawn on the console when showProgress is set.
func (a *app) shieldEngine(showProgress bool) (*shield.Engine, error) {
	var progress io.Writer = io.Discard
	if showProgress {
		progress = colorable.NewColorableStdout()
	}
	engine := shield.NewEngine(shield.NewTrackerState(), a.store,
		shield.WithLogger(a.log.New("shield")),
		shield.WithJournal(a.journal),
		shield.WithProgress(progress),
	)
	if err := engine.Restore(); err != nil {
		return nil, err
	}
	return engine, nil
}

// syncShield runs one shield round with a fresh syncer.
func (a *app) syncShield(ctx context.Context, engine *shield.Engine) (int, error) {
	syncer, err := shield.NewSyncer(ctx, a.cfg, a.source, a.store, engine.State())
	if err != nil {
		return engine.State().LastSyncedBlock(), err
	}
	if c, ok := syncer.(io.Closer); ok {
		defer c.Close()
	}
	return engine.Sync(ctx, syncer)
}

// every runs fn now and then every interval until ctx is done. Errors are already
// logged and journaled by the components, the next round resumes from their cursor.
func every(ctx context.Context, interval time.Duration, fn func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		_ = fn(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
