package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mypivxwallet/wallet_engine/api"
	"github.com/mypivxwallet/wallet_engine/config"
	"github.com/mypivxwallet/wallet_engine/mempool"
	"github.com/mypivxwallet/wallet_engine/shield"
	"github.com/mypivxwallet/wallet_engine/storage"
	"github.com/mypivxwallet/wallet_engine/transaction"
	"github.com/mypivxwallet/wallet_engine/wallet"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	configPath string
	password   string
	rescanFrom int
	noShield   bool
	newAddress bool
	generate   bool
)

var rootCmd = &cobra.Command{
	Use:   "walletd",
	Short: "Self-custodial PIVX wallet engine",
	Long: `A PIVX wallet engine: HD key management, transparent and cold staking ledger,
transaction building and signing, and shield chain synchronisation.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Sync continuously and serve the wallet API",
	RunE:  runServe,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one transparent and one shield sync round",
	RunE:  runSync,
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Scan the chain and print the account balances",
	RunE:  runBalance,
}

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print a receiving address",
	RunE:  runAddress,
}

var importCmd = &cobra.Command{
	Use:   "import [mnemonic|xprv|xpub|wif|address]",
	Short: "Create the account from a secret, or from a fresh mnemonic with --generate",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runImport,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "config file, yaml or toml")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", os.Getenv("WALLET_PASSWORD"), "password of the encrypted key, view only when empty")

	for _, cmd := range []*cobra.Command{serveCmd, syncCmd, balanceCmd} {
		cmd.Flags().IntVar(&rescanFrom, "rescan-from", 0, "height the transparent scan starts from")
	}
	for _, cmd := range []*cobra.Command{serveCmd, syncCmd} {
		cmd.Flags().BoolVar(&noShield, "no-shield", false, "skip shield sync")
	}
	addressCmd.Flags().BoolVar(&newAddress, "new", false, "derive the next unused address")
	importCmd.Flags().BoolVar(&generate, "generate", false, "generate a new 24 word mnemonic")

	rootCmd.AddCommand(serveCmd, syncCmd, balanceCmd, addressCmd, importCmd)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.loadWallet(password, rescanFrom); err != nil {
		return err
	}

	var engine *shield.Engine
	if !noShield {
		if engine, err = a.shieldEngine(a.cfg.Log.Pretty); err != nil {
			return err
		}
	}

	ctx, stop := signalContext()
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	interval := time.Duration(a.cfg.SyncIntervalSec) * time.Second

	opts := []api.Option{api.WithJournal(a.journal), api.WithLogger(a.log.New("api"))}

	scanner := a.scanner()
	g.Go(func() error {
		return every(ctx, interval, func(ctx context.Context) error {
			_, err := scanner.Sync(ctx)
			return err
		})
	})

	if engine != nil {
		opts = append(opts, api.WithShield(engine))
		g.Go(func() error {
			return every(ctx, interval, func(ctx context.Context) error {
				_, err := a.syncShield(ctx, engine)
				return err
			})
		})
	}

	if len(a.cfg.ZMQAddress) > 0 {
		listener := mempool.NewListener(a.cfg.ZMQAddress, a.log.New("zmq"), func(tx *transaction.Transaction) {
			if a.wallet.IsRelevant(tx) {
				a.wallet.AddTransaction(tx)
			}
		})
		listener.Start(ctx)
		defer listener.Stop()
	}

	server := api.NewServer(a.wallet, a.source, a.store, opts...)
	httpServer := &http.Server{Addr: ":" + a.cfg.APIPort, Handler: server.Router}
	g.Go(func() error {
		a.log.Infof("wallet API listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.log.Infof("received stop signal, shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.loadWallet(password, rescanFrom); err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	height, err := a.scanner().Sync(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("transparent height: %d\n", height)
	if noShield {
		return nil
	}
	engine, err := a.shieldEngine(true)
	if err != nil {
		return err
	}
	shieldHeight, err := a.syncShield(ctx, engine)
	if err != nil {
		return err
	}
	fmt.Printf("\nshield height: %d\n", shieldHeight)
	return nil
}

func runBalance(cmd *cobra.Command, args []string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.loadWallet(password, rescanFrom); err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	if _, err := a.scanner().Sync(ctx); err != nil {
		return err
	}
	fmt.Printf("balance:      %s PIV\n", formatCoins(a.wallet.Balance()))
	fmt.Printf("cold balance: %s PIV\n", formatCoins(a.wallet.ColdBalance()))
	return nil
}

func runAddress(cmd *cobra.Command, args []string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.loadWallet(password, -1); err != nil {
		return err
	}
	if newAddress {
		address, path, err := a.wallet.NewAddress(wallet.ChainReceiving)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", address, path)
		return nil
	}
	address, err := a.wallet.CurrentAddress()
	if err != nil {
		return err
	}
	fmt.Println(address)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	var secret string
	switch {
	case generate:
		if secret, err = wallet.NewMnemonic(); err != nil {
			return err
		}
		fmt.Printf("mnemonic: %s\n", secret)
	case len(args) == 1:
		secret = args[0]
	default:
		return errors.New("a secret or --generate is required")
	}

	key, err := wallet.ParseSecret(secret, a.params)
	if err != nil {
		return err
	}
	if err := a.wallet.SetMasterKey(key, a.cfg.AccountIndex); err != nil {
		return err
	}
	publicKey, err := a.wallet.KeyToExport()
	if err != nil {
		return err
	}

	if key.IsViewOnly() {
		err = a.store.AddAccount(&storage.Account{PublicKey: publicKey})
	} else {
		if password == "" {
			return errors.New("--password is required to store a spending key")
		}
		err = a.wallet.Encrypt(a.store, password)
	}
	if err != nil {
		return fmt.Errorf("failed to store account: %w", err)
	}
	fmt.Printf("account: %s\n", publicKey)
	return nil
}

func formatCoins(sats uint64) string {
	s := fmt.Sprintf("%d.%08d", sats/config.Coin, sats%config.Coin)
	return strings.TrimRight(strings.TrimRight(s, "0"), ".")
}
