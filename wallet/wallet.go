package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mypivxwallet/wallet_engine/config"
	"github.com/mypivxwallet/wallet_engine/logger"
	"github.com/mypivxwallet/wallet_engine/mempool"
	"github.com/mypivxwallet/wallet_engine/script"
	"github.com/mypivxwallet/wallet_engine/storage"
	"github.com/mypivxwallet/wallet_engine/transaction"
)

// ChangeDelegationThreshold is the smallest change that may be re-delegated.
const ChangeDelegationThreshold uint64 = config.Coin * 101 / 100

var (
	ErrInsufficientFunds              = errors.New("not enough balance")
	ErrMissingChangeDelegationAddress = errors.New("change delegation requested without a change delegation address")
	ErrNoMasterKey                    = errors.New("no master key loaded")
)

type TxOptions struct {
	// IsDelegation sends value to a cold stake output staked by the target address.
	IsDelegation bool
	// UseDelegatedInputs spends P2CS outputs, as an undelegation does.
	UseDelegatedInputs bool
	DelegateChange     bool
	// ChangeDelegationAddress stakes the change when DelegateChange is set.
	ChangeDelegationAddress string
	// IsProposal treats the target as a proposal hash (hex).
	IsProposal bool
}

// Wallet ties an account key to its ledger and watch set.
type Wallet struct {
	mu sync.RWMutex

	params    *config.ChainParams
	account   uint32
	key       MasterKey
	mempool   *mempool.Mempool
	addresses *AddressManager
	fee       FeeStrategy
	logger    logger.Logger
}

type Option func(*Wallet)

func WithFeeStrategy(f FeeStrategy) Option {
	return func(w *Wallet) { w.fee = f }
}

func WithLogger(l logger.Logger) Option {
	return func(w *Wallet) { w.logger = l }
}

func New(params *config.ChainParams, opts ...Option) *Wallet {
	w := &Wallet{
		params:    params,
		mempool:   mempool.New(),
		addresses: NewAddressManager(params),
		fee:       PerByteFee{SatPerByte: DefaultFeePerByte},
		logger:    logger.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetMasterKey activates key for account. State is rebuilt only when the exported key changes.
func (w *Wallet) SetMasterKey(key MasterKey, account uint32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	newID, err := key.KeyToExport(account)
	if err != nil {
		return err
	}
	var oldID string
	if w.key != nil {
		oldID, _ = w.key.KeyToExport(w.account)
	}
	w.key = key
	w.account = account
	if newID == oldID {
		w.addresses.setKey(key)
		return nil
	}
	w.mempool = mempool.New()
	return w.addresses.Reset(key, account)
}

func (w *Wallet) MasterKey() MasterKey {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.key
}

func (w *Wallet) Account() uint32 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.account
}

func (w *Wallet) Mempool() *mempool.Mempool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.mempool
}

func (w *Wallet) Addresses() *AddressManager {
	return w.addresses
}

func (w *Wallet) Params() *config.ChainParams {
	return w.params
}

func (w *Wallet) IsViewOnly() bool {
	k := w.MasterKey()
	return k != nil && k.IsViewOnly()
}

func (w *Wallet) IsHD() bool {
	k := w.MasterKey()
	return k != nil && k.IsHD()
}

func (w *Wallet) KeyToExport() (string, error) {
	k := w.MasterKey()
	if k == nil {
		return "", ErrNoMasterKey
	}
	return k.KeyToExport(w.Account())
}

func (w *Wallet) NewAddress(chain uint32) (string, string, error) {
	return w.addresses.NewAddress(chain)
}

func (w *Wallet) CurrentAddress() (string, error) {
	return w.addresses.CurrentAddress()
}

// ScriptType classifies an output script. It knows nothing about LOCKED or SPENT.
func (w *Wallet) ScriptType(s []byte) mempool.OutpointState {
	typ, addrs := w.addresses.AddressesFromScript(s)
	var status mempool.OutpointState
	for _, addr := range addrs {
		if _, ok := w.addresses.IsOwnAddress(addr); ok {
			status |= mempool.OURS
			break
		}
	}
	switch typ {
	case script.P2PKH:
		status |= mempool.P2PKH
	case script.P2CS:
		status |= mempool.P2CS
	}
	return status
}

// IsRelevant reports whether tx pays to or spends from the wallet.
func (w *Wallet) IsRelevant(tx *transaction.Transaction) bool {
	for _, out := range tx.Vout {
		if w.ScriptType(out.Script).Has(mempool.OURS) {
			return true
		}
	}
	mp := w.Mempool()
	for _, in := range tx.Vin {
		if mp.GetOutpointStatus(in.Outpoint).Has(mempool.OURS) {
			return true
		}
	}
	return false
}

// AddTransaction inserts tx, classifies its owned outputs and marks its inputs spent.
// Inputs are marked even before their funding transaction is known; the SPENT bit survives
// later classification.
func (w *Wallet) AddTransaction(tx *transaction.Transaction) {
	mp := w.Mempool()
	mp.AddTransaction(tx)

	txid := tx.TxID()
	for n, out := range tx.Vout {
		status := w.ScriptType(out.Script)
		if !status.Has(mempool.OURS) {
			continue
		}
		mp.SetOutpointStatus(transaction.Outpoint{TxID: txid, N: uint32(n)}, status)
		if err := w.addresses.UpdateHighestUsedIndex(out.Script); err != nil {
			w.logger.Warnf("failed to extend watch set for %s:%d: %v", txid, n, err)
		}
	}
	if tx.IsCoinBase() {
		return
	}
	for _, in := range tx.Vin {
		mp.SetSpent(in.Outpoint)
	}
}

func (w *Wallet) LockCoin(op transaction.Outpoint) {
	w.Mempool().AddOutpointStatus(op, mempool.LOCKED)
}

func (w *Wallet) UnlockCoin(op transaction.Outpoint) {
	w.Mempool().RemoveOutpointStatus(op, mempool.LOCKED)
}

func (w *Wallet) IsCoinLocked(op transaction.Outpoint) bool {
	return w.Mempool().GetOutpointStatus(op).Has(mempool.LOCKED)
}

func (w *Wallet) Balance() uint64 {
	return w.Mempool().Balance()
}

func (w *Wallet) ColdBalance() uint64 {
	return w.Mempool().ColdBalance()
}

func (w *Wallet) GetTransactions() []*transaction.Transaction {
	return w.Mempool().GetTransactions()
}

// AccountReader is the part of the account store the wallet reads.
type AccountReader interface {
	GetAccount() (*storage.Account, error)
}

// ColdStakingAddress returns the account's staker, or the network default.
func (w *Wallet) ColdStakingAddress(store AccountReader) (string, error) {
	account, err := store.GetAccount()
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}
	if account != nil && account.ColdAddress != "" {
		return account.ColdAddress, nil
	}
	return w.params.DefaultColdStakingAddress, nil
}

// CreateTransaction builds an unsigned transaction paying value to address.
func (w *Wallet) CreateTransaction(address string, value uint64, opts TxOptions) (*transaction.Transaction, error) {
	mp := w.Mempool()

	filter, balance := mempool.P2PKH, mp.Balance()
	if opts.UseDelegatedInputs {
		filter, balance = mempool.P2CS, mp.ColdBalance()
	}
	if balance < value {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, balance, value)
	}
	if opts.DelegateChange && opts.ChangeDelegationAddress == "" {
		return nil, ErrMissingChangeDelegationAddress
	}

	utxos := mp.GetUTXOs(mempool.UTXOQuery{Filter: filter, Target: value})
	builder := NewTxBuilder(w.params, w.fee).AddUTXOs(utxos)
	// locked coins count in the balance but are never selected
	if builder.ValueIn() < value {
		return nil, fmt.Errorf("%w: selectable %d, need %d", ErrInsufficientFunds, builder.ValueIn(), value)
	}

	fee := w.fee.Fee(draft(utxos, opts))
	change := int64(builder.ValueIn()) - int64(value) - int64(fee)

	if change > 0 {
		changeAddress, _, err := w.addresses.NewAddress(ChainChange)
		if err != nil {
			return nil, err
		}
		if opts.DelegateChange && uint64(change) > ChangeDelegationThreshold {
			builder.AddColdStakeOutput(changeAddress, opts.ChangeDelegationAddress, uint64(change))
		} else {
			builder.AddOutput(changeAddress, uint64(change))
		}
	} else {
		// not enough left for change, the fee comes out of the amount sent
		if fee >= value {
			return nil, fmt.Errorf("%w: value %d does not cover fee %d", ErrInsufficientFunds, value, fee)
		}
		value -= fee
	}

	switch {
	case opts.IsDelegation:
		returnAddress, _, err := w.addresses.NewAddress(ChainChange)
		if err != nil {
			return nil, err
		}
		builder.AddColdStakeOutput(returnAddress, address, value)
	case opts.IsProposal:
		builder.AddProposalOutput(address, value)
	default:
		builder.AddOutput(address, value)
	}
	return builder.Build()
}

// draft is the shape of the final transaction, used for fee estimation: the selected
// inputs, the primary output and a change output.
func draft(utxos []transaction.UTXO, opts TxOptions) *transaction.Transaction {
	tx := transaction.New()
	for _, u := range utxos {
		tx.Vin = append(tx.Vin, transaction.NewTxIn(u.Outpoint, u.Script))
	}
	primary, change := 25, 25
	switch {
	case opts.IsDelegation:
		primary = 51
	case opts.IsProposal:
		primary = 34
	}
	if opts.DelegateChange {
		change = 51
	}
	tx.Vout = []transaction.TxOut{
		{Script: make([]byte, primary)},
		{Script: make([]byte, change)},
	}
	return tx
}

// Sign signs every input in place. Inputs must carry their previous output script.
func (w *Wallet) Sign(ctx context.Context, tx *transaction.Transaction) (*transaction.Transaction, error) {
	key := w.MasterKey()
	if key == nil {
		return nil, ErrNoMasterKey
	}
	if hw, ok := key.(*HardwareMasterKey); ok {
		if hw.Signer == nil {
			return nil, fmt.Errorf("hardware signer: %w", transaction.ErrKeyUnavailable)
		}
		signed, err := hw.Signer.SignTransaction(ctx, tx)
		if err != nil {
			return nil, fmt.Errorf("hardware signer: %w", err)
		}
		tx.Vin = signed.Vin
		return signed, nil
	}
	if key.IsViewOnly() {
		return nil, ErrViewOnly
	}
	for i, in := range tx.Vin {
		typ, _ := script.Classify(in.ScriptSig)
		path, ok := w.addresses.GetPath(in.ScriptSig)
		if !ok {
			return nil, fmt.Errorf("input %d: no path for script: %w", i, transaction.ErrKeyUnavailable)
		}
		priv, err := key.PrivateKey(path)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		if err := tx.SignInput(i, priv, transaction.SignOptions{IsColdStake: typ == script.P2CS}); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
	}
	return tx, nil
}
