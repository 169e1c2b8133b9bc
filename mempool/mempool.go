package mempool

import (
	"sync"

	"github.com/mypivxwallet/wallet_engine/metrics"
	"github.com/mypivxwallet/wallet_engine/transaction"
)

// OutpointState is a set of independent flags attached to an outpoint.
type OutpointState uint8

const (
	OURS OutpointState = 1 << iota
	P2PKH
	P2CS
	LOCKED
	SPENT
)

func (s OutpointState) Has(flags OutpointState) bool {
	return s&flags == flags
}

// UTXOQuery selects owned outpoints whose state shares at least one bit with Filter.
type UTXOQuery struct {
	Filter OutpointState
	// Target, when non-zero, stops selection at the first prefix whose value reaches it.
	Target        uint64
	IncludeLocked bool
}

// Mempool holds every transaction known to the wallet and the state of their outputs.
type Mempool struct {
	mu sync.Mutex

	txs   map[string]*transaction.Transaction
	order []string
	// outpoint key -> state
	states map[string]OutpointState
	// filter -> balance, cleared on every mutation
	balances map[OutpointState]uint64
}

func New() *Mempool {
	metrics.Init()
	return &Mempool{
		txs:      make(map[string]*transaction.Transaction),
		states:   make(map[string]OutpointState),
		balances: make(map[OutpointState]uint64),
	}
}

// AddTransaction stores tx. A known transaction is only replaced when the stored copy is
// unconfirmed and tx is confirmed. It does not mark any outpoint.
func (m *Mempool) AddTransaction(tx *transaction.Transaction) {
	txid := tx.TxID()

	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.txs[txid]
	if !ok {
		m.txs[txid] = tx
		m.order = append(m.order, txid)
		m.invalidate()
		metrics.LedgerTransactions.Inc()
		return
	}
	if !old.IsConfirmed() && tx.IsConfirmed() {
		m.txs[txid] = tx
		m.invalidate()
	}
}

// SetOutpointStatus replaces the state of outpoint. SPENT is never cleared.
func (m *Mempool) SetOutpointStatus(outpoint transaction.Outpoint, status OutpointState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := outpoint.Key()
	m.states[key] = status | (m.states[key] & SPENT)
	m.invalidate()
}

func (m *Mempool) AddOutpointStatus(outpoint transaction.Outpoint, status OutpointState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[outpoint.Key()] |= status
	m.invalidate()
}

// RemoveOutpointStatus clears the given bits, except SPENT.
func (m *Mempool) RemoveOutpointStatus(outpoint transaction.Outpoint, status OutpointState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[outpoint.Key()] &^= status &^ SPENT
	m.invalidate()
}

func (m *Mempool) SetSpent(outpoint transaction.Outpoint) {
	m.AddOutpointStatus(outpoint, SPENT)
}

func (m *Mempool) IsSpent(outpoint transaction.Outpoint) bool {
	return m.GetOutpointStatus(outpoint).Has(SPENT)
}

func (m *Mempool) GetOutpointStatus(outpoint transaction.Outpoint) OutpointState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[outpoint.Key()]
}

// GetUTXOs walks outputs in insertion order and returns the owned, unspent ones matching q.
func (m *Mempool) GetUTXOs(q UTXOQuery) []transaction.UTXO {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		utxos []transaction.UTXO
		total uint64
	)
	for _, txid := range m.order {
		tx := m.txs[txid]
		for n, out := range tx.Vout {
			op := transaction.Outpoint{TxID: txid, N: uint32(n)}
			state := m.states[op.Key()]
			if !matches(state, q.Filter) {
				continue
			}
			if state.Has(LOCKED) && !q.IncludeLocked {
				continue
			}
			utxos = append(utxos, transaction.UTXO{Outpoint: op, Script: out.Script, Value: out.Value})
			total += out.Value
			if q.Target > 0 && total >= q.Target {
				return utxos
			}
		}
	}
	return utxos
}

func matches(state, filter OutpointState) bool {
	return state.Has(OURS) && !state.Has(SPENT) && state&filter != 0
}

// GetBalance sums the owned, unspent outputs matching filter. Locked outputs are counted.
func (m *Mempool) GetBalance(filter OutpointState) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.balances[filter]; ok {
		return b
	}
	var balance uint64
	for _, txid := range m.order {
		for n, out := range m.txs[txid].Vout {
			op := transaction.Outpoint{TxID: txid, N: uint32(n)}
			if matches(m.states[op.Key()], filter) {
				balance += out.Value
			}
		}
	}
	m.balances[filter] = balance
	return balance
}

func (m *Mempool) Balance() uint64 {
	return m.GetBalance(P2PKH)
}

func (m *Mempool) ColdBalance() uint64 {
	return m.GetBalance(P2CS)
}

// GetDebit sums the wallet's outputs consumed by tx.
func (m *Mempool) GetDebit(tx *transaction.Transaction) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var debit uint64
	for _, in := range tx.Vin {
		prev, ok := m.txs[in.Outpoint.TxID]
		if !ok || int(in.Outpoint.N) >= len(prev.Vout) {
			continue
		}
		if m.states[in.Outpoint.Key()].Has(OURS) {
			debit += prev.Vout[in.Outpoint.N].Value
		}
	}
	return debit
}

// GetCredit sums the outputs of tx owned by the wallet and matching filter, spent or not.
// A zero filter matches any owned output.
func (m *Mempool) GetCredit(tx *transaction.Transaction, filter OutpointState) uint64 {
	txid := tx.TxID()

	m.mu.Lock()
	defer m.mu.Unlock()

	var credit uint64
	for n, out := range tx.Vout {
		state := m.states[transaction.Outpoint{TxID: txid, N: uint32(n)}.Key()]
		if !state.Has(OURS) {
			continue
		}
		if filter == 0 || state&filter != 0 {
			credit += out.Value
		}
	}
	return credit
}

func (m *Mempool) GetTransactions() []*transaction.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	txs := make([]*transaction.Transaction, 0, len(m.order))
	for _, txid := range m.order {
		txs = append(txs, m.txs[txid])
	}
	return txs
}

func (m *Mempool) GetTransaction(txid string) (*transaction.Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[txid]
	return tx, ok
}

func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// must hold m.mu
func (m *Mempool) invalidate() {
	if len(m.balances) > 0 {
		m.balances = make(map[OutpointState]uint64)
	}
}
