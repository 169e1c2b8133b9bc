package mempool

import (
	"encoding/hex"
	"testing"

	"github.com/mypivxwallet/wallet_engine/logger"
	"github.com/mypivxwallet/wallet_engine/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func script(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func setup(t *testing.T) (*Mempool, *transaction.Transaction) {
	m := New()
	tx := transaction.New()
	tx.Vout = []transaction.TxOut{
		{Script: script(t, "76a914f49b25384b79685227be5418f779b98a6be4c73888ac"), Value: 4992400},
		{Script: script(t, "76a914a95cc6408a676232d61ec29dc56a180b5847835788ac"), Value: 5000000},
	}
	m.AddTransaction(tx)
	m.SetOutpointStatus(transaction.Outpoint{TxID: tx.TxID(), N: 0}, OURS|P2PKH)
	m.SetOutpointStatus(transaction.Outpoint{TxID: tx.TxID(), N: 1}, OURS|P2PKH)
	return m, tx
}

func TestGetUTXOs(t *testing.T) {
	m, tx := setup(t)
	txid := tx.TxID()
	expected := []transaction.UTXO{
		{Outpoint: transaction.Outpoint{TxID: txid, N: 0}, Script: tx.Vout[0].Script, Value: 4992400},
		{Outpoint: transaction.Outpoint{TxID: txid, N: 1}, Script: tx.Vout[1].Script, Value: 5000000},
	}

	assert.Equal(t, expected, m.GetUTXOs(UTXOQuery{Filter: P2PKH}))
	assert.Equal(t, expected[:1], m.GetUTXOs(UTXOQuery{Filter: P2PKH, Target: 4000000}))
	assert.Empty(t, m.GetUTXOs(UTXOQuery{Filter: P2CS}))

	m.SetSpent(expected[0].Outpoint)
	assert.Equal(t, expected[1:], m.GetUTXOs(UTXOQuery{Filter: P2PKH}))
	m.SetSpent(expected[1].Outpoint)
	assert.Empty(t, m.GetUTXOs(UTXOQuery{Filter: P2PKH}))
}

func TestGetBalance(t *testing.T) {
	m, tx := setup(t)
	assert.Equal(t, uint64(4992400+5000000), m.GetBalance(P2PKH))
	assert.Equal(t, uint64(4992400+5000000), m.Balance())
	assert.Equal(t, uint64(0), m.ColdBalance())
	assert.Equal(t, uint64(4992400+5000000), m.GetBalance(P2CS|P2PKH))

	m.SetSpent(transaction.Outpoint{TxID: tx.TxID(), N: 0})
	assert.Equal(t, uint64(5000000), m.GetBalance(P2PKH))
	m.SetSpent(transaction.Outpoint{TxID: tx.TxID(), N: 1})
	assert.Equal(t, uint64(0), m.GetBalance(P2PKH))
}

func TestSpentIsPermanent(t *testing.T) {
	m, tx := setup(t)
	op := transaction.Outpoint{TxID: tx.TxID(), N: 0}
	m.SetSpent(op)

	m.RemoveOutpointStatus(op, SPENT|LOCKED)
	assert.True(t, m.IsSpent(op))
	m.SetOutpointStatus(op, OURS|P2PKH)
	assert.True(t, m.IsSpent(op))
	assert.Len(t, m.GetUTXOs(UTXOQuery{Filter: P2PKH, IncludeLocked: true}), 1)
}

func TestLockedOutpoints(t *testing.T) {
	m, tx := setup(t)
	op := transaction.Outpoint{TxID: tx.TxID(), N: 0}
	m.AddOutpointStatus(op, LOCKED)

	utxos := m.GetUTXOs(UTXOQuery{Filter: P2PKH})
	require.Len(t, utxos, 1)
	assert.Equal(t, uint32(1), utxos[0].Outpoint.N)
	assert.Len(t, m.GetUTXOs(UTXOQuery{Filter: P2PKH, IncludeLocked: true}), 2)
	assert.Equal(t, uint64(4992400+5000000), m.Balance())

	m.RemoveOutpointStatus(op, LOCKED)
	assert.Len(t, m.GetUTXOs(UTXOQuery{Filter: P2PKH}), 2)
	assert.Equal(t, OURS|P2PKH, m.GetOutpointStatus(op))
}

func TestNotOursNeverCounts(t *testing.T) {
	m := New()
	tx := transaction.New()
	tx.Vout = []transaction.TxOut{{Script: []byte{0x51}, Value: 1000}}
	m.AddTransaction(tx)
	m.SetOutpointStatus(transaction.Outpoint{TxID: tx.TxID(), N: 0}, P2PKH)

	assert.Equal(t, uint64(0), m.Balance())
	assert.Empty(t, m.GetUTXOs(UTXOQuery{Filter: P2PKH}))
	assert.Equal(t, uint64(0), m.GetCredit(tx, 0))
}

func TestCredit(t *testing.T) {
	m, tx := setup(t)
	assert.Equal(t, uint64(5000000+4992400), m.GetCredit(tx, 0))

	m.SetSpent(transaction.Outpoint{TxID: tx.TxID(), N: 1})
	assert.Equal(t, uint64(5000000+4992400), m.GetCredit(tx, 0))
	assert.Equal(t, uint64(0), m.GetCredit(tx, P2CS))
}

func TestDebit(t *testing.T) {
	m, tx := setup(t)
	assert.Equal(t, uint64(0), m.GetDebit(tx))

	spend := transaction.New()
	spend.Vin = []transaction.TxIn{
		transaction.NewTxIn(transaction.Outpoint{TxID: tx.TxID(), N: 1}, nil),
		transaction.NewTxIn(transaction.Outpoint{TxID: "00", N: 0}, nil),
	}
	assert.Equal(t, uint64(5000000), m.GetDebit(spend))
}

func TestAddTransactionIdempotent(t *testing.T) {
	m, tx := setup(t)
	m.AddTransaction(tx)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, []*transaction.Transaction{tx}, m.GetTransactions())
}

func TestAddTransactionConfirmsInPlace(t *testing.T) {
	m, tx := setup(t)
	other := transaction.New()
	other.Vout = []transaction.TxOut{{Script: []byte{0x51}, Value: 1}}
	m.AddTransaction(other)

	confirmed := tx.Clone()
	confirmed.BlockHeight = 100
	confirmed.BlockTime = 1700000000
	m.AddTransaction(confirmed)

	txs := m.GetTransactions()
	require.Len(t, txs, 2)
	assert.Equal(t, 100, txs[0].BlockHeight)

	// a confirmed copy is never replaced
	unconfirmed := tx.Clone()
	m.AddTransaction(unconfirmed)
	got, ok := m.GetTransaction(tx.TxID())
	require.True(t, ok)
	assert.True(t, got.IsConfirmed())
}

func TestListenerHandleRawTransaction(t *testing.T) {
	var got []*transaction.Transaction
	l := NewListener(nil, logger.NewNop(), func(tx *transaction.Transaction) {
		got = append(got, tx)
	})

	_, tx := setup(t)
	require.NoError(t, l.HandleRawTransaction(TopicRawTx, tx.Serialize()))
	require.Len(t, got, 1)
	assert.Equal(t, tx.TxID(), got[0].TxID())

	assert.ErrorIs(t, l.HandleRawTransaction(TopicRawTx, []byte{0x01}), transaction.ErrMalformedInput)
}
