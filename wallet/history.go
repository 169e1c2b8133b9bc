package wallet

import (
	"github.com/mypivxwallet/wallet_engine/mempool"
	"github.com/mypivxwallet/wallet_engine/transaction"
)

type HistoricalTxType int

const (
	HistoryUnknown HistoricalTxType = iota
	HistoryStake
	HistoryDelegation
	HistoryUndelegation
	HistoryReceived
	HistorySent
	HistoryShield
)

var historyTypeNames = map[HistoricalTxType]string{
	HistoryUnknown:      "unknown",
	HistoryStake:        "stake",
	HistoryDelegation:   "delegation",
	HistoryUndelegation: "undelegation",
	HistoryReceived:     "received",
	HistorySent:         "sent",
	HistoryShield:       "shield",
}

func (t HistoricalTxType) String() string {
	return historyTypeNames[t]
}

func (t HistoricalTxType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

type HistoricalTx struct {
	Type      HistoricalTxType `json:"type"`
	TxID      string           `json:"txid"`
	Receivers []string         `json:"receivers"`
	Time      int64            `json:"time"`
	Height    int              `json:"height"`
	// Amount is the absolute balance change in satoshis.
	Amount uint64 `json:"amount"`
}

// History describes txs from the wallet's point of view, in the given order.
func (w *Wallet) History(txs []*transaction.Transaction) []HistoricalTx {
	mp := w.Mempool()
	out := make([]HistoricalTx, 0, len(txs))
	for _, tx := range txs {
		credit := mp.GetCredit(tx, 0)
		debit := mp.GetDebit(tx)
		delta := int64(credit) - int64(debit)
		receivers := w.outAddresses(tx)

		typ := HistoryUnknown
		switch {
		case tx.IsCoinStake():
			typ = HistoryStake
		case w.hasUndelegation(mp, tx):
			typ = HistoryUndelegation
		case w.hasDelegation(mp, tx):
			typ = HistoryDelegation
			receivers = w.stakers(receivers)
			delta = int64(credit)
		case delta > 0:
			typ = HistoryReceived
		case delta < 0:
			typ = HistorySent
		case len(tx.ShieldData) > 0:
			typ = HistoryShield
		}
		if delta < 0 {
			delta = -delta
		}
		out = append(out, HistoricalTx{
			Type:      typ,
			TxID:      tx.TxID(),
			Receivers: receivers,
			Time:      tx.BlockTime,
			Height:    tx.BlockHeight,
			Amount:    uint64(delta),
		})
	}
	return out
}

func (w *Wallet) hasUndelegation(mp *mempool.Mempool, tx *transaction.Transaction) bool {
	for _, in := range tx.Vin {
		if mp.GetOutpointStatus(in.Outpoint).Has(mempool.P2CS) {
			return true
		}
	}
	return false
}

func (w *Wallet) hasDelegation(mp *mempool.Mempool, tx *transaction.Transaction) bool {
	txid := tx.TxID()
	for n := range tx.Vout {
		if mp.GetOutpointStatus(transaction.Outpoint{TxID: txid, N: uint32(n)}).Has(mempool.P2CS) {
			return true
		}
	}
	return false
}

func (w *Wallet) outAddresses(tx *transaction.Transaction) []string {
	var addrs []string
	for _, out := range tx.Vout {
		_, a := w.addresses.AddressesFromScript(out.Script)
		addrs = append(addrs, a...)
	}
	return addrs
}

// stakers keeps the staking addresses only.
func (w *Wallet) stakers(addrs []string) []string {
	var keep []string
	prefix := w.stakingPrefix()
	for _, a := range addrs {
		if a != "" && a[0] == prefix {
			keep = append(keep, a)
		}
	}
	return keep
}

func (w *Wallet) stakingPrefix() byte {
	return w.addresses.addressFromHash(make([]byte, 20), w.params.StakingAddrID)[0]
}
