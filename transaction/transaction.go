package transaction

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrMalformedInput is returned for bad hex, truncated data or trailing garbage.
	ErrMalformedInput = errors.New("malformed transaction data")
	// ErrKeyUnavailable is returned when signing without private key material.
	ErrKeyUnavailable = errors.New("private key unavailable")
)

const (
	DefaultSequence uint32 = 0xFFFFFFFF
	// ShieldVersion is the only version that carries trailing shield data.
	ShieldVersion int32 = 3
	// emptyScriptMarker flags the blank first output of a coinstake.
	emptyScriptMarker byte = 0xf8
)

// Outpoint references a single output of a transaction.
type Outpoint struct {
	TxID string `json:"txid"`
	N    uint32 `json:"n"`
}

// Key is the canonical map key of the outpoint: txid followed by the decimal index.
func (o Outpoint) Key() string {
	return o.TxID + strconv.FormatUint(uint64(o.N), 10)
}

func (o Outpoint) String() string {
	return o.TxID + ":" + strconv.FormatUint(uint64(o.N), 10)
}

type TxOut struct {
	Script []byte `json:"script"`
	Value  uint64 `json:"value"`
}

// IsEmpty reports whether the output is the blank marker output of a coinstake.
func (o TxOut) IsEmpty() bool {
	if o.Value != 0 {
		return false
	}
	return len(o.Script) == 0 || (len(o.Script) == 1 && o.Script[0] == emptyScriptMarker)
}

type TxIn struct {
	Outpoint  Outpoint `json:"outpoint"`
	ScriptSig []byte   `json:"script_sig"`
	Sequence  uint32   `json:"sequence"`
}

func NewTxIn(outpoint Outpoint, scriptSig []byte) TxIn {
	return TxIn{Outpoint: outpoint, ScriptSig: scriptSig, Sequence: DefaultSequence}
}

// UTXO is an owned, unspent output as exposed by the ledger.
type UTXO struct {
	Outpoint Outpoint `json:"outpoint"`
	Script   []byte   `json:"script"`
	Value    uint64   `json:"value"`
}

type Transaction struct {
	Version    int32
	Vin        []TxIn
	Vout       []TxOut
	LockTime   uint32
	ShieldData []byte
	// BlockHeight is -1 while unconfirmed.
	BlockHeight int
	BlockTime   int64
}

func New() *Transaction {
	return &Transaction{Version: 1, BlockHeight: -1, BlockTime: -1}
}

func (tx *Transaction) IsConfirmed() bool {
	return tx.BlockHeight != -1
}

func (tx *Transaction) IsCoinStake() bool {
	return len(tx.Vout) >= 2 && tx.Vout[0].IsEmpty()
}

func (tx *Transaction) IsCoinBase() bool {
	return len(tx.Vin) == 1 && strings.Trim(tx.Vin[0].Outpoint.TxID, "0") == ""
}

// Clone returns a deep copy.
func (tx *Transaction) Clone() *Transaction {
	c := *tx
	c.Vin = make([]TxIn, len(tx.Vin))
	for i, in := range tx.Vin {
		in.ScriptSig = cloneBytes(in.ScriptSig)
		c.Vin[i] = in
	}
	c.Vout = make([]TxOut, len(tx.Vout))
	for i, out := range tx.Vout {
		out.Script = cloneBytes(out.Script)
		c.Vout[i] = out
	}
	c.ShieldData = cloneBytes(tx.ShieldData)
	return &c
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
