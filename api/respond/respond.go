package respond

import (
	"github.com/mypivxwallet/wallet_engine/transaction"
	"github.com/mypivxwallet/wallet_engine/wallet"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
	// ProcessingTime is the handler time in milliseconds.
	ProcessingTime int64 `json:"processingTime"`
}

func RespSuccess(data interface{}, cost int64) Response {
	return Response{Code: 0, Msg: "ok", Data: data, ProcessingTime: cost}
}

func RespErr(err error, cost int64, code int) Response {
	return Response{Code: code, Msg: err.Error(), ProcessingTime: cost}
}

type BalanceResponse struct {
	Balance     uint64 `json:"balance"`
	ColdBalance uint64 `json:"coldBalance"`
	// ShieldBalance is zero when no shield state is loaded.
	ShieldBalance uint64 `json:"shieldBalance"`
}

type UTXOsResponse struct {
	Type  string             `json:"type"`
	UTXOs []transaction.UTXO `json:"utxos"`
	Count int                `json:"count"`
}

type HistoryResponse struct {
	List  []wallet.HistoricalTx `json:"list"`
	Count int                   `json:"count"`
	Total int                   `json:"total"`
}

type AddressResponse struct {
	Address string `json:"address"`
	Path    string `json:"path"`
}

// SendTxRequest is the body of POST /tx/send.
type SendTxRequest struct {
	Address string `json:"address"`
	Value   uint64 `json:"value" binding:"required"`
	Options struct {
		IsDelegation            bool   `json:"isDelegation"`
		UseDelegatedInputs      bool   `json:"useDelegatedInputs"`
		DelegateChange          bool   `json:"delegateChange"`
		ChangeDelegationAddress string `json:"changeDelegationAddress"`
		IsProposal              bool   `json:"isProposal"`
	} `json:"options"`
}

type SendTxResponse struct {
	TxID string `json:"txid"`
	Fee  uint64 `json:"fee"`
	Hex  string `json:"hex"`
}

type ShieldStatusResponse struct {
	Enabled         bool   `json:"enabled"`
	LastSyncedBlock int    `json:"lastSyncedBlock"`
	Balance         uint64 `json:"balance"`
}
