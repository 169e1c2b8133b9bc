package blockchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/bytedance/sonic"
	"github.com/mypivxwallet/wallet_engine/config"
)

// rawRequester is the part of rpcclient.Client the source uses.
type rawRequester interface {
	RawRequest(method string, params []json.RawMessage) (json.RawMessage, error)
	Shutdown()
}

// RPCSource reads the chain from a PIVX node's JSON-RPC.
type RPCSource struct {
	shieldClient
	client rawRequester
}

func NewRPCSource(cfg *config.Config) (*RPCSource, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         fmt.Sprintf("%s:%s", cfg.RPC.Host, cfg.RPC.Port),
		User:         cfg.RPC.User,
		Pass:         cfg.RPC.Password,
		HTTPPostMode: true,
		DisableTLS:   true,
	}
	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create PIVX RPC client: %w", err)
	}
	return newRPCSource(client, cfg.ShieldURL), nil
}

func newRPCSource(client rawRequester, shieldURL string) *RPCSource {
	return &RPCSource{
		shieldClient: newShieldClient(shieldURL, &http.Client{}),
		client:       client,
	}
}

func (r *RPCSource) Name() string {
	return "rpc"
}

func (r *RPCSource) Shutdown() {
	r.client.Shutdown()
}

// call runs method with params marshalled one by one and decodes the result into out.
func (r *RPCSource) call(ctx context.Context, out any, method string, params ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		b, err := sonic.Marshal(p)
		if err != nil {
			return err
		}
		raw = append(raw, b)
	}
	resp, err := r.client.RawRequest(method, raw)
	if err != nil {
		var rpcErr *btcjson.RPCError
		if method == "sendrawtransaction" && errors.As(err, &rpcErr) {
			return fmt.Errorf("%w: %s", ErrBroadcastRejected, rpcErr.Message)
		}
		return fmt.Errorf("%s: %w", method, err)
	}
	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("decode %s: %w", method, err)
	}
	return nil
}

func (r *RPCSource) GetBlockCount(ctx context.Context) (int, error) {
	var count int
	err := r.call(ctx, &count, "getblockcount")
	return count, err
}

type rpcBlock struct {
	Height     int       `json:"height"`
	Time       int64     `json:"time"`
	MedianTime int64     `json:"mediantime"`
	Tx         []BlockTx `json:"tx"`
}

func (r *RPCSource) GetBlock(ctx context.Context, height int) (*Block, error) {
	var hash string
	if err := r.call(ctx, &hash, "getblockhash", height); err != nil {
		return nil, err
	}
	var rb rpcBlock
	if err := r.call(ctx, &rb, "getblock", hash, 2); err != nil {
		return nil, err
	}
	return &Block{Height: height, Time: rb.Time, Txs: rb.Tx}, nil
}

func (r *RPCSource) SendTransaction(ctx context.Context, hex string) (string, error) {
	var txid string
	err := r.call(ctx, &txid, "sendrawtransaction", hex)
	return txid, err
}

func (r *RPCSource) GetTxInfo(ctx context.Context, txid string) (string, error) {
	var hex string
	err := r.call(ctx, &hex, "getrawtransaction", txid, false)
	return hex, err
}
