package blockchain

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jellydator/ttlcache/v3"
)

const (
	txInfoTTL     = 10 * time.Minute
	blockCountTTL = 5 * time.Second
	blockCountKey = "count"
)

// ExplorerSource reads the chain from a blockbook style explorer.
type ExplorerSource struct {
	shieldClient

	baseURL    string
	http       *http.Client
	txCache    *ttlcache.Cache[string, string]
	countCache *ttlcache.Cache[string, int]
}

func NewExplorerSource(explorerURL, shieldURL string) *ExplorerSource {
	client := &http.Client{}
	return &ExplorerSource{
		shieldClient: newShieldClient(shieldURL, client),
		baseURL:      strings.TrimRight(explorerURL, "/"),
		http:         client,
		txCache:      ttlcache.New[string, string](ttlcache.WithTTL[string, string](txInfoTTL)),
		countCache:   ttlcache.New[string, int](ttlcache.WithTTL[string, int](blockCountTTL)),
	}
}

func (e *ExplorerSource) Name() string {
	return "explorer"
}

type explorerStatus struct {
	Blockbook struct {
		BestHeight int `json:"bestHeight"`
	} `json:"blockbook"`
	Backend struct {
		Blocks int `json:"blocks"`
	} `json:"backend"`
}

func (e *ExplorerSource) GetBlockCount(ctx context.Context) (int, error) {
	if item := e.countCache.Get(blockCountKey); item != nil {
		return item.Value(), nil
	}
	body, err := getBody(ctx, e.http, e.baseURL+"/api/v2/api")
	if err != nil {
		return 0, err
	}
	var status explorerStatus
	if err := sonic.Unmarshal(body, &status); err != nil {
		return 0, fmt.Errorf("decode explorer status: %w", err)
	}
	count := status.Backend.Blocks
	if count == 0 {
		count = status.Blockbook.BestHeight
	}
	e.countCache.Set(blockCountKey, count, ttlcache.DefaultTTL)
	return count, nil
}

type explorerBlock struct {
	Page       int       `json:"page"`
	TotalPages int       `json:"totalPages"`
	Height     int       `json:"height"`
	Time       int64     `json:"time"`
	Txs        []BlockTx `json:"txs"`
}

// GetBlock walks every page of the block. Txs listed without hex are fetched one by one.
func (e *ExplorerSource) GetBlock(ctx context.Context, height int) (*Block, error) {
	block := &Block{Height: height}
	for page := 1; ; page++ {
		url := e.baseURL + "/api/v2/block/" + strconv.Itoa(height) + "?page=" + strconv.Itoa(page)
		body, err := getBody(ctx, e.http, url)
		if err != nil {
			return nil, err
		}
		var eb explorerBlock
		if err := sonic.Unmarshal(body, &eb); err != nil {
			return nil, fmt.Errorf("decode block %d: %w", height, err)
		}
		block.Time = eb.Time
		block.Txs = append(block.Txs, eb.Txs...)
		if eb.TotalPages <= page {
			break
		}
	}
	for i, tx := range block.Txs {
		if tx.Hex != "" {
			continue
		}
		hex, err := e.GetTxInfo(ctx, tx.TxID)
		if err != nil {
			return nil, err
		}
		block.Txs[i].Hex = hex
	}
	return block, nil
}

func (e *ExplorerSource) GetTxInfo(ctx context.Context, txid string) (string, error) {
	if item := e.txCache.Get(txid); item != nil {
		return item.Value(), nil
	}
	body, err := getBody(ctx, e.http, e.baseURL+"/api/v2/tx/"+txid)
	if err != nil {
		return "", err
	}
	var tx BlockTx
	if err := sonic.Unmarshal(body, &tx); err != nil {
		return "", fmt.Errorf("decode tx %s: %w", txid, err)
	}
	if tx.Hex == "" {
		return "", fmt.Errorf("explorer returned no hex for %s", txid)
	}
	e.txCache.Set(txid, tx.Hex, ttlcache.DefaultTTL)
	return tx.Hex, nil
}

type sendResult struct {
	Result string `json:"result"`
	Error  any    `json:"error"`
}

func (e *ExplorerSource) SendTransaction(ctx context.Context, hex string) (string, error) {
	body, err := getBody(ctx, e.http, e.baseURL+"/api/v2/sendtx/"+hex)
	var res sendResult
	if decodeErr := sonic.Unmarshal(body, &res); decodeErr != nil {
		if err != nil {
			return "", err
		}
		return "", fmt.Errorf("decode sendtx reply: %w", decodeErr)
	}
	if res.Error != nil {
		return "", fmt.Errorf("%w: %v", ErrBroadcastRejected, res.Error)
	}
	if err != nil {
		return "", err
	}
	return res.Result, nil
}
