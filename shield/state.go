package shield

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/mypivxwallet/wallet_engine/transaction"
)

var ErrProverUnavailable = errors.New("shield prover unavailable")

// ShieldTxParams describes a payment out of, or into, the shielded pool.
type ShieldTxParams struct {
	Address       string
	Value         uint64
	ChangeAddress string
	// TransparentUTXOs fund a shielding transaction. Empty for shield to shield payments.
	TransparentUTXOs []transaction.UTXO
}

// State is the shielded pool state kept by the prover.
type State interface {
	HandleBlock(ctx context.Context, block Block) error
	LastSyncedBlock() int
	Balance() uint64
	CreateTransaction(ctx context.Context, params ShieldTxParams) (*transaction.Transaction, error)
	Save() ([]byte, error)
	Load(blob []byte) error
}

// TrackerState follows the shield chain without keys: it validates every shield
// transaction and keeps the cursor, but holds no notes.
type TrackerState struct {
	mu        sync.Mutex
	lastBlock int
	txCount   int
}

type trackerBlob struct {
	LastSyncedBlock int `json:"lastSyncedBlock"`
	Transactions    int `json:"transactions"`
}

func NewTrackerState() *TrackerState {
	return &TrackerState{}
}

func (s *TrackerState) HandleBlock(_ context.Context, block Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if block.Height <= s.lastBlock {
		return fmt.Errorf("block %d applied after %d", block.Height, s.lastBlock)
	}
	for _, raw := range block.Txs {
		tx, err := transaction.FromHex(raw.Hex)
		if err != nil {
			return fmt.Errorf("shield tx %s: %w", raw.TxID, err)
		}
		if tx.Version < transaction.ShieldVersion {
			return fmt.Errorf("%w: shield tx %s has version %d", transaction.ErrMalformedInput, raw.TxID, tx.Version)
		}
	}
	s.lastBlock = block.Height
	s.txCount += len(block.Txs)
	return nil
}

func (s *TrackerState) LastSyncedBlock() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBlock
}

func (s *TrackerState) Transactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCount
}

func (s *TrackerState) Balance() uint64 {
	return 0
}

func (s *TrackerState) CreateTransaction(context.Context, ShieldTxParams) (*transaction.Transaction, error) {
	return nil, ErrProverUnavailable
}

func (s *TrackerState) Save() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sonic.Marshal(trackerBlob{LastSyncedBlock: s.lastBlock, Transactions: s.txCount})
}

func (s *TrackerState) Load(blob []byte) error {
	var b trackerBlob
	if err := sonic.Unmarshal(blob, &b); err != nil {
		return fmt.Errorf("load shield state: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastBlock = b.LastSyncedBlock
	s.txCount = b.Transactions
	return nil
}
