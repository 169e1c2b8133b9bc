package shield

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mypivxwallet/wallet_engine/storage"
	"github.com/mypivxwallet/wallet_engine/transaction"
)

// memStore is an in memory AccountStore.
type memStore struct {
	mu      sync.Mutex
	account *storage.Account
	sync    storage.ShieldSyncData
}

func newMemStore() *memStore {
	return &memStore{account: &storage.Account{PublicKey: "xpub"}}
}

func (m *memStore) GetAccount() (*storage.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.account == nil {
		return nil, storage.ErrNotFound
	}
	a := *m.account
	return &a, nil
}

func (m *memStore) AddAccount(a *storage.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.account = &cp
	return nil
}

func (m *memStore) UpdateAccount(a *storage.Account) error {
	return m.AddAccount(a)
}

func (m *memStore) GetShieldSyncData() (*storage.ShieldSyncData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.sync
	d.RawBuffer = append([]byte(nil), m.sync.RawBuffer...)
	return &d, nil
}

func (m *memStore) SetShieldSyncData(d *storage.ShieldSyncData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sync = storage.ShieldSyncData{LastSyncedBlock: d.LastSyncedBlock, RawBuffer: append([]byte(nil), d.RawBuffer...)}
	return nil
}

func (m *memStore) Close() error { return nil }

// streamSource serves a shield stream and a block map.
type streamSource struct {
	mu         sync.Mutex
	stream     []byte
	fromHeight int
	blocks     map[int]*Block
	tip        int
	delay      func(height int) time.Duration
	failAt     int
	fetched    []int
}

func (s *streamSource) Name() string { return "stream" }

func (s *streamSource) GetBlockCount(context.Context) (int, error) { return s.tip, nil }

func (s *streamSource) GetBlock(ctx context.Context, height int) (*Block, error) {
	if s.delay != nil {
		select {
		case <-time.After(s.delay(height)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	s.fetched = append(s.fetched, height)
	s.mu.Unlock()
	if height == s.failAt {
		return nil, errors.New("node went away")
	}
	if b, ok := s.blocks[height]; ok {
		return b, nil
	}
	return &Block{Height: height}, nil
}

func (s *streamSource) SendTransaction(context.Context, string) (string, error) { return "", nil }

func (s *streamSource) GetTxInfo(context.Context, string) (string, error) { return "", nil }

func (s *streamSource) GetShieldBlockList(context.Context) ([]int, error) { return nil, nil }

func (s *streamSource) GetShieldData(_ context.Context, fromHeight int) (io.ReadCloser, int64, error) {
	s.fromHeight = fromHeight
	return io.NopCloser(bytes.NewReader(s.stream)), int64(len(s.stream)), nil
}

func frame(payload []byte) []byte {
	out := binary.BigEndian.AppendUint32(nil, uint32(len(payload)))
	return append(out, payload...)
}

func headerFrame(height int, blockTime uint32) []byte {
	payload := []byte{TagBlockHeader}
	payload = binary.BigEndian.AppendUint32(payload, uint32(height))
	payload = binary.BigEndian.AppendUint32(payload, blockTime)
	return frame(payload)
}

func shieldTx(seed int) *transaction.Transaction {
	tx := transaction.New()
	tx.Version = transaction.ShieldVersion
	tx.ShieldData = []byte(fmt.Sprintf("sapling-%d", seed))
	return tx
}

// streamOf builds one block per height, each holding txPerBlock shield transactions.
func streamOf(heights []int, txPerBlock int) []byte {
	var out []byte
	for _, h := range heights {
		for i := 0; i < txPerBlock; i++ {
			out = append(out, frame(shieldTx(h*100+i).Serialize())...)
		}
		out = append(out, headerFrame(h, uint32(1700000000+h))...)
	}
	return out
}

func heightsOf(blocks []Block) []int {
	out := make([]int, len(blocks))
	for i, b := range blocks {
		out[i] = b.Height
	}
	return out
}

func span(from, to int) []int {
	var out []int
	for h := from; h <= to; h++ {
		out = append(out, h)
	}
	return out
}
