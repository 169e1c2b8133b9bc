package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/mypivxwallet/wallet_engine/config"
)

var (
	keyAccount         = []byte("account")
	keyShieldState     = []byte("account_shield_state")
	keyShieldSyncBlock = []byte("shield_last_synced_block")
	keyShieldBuffer    = []byte("shield_raw_buffer")
)

// Account is the single persisted record of a wallet.
type Account struct {
	PublicKey          string   `json:"publicKey"`
	EncryptedKey       string   `json:"encryptedKey,omitempty"`
	EncryptedShieldKey string   `json:"encryptedShieldKey,omitempty"`
	ColdAddress        string   `json:"coldAddress,omitempty"`
	LocalProposals     []string `json:"localProposals,omitempty"`
	LastShieldBlock    int      `json:"lastShieldBlock"`
	LastScannedHeight  int      `json:"lastScannedHeight"`
	// ShieldSyncState is the opaque shield state blob, stored compressed under its own key.
	ShieldSyncState []byte `json:"-"`
}

// ShieldSyncData is the resume point of the binary shield stream.
type ShieldSyncData struct {
	LastSyncedBlock int
	RawBuffer       []byte
}

type AccountStore interface {
	GetAccount() (*Account, error)
	AddAccount(*Account) error
	UpdateAccount(*Account) error
	GetShieldSyncData() (*ShieldSyncData, error)
	SetShieldSyncData(*ShieldSyncData) error
	Close() error
}

// Store keeps the account record in a KV backend.
type Store struct {
	kv KV
	mu sync.Mutex
}

var _ AccountStore = (*Store)(nil)

func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

func NewPebbleStore(dataDir string) (*Store, error) {
	kv, err := NewPebbleKV(filepath.Join(dataDir, "wallet"))
	if err != nil {
		return nil, err
	}
	return NewStore(kv), nil
}

func NewLevelDBStore(dataDir string) (*Store, error) {
	kv, err := NewLevelDBKV(filepath.Join(dataDir, "wallet_leveldb"))
	if err != nil {
		return nil, err
	}
	return NewStore(kv), nil
}

// Open returns the store selected by cfg.StorageEngine.
func Open(cfg *config.Config) (*Store, error) {
	switch cfg.StorageEngine {
	case config.EnginePebble, "":
		return NewPebbleStore(cfg.DataDir)
	case config.EngineLevelDB:
		return NewLevelDBStore(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unsupported storage engine: %s", cfg.StorageEngine)
	}
}

func (s *Store) GetAccount() (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.kv.Get(keyAccount)
	if err != nil {
		return nil, err
	}
	var account Account
	if err := sonic.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("%w: account record: %v", ErrCorrupted, err)
	}
	state, err := s.kv.Get(keyShieldState)
	switch {
	case err == nil:
		if account.ShieldSyncState, err = unpackBlob(state); err != nil {
			return nil, err
		}
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	return &account, nil
}

func (s *Store) AddAccount(account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putAccount(account)
}

// UpdateAccount replaces an existing record.
func (s *Store) UpdateAccount(account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.kv.Get(keyAccount); err != nil {
		return err
	}
	return s.putAccount(account)
}

// must hold s.mu
func (s *Store) putAccount(account *Account) error {
	data, err := sonic.Marshal(account)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	if account.ShieldSyncState != nil {
		if err := s.kv.Set(keyShieldState, packBlob(account.ShieldSyncState)); err != nil {
			return err
		}
	}
	return s.kv.Set(keyAccount, data)
}

// GetShieldSyncData returns a zero cursor when nothing was stored yet.
func (s *Store) GetShieldSyncData() (*ShieldSyncData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := &ShieldSyncData{}
	height, err := s.kv.Get(keyShieldSyncBlock)
	if errors.Is(err, ErrNotFound) {
		return data, nil
	}
	if err != nil {
		return nil, err
	}
	if data.LastSyncedBlock, err = strconv.Atoi(string(height)); err != nil {
		return nil, fmt.Errorf("%w: shield height: %v", ErrCorrupted, err)
	}
	buf, err := s.kv.Get(keyShieldBuffer)
	switch {
	case err == nil:
		if data.RawBuffer, err = unpackBlob(buf); err != nil {
			return nil, err
		}
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	return data, nil
}

func (s *Store) SetShieldSyncData(data *ShieldSyncData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Set(keyShieldBuffer, packBlob(data.RawBuffer)); err != nil {
		return err
	}
	return s.kv.Set(keyShieldSyncBlock, []byte(strconv.Itoa(data.LastSyncedBlock)))
}

func (s *Store) Close() error {
	return s.kv.Close()
}
