package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

var (
	// ErrNotFound is returned when a key is not found in the database
	ErrNotFound = errors.New("not found")
	// ErrCorrupted is returned when a stored blob fails its checksum
	ErrCorrupted = errors.New("stored data corrupted")

	noopLogger = &customLogger{}
)

// Custom logger - outputs nothing
type customLogger struct{}

func (l *customLogger) Infof(format string, args ...interface{})  {}
func (l *customLogger) Fatalf(format string, args ...interface{}) {}
func (l *customLogger) Errorf(format string, args ...interface{}) {}

// KV is the byte level store behind an account store.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Close() error
}

type PebbleKV struct {
	db *pebble.DB
}

func NewPebbleKV(dir string) (*PebbleKV, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := pebble.Open(dir, &pebble.Options{Logger: noopLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble store: %w", err)
	}
	return &PebbleKV{db: db}, nil
}

func (p *PebbleKV) Get(key []byte) ([]byte, error) {
	value, closer, err := p.db.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), value...), nil
}

func (p *PebbleKV) Set(key, value []byte) error {
	return p.db.Set(key, value, pebble.Sync)
}

func (p *PebbleKV) Delete(key []byte) error {
	return p.db.Delete(key, pebble.Sync)
}

func (p *PebbleKV) Close() error {
	// Sync before closing
	if err := p.db.LogData(nil, pebble.Sync); err != nil {
		return err
	}
	return p.db.Close()
}

type LevelDBKV struct {
	db *leveldb.DB
}

func NewLevelDBKV(dir string) (*LevelDBKV, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb store: %w", err)
	}
	return &LevelDBKV{db: db}, nil
}

func (l *LevelDBKV) Get(key []byte) ([]byte, error) {
	value, err := l.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

func (l *LevelDBKV) Set(key, value []byte) error {
	return l.db.Put(key, value, &opt.WriteOptions{Sync: true})
}

func (l *LevelDBKV) Delete(key []byte) error {
	return l.db.Delete(key, &opt.WriteOptions{Sync: true})
}

func (l *LevelDBKV) Close() error {
	return l.db.Close()
}
