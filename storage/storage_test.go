package storage

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/mypivxwallet/wallet_engine/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]*Store {
	stores := map[string]*Store{}
	for _, engine := range []string{config.EnginePebble, config.EngineLevelDB} {
		cfg := config.Default()
		cfg.DataDir = filepath.Join(t.TempDir(), engine)
		cfg.StorageEngine = engine
		s, err := Open(cfg)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		stores[engine] = s
	}
	return stores
}

func TestAccountRoundTrip(t *testing.T) {
	for engine, s := range openStores(t) {
		t.Run(engine, func(t *testing.T) {
			_, err := s.GetAccount()
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.UpdateAccount(&Account{}), ErrNotFound)

			account := &Account{
				PublicKey:       "xpub",
				EncryptedKey:    "secret",
				ColdAddress:     "Sabc",
				LastShieldBlock: 1234,
				ShieldSyncState: []byte(`{"notes":[]}`),
			}
			require.NoError(t, s.AddAccount(account))

			got, err := s.GetAccount()
			require.NoError(t, err)
			assert.Equal(t, account, got)

			account.LastScannedHeight = 99
			account.ShieldSyncState = nil
			require.NoError(t, s.UpdateAccount(account))
			got, err = s.GetAccount()
			require.NoError(t, err)
			assert.Equal(t, 99, got.LastScannedHeight)
			// a nil state keeps the stored blob
			assert.Equal(t, []byte(`{"notes":[]}`), got.ShieldSyncState)
		})
	}
}

func TestShieldSyncData(t *testing.T) {
	for engine, s := range openStores(t) {
		t.Run(engine, func(t *testing.T) {
			data, err := s.GetShieldSyncData()
			require.NoError(t, err)
			assert.Equal(t, 0, data.LastSyncedBlock)
			assert.Empty(t, data.RawBuffer)

			buf := bytes.Repeat([]byte{0x00, 0x00, 0x00, 0x09, 0x5d}, 1000)
			require.NoError(t, s.SetShieldSyncData(&ShieldSyncData{LastSyncedBlock: 42, RawBuffer: buf}))

			data, err = s.GetShieldSyncData()
			require.NoError(t, err)
			assert.Equal(t, 42, data.LastSyncedBlock)
			assert.Equal(t, buf, data.RawBuffer)
		})
	}
}

func TestBlobChecksum(t *testing.T) {
	raw := []byte("shield state")
	packed := packBlob(raw)
	got, err := unpackBlob(packed)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	packed[0] ^= 0xff
	_, err = unpackBlob(packed)
	assert.ErrorIs(t, err, ErrCorrupted)

	_, err = unpackBlob([]byte{1, 2})
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestCorruptedBufferIsReported(t *testing.T) {
	kv, err := NewPebbleKV(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	s := NewStore(kv)
	defer s.Close()

	require.NoError(t, kv.Set(keyShieldSyncBlock, []byte("10")))
	require.NoError(t, kv.Set(keyShieldBuffer, []byte("not a blob at all")))
	_, err = s.GetShieldSyncData()
	assert.ErrorIs(t, err, ErrCorrupted)
}
