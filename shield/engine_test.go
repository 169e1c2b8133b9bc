package shield

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/mypivxwallet/wallet_engine/config"
	"github.com/mypivxwallet/wallet_engine/syslogs"
	"github.com/mypivxwallet/wallet_engine/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openJournal(t *testing.T) *syslogs.Journal {
	t.Helper()
	j, err := syslogs.Open(filepath.Join(t.TempDir(), "logs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestEngineBinarySync(t *testing.T) {
	store := newMemStore()
	journal := openJournal(t)
	stream := streamOf(span(1, 25), 2)
	var progress bytes.Buffer

	state := NewTrackerState()
	engine := NewEngine(state, store, WithJournal(journal), WithProgress(&progress))
	syncer, err := NewBinarySyncer(context.Background(), &streamSource{stream: stream}, store, state.LastSyncedBlock(), 10)
	require.NoError(t, err)
	defer syncer.Close()

	last, err := engine.Sync(context.Background(), syncer)
	require.NoError(t, err)
	assert.Equal(t, 25, last)
	assert.Equal(t, 50, state.Transactions())

	account, err := store.GetAccount()
	require.NoError(t, err)
	assert.Equal(t, 25, account.LastShieldBlock)
	assert.JSONEq(t, `{"lastSyncedBlock":25,"transactions":50}`, string(account.ShieldSyncState))

	saved, err := store.GetShieldSyncData()
	require.NoError(t, err)
	assert.Equal(t, 25, saved.LastSyncedBlock)
	assert.Equal(t, stream, saved.RawBuffer)

	logs, err := journal.QuerySyncLogs(syslogs.KindShield, 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 1, logs[0].FromHeight)
	assert.Equal(t, 25, logs[0].ToHeight)
	assert.Equal(t, 25, logs[0].Blocks)
	assert.Equal(t, 50, logs[0].TxNum)

	restored := NewEngine(NewTrackerState(), store)
	require.NoError(t, restored.Restore())
	assert.Equal(t, 25, restored.State().LastSyncedBlock())
}

func TestEngineResumesBinaryStream(t *testing.T) {
	store := newMemStore()
	state := NewTrackerState()
	engine := NewEngine(state, store)

	first, err := NewBinarySyncer(context.Background(), &streamSource{stream: streamOf(span(1, 5), 1)}, store, 0, 10)
	require.NoError(t, err)
	_, err = engine.Sync(context.Background(), first)
	require.NoError(t, err)

	// the cached prefix is replayed but not applied twice
	src := &streamSource{stream: streamOf(span(6, 8), 1)}
	second, err := NewBinarySyncer(context.Background(), src, store, state.LastSyncedBlock(), 10)
	require.NoError(t, err)
	last, err := engine.Sync(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, 6, src.fromHeight)
	assert.Equal(t, 8, last)
	assert.Equal(t, 8, state.Transactions())
}

func TestEnginePollingSync(t *testing.T) {
	store := newMemStore()
	state := NewTrackerState()
	engine := NewEngine(state, store)
	src := chainOf(40, func(h int) bool { return h%4 == 0 })

	syncer, err := NewNetworkSyncer(context.Background(), src, 0, 4)
	require.NoError(t, err)
	last, err := engine.Sync(context.Background(), syncer)
	require.NoError(t, err)
	assert.Equal(t, 40, last)
	assert.Equal(t, 10, state.Transactions())
}

func TestEngineCorruptStream(t *testing.T) {
	store := newMemStore()
	journal := openJournal(t)
	stream := append(streamOf(span(1, 12), 1), frame([]byte{0x42})...)

	state := NewTrackerState()
	engine := NewEngine(state, store, WithJournal(journal))
	syncer, err := NewBinarySyncer(context.Background(), &streamSource{stream: stream}, store, 0, 10)
	require.NoError(t, err)

	last, err := engine.Sync(context.Background(), syncer)
	require.ErrorIs(t, err, ErrStreamCorruption)
	assert.Equal(t, 10, last, "the first full batch is kept")

	account, err := store.GetAccount()
	require.NoError(t, err)
	assert.Equal(t, 10, account.LastShieldBlock)

	errs, err := journal.QueryErrLogs(10, 0)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, syslogs.KindShield, errs[0].Kind)
}

func TestEngineRejectsTransparentTx(t *testing.T) {
	store := newMemStore()
	state := NewTrackerState()
	engine := NewEngine(state, store)

	legacy := transaction.New()
	legacy.Version = 1
	src := chainOf(3, func(int) bool { return true })
	src.blocks[2].Txs = []BlockTx{{Hex: legacy.Hex(), TxID: legacy.TxID()}}

	syncer, err := NewNetworkSyncer(context.Background(), src, 0, 1)
	require.NoError(t, err)
	last, err := engine.Sync(context.Background(), syncer)
	require.ErrorIs(t, err, transaction.ErrMalformedInput)
	assert.Equal(t, 1, last)

	account, err := store.GetAccount()
	require.NoError(t, err)
	assert.Equal(t, 1, account.LastShieldBlock)
}

func TestEngineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine := NewEngine(NewTrackerState(), newMemStore())
	syncer, err := NewBinarySyncer(context.Background(), &streamSource{stream: streamOf(span(1, 3), 1)}, newMemStore(), 0, 10)
	require.NoError(t, err)

	last, err := engine.Sync(ctx, syncer)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, last)
}

func TestNewSyncerModes(t *testing.T) {
	cfg := config.Default()
	src := &streamSource{tip: 10}
	store := newMemStore()

	syncer, err := NewSyncer(context.Background(), cfg, src, store, NewTrackerState())
	require.NoError(t, err)
	assert.IsType(t, &BinarySyncer{}, syncer)

	cfg.ShieldSync.Mode = config.ShieldModePolling
	syncer, err = NewSyncer(context.Background(), cfg, src, store, NewTrackerState())
	require.NoError(t, err)
	assert.IsType(t, &NetworkSyncer{}, syncer)

	cfg.ShieldSync.Mode = "carrier-pigeon"
	_, err = NewSyncer(context.Background(), cfg, src, store, NewTrackerState())
	assert.ErrorContains(t, err, "unsupported shield sync mode")
}

func TestTrackerState(t *testing.T) {
	state := NewTrackerState()
	tx := shieldTx(1)
	block := Block{Height: 5, Txs: []BlockTx{{Hex: tx.Hex(), TxID: tx.TxID()}}}
	require.NoError(t, state.HandleBlock(context.Background(), block))
	assert.Equal(t, 5, state.LastSyncedBlock())

	assert.Error(t, state.HandleBlock(context.Background(), block), "heights must ascend")
	assert.Error(t, state.HandleBlock(context.Background(), Block{Height: 6, Txs: []BlockTx{{Hex: "zz"}}}))
	assert.Equal(t, 5, state.LastSyncedBlock())

	_, err := state.CreateTransaction(context.Background(), ShieldTxParams{Address: "ps1", Value: 1})
	assert.ErrorIs(t, err, ErrProverUnavailable)
	assert.Zero(t, state.Balance())

	blob, err := state.Save()
	require.NoError(t, err)
	other := NewTrackerState()
	require.NoError(t, other.Load(blob))
	assert.Equal(t, 5, other.LastSyncedBlock())
	assert.Equal(t, 1, other.Transactions())
	assert.Error(t, other.Load([]byte("{")))
}
