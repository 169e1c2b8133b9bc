package shield

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/mypivxwallet/wallet_engine/blockchain"
	"github.com/mypivxwallet/wallet_engine/metrics"
	"github.com/mypivxwallet/wallet_engine/storage"
)

const (
	TagBlockHeader byte = 0x5d
	// TagTransaction is the first byte of a version 3 transaction.
	TagTransaction byte = 0x03

	headerSize        = 1 + 4 + 4
	maxFrameSize      = 4 << 20
	defaultBatchBlock = 10
)

var ErrStreamCorruption = errors.New("shield stream corrupted")

type StreamCorruptionError struct {
	// Offset of the offending frame from the start of the replayed stream.
	Offset int64
	Reason string
}

func (e *StreamCorruptionError) Error() string {
	return fmt.Sprintf("%v at offset %d: %s", ErrStreamCorruption, e.Offset, e.Reason)
}

func (e *StreamCorruptionError) Unwrap() error {
	return ErrStreamCorruption
}

// BinarySyncer decodes the compact shield stream: the bytes cached by earlier sessions
// followed by the network stream starting after the cached height.
type BinarySyncer struct {
	store  storage.AccountStore
	body   io.ReadCloser
	reader io.Reader

	stored    *storage.ShieldSyncData
	network   bytes.Buffer
	startFrom int
	batch     int

	contentLength   int64
	readBytes       int64
	lastSyncedBlock int

	// network bytes up to the last closed block, and how many of them were saved
	committed       int
	committedHeight int
	persisted       int
}

// NewBinarySyncer opens the stream. Blocks at or below startFrom are decoded but not emitted.
func NewBinarySyncer(ctx context.Context, source blockchain.Source, store storage.AccountStore, startFrom, batch int) (*BinarySyncer, error) {
	metrics.Init()
	stored, err := store.GetShieldSyncData()
	if err != nil {
		return nil, fmt.Errorf("load shield sync data: %w", err)
	}
	body, length, err := source.GetShieldData(ctx, stored.LastSyncedBlock+1)
	if err != nil {
		return nil, fmt.Errorf("couldn't sync shield: %w", err)
	}
	if batch <= 0 {
		batch = defaultBatchBlock
	}
	s := &BinarySyncer{
		store:           store,
		body:            body,
		stored:          stored,
		startFrom:       startFrom,
		batch:           batch,
		lastSyncedBlock: stored.LastSyncedBlock,
		committedHeight: stored.LastSyncedBlock,
	}
	s.contentLength = -1
	if length >= 0 {
		s.contentLength = int64(len(stored.RawBuffer)) + length
	}
	s.reader = io.MultiReader(bytes.NewReader(stored.RawBuffer), io.TeeReader(body, &s.network))
	return s, nil
}

// GetNextBlocks decodes frames until batch blocks are closed or the stream ends.
// Transactions before a header belong to the block that header closes.
func (s *BinarySyncer) GetNextBlocks(ctx context.Context) ([]Block, error) {
	var (
		blocks []Block
		txs    []BlockTx
	)
	for len(blocks) < s.batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		offset := s.readBytes
		payload, err := s.readFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch payload[0] {
		case TagBlockHeader:
			if len(payload) < headerSize {
				return nil, &StreamCorruptionError{Offset: offset, Reason: "short block header"}
			}
			height := int(binary.BigEndian.Uint32(payload[1:5]))
			blockTime := int64(binary.BigEndian.Uint32(payload[5:9]))
			if s.network.Len() > 0 {
				s.committed = s.network.Len()
				s.committedHeight = height
			}
			if height <= s.startFrom {
				txs = nil
				continue
			}
			s.lastSyncedBlock = height
			blocks = append(blocks, Block{Height: height, Time: blockTime, Txs: txs})
			txs = nil
		case TagTransaction:
			txs = append(txs, BlockTx{
				Hex:  hex.EncodeToString(payload),
				TxID: chainhash.DoubleHashH(payload).String(),
			})
		default:
			return nil, &StreamCorruptionError{Offset: offset, Reason: fmt.Sprintf("unknown frame tag 0x%02x", payload[0])}
		}
	}
	if len(blocks) == 0 {
		if err := s.Save(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return blocks, nil
}

// readFrame returns io.EOF only on a clean frame boundary.
func (s *BinarySyncer) readFrame() ([]byte, error) {
	offset := s.readBytes
	var lenBuf [4]byte
	n, err := io.ReadFull(s.reader, lenBuf[:])
	s.readBytes += int64(n)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, s.truncated(offset, err)
	}
	size := binary.BigEndian.Uint32(lenBuf[:])
	if size == 0 || size > maxFrameSize {
		return nil, &StreamCorruptionError{Offset: offset, Reason: fmt.Sprintf("frame length %d", size)}
	}
	payload := make([]byte, size)
	n, err = io.ReadFull(s.reader, payload)
	s.readBytes += int64(n)
	metrics.ShieldBytesRead.Add(float64(4 + n))
	if err != nil {
		return nil, s.truncated(offset, err)
	}
	return payload, nil
}

func (s *BinarySyncer) truncated(offset int64, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &StreamCorruptionError{Offset: offset, Reason: "stream was cut short"}
	}
	return fmt.Errorf("read shield stream: %w", err)
}

// Save appends the network bytes up to the last closed block to the stored buffer.
func (s *BinarySyncer) Save(context.Context) error {
	if s.committed == s.persisted {
		return nil
	}
	chunk := s.network.Bytes()[s.persisted:s.committed]
	raw := make([]byte, 0, len(s.stored.RawBuffer)+len(chunk))
	raw = append(raw, s.stored.RawBuffer...)
	raw = append(raw, chunk...)

	data := &storage.ShieldSyncData{LastSyncedBlock: s.committedHeight, RawBuffer: raw}
	if err := s.store.SetShieldSyncData(data); err != nil {
		return fmt.Errorf("save shield sync data: %w", err)
	}
	s.stored = data
	s.persisted = s.committed
	return nil
}

func (s *BinarySyncer) LastSyncedBlock() int {
	return s.lastSyncedBlock
}

func (s *BinarySyncer) Length() int64 {
	return s.contentLength
}

func (s *BinarySyncer) ReadBytes() int64 {
	return s.readBytes
}

func (s *BinarySyncer) Close() error {
	return s.body.Close()
}
