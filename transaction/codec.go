package transaction

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Serialize encodes the transaction in wire format.
func (tx *Transaction) Serialize() []byte {
	var buf bytes.Buffer
	buf.Grow(tx.serializeSize())

	var scratch [8]byte
	binary.LittleEndian.PutUint32(scratch[:4], uint32(tx.Version))
	buf.Write(scratch[:4])

	_ = wire.WriteVarInt(&buf, 0, uint64(len(tx.Vin)))
	for _, in := range tx.Vin {
		// a bad txid serializes as zeros, SigHash rejects it before signing
		hash, _ := chainhash.NewHashFromStr(in.Outpoint.TxID)
		if hash == nil {
			hash = &chainhash.Hash{}
		}
		buf.Write(hash[:])
		binary.LittleEndian.PutUint32(scratch[:4], in.Outpoint.N)
		buf.Write(scratch[:4])
		_ = wire.WriteVarInt(&buf, 0, uint64(len(in.ScriptSig)))
		buf.Write(in.ScriptSig)
		binary.LittleEndian.PutUint32(scratch[:4], in.Sequence)
		buf.Write(scratch[:4])
	}

	_ = wire.WriteVarInt(&buf, 0, uint64(len(tx.Vout)))
	for _, out := range tx.Vout {
		binary.LittleEndian.PutUint64(scratch[:], out.Value)
		buf.Write(scratch[:])
		_ = wire.WriteVarInt(&buf, 0, uint64(len(out.Script)))
		buf.Write(out.Script)
	}

	binary.LittleEndian.PutUint32(scratch[:4], tx.LockTime)
	buf.Write(scratch[:4])

	if tx.Version == ShieldVersion {
		buf.Write(tx.ShieldData)
	}
	return buf.Bytes()
}

func (tx *Transaction) serializeSize() int {
	n := 4 + wire.VarIntSerializeSize(uint64(len(tx.Vin))) + wire.VarIntSerializeSize(uint64(len(tx.Vout))) + 4
	for _, in := range tx.Vin {
		n += 32 + 4 + wire.VarIntSerializeSize(uint64(len(in.ScriptSig))) + len(in.ScriptSig) + 4
	}
	for _, out := range tx.Vout {
		n += 8 + wire.VarIntSerializeSize(uint64(len(out.Script))) + len(out.Script)
	}
	if tx.Version == ShieldVersion {
		n += len(tx.ShieldData)
	}
	return n
}

// SerializeSize returns the length of Serialize() without encoding.
func (tx *Transaction) SerializeSize() int {
	return tx.serializeSize()
}

func (tx *Transaction) Hex() string {
	return hex.EncodeToString(tx.Serialize())
}

// TxID is the reversed double SHA-256 of the serialization, always recomputed.
func (tx *Transaction) TxID() string {
	return chainhash.DoubleHashH(tx.Serialize()).String()
}

// TxIDFromHex computes the txid of a hex encoded transaction without decoding it.
func TxIDFromHex(s string) (string, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return chainhash.DoubleHashH(raw).String(), nil
}

func FromHex(s string) (*Transaction, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return Deserialize(raw)
}

// Deserialize decodes a wire format transaction. Block height and time are left unset (-1).
func Deserialize(raw []byte) (*Transaction, error) {
	r := bytes.NewReader(raw)
	tx := New()

	version, err := readUint32(r)
	if err != nil {
		return nil, malformed("version", err)
	}
	tx.Version = int32(version)

	nIn, err := readCount(r, 41)
	if err != nil {
		return nil, malformed("input count", err)
	}
	tx.Vin = make([]TxIn, 0, nIn)
	for i := uint64(0); i < nIn; i++ {
		var hash chainhash.Hash
		if _, err := io.ReadFull(r, hash[:]); err != nil {
			return nil, malformed(fmt.Sprintf("input %d txid", i), err)
		}
		n, err := readUint32(r)
		if err != nil {
			return nil, malformed(fmt.Sprintf("input %d index", i), err)
		}
		script, err := readScript(r)
		if err != nil {
			return nil, malformed(fmt.Sprintf("input %d script", i), err)
		}
		seq, err := readUint32(r)
		if err != nil {
			return nil, malformed(fmt.Sprintf("input %d sequence", i), err)
		}
		tx.Vin = append(tx.Vin, TxIn{
			Outpoint:  Outpoint{TxID: hash.String(), N: n},
			ScriptSig: script,
			Sequence:  seq,
		})
	}

	nOut, err := readCount(r, 9)
	if err != nil {
		return nil, malformed("output count", err)
	}
	tx.Vout = make([]TxOut, 0, nOut)
	for i := uint64(0); i < nOut; i++ {
		var value [8]byte
		if _, err := io.ReadFull(r, value[:]); err != nil {
			return nil, malformed(fmt.Sprintf("output %d value", i), err)
		}
		script, err := readScript(r)
		if err != nil {
			return nil, malformed(fmt.Sprintf("output %d script", i), err)
		}
		tx.Vout = append(tx.Vout, TxOut{Value: binary.LittleEndian.Uint64(value[:]), Script: script})
	}

	if tx.LockTime, err = readUint32(r); err != nil {
		return nil, malformed("lock time", err)
	}

	if r.Len() > 0 {
		if tx.Version != ShieldVersion {
			return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedInput, r.Len())
		}
		tx.ShieldData = raw[len(raw)-r.Len():]
		tx.ShieldData = append([]byte(nil), tx.ShieldData...)
	}
	return tx, nil
}

// checkTxID accepts only the 64 hex digit display form.
func checkTxID(txid string) error {
	if len(txid) != 2*chainhash.HashSize {
		return fmt.Errorf("txid %q: want %d hex digits", txid, 2*chainhash.HashSize)
	}
	if _, err := hex.DecodeString(txid); err != nil {
		return fmt.Errorf("txid %q: %v", txid, err)
	}
	return nil
}

func malformed(field string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrMalformedInput, field, err)
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// readCount reads a varint element count and rejects counts that could not fit
// in the remaining bytes given the minimum encoded element size.
func readCount(r *bytes.Reader, minSize int) (uint64, error) {
	n, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return 0, err
	}
	if n > uint64(r.Len()/minSize) {
		return 0, io.ErrUnexpectedEOF
	}
	return n, nil
}

func readScript(r *bytes.Reader) ([]byte, error) {
	n, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, err
	}
	if n > uint64(r.Len()) {
		return nil, io.ErrUnexpectedEOF
	}
	script := make([]byte, n)
	if _, err := io.ReadFull(r, script); err != nil {
		return nil, err
	}
	return script, nil
}
