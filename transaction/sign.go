package transaction

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
)

// SigHashAll is the only sighash type produced by the wallet.
const SigHashAll uint32 = 1

type SignOptions struct {
	// IsColdStake inserts OP_FALSE so the script redeems a delegation to its owner.
	IsColdStake bool
}

// SigHash returns the digest signed for input index: every other scriptSig is blanked,
// the sighash type is appended and the result is double hashed.
func (tx *Transaction) SigHash(index int) ([]byte, error) {
	if index < 0 || index >= len(tx.Vin) {
		return nil, fmt.Errorf("%w: input index %d out of range", ErrMalformedInput, index)
	}
	for i, in := range tx.Vin {
		if err := checkTxID(in.Outpoint.TxID); err != nil {
			return nil, fmt.Errorf("%w: input %d: %v", ErrMalformedInput, i, err)
		}
	}
	c := tx.Clone()
	for i := range c.Vin {
		if i != index {
			c.Vin[i].ScriptSig = nil
		}
	}
	preimage := c.Serialize()
	preimage = binary.LittleEndian.AppendUint32(preimage, SigHashAll)
	return chainhash.DoubleHashB(preimage), nil
}

// SignInput signs input index with key and writes the resulting scriptSig.
func (tx *Transaction) SignInput(index int, key *btcec.PrivateKey, opts SignOptions) error {
	if key == nil {
		return ErrKeyUnavailable
	}
	hash, err := tx.SigHash(index)
	if err != nil {
		return err
	}
	sig := ecdsa.Sign(key, hash).Serialize()
	sig = append(sig, byte(SigHashAll))
	pub := key.PubKey().SerializeCompressed()

	scriptSig := make([]byte, 0, len(sig)+len(pub)+3)
	scriptSig = append(scriptSig, byte(len(sig)))
	scriptSig = append(scriptSig, sig...)
	if opts.IsColdStake {
		scriptSig = append(scriptSig, txscript.OP_FALSE)
	}
	scriptSig = append(scriptSig, byte(len(pub)))
	scriptSig = append(scriptSig, pub...)

	tx.Vin[index].ScriptSig = scriptSig
	return nil
}

// SignInputWIF is SignInput with a WIF encoded key.
func (tx *Transaction) SignInputWIF(index int, wif string, opts SignOptions) error {
	if wif == "" {
		return ErrKeyUnavailable
	}
	decoded, err := btcutil.DecodeWIF(wif)
	if err != nil {
		return fmt.Errorf("decode wif: %w", err)
	}
	return tx.SignInput(index, decoded.PrivKey, opts)
}
