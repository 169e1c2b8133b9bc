package wallet

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/wire"
	"github.com/mypivxwallet/wallet_engine/config"
	"github.com/mypivxwallet/wallet_engine/script"
	"github.com/mypivxwallet/wallet_engine/transaction"
)

const (
	DefaultFeePerByte uint64 = 10
	// signed P2PKH scriptSig: push(DER sig + hashtype) + push(compressed pubkey)
	p2pkhScriptSigSize = 1 + 73 + 1 + 33
	// cold stake owner spends add OP_FALSE
	p2csScriptSigSize = p2pkhScriptSigSize + 1
)

// FeeStrategy prices a transaction whose inputs still carry their previous output scripts.
type FeeStrategy interface {
	Fee(tx *transaction.Transaction) uint64
}

// PerByteFee charges a flat rate on the estimated signed size.
type PerByteFee struct {
	SatPerByte uint64
}

func (f PerByteFee) Fee(tx *transaction.Transaction) uint64 {
	rate := f.SatPerByte
	if rate == 0 {
		rate = DefaultFeePerByte
	}
	return uint64(EstimateSignedSize(tx)) * rate
}

// EstimateSignedSize replaces every unsigned scriptSig with the size of its signature.
func EstimateSignedSize(tx *transaction.Transaction) int {
	size := tx.SerializeSize()
	for _, in := range tx.Vin {
		current := wire.VarIntSerializeSize(uint64(len(in.ScriptSig))) + len(in.ScriptSig)
		signed := p2pkhScriptSigSize
		if script.IsP2CS(in.ScriptSig) {
			signed = p2csScriptSigSize
		}
		size += 1 + signed - current
	}
	return size
}

// TxBuilder assembles an unsigned transaction. The first error is kept and returned by Build.
type TxBuilder struct {
	params  *config.ChainParams
	fee     FeeStrategy
	tx      *transaction.Transaction
	valueIn uint64
	err     error
}

func NewTxBuilder(params *config.ChainParams, fee FeeStrategy) *TxBuilder {
	if fee == nil {
		fee = PerByteFee{SatPerByte: DefaultFeePerByte}
	}
	return &TxBuilder{params: params, fee: fee, tx: transaction.New()}
}

// AddUTXOs adds inputs whose scriptSig is the previous output script, as expected by signers.
func (b *TxBuilder) AddUTXOs(utxos []transaction.UTXO) *TxBuilder {
	for _, u := range utxos {
		b.tx.Vin = append(b.tx.Vin, transaction.NewTxIn(u.Outpoint, append([]byte(nil), u.Script...)))
		b.valueIn += u.Value
	}
	return b
}

func (b *TxBuilder) AddOutput(address string, value uint64) *TxBuilder {
	if b.err != nil {
		return b
	}
	s, err := script.PayToAddress(address, b.params.PubKeyHashAddrID)
	if err != nil {
		b.err = err
		return b
	}
	b.tx.Vout = append(b.tx.Vout, transaction.TxOut{Script: s, Value: value})
	return b
}

// AddColdStakeOutput delegates value to staker while owner keeps spending rights.
func (b *TxBuilder) AddColdStakeOutput(owner, staker string, value uint64) *TxBuilder {
	if b.err != nil {
		return b
	}
	ownerPKH, ownerVersion, err := script.DecodeAddress(owner)
	if err != nil {
		b.err = err
		return b
	}
	stakerPKH, stakerVersion, err := script.DecodeAddress(staker)
	if err != nil {
		b.err = err
		return b
	}
	if ownerVersion != b.params.PubKeyHashAddrID || stakerVersion != b.params.StakingAddrID {
		b.err = fmt.Errorf("%w: cold stake output needs an owner and a staking address", script.ErrInvalidAddress)
		return b
	}
	s, err := script.P2CSScript(stakerPKH, ownerPKH)
	if err != nil {
		b.err = err
		return b
	}
	b.tx.Vout = append(b.tx.Vout, transaction.TxOut{Script: s, Value: value})
	return b
}

// AddProposalOutput burns value into an OP_RETURN carrying the proposal hash (hex).
func (b *TxBuilder) AddProposalOutput(hash string, value uint64) *TxBuilder {
	if b.err != nil {
		return b
	}
	raw, err := hex.DecodeString(hash)
	if err != nil {
		b.err = fmt.Errorf("proposal hash: %w", err)
		return b
	}
	s, err := script.ProposalScript(raw)
	if err != nil {
		b.err = err
		return b
	}
	b.tx.Vout = append(b.tx.Vout, transaction.TxOut{Script: s, Value: value})
	return b
}

func (b *TxBuilder) ValueIn() uint64 {
	return b.valueIn
}

func (b *TxBuilder) ValueOut() uint64 {
	var out uint64
	for _, o := range b.tx.Vout {
		out += o.Value
	}
	return out
}

// Fee prices the transaction as assembled so far.
func (b *TxBuilder) Fee() uint64 {
	return b.fee.Fee(b.tx)
}

func (b *TxBuilder) Build() (*transaction.Transaction, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.tx.Vin) == 0 {
		return nil, errors.New("transaction has no inputs")
	}
	if len(b.tx.Vout) == 0 {
		return nil, errors.New("transaction has no outputs")
	}
	return b.tx.Clone(), nil
}
