package script

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/txscript"
)

type Type int

const (
	Unknown Type = iota
	P2PKH
	P2CS
	ProposalFee
)

func (t Type) String() string {
	switch t {
	case P2PKH:
		return "p2pkh"
	case P2CS:
		return "p2cs"
	case ProposalFee:
		return "proposal"
	default:
		return "unknown"
	}
}

// OpCheckColdStakeVerify is the PIVX cold staking opcode (0xd1, OP_CHECKCOLDSTAKEVERIFY_LOF).
const OpCheckColdStakeVerify byte = 0xd1

const (
	hashLen = 20

	p2pkhLen        = 25
	P2PKHHashOffset = 3

	p2csLen         = 51
	P2CSStakerStart = 6
	P2CSOwnerStart  = 28

	proposalLen = 34
)

var ErrInvalidAddress = errors.New("invalid address")

func IsP2PKH(s []byte) bool {
	return len(s) == p2pkhLen &&
		s[0] == txscript.OP_DUP &&
		s[1] == txscript.OP_HASH160 &&
		s[2] == txscript.OP_DATA_20 &&
		s[23] == txscript.OP_EQUALVERIFY &&
		s[24] == txscript.OP_CHECKSIG
}

func IsP2CS(s []byte) bool {
	return len(s) == p2csLen &&
		s[0] == txscript.OP_DUP &&
		s[1] == txscript.OP_HASH160 &&
		s[2] == txscript.OP_ROT &&
		s[3] == txscript.OP_IF &&
		s[4] == OpCheckColdStakeVerify &&
		s[5] == txscript.OP_DATA_20 &&
		s[26] == txscript.OP_ELSE &&
		s[27] == txscript.OP_DATA_20 &&
		s[48] == txscript.OP_ENDIF &&
		s[49] == txscript.OP_EQUALVERIFY &&
		s[50] == txscript.OP_CHECKSIG
}

func IsProposal(s []byte) bool {
	return len(s) == proposalLen && s[0] == txscript.OP_RETURN && s[1] == txscript.OP_DATA_32
}

// Classify returns the script type and the key hashes it pays to.
// For P2CS the staker hash comes first, then the owner hash.
func Classify(s []byte) (Type, [][]byte) {
	switch {
	case IsP2PKH(s):
		return P2PKH, [][]byte{s[P2PKHHashOffset : P2PKHHashOffset+hashLen]}
	case IsP2CS(s):
		return P2CS, [][]byte{
			s[P2CSStakerStart : P2CSStakerStart+hashLen],
			s[P2CSOwnerStart : P2CSOwnerStart+hashLen],
		}
	case IsProposal(s):
		return ProposalFee, nil
	default:
		return Unknown, nil
	}
}

// SpendingKeyHash is the hash whose key can move the funds: the pkh for P2PKH,
// the owner for P2CS.
func SpendingKeyHash(s []byte) []byte {
	switch {
	case IsP2PKH(s):
		return s[P2PKHHashOffset : P2PKHHashOffset+hashLen]
	case IsP2CS(s):
		return s[P2CSOwnerStart : P2CSOwnerStart+hashLen]
	}
	return nil
}

func P2PKHScript(pkh []byte) ([]byte, error) {
	if len(pkh) != hashLen {
		return nil, fmt.Errorf("pubkey hash must be %d bytes, got %d", hashLen, len(pkh))
	}
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(pkh).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

func P2CSScript(stakerPKH, ownerPKH []byte) ([]byte, error) {
	if len(stakerPKH) != hashLen || len(ownerPKH) != hashLen {
		return nil, fmt.Errorf("cold stake hashes must be %d bytes", hashLen)
	}
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddOp(txscript.OP_ROT).
		AddOp(txscript.OP_IF).
		AddOp(OpCheckColdStakeVerify).
		AddData(stakerPKH).
		AddOp(txscript.OP_ELSE).
		AddData(ownerPKH).
		AddOp(txscript.OP_ENDIF).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

func ProposalScript(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("proposal hash must be 32 bytes, got %d", len(hash))
	}
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddData(hash).
		Script()
}

func EncodeAddress(pkh []byte, version byte) string {
	return base58.CheckEncode(pkh, version)
}

func DecodeAddress(addr string) ([]byte, byte, error) {
	pkh, version, err := base58.CheckDecode(addr)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrInvalidAddress, addr, err)
	}
	if len(pkh) != hashLen {
		return nil, 0, fmt.Errorf("%w: %s: payload is %d bytes", ErrInvalidAddress, addr, len(pkh))
	}
	return pkh, version, nil
}

// PayToAddress builds a P2PKH script for addr, which must carry one of the accepted versions.
func PayToAddress(addr string, versions ...byte) ([]byte, error) {
	pkh, version, err := DecodeAddress(addr)
	if err != nil {
		return nil, err
	}
	if len(versions) > 0 && bytes.IndexByte(versions, version) < 0 {
		return nil, fmt.Errorf("%w: %s: unexpected version %d", ErrInvalidAddress, addr, version)
	}
	return P2PKHScript(pkh)
}
