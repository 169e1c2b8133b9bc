package wallet

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/mypivxwallet/wallet_engine/config"
	"github.com/mypivxwallet/wallet_engine/script"
	"github.com/mypivxwallet/wallet_engine/transaction"
	"github.com/tyler-smith/go-bip39"
)

// LegacyPath is the path recorded for the single address of a non HD key.
const LegacyPath = "legacy"

var (
	ErrViewOnly        = fmt.Errorf("view only wallet: %w", transaction.ErrKeyUnavailable)
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrInvalidPath     = errors.New("invalid derivation path")
)

// MasterKey is the key material of an account.
type MasterKey interface {
	IsHD() bool
	IsViewOnly() bool
	IsHardware() bool
	DerivationPath(account, chain, index uint32) string
	Address(path string) (string, error)
	PrivateKey(path string) (*btcec.PrivateKey, error)
	// KeyToExport identifies the account publicly: an account xpub or a single address.
	KeyToExport(account uint32) (string, error)
	// KeyToBackup is the secret to encrypt at rest: mnemonic, xprv or WIF.
	KeyToBackup() (string, error)
}

// HardwareSigner signs a whole transaction whose inputs carry their previous output scripts.
type HardwareSigner interface {
	SignTransaction(ctx context.Context, tx *transaction.Transaction) (*transaction.Transaction, error)
}

// HDMasterKey is a BIP32 key tree. A key built from an account xpub is view only and
// derives only the chain/index part of a path.
type HDMasterKey struct {
	params   *config.ChainParams
	root     *hdkeychain.ExtendedKey
	mnemonic string
	// account level key when built from an xpub
	accountOnly bool

	mu     sync.Mutex
	chains map[string]*hdkeychain.ExtendedKey
}

func NewHDMasterKeyFromSeed(seed []byte, params *config.ChainParams) (*HDMasterKey, error) {
	root, err := hdkeychain.NewMaster(seed, params.HD)
	if err != nil {
		return nil, fmt.Errorf("new master key: %w", err)
	}
	return newHDMasterKey(root, params, false), nil
}

func NewHDMasterKeyFromMnemonic(mnemonic, passphrase string, params *config.ChainParams) (*HDMasterKey, error) {
	mnemonic = strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	k, err := NewHDMasterKeyFromSeed(seed, params)
	if err != nil {
		return nil, err
	}
	k.mnemonic = mnemonic
	return k, nil
}

// NewMnemonic returns a fresh 24 word mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// NewHDMasterKeyFromExtended parses an xprv (root) or an account level xpub.
func NewHDMasterKeyFromExtended(key string, params *config.ChainParams) (*HDMasterKey, error) {
	ext, err := hdkeychain.NewKeyFromString(key)
	if err != nil {
		return nil, fmt.Errorf("parse extended key: %w", err)
	}
	return newHDMasterKey(ext, params, !ext.IsPrivate()), nil
}

func newHDMasterKey(root *hdkeychain.ExtendedKey, params *config.ChainParams, accountOnly bool) *HDMasterKey {
	return &HDMasterKey{
		params:      params,
		root:        root,
		accountOnly: accountOnly,
		chains:      make(map[string]*hdkeychain.ExtendedKey),
	}
}

func (k *HDMasterKey) IsHD() bool       { return true }
func (k *HDMasterKey) IsViewOnly() bool { return !k.root.IsPrivate() }
func (k *HDMasterKey) IsHardware() bool { return false }

func (k *HDMasterKey) DerivationPath(account, chain, index uint32) string {
	return fmt.Sprintf("m/44'/%d'/%d'/%d/%d", k.params.CoinType, account, chain, index)
}

func (k *HDMasterKey) Address(path string) (string, error) {
	ext, err := k.derive(path)
	if err != nil {
		return "", err
	}
	pub, err := ext.ECPubKey()
	if err != nil {
		return "", err
	}
	return script.EncodeAddress(btcutil.Hash160(pub.SerializeCompressed()), k.params.PubKeyHashAddrID), nil
}

func (k *HDMasterKey) PrivateKey(path string) (*btcec.PrivateKey, error) {
	if k.IsViewOnly() {
		return nil, ErrViewOnly
	}
	ext, err := k.derive(path)
	if err != nil {
		return nil, err
	}
	return ext.ECPrivKey()
}

func (k *HDMasterKey) KeyToExport(account uint32) (string, error) {
	if k.accountOnly {
		return k.root.String(), nil
	}
	ext, err := k.deriveIndexes([]uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + k.params.CoinType,
		hdkeychain.HardenedKeyStart + account,
	})
	if err != nil {
		return "", err
	}
	pub, err := ext.Neuter()
	if err != nil {
		return "", err
	}
	return pub.String(), nil
}

func (k *HDMasterKey) KeyToBackup() (string, error) {
	if k.mnemonic != "" {
		return k.mnemonic, nil
	}
	if k.IsViewOnly() {
		return "", ErrViewOnly
	}
	return k.root.String(), nil
}

// derive resolves path, memoizing the chain level key of every account/chain pair.
func (k *HDMasterKey) derive(path string) (*hdkeychain.ExtendedKey, error) {
	indexes, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	if len(indexes) != 5 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	if k.accountOnly {
		// the xpub already sits at m/44'/coin'/account'
		indexes = indexes[3:]
	}
	prefix, last := indexes[:len(indexes)-1], indexes[len(indexes)-1]
	cacheKey := fmt.Sprint(prefix)

	k.mu.Lock()
	chainKey, ok := k.chains[cacheKey]
	k.mu.Unlock()
	if !ok {
		if chainKey, err = k.deriveIndexes(prefix); err != nil {
			return nil, err
		}
		k.mu.Lock()
		k.chains[cacheKey] = chainKey
		k.mu.Unlock()
	}
	return chainKey.Derive(last)
}

func (k *HDMasterKey) deriveIndexes(indexes []uint32) (*hdkeychain.ExtendedKey, error) {
	ext := k.root
	for _, i := range indexes {
		var err error
		if ext, err = ext.Derive(i); err != nil {
			return nil, fmt.Errorf("derive %d: %w", i, err)
		}
	}
	return ext, nil
}

// ParsePath turns "m/44'/119'/0'/0/1" into child indexes, hardened ones offset by 2^31.
func ParsePath(path string) ([]uint32, error) {
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] != "m" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	indexes := make([]uint32, 0, len(parts)-1)
	for _, p := range parts[1:] {
		hardened := strings.HasSuffix(p, "'")
		n, err := strconv.ParseUint(strings.TrimSuffix(p, "'"), 10, 31)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPath, path)
		}
		i := uint32(n)
		if hardened {
			i += hdkeychain.HardenedKeyStart
		}
		indexes = append(indexes, i)
	}
	return indexes, nil
}

// chainIndex extracts the chain and address index of a BIP44 path.
func chainIndex(path string) (chain, index uint32, ok bool) {
	indexes, err := ParsePath(path)
	if err != nil || len(indexes) != 5 {
		return 0, 0, false
	}
	return indexes[3], indexes[4], true
}

// LegacyMasterKey is a single key: a WIF, or only its address when view only.
type LegacyMasterKey struct {
	params  *config.ChainParams
	wif     *btcutil.WIF
	address string
}

func NewLegacyMasterKey(wif string, params *config.ChainParams) (*LegacyMasterKey, error) {
	decoded, err := btcutil.DecodeWIF(wif)
	if err != nil {
		return nil, fmt.Errorf("decode wif: %w", err)
	}
	pkh := btcutil.Hash160(decoded.SerializePubKey())
	return &LegacyMasterKey{
		params:  params,
		wif:     decoded,
		address: script.EncodeAddress(pkh, params.PubKeyHashAddrID),
	}, nil
}

func NewViewOnlyLegacyMasterKey(address string, params *config.ChainParams) (*LegacyMasterKey, error) {
	_, version, err := script.DecodeAddress(address)
	if err != nil {
		return nil, err
	}
	if version != params.PubKeyHashAddrID {
		return nil, fmt.Errorf("%w: %s is not a %s address", script.ErrInvalidAddress, address, params.Name)
	}
	return &LegacyMasterKey{params: params, address: address}, nil
}

func (k *LegacyMasterKey) IsHD() bool       { return false }
func (k *LegacyMasterKey) IsViewOnly() bool { return k.wif == nil }
func (k *LegacyMasterKey) IsHardware() bool { return false }

func (k *LegacyMasterKey) DerivationPath(_, _, _ uint32) string { return LegacyPath }

func (k *LegacyMasterKey) Address(string) (string, error) { return k.address, nil }

func (k *LegacyMasterKey) PrivateKey(string) (*btcec.PrivateKey, error) {
	if k.wif == nil {
		return nil, ErrViewOnly
	}
	return k.wif.PrivKey, nil
}

func (k *LegacyMasterKey) KeyToExport(uint32) (string, error) { return k.address, nil }

func (k *LegacyMasterKey) KeyToBackup() (string, error) {
	if k.wif == nil {
		return "", ErrViewOnly
	}
	return k.wif.String(), nil
}

// HardwareMasterKey derives addresses from the device's account xpub and delegates signing.
type HardwareMasterKey struct {
	*HDMasterKey
	Signer HardwareSigner
}

func NewHardwareMasterKey(xpub string, signer HardwareSigner, params *config.ChainParams) (*HardwareMasterKey, error) {
	hd, err := NewHDMasterKeyFromExtended(xpub, params)
	if err != nil {
		return nil, err
	}
	if !hd.IsViewOnly() {
		return nil, fmt.Errorf("hardware key must be an xpub")
	}
	return &HardwareMasterKey{HDMasterKey: hd, Signer: signer}, nil
}

func (k *HardwareMasterKey) IsHardware() bool { return true }
