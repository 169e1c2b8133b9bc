package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mypivxwallet/wallet_engine/config"
	"github.com/mypivxwallet/wallet_engine/storage"
)

var ErrUnknownSecret = errors.New("unrecognised key format")

// ParseSecret reads a mnemonic, an extended key (xprv or account xpub), a WIF or a
// bare address into the matching master key.
func ParseSecret(secret string, params *config.ChainParams) (MasterKey, error) {
	secret = strings.TrimSpace(secret)
	switch {
	case secret == "":
		return nil, ErrUnknownSecret
	case len(strings.Fields(secret)) >= 12:
		return NewHDMasterKeyFromMnemonic(secret, "", params)
	case strings.HasPrefix(secret, "xprv"), strings.HasPrefix(secret, "xpub"),
		strings.HasPrefix(secret, "tprv"), strings.HasPrefix(secret, "tpub"):
		return NewHDMasterKeyFromExtended(secret, params)
	}
	if key, err := NewLegacyMasterKey(secret, params); err == nil {
		return key, nil
	}
	if key, err := NewViewOnlyLegacyMasterKey(secret, params); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("%w: %d characters", ErrUnknownSecret, len(secret))
}

// RestoreMasterKey rebuilds the account key: the decrypted backup secret when a password is
// given, the public key (view only) otherwise.
func RestoreMasterKey(account *storage.Account, password string, params *config.ChainParams) (MasterKey, error) {
	if password != "" && account.EncryptedKey != "" {
		secret, err := DecryptSecret(account.EncryptedKey, password)
		if err != nil {
			return nil, err
		}
		return ParseSecret(secret, params)
	}
	if account.PublicKey == "" {
		return nil, ErrNoMasterKey
	}
	return ParseSecret(account.PublicKey, params)
}

// Encrypt stores the backup secret encrypted with password, adding the account record
// or updating the existing one.
func (w *Wallet) Encrypt(store storage.AccountStore, password string) error {
	key := w.MasterKey()
	if key == nil {
		return ErrNoMasterKey
	}
	secret, err := key.KeyToBackup()
	if err != nil {
		return err
	}
	encrypted, err := EncryptSecret(secret, password)
	if err != nil {
		return err
	}
	publicKey, err := w.KeyToExport()
	if err != nil {
		return err
	}

	account, err := store.GetAccount()
	if errors.Is(err, storage.ErrNotFound) {
		return store.AddAccount(&storage.Account{PublicKey: publicKey, EncryptedKey: encrypted})
	}
	if err != nil {
		return err
	}
	if account.PublicKey != publicKey {
		// a different key starts over
		account = &storage.Account{}
	}
	account.PublicKey = publicKey
	account.EncryptedKey = encrypted
	return store.UpdateAccount(account)
}
