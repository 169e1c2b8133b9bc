package wallet

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestParsePath(t *testing.T) {
	indexes, err := ParsePath("m/44'/119'/0'/1/7")
	require.NoError(t, err)
	assert.Equal(t, []uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + 119,
		hdkeychain.HardenedKeyStart,
		1,
		7,
	}, indexes)

	for _, bad := range []string{"", "44'/0", "m/x", "m/44'/-1", LegacyPath} {
		_, err := ParsePath(bad)
		assert.ErrorIs(t, err, ErrInvalidPath, bad)
	}
}

func TestMnemonicKey(t *testing.T) {
	key, err := NewHDMasterKeyFromMnemonic("  ABANDON "+strings.TrimPrefix(testMnemonic, "abandon"), "", params)
	require.NoError(t, err)
	backup, err := key.KeyToBackup()
	require.NoError(t, err)
	assert.Equal(t, testMnemonic, backup)

	_, err = NewHDMasterKeyFromMnemonic("abandon abandon abandon", "", params)
	assert.ErrorIs(t, err, ErrInvalidMnemonic)

	fresh, err := NewMnemonic()
	require.NoError(t, err)
	assert.Len(t, strings.Fields(fresh), 24)
	_, err = NewHDMasterKeyFromMnemonic(fresh, "", params)
	assert.NoError(t, err)
}

func TestExportedKeyDerivesSameAddresses(t *testing.T) {
	full := testKey(t)
	xpub, err := full.KeyToExport(0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(xpub, "xpub"))

	viewOnly, err := NewHDMasterKeyFromExtended(xpub, params)
	require.NoError(t, err)
	exported, err := viewOnly.KeyToExport(0)
	require.NoError(t, err)
	assert.Equal(t, xpub, exported)

	for _, path := range []string{
		full.DerivationPath(0, ChainReceiving, 0),
		full.DerivationPath(0, ChainReceiving, 9),
		full.DerivationPath(0, ChainChange, 3),
	} {
		want, err := full.Address(path)
		require.NoError(t, err)
		got, err := viewOnly.Address(path)
		require.NoError(t, err)
		assert.Equal(t, want, got, path)
		assert.Equal(t, byte('D'), got[0])
	}

	_, err = viewOnly.PrivateKey(full.DerivationPath(0, 0, 0))
	assert.ErrorIs(t, err, ErrViewOnly)
	_, err = viewOnly.KeyToBackup()
	assert.ErrorIs(t, err, ErrViewOnly)
}

func TestAccountsDiffer(t *testing.T) {
	key := testKey(t)
	a0, err := key.KeyToExport(0)
	require.NoError(t, err)
	a1, err := key.KeyToExport(1)
	require.NoError(t, err)
	assert.NotEqual(t, a0, a1)
}

func TestHardwareKeyRequiresXpub(t *testing.T) {
	xprv, err := testKey(t).KeyToBackup()
	require.NoError(t, err)
	_, err = NewHardwareMasterKey(xprv, &fakeSigner{}, params)
	assert.Error(t, err)
}

func TestEncryptSecret(t *testing.T) {
	sealed, err := EncryptSecret(testMnemonic, "hunter2")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "abandon")

	again, err := EncryptSecret(testMnemonic, "hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "salt and nonce are random")

	plain, err := DecryptSecret(sealed, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testMnemonic, plain)

	_, err = DecryptSecret(sealed, "hunter3")
	assert.ErrorIs(t, err, ErrWrongPassword)
	_, err = DecryptSecret("not base64!", "hunter2")
	assert.ErrorIs(t, err, ErrWrongPassword)
	_, err = DecryptSecret("AAAA", "hunter2")
	assert.ErrorIs(t, err, ErrWrongPassword)
}
