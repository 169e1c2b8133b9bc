package script

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	p2pkhHex = "76a914f49b25384b79685227be5418f779b98a6be4c73888ac"
	p2csHex  = "76a97b63d114f912041b9c6d2351a4022cb1e8ee0108ed7239796714c212b614b19765cd544e8c2186fa17d6b8aeb2f16888ac"
)

func decode(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestClassify(t *testing.T) {
	typ, hashes := Classify(decode(t, p2pkhHex))
	assert.Equal(t, P2PKH, typ)
	require.Len(t, hashes, 1)
	assert.Equal(t, "f49b25384b79685227be5418f779b98a6be4c738", hex.EncodeToString(hashes[0]))

	typ, hashes = Classify(decode(t, p2csHex))
	assert.Equal(t, P2CS, typ)
	require.Len(t, hashes, 2)
	assert.Equal(t, "f912041b9c6d2351a4022cb1e8ee0108ed723979", hex.EncodeToString(hashes[0]))
	assert.Equal(t, "c212b614b19765cd544e8c2186fa17d6b8aeb2f1", hex.EncodeToString(hashes[1]))

	typ, _ = Classify(append([]byte{0x6a, 0x20}, make([]byte, 32)...))
	assert.Equal(t, ProposalFee, typ)

	typ, _ = Classify([]byte{0x51})
	assert.Equal(t, Unknown, typ)
	assert.Equal(t, "unknown", typ.String())
}

func TestSpendingKeyHash(t *testing.T) {
	assert.Equal(t, "c212b614b19765cd544e8c2186fa17d6b8aeb2f1", hex.EncodeToString(SpendingKeyHash(decode(t, p2csHex))))
	assert.Equal(t, "f49b25384b79685227be5418f779b98a6be4c738", hex.EncodeToString(SpendingKeyHash(decode(t, p2pkhHex))))
	assert.Nil(t, SpendingKeyHash([]byte{0x6a}))
}

func TestBuildersMatchTemplates(t *testing.T) {
	s, err := P2PKHScript(decode(t, "f49b25384b79685227be5418f779b98a6be4c738"))
	require.NoError(t, err)
	assert.Equal(t, p2pkhHex, hex.EncodeToString(s))

	s, err = P2CSScript(
		decode(t, "f912041b9c6d2351a4022cb1e8ee0108ed723979"),
		decode(t, "c212b614b19765cd544e8c2186fa17d6b8aeb2f1"),
	)
	require.NoError(t, err)
	assert.Equal(t, p2csHex, hex.EncodeToString(s))

	hash := make([]byte, 32)
	hash[0] = 0xab
	s, err = ProposalScript(hash)
	require.NoError(t, err)
	assert.True(t, IsProposal(s))

	_, err = P2PKHScript([]byte{1, 2})
	assert.Error(t, err)
}

func TestAddressRoundTrip(t *testing.T) {
	pkh := decode(t, "f49b25384b79685227be5418f779b98a6be4c738")
	addr := EncodeAddress(pkh, 30)
	assert.Equal(t, byte('D'), addr[0])

	got, version, err := DecodeAddress(addr)
	require.NoError(t, err)
	assert.Equal(t, pkh, got)
	assert.Equal(t, byte(30), version)

	s, err := PayToAddress(addr, 30)
	require.NoError(t, err)
	assert.Equal(t, p2pkhHex, hex.EncodeToString(s))

	_, err = PayToAddress(addr, 63)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, _, err = DecodeAddress("Dnotbase58check")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestStakingAddressPrefix(t *testing.T) {
	addr := EncodeAddress(decode(t, "f912041b9c6d2351a4022cb1e8ee0108ed723979"), 63)
	assert.Equal(t, byte('S'), addr[0])

	_, version, err := DecodeAddress(addr)
	require.NoError(t, err)
	assert.Equal(t, byte(63), version)
}
