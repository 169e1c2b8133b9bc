package transaction

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	dummyTxHex  = "01000000017c5d281d04a546f989bd5ff922447c6bf6896416cc9145b6a782c30ad868f9f8010000006b483045022100a4eac56caaf3700c4f53822fbb858256f3a5c154d268f416ade685de3fe61de202206fb38cfe8fd4faf8b14dc7ac0799c4acfd50a81c4d93509ebd6fb0bca3bb8a7a0121035b57e0afed95b86ad3ccafb9a8c752dc173cea16274cf9dd9b7a43364d36cf38ffffffff02902d4c00000000001976a914f49b25384b79685227be5418f779b98a6be4c73888ac404b4c00000000001976a914a95cc6408a676232d61ec29dc56a180b5847835788ac00000000"
	dummyTxID   = "9cf01cffc85d53b80a9c7ca106fc7326efa0f4f1db3eaf5be0ac45eb6105b8ab"
	dummySig    = "483045022100a4eac56caaf3700c4f53822fbb858256f3a5c154d268f416ade685de3fe61de202206fb38cfe8fd4faf8b14dc7ac0799c4acfd50a81c4d93509ebd6fb0bca3bb8a7a0121035b57e0afed95b86ad3ccafb9a8c752dc173cea16274cf9dd9b7a43364d36cf38"
	coldTxHex   = "010000000113fff6fbd94fa006593748da9be58b6629975857d5cae98084c6a580b2186dbf000000006b4830450221009de7f40ae52ae9da0fd103c40e3f914654fd699909c8ff9b083983701d807a0c02203d81de9ebca45f067317fcb5c31326cd9aa18734abe015ffd65cfef62f710dde012102ff1cfb54a2ec3de473e3171d0724356f3e80c6522319b521b5454ddd62403a3effffffff0258c56f18000000001976a9143232b7bd616dd5ebeefcd216671fe9a7c2f96b2e88ac00e1f505000000003376a97b63d114f912041b9c6d2351a4022cb1e8ee0108ed7239796714c212b614b19765cd544e8c2186fa17d6b8aeb2f16888ac00000000"
	coinbaseHex = "01000000010000000000000000000000000000000000000000000000000000000000000000ffffffff05035e9c3f00ffffffff0100000000000000000000000000"
	coinstake   = "010000000124c18e60883b3a8897e1320085fcf379ad4e717e3a743be02b282161603a3c5601000000484730440220773979ad4cac8eb810cc57c8099866f7c2512550b877559a8c2f61e99e1780630220057bb31305908a3d502238d9535b90446721513324df221c4d0805d8681005a001ffffffff03000000000000000000a009edc610000000232103112df8b7ece0ebdfaa17d13d7d9e4df3ff1261ba107d9f929c6eea633c71bd90ac0046c323000000001976a9140363526ab523d61302f8c74305e5891ad8af922388ac00000000"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func dummyTx(t *testing.T) *Transaction {
	tx := New()
	tx.Vin = []TxIn{NewTxIn(Outpoint{
		TxID: "f8f968d80ac382a7b64591cc166489f66b7c4422f95fbd89f946a5041d285d7c",
		N:    1,
	}, mustHex(t, dummySig))}
	tx.Vout = []TxOut{
		{Script: mustHex(t, "76a914f49b25384b79685227be5418f779b98a6be4c73888ac"), Value: 4992400},
		{Script: mustHex(t, "76a914a95cc6408a676232d61ec29dc56a180b5847835788ac"), Value: 5000000},
	}
	return tx
}

func TestSerialize(t *testing.T) {
	tx := dummyTx(t)
	assert.Equal(t, dummyTxHex, tx.Hex())
	assert.Equal(t, dummyTxID, tx.TxID())
	assert.Equal(t, len(tx.Serialize()), tx.SerializeSize())
}

func TestDeserialize(t *testing.T) {
	tx, err := FromHex(dummyTxHex)
	require.NoError(t, err)
	assert.Equal(t, dummyTx(t), tx)
	assert.False(t, tx.IsConfirmed())
	assert.False(t, tx.IsCoinBase())
	assert.False(t, tx.IsCoinStake())
}

func TestColdTxRoundTrip(t *testing.T) {
	tx, err := FromHex(coldTxHex)
	require.NoError(t, err)
	require.Len(t, tx.Vout, 2)
	assert.Equal(t, "bf6d18b280a5c68480e9cad557589729668be59bda48375906a04fd9fbf6ff13", tx.Vin[0].Outpoint.TxID)
	assert.Equal(t, uint64(409978200), tx.Vout[0].Value)
	assert.Equal(t, uint64(100000000), tx.Vout[1].Value)
	assert.Equal(t, coldTxHex, tx.Hex())

	again, err := Deserialize(tx.Serialize())
	require.NoError(t, err)
	assert.Equal(t, tx, again)
}

func TestCoinbaseAndCoinstake(t *testing.T) {
	cb, err := FromHex(coinbaseHex)
	require.NoError(t, err)
	assert.Equal(t, "ae5f760b98070225757b1e21a2e84882ab9f71dff5a6aebde69f5d7ca20be6da", cb.TxID())
	assert.True(t, cb.IsCoinBase())
	assert.False(t, cb.IsCoinStake())

	cs, err := FromHex(coinstake)
	require.NoError(t, err)
	assert.Equal(t, "a9c4aea4a3b7962ce6d33190f738ee6cf266e5dd3b7061f25fd8f285ae1fabba", cs.TxID())
	assert.True(t, cs.IsCoinStake())
	assert.False(t, cs.IsCoinBase())
	assert.Equal(t, coinstake, cs.Hex())
}

func TestTxIDFromHex(t *testing.T) {
	id, err := TxIDFromHex(dummyTxHex)
	require.NoError(t, err)
	assert.Equal(t, dummyTxID, id)

	_, err = TxIDFromHex("zz")
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestTxIDTracksMutation(t *testing.T) {
	tx := dummyTx(t)
	before := tx.TxID()
	tx.Vout[0].Value++
	assert.NotEqual(t, before, tx.TxID())
}

func TestShieldDataOnlyForV3(t *testing.T) {
	tx := dummyTx(t)
	tx.Version = ShieldVersion
	tx.ShieldData = []byte{0x01, 0x00, 0x02}

	decoded, err := Deserialize(tx.Serialize())
	require.NoError(t, err)
	assert.Equal(t, tx.ShieldData, decoded.ShieldData)
	assert.Equal(t, tx.Hex(), decoded.Hex())

	tx.Version = 1
	assert.Equal(t, dummyTxHex, tx.Hex())
}

func TestDeserializeMalformed(t *testing.T) {
	cases := map[string]string{
		"bad hex":          "0q",
		"empty":            "",
		"truncated":        dummyTxHex[:len(dummyTxHex)-10],
		"trailing garbage": dummyTxHex + "00",
		"huge input count": "01000000fdffff",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromHex(in)
			assert.ErrorIs(t, err, ErrMalformedInput)
		})
	}
}

func TestOutpointKey(t *testing.T) {
	op := Outpoint{TxID: dummyTxID, N: 12}
	assert.Equal(t, dummyTxID+"12", op.Key())
	assert.Equal(t, dummyTxID+":12", op.String())
}

func TestTxOutIsEmpty(t *testing.T) {
	assert.True(t, TxOut{}.IsEmpty())
	assert.True(t, TxOut{Script: []byte{0xf8}}.IsEmpty())
	assert.False(t, TxOut{Script: []byte{0xf8}, Value: 1}.IsEmpty())
	assert.False(t, TxOut{Script: []byte{0x76}}.IsEmpty())
}

func TestCloneIsDeep(t *testing.T) {
	tx := dummyTx(t)
	c := tx.Clone()
	c.Vin[0].ScriptSig[0] = 0x00
	c.Vout[0].Script[0] = 0x00
	assert.Equal(t, dummyTxHex, tx.Hex())
}

func TestSignInput(t *testing.T) {
	tx := dummyTx(t)
	tx.Vin[0].ScriptSig = mustHex(t, "76a914f49b25384b79685227be5418f779b98a6be4c73888ac")

	err := tx.SignInputWIF(0, "YU12G8Y9LwC3wb2cwUXvvg1iMvBey1ibCF23WBAapCuaKhd6a4R6", SignOptions{})
	require.NoError(t, err)
	assert.Equal(t, dummySig, hex.EncodeToString(tx.Vin[0].ScriptSig))
	assert.Equal(t, dummyTxHex, tx.Hex())
}

func TestSignInputColdStakeFlag(t *testing.T) {
	tx := dummyTx(t)
	tx.Vin[0].ScriptSig = mustHex(t, "76a914f49b25384b79685227be5418f779b98a6be4c73888ac")
	require.NoError(t, tx.SignInputWIF(0, "YU12G8Y9LwC3wb2cwUXvvg1iMvBey1ibCF23WBAapCuaKhd6a4R6", SignOptions{IsColdStake: true}))

	script := tx.Vin[0].ScriptSig
	sigLen := int(script[0])
	assert.Equal(t, byte(0x00), script[1+sigLen], "OP_FALSE between signature and pubkey")
	assert.Equal(t, byte(33), script[2+sigLen])
	assert.Len(t, script, 1+sigLen+1+1+33)
}

func TestSignInputErrors(t *testing.T) {
	tx := dummyTx(t)
	assert.ErrorIs(t, tx.SignInput(0, nil, SignOptions{}), ErrKeyUnavailable)
	assert.ErrorIs(t, tx.SignInputWIF(0, "", SignOptions{}), ErrKeyUnavailable)
	assert.ErrorIs(t, tx.SignInputWIF(5, "YU12G8Y9LwC3wb2cwUXvvg1iMvBey1ibCF23WBAapCuaKhd6a4R6", SignOptions{}), ErrMalformedInput)
}

func TestSigHashRejectsBadOutpoint(t *testing.T) {
	for _, txid := range []string{"", "00", dummyTxID[:62] + "zz", dummyTxID + "00"} {
		tx := dummyTx(t)
		tx.Vin = append(tx.Vin, NewTxIn(Outpoint{TxID: txid, N: 0}, nil))
		before := tx.Vin[0].ScriptSig

		_, err := tx.SigHash(0)
		assert.ErrorIs(t, err, ErrMalformedInput, txid)
		err = tx.SignInputWIF(0, "YU12G8Y9LwC3wb2cwUXvvg1iMvBey1ibCF23WBAapCuaKhd6a4R6", SignOptions{})
		assert.ErrorIs(t, err, ErrMalformedInput, txid)
		assert.Equal(t, before, tx.Vin[0].ScriptSig, "nothing is signed")
	}
}

func TestSigHashBlanksOtherInputs(t *testing.T) {
	tx := dummyTx(t)
	tx.Vin = append(tx.Vin, NewTxIn(Outpoint{TxID: dummyTxID, N: 0}, []byte{0x51}))

	h0, err := tx.SigHash(0)
	require.NoError(t, err)
	tx.Vin[1].ScriptSig = []byte{0x52, 0x53}
	h0again, err := tx.SigHash(0)
	require.NoError(t, err)
	assert.Equal(t, h0, h0again)

	h1, err := tx.SigHash(1)
	require.NoError(t, err)
	assert.NotEqual(t, h0, h1)
	assert.Len(t, h1, 32)
}
