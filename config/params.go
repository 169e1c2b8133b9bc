package config

import (
	"github.com/btcsuite/btcd/chaincfg"
)

const (
	// Coin is the number of satoshis in one PIV.
	Coin = 100_000_000
	// GapLimit is the number of consecutive unused addresses watched per chain.
	GapLimit = 20
)

// ChainParams holds the network constants the wallet needs.
type ChainParams struct {
	Name                      string
	PubKeyHashAddrID          byte
	StakingAddrID             byte
	SecretKeyID               byte
	CoinType                  uint32
	DefaultColdStakingAddress string
	ProposalFee               uint64
	CollateralInSats          uint64
	CoinbaseMaturity          int
	// HD carries the BIP32 version bytes in the shape hdkeychain expects.
	HD *chaincfg.Params
}

var MainNet = ChainParams{
	Name:                      "mainnet",
	PubKeyHashAddrID:          30,
	StakingAddrID:             63,
	SecretKeyID:               212,
	CoinType:                  119,
	DefaultColdStakingAddress: "SdgQDpS8jDRJDX8yK8m9KnTMarsE84zdsy",
	ProposalFee:               50 * Coin,
	CollateralInSats:          10000 * Coin,
	CoinbaseMaturity:          100,
	HD:                        hdParams("pivx-mainnet", chaincfg.MainNetParams, 30, 212, 119),
}

var TestNet = ChainParams{
	Name:                      "testnet",
	PubKeyHashAddrID:          139,
	StakingAddrID:             73,
	SecretKeyID:               239,
	CoinType:                  1,
	DefaultColdStakingAddress: "WmNziUEPyhnUkiVdfsiNX93H6rSJnios44",
	ProposalFee:               50 * Coin,
	CollateralInSats:          10000 * Coin,
	CoinbaseMaturity:          15,
	HD:                        hdParams("pivx-testnet", chaincfg.TestNet3Params, 139, 239, 1),
}

func hdParams(name string, base chaincfg.Params, pkh, secret byte, coinType uint32) *chaincfg.Params {
	p := base
	p.Name = name
	p.PubKeyHashAddrID = pkh
	p.PrivateKeyID = secret
	p.HDCoinType = coinType
	return &p
}
