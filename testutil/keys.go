package testutil

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// TestXPub and TestXPrv are a fixed extended key pair, so that test
// scripts and addresses are reproducible across runs.
var (
	TestXPub, TestXPrv *hdkeychain.ExtendedKey
)

func init() {
	seed := bytes.Repeat([]byte{0x5a}, hdkeychain.RecommendedSeedLen)
	xprv, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		panic(err)
	}
	xpub, err := xprv.Neuter()
	if err != nil {
		panic(err)
	}
	TestXPub = xpub
	TestXPrv = xprv
}

// Key returns the i'th non-hardened child private key of TestXPrv.
func Key(i uint32) *btcec.PrivateKey {
	child, err := TestXPrv.Derive(i)
	if err != nil {
		panic(err)
	}
	priv, err := child.ECPrivKey()
	if err != nil {
		panic(err)
	}
	return priv
}
