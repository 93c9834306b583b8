package assert

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
)

func btcutilHash160(b []byte) []byte {
	return btcutil.Hash160(b)
}

func schnorrXOnly(pub *btcec.PublicKey) []byte {
	return schnorr.SerializePubKey(pub)
}
