package assert

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// unspendableKeyHex is the standard "nothing up my sleeve" point used
// throughout the Taproot ecosystem as an internal key with no known
// discrete log, so the key-path spend of an Assert output is provably
// unavailable and every coin can only move through the script tree.
const unspendableKeyHex = "50929b74c1a04954b78b4b6035e97a5e078a5a0f28ec96d547bfee9ace803ac0"

// UnspendableInternalKey parses the fixed NUMS x-only point this package
// uses as the internal key for every Assert output.
func UnspendableInternalKey() (*btcec.PublicKey, error) {
	raw, err := hex.DecodeString(unspendableKeyHex)
	if err != nil {
		return nil, err
	}
	return schnorr.ParsePubKey(raw)
}
