package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SymbolPrefix is prepended to every derived token symbol.
const SymbolPrefix = "PROP"

// symbolHashLen is the number of hash characters appended to the prefix.
const symbolHashLen = 6

// ComputeSymbol derives a stable short token symbol from an asset
// identifier. Formula: "PROP" + first 6 hex characters of
// SHA256(asset_id), uppercased. Deterministic for a given asset;
// collision risk across assets is accepted.
func ComputeSymbol(assetID string) string {
	hash := sha256.Sum256([]byte(assetID))
	suffix := hex.EncodeToString(hash[:])[:symbolHashLen]
	return SymbolPrefix + strings.ToUpper(suffix)
}
