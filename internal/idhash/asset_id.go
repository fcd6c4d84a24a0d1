package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeAssetID derives a deterministic asset ID from the seller, the
// listing title and the submission time.
func ComputeAssetID(sellerID, title string, createdAtMs int64) string {
	input := fmt.Sprintf("%s|%s|%d", sellerID, title, createdAtMs)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}
