package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeContractID computes a deterministic contract id using SHA256.
// Formula: SHA256(source|external_id|title)
// Returns hex-encoded hash (64 characters). Re-normalizing identical raw
// input always yields the identical id.
func ComputeContractID(source, externalID, title string) string {
	data := fmt.Sprintf("%s|%s|%s", source, externalID, title)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// DeriveExternalID builds a stable surrogate external id for sources that
// publish listings without one. Uses the title and url so the same listing
// maps to the same id across fetches.
func DeriveExternalID(title, url string) string {
	data := fmt.Sprintf("%s|%s", title, url)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])[:16]
}
