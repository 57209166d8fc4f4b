package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainType     = "polycat/type/v1"
	DomainSnapshot = "polycat/snapshot/v1"
	DomainSchema   = "polycat/schema/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TypeDigestHash condenses a structural type digest into a fixed-size key.
// Plan caches keyed by type use this instead of the (unbounded) digest string.
func TypeDigestHash(digest string) string {
	return hashWithDomain(DomainType, []byte(digest))
}

// SnapshotDigest computes the content hash of a serialized store catalog.
func SnapshotDigest(payload []byte) string {
	return hashWithDomain(DomainSnapshot, payload)
}

// SchemaDigest computes the content hash of a schema snapshot.
// Returns error if the snapshot cannot be canonically marshaled.
func SchemaDigest(data SnapshotData) (string, error) {
	obj, err := snapshotObject(data)
	if err != nil {
		return "", fmt.Errorf("SchemaDigest: %w", err)
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("SchemaDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSchema, canonical), nil
}

// MustSchemaDigest is like SchemaDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSchemaDigest(data SnapshotData) string {
	d, err := SchemaDigest(data)
	if err != nil {
		panic(err)
	}
	return d
}

// snapshotObject converts snapshot data to IR values through its JSON shape.
func snapshotObject(data SnapshotData) (IRValue, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return UnmarshalIRValue(raw)
}
