// Package campaign binds saved runs to the exact campaign content they were
// played against. The fingerprint is content-derived, the manifest declares
// what else a run may tolerate, and the gate decides whether replay may
// proceed. The gate fails closed: events are never reinterpreted against
// content with different semantics.
package campaign

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint computes the stable content-version hash for campaign source.
// SHA-256 guarantees the value is identical across platforms and releases,
// which the replay gate depends on.
func Fingerprint(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}
