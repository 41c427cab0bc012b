package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gowebpki/jcs"
)

// Fingerprint returns a stable digest of the policy tuples consulted for a
// readiness computation. Input order does not matter. An empty set has no
// fingerprint.
func Fingerprint(refs []Ref) (string, error) {
	if len(refs) == 0 {
		return "", nil
	}
	sorted := append([]Ref(nil), refs...)
	sortRefs(sorted)

	raw, err := json.Marshal(sorted)
	if err != nil {
		return "", fmt.Errorf("marshal policy refs: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize policy refs: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// CanonicalJSON returns the canonical JSON encoding of refs, in the order
// Fingerprint hashes them.
func CanonicalJSON(refs []Ref) ([]byte, error) {
	sorted := append([]Ref{}, refs...)
	sortRefs(sorted)
	raw, err := json.Marshal(sorted)
	if err != nil {
		return nil, fmt.Errorf("marshal policy refs: %w", err)
	}
	return jcs.Transform(raw)
}

func sortRefs(refs []Ref) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].UnitID != refs[j].UnitID {
			return refs[i].UnitID < refs[j].UnitID
		}
		if refs[i].IndustryType != refs[j].IndustryType {
			return refs[i].IndustryType < refs[j].IndustryType
		}
		return refs[i].Version < refs[j].Version
	})
}
