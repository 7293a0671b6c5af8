package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainUnit prefixes unit fingerprints. The version suffix allows migrating
// the canonical form later.
const DomainUnit = "invprop/unit/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes a content hash of the unit's structure, including the
// current alignment annotations. Two units built from the same source hash
// equally; a pass that strengthens an alignment changes the fingerprint.
func Fingerprint(u *Unit) (string, error) {
	canonical, err := CanonicalJSON(u)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(DomainUnit, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error.
func MustFingerprint(u *Unit) string {
	fp, err := Fingerprint(u)
	if err != nil {
		panic(err)
	}
	return fp
}

// CanonicalJSON returns the canonical JSON form of u that Fingerprint hashes:
// procedures in order, each with its parameters and the printed text of every
// operation.
func CanonicalJSON(u *Unit) ([]byte, error) {
	return MarshalCanonical(u.canonicalForm())
}

func (u *Unit) canonicalForm() map[string]any {
	procs := make([]any, 0, len(u.procs)-1)
	for _, p := range u.Procs() {
		proc := u.Proc(p)
		params := make([]any, len(proc.Params))
		for i, prm := range proc.Params {
			params[i] = u.TypedRef(prm)
		}
		blocks := make([]any, len(proc.Blocks))
		for i, b := range proc.Blocks {
			instrs := make([]any, len(u.Block(b).Instrs))
			for j, id := range u.Block(b).Instrs {
				instrs[j] = u.ValueString(id)
			}
			blocks[i] = map[string]any{
				"name":   u.Block(b).Name,
				"instrs": instrs,
			}
		}
		procs = append(procs, map[string]any{
			"name":   proc.Name,
			"params": params,
			"blocks": blocks,
		})
	}
	return map[string]any{
		"ir_version": IRVersion,
		"name":       u.Name,
		"procs":      procs,
	}
}
