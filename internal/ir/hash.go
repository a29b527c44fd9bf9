package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainSignature   = "eventbind/signature/v" + KeyVersion
	DomainDeclaration = "eventbind/declaration/v" + KeyVersion
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DeclarationHash returns a stable identity for a declaration's content.
// Two declarations with the same path, argument tokens, debounce and
// events hash identically.
func DeclarationHash(d *BindingDeclaration) string {
	args := make([]any, len(d.args))
	for i, a := range d.args {
		args[i] = map[string]any{
			"kind":  a.Kind().String(),
			"token": a.String(),
		}
	}
	obj := map[string]any{
		"path":        d.path,
		"args":        args,
		"debounce_ms": d.debounce.Milliseconds(),
		"events":      d.Events(),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		// Only strings and ints above; unreachable.
		panic(err)
	}
	return hashWithDomain(DomainDeclaration, canonical)
}
