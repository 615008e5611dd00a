package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CIDFunc computes a content identifier over canonical payload bytes.
// The algorithm is opaque to the core; only determinism and practical
// collision resistance are required.
type CIDFunc func(canonical []byte) string

// DefaultCID is the built-in content addresser: sha256 over canonical bytes,
// rendered as "sha256:<hex>".
func DefaultCID(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// canonicalEnvelope is the stable wire form that gets hashed. Field order is
// fixed; encoding/json emits struct fields in declaration order and sorts
// map keys, so two payloads with equal content produce identical bytes.
type canonicalEnvelope struct {
	Kind string          `json:"k"`
	Body json.RawMessage `json:"b"`
}

// CanonicalPayloadBytes returns the canonical byte form of a payload.
// This is the input to the content addresser and the persisted payload body.
func CanonicalPayloadBytes(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("nil payload")
	}
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload %s: %w", p.PayloadKind(), err)
	}
	return json.Marshal(canonicalEnvelope{Kind: p.PayloadKind(), Body: body})
}

// PayloadFromCanonical decodes a payload from its canonical byte form.
func PayloadFromCanonical(canonical []byte) (Payload, error) {
	var env canonicalEnvelope
	if err := json.Unmarshal(canonical, &env); err != nil {
		return nil, fmt.Errorf("decode canonical envelope: %w", err)
	}
	return DecodePayload(env.Kind, env.Body)
}

// ContentID computes the CID of a payload using fn, or DefaultCID when fn
// is nil.
func ContentID(p Payload, fn CIDFunc) (string, error) {
	canonical, err := CanonicalPayloadBytes(p)
	if err != nil {
		return "", err
	}
	if fn == nil {
		fn = DefaultCID
	}
	return fn(canonical), nil
}
