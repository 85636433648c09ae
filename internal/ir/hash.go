package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix
// leaves room to change the hashed shape later.
const (
	DomainEvent    = "achievements/event/v1"
	DomainDecision = "achievements/decision/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventID computes the identity of a published event from its type and
// canonical payload. Redelivering the same workout yields the same id,
// which lets the outbox and downstream consumers deduplicate.
func EventID(eventType string, payload IRObject) (string, error) {
	canonical, err := MarshalCanonical(IRObject{
		"type":    IRString(eventType),
		"payload": payload,
	})
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// DecisionHash digests the set of decisions taken for one workout. It is
// logged with every commit so two runs over the same data can be compared.
func DecisionHash(decisions IRArray) (string, error) {
	canonical, err := MarshalCanonical(decisions)
	if err != nil {
		return "", fmt.Errorf("DecisionHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDecision, canonical), nil
}

// MustEventID is like EventID but panics on error.
// Use only in tests or when the payload is known to be valid.
func MustEventID(eventType string, payload IRObject) string {
	id, err := EventID(eventType, payload)
	if err != nil {
		panic(err)
	}
	return id
}
