package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainFiring = "easyevents/firing/v1"
	DomainRules  = "easyevents/rules/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// FiringID computes the content-addressed ID of a recorded firing.
// argsJSON must already be canonical (see MarshalArgs).
func FiringID(session string, seq int64, event string, argsJSON []byte) (string, error) {
	obj := Object{
		"session": String(session),
		"seq":     Int(seq),
		"event":   String(event),
		"args":    String(argsJSON),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("FiringID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainFiring, canonical), nil
}

// RulesHash fingerprints a rule set by raw event, remap and fire order.
// Guards are identified by their condition name only.
func RulesHash(rules []ConversionRule) (string, error) {
	arr := make(Array, 0, len(rules))
	for _, r := range rules {
		remaps := make(Array, 0, len(r.Remaps))
		for _, m := range r.Remaps {
			remaps = append(remaps, Object{
				"source_field": String(m.SourceField),
				"target_field": String(m.TargetField),
			})
		}
		fires := make(Array, 0, len(r.Fires))
		for _, f := range r.Fires {
			fires = append(fires, Object{
				"target_event": String(f.TargetEvent),
				"entity_field": String(f.EntityField),
				"condition":    String(f.Condition),
			})
		}
		arr = append(arr, Object{
			"raw_event": String(r.RawEvent),
			"remaps":    remaps,
			"fires":     fires,
		})
	}

	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("RulesHash: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainRules, canonical), nil
}
