package esewa

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/binodtmg/esewa-settlement-service/internal/domain"
)

// Fields that must be covered by signed_field_names for a confirmation to
// be trusted. A validly signed subset that omits any of these would let an
// attacker forge the rest.
var requiredSignedFields = []string{"total_amount", "transaction_uuid", "product_code"}

// Sign builds the canonical "name=value,name=value" string for exactly the
// fields listed in signedFieldNames, in their declared order, and returns
// the base64 HMAC-SHA256 digest under secret.
func Sign(fields map[string]string, signedFieldNames string, secret string) string {
	names := splitFieldNames(signedFieldNames)
	pairs := make([]string, 0, len(names))
	for _, n := range names {
		pairs = append(pairs, n+"="+fields[n])
	}
	raw := strings.Join(pairs, ",")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(raw))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature from the message's own signed_field_names
// and compares it against the supplied one. Returns false, never an error,
// on any malformed input: a field list referencing absent fields, a signed
// set that does not cover the required core fields, or undecodable base64.
//
// Canonicalization always follows the order the message declares; the same
// values signed in a different order are a different signature.
func Verify(msg *domain.PaymentMessage, secret string) bool {
	if msg == nil || msg.Signature == "" || msg.SignedFieldNames == "" {
		return false
	}

	names := splitFieldNames(msg.SignedFieldNames)
	if len(names) == 0 {
		return false
	}

	covered := make(map[string]bool, len(names))
	fields := make(map[string]string, len(names))
	for _, n := range names {
		v, ok := msg.Field(n)
		if !ok {
			return false
		}
		covered[n] = true
		fields[n] = v
	}
	for _, req := range requiredSignedFields {
		if !covered[req] {
			return false
		}
	}

	want, err := base64.StdEncoding.DecodeString(msg.Signature)
	if err != nil {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(Sign(fields, msg.SignedFieldNames, secret))
	if err != nil {
		return false
	}
	return hmac.Equal(want, got)
}

func splitFieldNames(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if n := strings.TrimSpace(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}
