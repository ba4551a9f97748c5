package esewa

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/binodtmg/esewa-settlement-service/internal/domain"
)

// Validation error kinds. Callers branch with errors.Is; the HTTP layer
// maps all of them to the same generic client message.
var (
	ErrMalformedEncoding = errors.New("malformed callback encoding")
	ErrMissingField      = errors.New("missing required field")
	ErrInvalidStatus     = errors.New("invalid gateway status")
	ErrMalformedAmount   = errors.New("malformed amount")
)

// DecodeCallback turns the base64 `data` query parameter of an eSewa
// redirect into a structurally valid PaymentMessage. It checks shape only;
// signature verification is the codec's job.
func DecodeCallback(rawBase64 string) (*domain.PaymentMessage, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(rawBase64))
	if err != nil {
		// redirect payloads occasionally arrive URL-safe encoded
		raw, err = base64.URLEncoding.DecodeString(strings.TrimSpace(rawBase64))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
		}
	}

	var msg domain.PaymentMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
	}
	if err := ValidateMessage(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ValidateMessage checks required-field presence, status vocabulary and
// amount shape on an already-decoded message (the webhook path posts the
// raw JSON fields instead of the base64 blob).
func ValidateMessage(msg *domain.PaymentMessage) error {
	required := map[string]string{
		"transaction_uuid":   msg.TransactionUUID,
		"status":             string(msg.Status),
		"total_amount":       msg.TotalAmount,
		"signature":          msg.Signature,
		"signed_field_names": msg.SignedFieldNames,
	}
	for name, v := range required {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, name)
		}
	}

	msg.Status = domain.GatewayStatus(strings.ToUpper(strings.TrimSpace(string(msg.Status))))
	if !domain.KnownGatewayStatus(msg.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, msg.Status)
	}

	paisa, err := ParseAmount(msg.TotalAmount)
	if err != nil {
		return err
	}
	msg.AmountPaisa = paisa
	return nil
}

// ParseAmount converts a gateway amount string to integer paisa. eSewa
// formats amounts with optional comma grouping and up to two decimals
// ("1000", "1,000.0", "1000.50"). Anything else is malformed input, not a
// mismatch.
func ParseAmount(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrMalformedAmount)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" || len(frac) > 2 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	var paisa int64
	for _, part := range []string{whole, frac} {
		for _, c := range part {
			if c < '0' || c > '9' {
				return 0, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
			}
			paisa = paisa*10 + int64(c-'0')
			if paisa < 0 {
				return 0, fmt.Errorf("%w: overflow", ErrMalformedAmount)
			}
		}
	}
	return paisa, nil
}
