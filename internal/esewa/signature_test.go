package esewa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binodtmg/esewa-settlement-service/internal/domain"
)

const testSecret = "8gBm/:&EnhH.1/q"

func signedMessage(t *testing.T, amount, uid, product string) *domain.PaymentMessage {
	t.Helper()
	msg := &domain.PaymentMessage{
		TransactionCode:  "000ABC1",
		Status:           domain.GatewayComplete,
		TotalAmount:      amount,
		TransactionUUID:  uid,
		ProductCode:      product,
		SignedFieldNames: "total_amount,transaction_uuid,product_code",
	}
	fields := map[string]string{
		"total_amount":     amount,
		"transaction_uuid": uid,
		"product_code":     product,
	}
	msg.Signature = Sign(fields, msg.SignedFieldNames, testSecret)
	return msg
}

func TestSignVerifyRoundTrip(t *testing.T) {
	msg := signedMessage(t, "1000.00", "tx-240101-001", "EPAYTEST")
	require.True(t, Verify(msg, testSecret))
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	msg := signedMessage(t, "1000.00", "tx-240101-001", "EPAYTEST")

	sig := []byte(msg.Signature)
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	msg.Signature = string(sig)

	assert.False(t, Verify(msg, testSecret))
}

func TestVerifyRejectsTamperedValue(t *testing.T) {
	msg := signedMessage(t, "1000.00", "tx-240101-001", "EPAYTEST")
	msg.TotalAmount = "1.00"
	assert.False(t, Verify(msg, testSecret))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	msg := signedMessage(t, "1000.00", "tx-240101-001", "EPAYTEST")
	assert.False(t, Verify(msg, "some-other-secret"))
}

func TestFieldOrderIsPartOfTheContract(t *testing.T) {
	fields := map[string]string{
		"total_amount":     "100.00",
		"transaction_uuid": "tx-1",
		"product_code":     "EPAYTEST",
	}
	a := Sign(fields, "total_amount,transaction_uuid,product_code", testSecret)
	b := Sign(fields, "transaction_uuid,total_amount,product_code", testSecret)
	assert.NotEqual(t, a, b)
}

func TestVerifyFollowsDeclaredOrder(t *testing.T) {
	// same values signed under a reordered declaration still verify,
	// because canonicalization follows the message's own declaration
	msg := signedMessage(t, "1000.00", "tx-1", "EPAYTEST")
	msg.SignedFieldNames = "product_code,total_amount,transaction_uuid"
	fields := map[string]string{
		"total_amount":     msg.TotalAmount,
		"transaction_uuid": msg.TransactionUUID,
		"product_code":     msg.ProductCode,
	}
	msg.Signature = Sign(fields, msg.SignedFieldNames, testSecret)
	assert.True(t, Verify(msg, testSecret))
}

func TestVerifyRejectsSignedSubset(t *testing.T) {
	// a validly signed message that omits a core field from the signed set
	// must be rejected, otherwise the omitted fields are forgeable
	tests := []struct {
		name   string
		signed string
	}{
		{"missing total_amount", "transaction_uuid,product_code"},
		{"missing transaction_uuid", "total_amount,product_code"},
		{"missing product_code", "total_amount,transaction_uuid"},
		{"single field", "transaction_uuid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := signedMessage(t, "1000.00", "tx-1", "EPAYTEST")
			msg.SignedFieldNames = tt.signed
			fields := map[string]string{
				"total_amount":     msg.TotalAmount,
				"transaction_uuid": msg.TransactionUUID,
				"product_code":     msg.ProductCode,
			}
			msg.Signature = Sign(fields, tt.signed, testSecret)
			assert.False(t, Verify(msg, testSecret))
		})
	}
}

func TestVerifyRejectsUnknownSignedField(t *testing.T) {
	msg := signedMessage(t, "1000.00", "tx-1", "EPAYTEST")
	msg.SignedFieldNames = "total_amount,transaction_uuid,product_code,discount"
	assert.False(t, Verify(msg, testSecret))
}

func TestVerifyMalformedInputNeverPanics(t *testing.T) {
	assert.False(t, Verify(nil, testSecret))
	assert.False(t, Verify(&domain.PaymentMessage{}, testSecret))

	msg := signedMessage(t, "1000.00", "tx-1", "EPAYTEST")
	msg.Signature = "%%%not-base64%%%"
	assert.False(t, Verify(msg, testSecret))

	msg = signedMessage(t, "1000.00", "tx-1", "EPAYTEST")
	msg.SignedFieldNames = ",,,"
	assert.False(t, Verify(msg, testSecret))
}
