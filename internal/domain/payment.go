package domain

// GatewayStatus is eSewa's own status vocabulary, as reported both in the
// redirect payload and by the transaction status API.
type GatewayStatus string

const (
	GatewayComplete      GatewayStatus = "COMPLETE"
	GatewayPending       GatewayStatus = "PENDING"
	GatewayFailed        GatewayStatus = "FAILED"
	GatewayCanceled      GatewayStatus = "CANCELED"
	GatewayAmbiguous     GatewayStatus = "AMBIGUOUS"
	GatewayNotFound      GatewayStatus = "NOT_FOUND"
	GatewayFullRefund    GatewayStatus = "FULL_REFUND"
	GatewayPartialRefund GatewayStatus = "PARTIAL_REFUND"
)

// KnownGatewayStatus reports whether s is part of the documented vocabulary.
// Unknown statuses must never be treated as success.
func KnownGatewayStatus(s GatewayStatus) bool {
	switch s {
	case GatewayComplete, GatewayPending, GatewayFailed, GatewayCanceled,
		GatewayAmbiguous, GatewayNotFound, GatewayFullRefund, GatewayPartialRefund:
		return true
	}
	return false
}

// PaymentMessage is the decoded confirmation callback. Untrusted until the
// signature is verified against the merchant secret.
type PaymentMessage struct {
	TransactionCode  string        `json:"transaction_code"`
	Status           GatewayStatus `json:"status"`
	TotalAmount      string        `json:"total_amount"`
	TransactionUUID  string        `json:"transaction_uuid"`
	ProductCode      string        `json:"product_code"`
	SignedFieldNames string        `json:"signed_field_names"`
	Signature        string        `json:"signature"`

	// AmountPaisa is TotalAmount normalized to integer paisa by the
	// validator; business logic never re-parses the string.
	AmountPaisa int64 `json:"-"`
}

// Field returns the raw value of a signable field by its wire name.
func (m *PaymentMessage) Field(name string) (string, bool) {
	switch name {
	case "transaction_code":
		return m.TransactionCode, true
	case "status":
		return string(m.Status), true
	case "total_amount":
		return m.TotalAmount, true
	case "transaction_uuid":
		return m.TransactionUUID, true
	case "product_code":
		return m.ProductCode, true
	case "signed_field_names":
		return m.SignedFieldNames, true
	}
	return "", false
}
