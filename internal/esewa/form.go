package esewa

import (
	"fmt"
	"strconv"
)

// Form endpoints (v2 ePay). RC is the sandbox environment.
const (
	FormURLProduction = "https://epay.esewa.com.np/api/epay/main/v2/form"
	FormURLSandbox    = "https://rc-epay.esewa.com.np/api/epay/main/v2/form"
)

// BuildPaymentForm produces the signed field set the storefront posts to
// the eSewa payment page when a checkout begins. Amounts are paisa and
// rendered as rupees with two decimals, matching what the gateway echoes
// back in total_amount. Tax/service/delivery ride inside the total here;
// eSewa still requires them present as "0".
func BuildPaymentForm(transactionUUID string, totalPaisa int64, productCode, secret, successURL, failureURL string) map[string]string {
	total := FormatAmount(totalPaisa)
	signedFields := "total_amount,transaction_uuid,product_code"

	fields := map[string]string{
		"amount":                  total,
		"tax_amount":              "0",
		"total_amount":            total,
		"transaction_uuid":        transactionUUID,
		"product_code":            productCode,
		"product_service_charge":  "0",
		"product_delivery_charge": "0",
		"success_url":             successURL,
		"failure_url":             failureURL,
		"signed_field_names":      signedFields,
	}
	fields["signature"] = Sign(fields, signedFields, secret)
	return fields
}

// FormatAmount renders paisa as a rupee string with two decimals.
func FormatAmount(paisa int64) string {
	return fmt.Sprintf("%s.%02d", strconv.FormatInt(paisa/100, 10), paisa%100)
}
