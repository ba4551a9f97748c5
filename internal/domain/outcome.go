package domain

// OutcomeCode classifies the result of a reconciliation attempt.
type OutcomeCode string

const (
	SettledCompleted OutcomeCode = "SETTLED_COMPLETED"
	SettledFailed    OutcomeCode = "SETTLED_FAILED"
	AlreadySettled   OutcomeCode = "ALREADY_SETTLED"
	Rejected         OutcomeCode = "REJECTED"
	StockShortfall   OutcomeCode = "STOCK_SHORTFALL"
)

// RejectReason is internal detail. It is logged and recorded but never
// returned verbatim to the gateway-facing client.
type RejectReason string

const (
	ReasonBadSignature       RejectReason = "BAD_SIGNATURE"
	ReasonUnknownTransaction RejectReason = "UNKNOWN_TRANSACTION"
	ReasonAmountMismatch     RejectReason = "AMOUNT_MISMATCH"
	ReasonExpired            RejectReason = "EXPIRED"
)

type Outcome struct {
	Code        OutcomeCode
	Reason      RejectReason
	OrderStatus OrderStatus
}

func OutcomeRejected(reason RejectReason, status OrderStatus) Outcome {
	return Outcome{Code: Rejected, Reason: reason, OrderStatus: status}
}
