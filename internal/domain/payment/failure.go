package payment

import "errors"

var (
	ErrNetworkFailure  = errors.New("payment: network failure")
	ErrPaymentRejected = errors.New("payment: payment rejected")
	ErrRefundRejected  = errors.New("payment: refund rejected")

	ErrInvalidInput    = errors.New("payment: invalid input")
	ErrMalformedResult = errors.New("payment: malformed gateway result")
	ErrUnknownStatus   = errors.New("payment: unknown transaction status")
)

// FailureKind classifies a failure signalled by a gateway.
type FailureKind string

const (
	KindNetwork         FailureKind = "network_failure"
	KindPaymentRejected FailureKind = "payment_rejected"
	KindRefundRejected  FailureKind = "refund_rejected"
)

// Failure is raised by a gateway instead of returning a result.
// Message is the human-readable reason surfaced to the outcome log.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

// Is matches the sentinel of the failure's kind.
func (f *Failure) Is(target error) bool {
	return target == f.Kind.sentinel()
}

func (k FailureKind) sentinel() error {
	switch k {
	case KindNetwork:
		return ErrNetworkFailure
	case KindPaymentRejected:
		return ErrPaymentRejected
	case KindRefundRejected:
		return ErrRefundRejected
	default:
		return nil
	}
}

func NetworkFailure(message string) error {
	return &Failure{Kind: KindNetwork, Message: message}
}

func PaymentRejected(message string) error {
	return &Failure{Kind: KindPaymentRejected, Message: message}
}

func RefundRejected(message string) error {
	return &Failure{Kind: KindRefundRejected, Message: message}
}

// FailureMessage extracts the reason carried by a Failure anywhere in err's chain.
func FailureMessage(err error) (string, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Message, true
	}
	return "", false
}

// InputError reports a caller-supplied value the facade refuses before contacting a gateway.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return "payment: invalid " + e.Field + ": " + e.Message
}

func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }

func InvalidInput(field, message string) error {
	return &InputError{Field: field, Message: message}
}
