package errno

import "errors"

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// WithMessage returns a copy carrying a more specific message under the same code.
func (e Errno) WithMessage(msg string) Errno {
	return Errno{Code: e.Code, Message: msg}
}

// Is matches on the code only, so errors.Is(err, ErrProcessing) holds for
// wrapped errors and for copies made with WithMessage.
func (e Errno) Is(target error) bool {
	var t Errno
	switch typed := target.(type) {
	case Errno:
		t = typed
	case *Errno:
		if typed == nil {
			return false
		}
		t = *typed
	default:
		return false
	}
	return e.Code == t.Code
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	var typed Errno
	if errors.As(err, &typed) {
		return typed.Code, typed.Message
	}
	var ptr *Errno
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code, ptr.Message
	}
	return InternalServerError.Code, err.Error()
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrForbidden        = Errno{Code: 10003, Message: "Forbidden"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"}
)

// Business Errors (20000+)
var (
	ErrUserNotFound   = Errno{Code: 20101, Message: "User not found"}
	ErrInvalidAddress = Errno{Code: 20201, Message: "Invalid address"}
	ErrInvalidAmount  = Errno{Code: 20202, Message: "Invalid amount"}

	ErrInsufficientBalance = Errno{Code: 20203, Message: "Insufficient balance"}
	ErrLedgerBusy          = Errno{Code: 20204, Message: "Ledger is busy, retry later"}
	ErrUnsupportedChain    = Errno{Code: 20205, Message: "Unsupported chain"}
	ErrInvalidReason       = Errno{Code: 20206, Message: "Reason not allowed for manual entries"}
)

// Reconciliation Errors (30000+)
var (
	ErrBadSignature        = Errno{Code: 30001, Message: "Bad signature"}
	ErrProcessing          = Errno{Code: 30002, Message: "Processing error"}
	ErrProviderUnavailable = Errno{Code: 30003, Message: "Payment provider unavailable"}
	ErrPaymentProvider     = Errno{Code: 30004, Message: "Payment provider error"}
	ErrRateUnavailable     = Errno{Code: 30005, Message: "Conversion rate unavailable"}
	ErrInvalidPayload      = Errno{Code: 30006, Message: "Invalid webhook payload"}
)
