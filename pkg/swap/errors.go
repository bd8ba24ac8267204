package swap

import (
	"errors"
	"strings"

	"walletkit/pkg/client"
	"walletkit/pkg/lifecycle"
)

// Error codes surfaced through lifecycle error statuses. The two-stage
// codes identify where in the pipeline a failure happened.
const (
	// CodeQuoteError marks failures while fetching or applying quotes.
	CodeQuoteError = "TmSPc01"
	// CodeSubmitError marks failures while building or submitting.
	CodeSubmitError = "TmSPc02"
	// CodeUncaught is the fallback for errors carrying a code the
	// normalization table does not recognize.
	CodeUncaught = "UNCAUGHT_SWAP_ERROR"
)

const (
	userRejectedShortMessage = "User rejected the request."

	// MessageRequestDenied is shown when the wallet owner declines.
	MessageRequestDenied = "Request denied."
	// MessageGeneric is shown for every other failure.
	MessageGeneric = "Something went wrong. Please try again."
)

// errorCodeTable folds upstream API error codes onto the two pipeline
// stages. Unknown codes fall through to CodeUncaught.
var errorCodeTable = map[string]string{
	"SWAP_QUOTE_ERROR":               CodeQuoteError,
	"SWAP_QUOTE_LOW_LIQUIDITY_ERROR": CodeQuoteError,
	"SWAP_BUILD_ERROR":               CodeSubmitError,
	"SWAP_BALANCE_ERROR":             CodeSubmitError,
	"SWAP_PENDING_ERROR":             CodeSubmitError,
}

// NormalizeErrorCode maps an upstream error code into the provider's code
// space. Codes already in that space pass through unchanged.
func NormalizeErrorCode(code string) string {
	if code == CodeQuoteError || code == CodeSubmitError {
		return code
	}
	if mapped, ok := errorCodeTable[code]; ok {
		return mapped
	}
	return CodeUncaught
}

// IsUserRejection reports whether the error is the wallet owner declining
// the signing prompt.
func IsUserRejection(err error) bool {
	return err != nil && strings.Contains(err.Error(), userRejectedShortMessage)
}

// NewSubmitError converts a build/submit failure into an error status.
// Error-shaped API payloads keep their own code (normalized), rejections
// get the friendly denial message, everything else the generic one. The
// buy flow shares this code space.
func NewSubmitError(err error) *lifecycle.Error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = MessageGeneric
		}
		return &lifecycle.Error{
			Code:    NormalizeErrorCode(apiErr.Code),
			Err:     apiErr.Err,
			Message: message,
		}
	}
	if IsUserRejection(err) {
		return &lifecycle.Error{
			Code:    CodeSubmitError,
			Err:     err.Error(),
			Message: MessageRequestDenied,
		}
	}
	return &lifecycle.Error{
		Code:    CodeSubmitError,
		Err:     err.Error(),
		Message: MessageGeneric,
	}
}
