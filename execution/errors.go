package execution

import (
	"errors"
	"fmt"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/venue"
)

// ErrorCode classifies a failed trade so callers never parse message text.
type ErrorCode string

const (
	CodeVenueUnavailable ErrorCode = "VENUE_UNAVAILABLE"
	CodeNoRouteFound     ErrorCode = "NO_ROUTE_FOUND"
	CodeSlippageExceeded ErrorCode = "SLIPPAGE_EXCEEDED"
	CodeFallbackDisabled ErrorCode = "FALLBACK_DISABLED"
	CodeBothVenuesFailed ErrorCode = "BOTH_VENUES_FAILED"
	CodeKillSwitchActive ErrorCode = "KILL_SWITCH_ACTIVE"
	CodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
)

// TradingError is the typed failure returned by the router and trade service.
//
// Reason holds the underlying venue classification (NoRouteFound,
// SlippageExceeded or VenueUnavailable) for the composite codes
// FallbackDisabled and BothVenuesFailed; for other codes it equals Code.
type TradingError struct {
	Code    ErrorCode
	Reason  ErrorCode
	Venue   string
	Message string
	Cause   error

	// PrimaryCause is set when the fallback also failed.
	PrimaryCause error
}

func (e *TradingError) Error() string {
	msg := string(e.Code)
	if e.Venue != "" {
		msg += " [" + e.Venue + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *TradingError) Unwrap() error { return e.Cause }

// UserMessage is the fixed human-readable text for the error code.
func (e *TradingError) UserMessage() string {
	switch e.Code {
	case CodeNoRouteFound:
		return "No route found: not enough liquidity for this swap."
	case CodeSlippageExceeded:
		return "Slippage exceeded: price moved beyond your tolerance. Try a higher slippage."
	case CodeVenueUnavailable:
		return "Swap venue unavailable. Please try again shortly."
	case CodeBothVenuesFailed:
		return fmt.Sprintf("Swap failed on both venues (%s).", reasonText(e.Reason))
	case CodeFallbackDisabled:
		return fmt.Sprintf("Swap failed on the primary venue (%s) and fallback is disabled.", reasonText(e.Reason))
	case CodeKillSwitchActive:
		return "Trading halted: the kill switch is active. Exits remain available."
	case CodeInvalidRequest:
		return "Invalid trade request: " + e.Message
	default:
		return "Swap failed."
	}
}

func reasonText(code ErrorCode) string {
	switch code {
	case CodeNoRouteFound:
		return "no route/liquidity"
	case CodeSlippageExceeded:
		return "slippage exceeded"
	default:
		return "venue unavailable"
	}
}

// CodeOf returns the code of a TradingError, or "" for any other error.
func CodeOf(err error) ErrorCode {
	var te *TradingError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

func invalid(format string, args ...any) *TradingError {
	return &TradingError{Code: CodeInvalidRequest, Reason: CodeInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// codeForVenue maps a venue error kind onto a trading error code.
func codeForVenue(err error) ErrorCode {
	switch venue.KindOf(err) {
	case venue.KindNoRoute:
		return CodeNoRouteFound
	case venue.KindSlippage:
		return CodeSlippageExceeded
	default:
		return CodeVenueUnavailable
	}
}
