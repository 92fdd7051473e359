package failover

import "errors"

// Classification decides whether another credential is worth trying.
type Classification int

const (
	Fatal Classification = iota
	Recoverable
)

func (c Classification) String() string {
	if c == Recoverable {
		return "recoverable"
	}
	return "fatal"
}

// Signal is the status marker a gateway attaches to a failed call.
type Signal string

const (
	SignalRateLimited    Signal = "rate_limited"
	SignalUnavailable    Signal = "service_unavailable"
	SignalUnauthorized   Signal = "unauthorized"
	SignalNotFound       Signal = "not_found"
	SignalQuotaExceeded  Signal = "quota_exceeded"
	SignalSafetyBlocked  Signal = "safety_blocked"
	SignalInvalidRequest Signal = "invalid_request"
	SignalEmptyResponse  Signal = "empty_response"
	SignalUnknown        Signal = "unknown"
)

// Classify maps a signal to its classification. Only credential-shaped failures are
// recoverable; everything else describes the request itself.
func Classify(s Signal) Classification {
	switch s {
	case SignalRateLimited, SignalUnavailable, SignalUnauthorized, SignalNotFound, SignalQuotaExceeded:
		return Recoverable
	default:
		return Fatal
	}
}

// SignalError is implemented by errors that carry a gateway signal.
type SignalError interface {
	error
	Signal() Signal
}

// SignalOf returns the signal carried by err's chain, or SignalUnknown.
func SignalOf(err error) Signal {
	var se SignalError
	if errors.As(err, &se) {
		return se.Signal()
	}
	return SignalUnknown
}

// ClassifyError classifies err by the signal set at the gateway boundary. Errors without a
// signal are fatal.
func ClassifyError(err error) Classification {
	if err == nil {
		return Fatal
	}
	return Classify(SignalOf(err))
}
