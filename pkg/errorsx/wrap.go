package errorsx

import "errors"

// ReasonedError tags an error with a stable machine-readable reason code
// while keeping the original cause on the unwrap chain.
type ReasonedError struct {
	Reason ReasonCode
	Err    error
}

func (e *ReasonedError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + e.Err.Error()
}

func (e *ReasonedError) Unwrap() error { return e.Err }

// New builds an error that is nothing but a reason code.
func New(reason ReasonCode) error {
	return &ReasonedError{Reason: reason}
}

// Wrap tags err with reason. An error already carrying a code keeps its
// original one; wrapping nil stays nil.
func Wrap(err error, reason ReasonCode) error {
	if err == nil {
		return nil
	}
	var tagged *ReasonedError
	if errors.As(err, &tagged) {
		return err
	}
	return &ReasonedError{Reason: reason, Err: err}
}

// Reason returns the code carried by err, or ReasonUnknown.
func Reason(err error) ReasonCode {
	var tagged *ReasonedError
	if errors.As(err, &tagged) {
		return tagged.Reason
	}
	return ReasonUnknown
}

// HasReason reports whether err carries exactly this reason code.
func HasReason(err error, reason ReasonCode) bool {
	return Reason(err) == reason
}
