package bffauth

import (
	"errors"
	"fmt"
)

// ErrNoSecret indicates the shared HMAC secret is unset or empty. This is a
// startup-class configuration error, not a per-request condition.
var ErrNoSecret = errors.New("shared HMAC secret is not configured")

// RejectReason classifies an authentication rejection.
type RejectReason string

const (
	ReasonMissingHeaders   RejectReason = "missing_headers"
	ReasonInvalidID        RejectReason = "invalid_bff_id"
	ReasonTimestampExpired RejectReason = "timestamp_expired"
	ReasonInvalidSignature RejectReason = "invalid_signature"
)

// RejectionError carries the stage that failed and forensic detail. The
// detail is for server-side logs only; external callers must receive a
// generic message regardless of the reason.
type RejectionError struct {
	Reason RejectReason
	Stage  string
	Detail string
}

func (e *RejectionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("request rejected at stage %s: %s", e.Stage, e.Reason)
	}
	return fmt.Sprintf("request rejected at stage %s: %s (%s)", e.Stage, e.Reason, e.Detail)
}

// AsRejection unwraps err into a RejectionError if it is one.
func AsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
