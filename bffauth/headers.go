package bffauth

import (
	"net/http"
	"time"
)

const (
	// HeaderID carries the identifier of the signing party.
	HeaderID = "X-BFF-Id"

	// HeaderTimestamp carries whole seconds since epoch as a decimal string.
	HeaderTimestamp = "X-BFF-Timestamp"

	// HeaderSignature carries the lowercase hex HMAC-SHA256 signature (64 chars).
	HeaderSignature = "X-BFF-Signature"

	// TimestampTolerance is the accepted clock skew in both directions. A
	// request whose timestamp is exactly at the boundary is still accepted.
	TimestampTolerance = 300 * time.Second

	// MaxBodyForSignature caps the body size the validator will hash (1 MiB).
	MaxBodyForSignature = 1 << 20
)

// DefaultID is the signing-party identifier used when none is configured.
const DefaultID = "admin-bff"

// HeaderSet is the per-request authentication header triple. It is created
// fresh for every outbound request and never reused.
type HeaderSet struct {
	ID        string
	Timestamp string
	Signature string
}

// Apply sets the three protocol headers on an outbound request header map.
func (h HeaderSet) Apply(header http.Header) {
	header.Set(HeaderID, h.ID)
	header.Set(HeaderTimestamp, h.Timestamp)
	header.Set(HeaderSignature, h.Signature)
}

// HeaderSetFromRequest extracts the protocol headers from an inbound request.
// Missing headers come back as empty strings; the validator rejects those.
func HeaderSetFromRequest(r *http.Request) HeaderSet {
	return HeaderSet{
		ID:        r.Header.Get(HeaderID),
		Timestamp: r.Header.Get(HeaderTimestamp),
		Signature: r.Header.Get(HeaderSignature),
	}
}
