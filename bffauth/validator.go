package bffauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/panelkit/admin-bff/canonical"
)

// Validator is the receiving-side mirror of the Signer. It re-derives the
// expected signature from the raw request data and compares in constant time.
// Validators are stateless and safe for unlimited concurrent use.
type Validator struct {
	expectedID string
	secret     []byte
	tolerance  time.Duration
	nowFn      func() time.Time
}

// NewValidator fails with ErrNoSecret when the shared secret is unset, so a
// misconfigured upstream refuses to start rather than accepting everything
// signed with an empty key.
func NewValidator(expectedID, secret string) (*Validator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNoSecret
	}
	if expectedID == "" {
		expectedID = DefaultID
	}
	return &Validator{
		expectedID: expectedID,
		secret:     []byte(secret),
		tolerance:  TimestampTolerance,
		nowFn:      time.Now,
	}, nil
}

// inbound is the request data a validation stage operates on.
type inbound struct {
	headers HeaderSet
	method  string
	path    string
	body    []byte
}

// stage is a named validation step. The pipeline runs stages in order and the
// first rejection short-circuits the rest.
type stage struct {
	name  string
	check func(v *Validator, in *inbound) *RejectionError
}

var pipeline = []stage{
	{"header_presence", (*Validator).checkHeaderPresence},
	{"identity", (*Validator).checkIdentity},
	{"timestamp_freshness", (*Validator).checkFreshness},
	{"signature", (*Validator).checkSignature},
}

// StageNames lists the pipeline stages in execution order.
func StageNames() []string {
	names := make([]string, len(pipeline))
	for i, s := range pipeline {
		names[i] = s.name
	}
	return names
}

// Validate runs the request through the validation pipeline. A nil return
// means the request is authentic; otherwise the returned *RejectionError
// names the failing stage. The caller owns translating that into a generic
// external response.
func (v *Validator) Validate(headers HeaderSet, method, path string, body []byte) error {
	in := &inbound{headers: headers, method: method, path: path, body: body}
	for _, s := range pipeline {
		if rej := s.check(v, in); rej != nil {
			rej.Stage = s.name
			return rej
		}
	}
	return nil
}

func (v *Validator) checkHeaderPresence(in *inbound) *RejectionError {
	var missing []string
	if in.headers.ID == "" {
		missing = append(missing, HeaderID)
	}
	if in.headers.Timestamp == "" {
		missing = append(missing, HeaderTimestamp)
	}
	if in.headers.Signature == "" {
		missing = append(missing, HeaderSignature)
	}
	if len(missing) > 0 {
		return &RejectionError{
			Reason: ReasonMissingHeaders,
			Detail: "missing " + strings.Join(missing, ", "),
		}
	}
	return nil
}

func (v *Validator) checkIdentity(in *inbound) *RejectionError {
	if in.headers.ID != v.expectedID {
		return &RejectionError{
			Reason: ReasonInvalidID,
			Detail: fmt.Sprintf("expected id %q, received %q", v.expectedID, in.headers.ID),
		}
	}
	return nil
}

func (v *Validator) checkFreshness(in *inbound) *RejectionError {
	ts, err := strconv.ParseInt(in.headers.Timestamp, 10, 64)
	if err != nil {
		return &RejectionError{
			Reason: ReasonTimestampExpired,
			Detail: fmt.Sprintf("malformed timestamp %q", in.headers.Timestamp),
		}
	}

	now := v.nowFn().Unix()
	skew := now - ts
	if skew < 0 {
		skew = -skew
	}
	// Boundary is inclusive: a request exactly at the tolerance is accepted.
	if skew > int64(v.tolerance/time.Second) {
		return &RejectionError{
			Reason: ReasonTimestampExpired,
			Detail: fmt.Sprintf("timestamp %d outside ±%s window (now %d)", ts, v.tolerance, now),
		}
	}
	return nil
}

func (v *Validator) checkSignature(in *inbound) *RejectionError {
	// Mirror the forwarder's body handling: a non-JSON or absent body hashes
	// as "no body". Canonicalization is idempotent, so re-encoding the
	// already-canonical received bytes reproduces the signed digest.
	var canonicalBody []byte
	if len(in.body) > 0 {
		if cb, err := canonical.Recode(in.body); err == nil {
			canonicalBody = cb
		}
	}

	payload := signaturePayload(in.headers.Timestamp, in.method, in.path, bodyDigest(canonicalBody))
	expected := computeMAC(v.secret, payload)

	received, err := hex.DecodeString(in.headers.Signature)
	if err != nil {
		return &RejectionError{
			Reason: ReasonInvalidSignature,
			Detail: "signature is not valid hex",
		}
	}
	if !hmac.Equal(received, expected) {
		return &RejectionError{
			Reason: ReasonInvalidSignature,
			Detail: fmt.Sprintf("expected %s, received %s", hex.EncodeToString(expected), in.headers.Signature),
		}
	}
	return nil
}

func computeMAC(secret []byte, payload string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
