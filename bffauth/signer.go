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

// Signer produces the authentication header set for outbound requests. It is
// stateless apart from the configured identity and secret and is safe for
// unlimited concurrent use.
type Signer struct {
	id     string
	secret []byte
	nowFn  func() time.Time
}

// NewSigner validates the configuration eagerly: an empty secret fails with
// ErrNoSecret so the process refuses to start rather than forwarding unsigned.
func NewSigner(id, secret string) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNoSecret
	}
	if id == "" {
		id = DefaultID
	}
	return &Signer{
		id:     id,
		secret: []byte(secret),
		nowFn:  time.Now,
	}, nil
}

// ID returns the configured signing-party identifier.
func (s *Signer) ID() string {
	return s.id
}

// Sign builds the header set for a request and, when a body is present,
// returns the canonical JSON bytes that must be transmitted as the actual
// request body. The signature covers only the canonical encoding, so sending
// the original, differently-ordered body would invalidate it.
//
// The path must not contain a query string; query parameters travel out of
// band and are excluded from the signature.
func (s *Signer) Sign(method, path string, body []byte) (HeaderSet, []byte, error) {
	var canonicalBody []byte
	if len(body) > 0 {
		cb, err := canonical.Recode(body)
		if err != nil {
			return HeaderSet{}, nil, fmt.Errorf("could not canonicalize request body: %w", err)
		}
		canonicalBody = cb
	}

	timestamp := strconv.FormatInt(s.nowFn().Unix(), 10)
	payload := signaturePayload(timestamp, method, path, bodyDigest(canonicalBody))

	return HeaderSet{
		ID:        s.id,
		Timestamp: timestamp,
		Signature: computeSignature(s.secret, payload),
	}, canonicalBody, nil
}

// signaturePayload assembles the exact byte sequence fed to HMAC:
// "{timestamp}:{method}:{path}:{bodyHash}", method uppercase, path without
// its leading slash.
func signaturePayload(timestamp, method, path, bodyHash string) string {
	return timestamp + ":" + strings.ToUpper(method) + ":" + strings.TrimPrefix(path, "/") + ":" + bodyHash
}

// bodyDigest returns the lowercase hex SHA-256 of the canonical body bytes,
// or the empty string when there is no body.
func bodyDigest(canonicalBody []byte) string {
	if len(canonicalBody) == 0 {
		return ""
	}
	sum := sha256.Sum256(canonicalBody)
	return hex.EncodeToString(sum[:])
}

func computeSignature(secret []byte, payload string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
