package bffauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func TestNewSigner_RequiresSecret(t *testing.T) {
	_, err := NewSigner("gateway", "")
	assert.ErrorIs(t, err, ErrNoSecret)

	_, err = NewSigner("gateway", "   ")
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestNewSigner_DefaultsID(t *testing.T) {
	s, err := NewSigner("", "secret")
	require.NoError(t, err)
	assert.Equal(t, DefaultID, s.ID())
}

func TestSign_NoBody(t *testing.T) {
	s, err := NewSigner("gateway", "topsecret")
	require.NoError(t, err)
	s.nowFn = fixedNow(1700000000)

	hs, body, err := s.Sign("get", "users/42", nil)
	require.NoError(t, err)
	assert.Nil(t, body)
	assert.Equal(t, "gateway", hs.ID)
	assert.Equal(t, "1700000000", hs.Timestamp)

	// Method uppercased, empty body hash, colon-delimited.
	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write([]byte("1700000000:GET:users/42:"))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), hs.Signature)
	assert.Len(t, hs.Signature, 64)
}

func TestSign_BodyIsCanonicalized(t *testing.T) {
	s, err := NewSigner("gateway", "topsecret")
	require.NoError(t, err)
	s.nowFn = fixedNow(1700000000)

	hs, body, err := s.Sign("POST", "users", []byte(`{"b": 1, "a": [2, 1]}`))
	require.NoError(t, err)

	// The transmitted body must be the canonical encoding, not the original.
	require.Equal(t, `{"a":[2,1],"b":1}`, string(body))

	sum := sha256.Sum256(body)
	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write([]byte("1700000000:POST:users:" + hex.EncodeToString(sum[:])))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), hs.Signature)
}

func TestSign_StripsLeadingSlash(t *testing.T) {
	s, err := NewSigner("gateway", "topsecret")
	require.NoError(t, err)
	s.nowFn = fixedNow(42)

	withSlash, _, err := s.Sign("GET", "/users/42", nil)
	require.NoError(t, err)
	withoutSlash, _, err := s.Sign("GET", "users/42", nil)
	require.NoError(t, err)

	assert.Equal(t, withoutSlash.Signature, withSlash.Signature)
}

func TestSign_InvalidBodyFails(t *testing.T) {
	s, err := NewSigner("gateway", "topsecret")
	require.NoError(t, err)

	_, _, err = s.Sign("POST", "users", []byte(`{not json`))
	assert.Error(t, err)
}

func TestSign_PermutedBodiesProduceSameSignature(t *testing.T) {
	s, err := NewSigner("gateway", "topsecret")
	require.NoError(t, err)
	s.nowFn = fixedNow(1700000000)

	first, firstBody, err := s.Sign("PUT", "users/42", []byte(`{"name":"ada","roles":["admin","ops"]}`))
	require.NoError(t, err)
	second, secondBody, err := s.Sign("PUT", "users/42", []byte(`{"roles":["admin","ops"],"name":"ada"}`))
	require.NoError(t, err)

	assert.Equal(t, first.Signature, second.Signature)
	assert.Equal(t, string(firstBody), string(secondBody))
}
