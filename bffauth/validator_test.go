package bffauth

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "shared-test-secret"
	testID     = "gateway"
	testNow    = int64(1700000000)
)

func newTestPair(t *testing.T) (*Signer, *Validator) {
	t.Helper()
	signer, err := NewSigner(testID, testSecret)
	require.NoError(t, err)
	signer.nowFn = fixedNow(testNow)

	validator, err := NewValidator(testID, testSecret)
	require.NoError(t, err)
	validator.nowFn = fixedNow(testNow)
	return signer, validator
}

func requireReason(t *testing.T, err error, reason RejectReason) *RejectionError {
	t.Helper()
	require.Error(t, err)
	rej, ok := AsRejection(err)
	require.True(t, ok, "expected a RejectionError, got %v", err)
	require.Equal(t, reason, rej.Reason)
	return rej
}

func TestNewValidator_RequiresSecret(t *testing.T) {
	_, err := NewValidator(testID, "")
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestValidate_RoundTrip(t *testing.T) {
	signer, validator := newTestPair(t)

	for _, tc := range []struct {
		method string
		path   string
		body   []byte
	}{
		{"GET", "users/42/roles", nil},
		{"POST", "users", []byte(`{"email":"ada@example.com","name":"ada"}`)},
		{"DELETE", "roles/7", nil},
		{"PUT", "users/42", []byte(`{"z":true,"a":{"nested":[1,2,3]}}`)},
	} {
		hs, canonicalBody, err := signer.Sign(tc.method, tc.path, tc.body)
		require.NoError(t, err)

		err = validator.Validate(hs, tc.method, "/"+tc.path, canonicalBody)
		assert.NoError(t, err, "%s /%s", tc.method, tc.path)
	}
}

func TestValidate_MissingHeaders(t *testing.T) {
	_, validator := newTestPair(t)

	err := validator.Validate(HeaderSet{}, "GET", "/users", nil)
	rej := requireReason(t, err, ReasonMissingHeaders)
	assert.Equal(t, "header_presence", rej.Stage)

	err = validator.Validate(HeaderSet{ID: testID, Timestamp: "1700000000"}, "GET", "/users", nil)
	requireReason(t, err, ReasonMissingHeaders)
}

func TestValidate_IdentityMismatch(t *testing.T) {
	signer, validator := newTestPair(t)

	hs, _, err := signer.Sign("GET", "users", nil)
	require.NoError(t, err)
	hs.ID = "impostor"

	rej := requireReason(t, validator.Validate(hs, "GET", "/users", nil), ReasonInvalidID)
	assert.Equal(t, "identity", rej.Stage)
	assert.Contains(t, rej.Detail, "impostor")
}

func TestValidate_TimestampWindow(t *testing.T) {
	for _, tc := range []struct {
		name   string
		ageSec int64
		ok     bool
	}{
		{"fresh", 0, true},
		{"299s old", 299, true},
		{"exactly 300s old", 300, true},
		{"301s old", 301, false},
		{"299s in the future", -299, true},
		{"301s in the future", -301, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			signer, validator := newTestPair(t)
			signer.nowFn = fixedNow(testNow - tc.ageSec)

			hs, _, err := signer.Sign("GET", "users", nil)
			require.NoError(t, err)

			err = validator.Validate(hs, "GET", "/users", nil)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				requireReason(t, err, ReasonTimestampExpired)
			}
		})
	}
}

func TestValidate_MalformedTimestamp(t *testing.T) {
	signer, validator := newTestPair(t)

	hs, _, err := signer.Sign("GET", "users", nil)
	require.NoError(t, err)
	hs.Timestamp = "not-a-number"

	requireReason(t, validator.Validate(hs, "GET", "/users", nil), ReasonTimestampExpired)
}

func TestValidate_FlippedSignatureCharacter(t *testing.T) {
	signer, validator := newTestPair(t)

	hs, body, err := signer.Sign("POST", "users", []byte(`{"name":"ada"}`))
	require.NoError(t, err)

	// Flipping any single hex character must invalidate the signature.
	for i := 0; i < len(hs.Signature); i += 7 {
		mutated := hs
		flipped := []byte(hs.Signature)
		if flipped[i] == 'a' {
			flipped[i] = 'b'
		} else {
			flipped[i] = 'a'
		}
		mutated.Signature = string(flipped)

		err := validator.Validate(mutated, "POST", "/users", body)
		requireReason(t, err, ReasonInvalidSignature)
	}
}

func TestValidate_NonHexSignature(t *testing.T) {
	signer, validator := newTestPair(t)

	hs, _, err := signer.Sign("GET", "users", nil)
	require.NoError(t, err)
	hs.Signature = "zz" + hs.Signature[2:]

	requireReason(t, validator.Validate(hs, "GET", "/users", nil), ReasonInvalidSignature)
}

func TestValidate_TamperedBody(t *testing.T) {
	signer, validator := newTestPair(t)

	hs, _, err := signer.Sign("POST", "users", []byte(`{"role":"viewer"}`))
	require.NoError(t, err)

	err = validator.Validate(hs, "POST", "/users", []byte(`{"role":"admin"}`))
	requireReason(t, err, ReasonInvalidSignature)
}

func TestValidate_TamperedMethodAndPath(t *testing.T) {
	signer, validator := newTestPair(t)

	hs, _, err := signer.Sign("GET", "users/42", nil)
	require.NoError(t, err)

	requireReason(t, validator.Validate(hs, "DELETE", "/users/42", nil), ReasonInvalidSignature)
	requireReason(t, validator.Validate(hs, "GET", "/users/43", nil), ReasonInvalidSignature)
}

func TestValidate_WrongSecret(t *testing.T) {
	signer, _ := newTestPair(t)
	other, err := NewValidator(testID, "a-different-secret")
	require.NoError(t, err)
	other.nowFn = fixedNow(testNow)

	hs, _, err := signer.Sign("GET", "users", nil)
	require.NoError(t, err)

	requireReason(t, other.Validate(hs, "GET", "/users", nil), ReasonInvalidSignature)
}

func TestValidate_StageOrderShortCircuits(t *testing.T) {
	_, validator := newTestPair(t)

	// Wrong id AND stale timestamp AND bad signature: the identity stage must
	// win because it runs before freshness and signature.
	hs := HeaderSet{
		ID:        "impostor",
		Timestamp: fmt.Sprintf("%d", testNow-10000),
		Signature: "deadbeef",
	}
	rej := requireReason(t, validator.Validate(hs, "GET", "/users", nil), ReasonInvalidID)
	assert.Equal(t, "identity", rej.Stage)
}

func TestStageNames_Order(t *testing.T) {
	assert.Equal(t,
		[]string{"header_presence", "identity", "timestamp_freshness", "signature"},
		StageNames())
}

func TestValidate_ToleranceMatchesHeaderConstant(t *testing.T) {
	assert.Equal(t, 300*time.Second, TimestampTolerance)
}
