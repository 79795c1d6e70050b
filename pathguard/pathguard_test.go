package pathguard

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSegments(t *testing.T) {
	tests := []struct {
		name     string
		segments []string
		cause    RejectCause // empty means accepted
	}{
		{"simple route", []string{"users", "42", "roles"}, ""},
		{"underscores and dashes", []string{"auth", "list-providers", "v_2"}, ""},
		{"traversal", []string{"..", "etc"}, CauseTraversal},
		{"single dot", []string{".", "users"}, CauseTraversal},
		{"scheme smuggling", []string{"http:", "", "evil.com"}, CauseForbidden},
		{"embedded absolute url", []string{"https://evil.com"}, CauseAbsoluteURL},
		{"double slash prefix", []string{"//evil.com"}, CauseAbsoluteURL},
		{"space", []string{"a b"}, CauseForbidden},
		{"percent encoding", []string{"%2e%2e"}, CauseForbidden},
		{"empty segment", []string{"users", ""}, CauseMalformed},
		{"no segments", nil, CauseMalformed},
		{"query smuggling", []string{"users?id=1"}, CauseForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSegments(tc.segments)
			if tc.cause == "" {
				assert.NoError(t, err)
				return
			}
			var rej *RejectedError
			require.ErrorAs(t, err, &rej)
			assert.Equal(t, tc.cause, rej.Cause)
		})
	}
}

func TestValidateSegments_ColonSegmentRejected(t *testing.T) {
	// "http:" alone carries no "://" but fails the character allow-list,
	// so the smuggled-scheme route never reaches URL construction.
	var rej *RejectedError
	err := ValidateSegments([]string{"http:", "", "evil.com"})
	require.ErrorAs(t, err, &rej)
}

func TestBuildUpstreamURL(t *testing.T) {
	base, err := url.Parse("http://backend.internal:9000/api")
	require.NoError(t, err)

	u, err := BuildUpstreamURL(base, []string{"users", "42", "roles"})
	require.NoError(t, err)
	assert.Equal(t, "http://backend.internal:9000/api/users/42/roles", u.String())
	assert.Equal(t, "backend.internal:9000", u.Host)
}

func TestBuildUpstreamURL_RejectsBeforeConstruction(t *testing.T) {
	base, err := url.Parse("http://backend.internal:9000")
	require.NoError(t, err)

	_, err = BuildUpstreamURL(base, []string{"..", "etc"})
	var rej *RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, CauseTraversal, rej.Cause)
}
