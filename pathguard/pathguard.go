// Package pathguard validates inbound route segments before any upstream URL
// is constructed. It is the gateway's defense against path traversal and SSRF:
// segments are checked against a strict character allow-list, and the final
// URL's host is re-checked against the configured upstream host as a last line
// of defense against parsing ambiguity.
package pathguard

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// RejectCause classifies why a path was refused.
type RejectCause string

const (
	CauseMalformed   RejectCause = "malformed path"
	CauseTraversal   RejectCause = "traversal attempt"
	CauseAbsoluteURL RejectCause = "absolute URL / SSRF attempt"
	CauseForbidden   RejectCause = "forbidden characters"
	CauseHostEscape  RejectCause = "upstream host mismatch"
)

// RejectedError reports a refused path. The cause and segment are for
// server-side logs; callers must not receive them verbatim.
type RejectedError struct {
	Cause   RejectCause
	Segment string
}

func (e *RejectedError) Error() string {
	if e.Segment == "" {
		return fmt.Sprintf("path rejected: %s", e.Cause)
	}
	return fmt.Sprintf("path rejected: %s (segment %q)", e.Cause, e.Segment)
}

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateSegments checks every segment of an inbound route. The checks run
// from cheapest to most general; the first violation is returned.
func ValidateSegments(segments []string) error {
	if len(segments) == 0 {
		return &RejectedError{Cause: CauseMalformed}
	}
	for _, seg := range segments {
		switch {
		case seg == "":
			return &RejectedError{Cause: CauseMalformed, Segment: seg}
		case seg == "." || seg == "..":
			return &RejectedError{Cause: CauseTraversal, Segment: seg}
		case strings.Contains(seg, "://") || strings.HasPrefix(seg, "//"):
			return &RejectedError{Cause: CauseAbsoluteURL, Segment: seg}
		case !segmentPattern.MatchString(seg):
			return &RejectedError{Cause: CauseForbidden, Segment: seg}
		}
	}
	return nil
}

// BuildUpstreamURL joins validated segments onto the fixed upstream base and
// re-checks that the result still targets the upstream host. The re-check
// catches any residual parsing ambiguity that slipped past segment
// validation.
func BuildUpstreamURL(base *url.URL, segments []string) (*url.URL, error) {
	if err := ValidateSegments(segments); err != nil {
		return nil, err
	}

	joined := base.JoinPath(segments...)
	if joined.Host != base.Host || joined.Scheme != base.Scheme {
		return nil, &RejectedError{Cause: CauseHostEscape, Segment: joined.Host}
	}
	return joined, nil
}
