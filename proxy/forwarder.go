package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/panelkit/admin-bff/bffauth"
	"github.com/panelkit/admin-bff/metrics"
	"github.com/panelkit/admin-bff/pathguard"
)

const (
	// DefaultForwardTimeout bounds the upstream call.
	DefaultForwardTimeout = 30 * time.Second

	// maxInboundBody caps the request body read from the browser (1 MiB),
	// matching the validator's signing limit on the other side.
	maxInboundBody = bffauth.MaxBodyForSignature
)

// publicRoutes bypass the bearer-credential requirement. They are still
// HMAC-signed like everything else.
var publicRoutes = map[string]struct{}{
	"auth/login":     {},
	"auth/register":  {},
	"auth/providers": {},
}

// logoutRoute destroys the credential cookie when the upstream confirms.
const logoutRoute = "auth/logout"

// Config configures a Forwarder.
type Config struct {
	// Upstream is the fixed base URL of the backend API. Required.
	Upstream *url.URL

	// Signer produces the authentication headers. Required.
	Signer *bffauth.Signer

	// ForwardTimeout bounds each upstream call. Zero means DefaultForwardTimeout.
	ForwardTimeout time.Duration

	// SecureCookies marks issued credential cookies Secure.
	SecureCookies bool

	Log     *slog.Logger
	Metrics *metrics.Metrics
}

// Forwarder proxies browser requests to the upstream API, signing and
// re-authenticating each one. It holds no per-request state and is safe for
// concurrent use.
type Forwarder struct {
	upstream *url.URL
	signer   *bffauth.Signer
	timeout  time.Duration
	creds    CredentialStore
	client   *http.Client
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// NewForwarder validates the configuration and builds the forwarder with a
// dedicated transport. Timeouts on the transport cover connection setup; the
// per-request deadline covers the whole exchange.
func NewForwarder(cfg Config) (*Forwarder, error) {
	if cfg.Upstream == nil {
		return nil, errors.New("upstream base URL is required")
	}
	if cfg.Signer == nil {
		return nil, errors.New("signer is required")
	}
	if cfg.ForwardTimeout <= 0 {
		cfg.ForwardTimeout = DefaultForwardTimeout
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Forwarder{
		upstream: cfg.Upstream,
		signer:   cfg.Signer,
		timeout:  cfg.ForwardTimeout,
		creds:    CredentialStore{Secure: cfg.SecureCookies},
		client:   &http.Client{Transport: transport},
		log:      cfg.Log,
		metrics:  cfg.Metrics,
	}, nil
}

// ServeHTTP runs one request through the forwarding pipeline.
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	segments := routeSegments(r)

	target, err := pathguard.BuildUpstreamURL(f.upstream, segments)
	if err != nil {
		// Path violations are terminal and local. The generic 500 avoids
		// telling a prober which check it tripped.
		f.log.Warn("refused to build upstream URL",
			"err", err, "path", r.URL.Path, "remoteIP", callerIP(r))
		if f.metrics != nil {
			f.metrics.PathRejections.Inc()
		}
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	// Query parameters travel out of band and are excluded from the signature.
	target.RawQuery = r.URL.RawQuery

	body, err := readInboundBody(r)
	if err != nil {
		f.log.Warn("could not read request body", "err", err, "path", r.URL.Path)
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	headerSet, canonicalBody, err := f.signer.Sign(r.Method, target.Path, body)
	if err != nil {
		// Signing failures fail closed: never forward unsigned.
		f.log.Error("could not sign request", "err", err, "path", r.URL.Path)
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	routeKey := strings.Join(segments, "/")
	token, hasToken := f.creds.Read(r)
	if !hasToken {
		if _, public := publicRoutes[routeKey]; !public {
			// Fast fail: without a credential the upstream would reject this
			// anyway, so skip the network round trip.
			if f.metrics != nil {
				f.metrics.AuthRejections.WithLabelValues("missing_credential").Inc()
			}
			writeJSONError(w, http.StatusUnauthorized, "authentication required")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), f.timeout)
	defer cancel()

	outbound, err := f.buildOutbound(ctx, r, target, headerSet, canonicalBody, token)
	if err != nil {
		f.log.Error("could not build outbound request", "err", err)
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	start := time.Now()
	resp, err := f.client.Do(outbound)
	if f.metrics != nil {
		f.metrics.ForwardDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if isTimeout(err) {
			f.log.Warn("upstream call timed out",
				"path", target.Path, "timeout", f.timeout)
			f.countForward(r.Method, "timeout")
			writeJSONError(w, http.StatusGatewayTimeout, "upstream timeout")
			return
		}
		f.log.Error("upstream unreachable", "err", err, "path", target.Path)
		f.countForward(r.Method, "unreachable")
		writeJSONError(w, http.StatusBadGateway, "upstream unreachable")
		return
	}
	defer resp.Body.Close()

	// The response is read in full before any relaying so the credential
	// cookie is only ever rotated on a complete, parseable response.
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		f.log.Error("could not read upstream response", "err", err, "path", target.Path)
		f.countForward(r.Method, "unreachable")
		writeJSONError(w, http.StatusBadGateway, "upstream unreachable")
		return
	}

	f.relay(w, r, resp, respBody, routeKey)
	f.countForward(r.Method, fmt.Sprintf("%dxx", resp.StatusCode/100))
}

// buildOutbound assembles the signed upstream request. The canonical body
// replaces the original: the signature only covers the canonical encoding.
func (f *Forwarder) buildOutbound(ctx context.Context, r *http.Request, target *url.URL, headerSet bffauth.HeaderSet, canonicalBody []byte, token string) (*http.Request, error) {
	var bodyReader io.Reader
	if canonicalBody != nil {
		bodyReader = bytes.NewReader(canonicalBody)
	}

	outbound, err := http.NewRequestWithContext(ctx, r.Method, target.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("could not create upstream request: %w", err)
	}

	headerSet.Apply(outbound.Header)
	if canonicalBody != nil {
		outbound.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		outbound.Header.Set("Authorization", "Bearer "+token)
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		outbound.Header.Set("Accept", accept)
	}
	outbound.Header.Set("X-Forwarded-For", callerIP(r))

	return outbound, nil
}

// relay copies the upstream response to the caller, re-appending every
// Set-Cookie individually and rotating the credential cookie when the
// response carries a fresh access token.
func (f *Forwarder) relay(w http.ResponseWriter, r *http.Request, resp *http.Response, respBody []byte, routeKey string) {
	for name, values := range resp.Header {
		if http.CanonicalHeaderKey(name) == "Set-Cookie" {
			continue
		}
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	for _, sc := range resp.Header.Values("Set-Cookie") {
		w.Header().Add("Set-Cookie", sc)
	}

	// A body that does not parse or carries no token is not an error; the
	// response is relayed unchanged either way.
	if token, ok := extractAccessToken(respBody); ok {
		f.creds.Issue(w, token)
		if f.metrics != nil {
			f.metrics.CredentialRotations.Inc()
		}
		f.log.Debug("rotated bearer credential", "path", r.URL.Path)
	} else if routeKey == logoutRoute && resp.StatusCode < 300 {
		f.creds.Clear(w)
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(respBody); err != nil {
		f.log.Debug("could not write response to caller", "err", err)
	}
}

func (f *Forwarder) countForward(method, status string) {
	if f.metrics != nil {
		f.metrics.ForwardedRequests.WithLabelValues(method, status).Inc()
	}
}

// routeSegments extracts the proxied route. When mounted on a chi router the
// wildcard carries the remainder; otherwise the full path is used.
func routeSegments(r *http.Request) []string {
	route := chi.URLParam(r, "*")
	if route == "" {
		route = strings.TrimPrefix(r.URL.Path, "/")
	}
	return strings.Split(route, "/")
}

// readInboundBody returns the request body for signing, or nil for methods
// and content types that carry none. Unparseable JSON is treated as "no
// body" rather than an error.
func readInboundBody(r *http.Request) ([]byte, error) {
	if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Body == nil {
		return nil, nil
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxInboundBody+1))
	if err != nil {
		return nil, fmt.Errorf("could not read body: %w", err)
	}
	if len(body) > maxInboundBody {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxInboundBody)
	}
	if !json.Valid(body) {
		return nil, nil
	}
	return body, nil
}

// extractAccessToken looks for the nested access-token field the upstream
// uses when issuing or refreshing a credential.
func extractAccessToken(body []byte) (string, bool) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false
	}
	if data, ok := payload["data"].(map[string]any); ok {
		if token, ok := data["access_token"].(string); ok && token != "" {
			return token, true
		}
	}
	if token, ok := payload["access_token"].(string); ok && token != "" {
		return token, true
	}
	return "", false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, msg)
}

func callerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
