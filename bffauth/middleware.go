package bffauth

import (
	"bytes"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/google/uuid"
)

// genericRejectBody is the only thing external callers see on any
// authentication failure. Which stage failed is deliberately not revealed.
const genericRejectBody = `{"error":"unauthorized"}`

// Middleware returns an http middleware that authenticates every request with
// the validation pipeline before the wrapped handler runs. Rejections are
// logged with full forensic context (failing stage, expected vs received
// values, caller IP, incident id) and answered with a generic 401.
func (v *Validator) Middleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := readBodyForSignature(w, r)
			if err != nil {
				log.Warn("could not read request body for authentication",
					"err", err, "remoteIP", callerIP(r))
				rejectGeneric(w)
				return
			}

			if err := v.Validate(HeaderSetFromRequest(r), r.Method, r.URL.Path, body); err != nil {
				incident := uuid.Must(uuid.NewRandom()).String()
				attrs := []any{
					"incident", incident,
					"remoteIP", callerIP(r),
					"method", r.Method,
					"path", r.URL.Path,
				}
				if rej, ok := AsRejection(err); ok {
					attrs = append(attrs, "stage", rej.Stage, "reason", string(rej.Reason), "detail", rej.Detail)
				} else {
					attrs = append(attrs, "err", err)
				}
				log.Warn("rejected unauthenticated request", attrs...)
				rejectGeneric(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// readBodyForSignature drains the request body up to MaxBodyForSignature and
// replaces it so the downstream handler can read it again.
func readBodyForSignature(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyForSignature))
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func rejectGeneric(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(genericRejectBody))
}

func callerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
