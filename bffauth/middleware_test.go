package bffauth

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signedRequest(t *testing.T, signer *Signer, method, path string, body []byte) *http.Request {
	t.Helper()
	hs, canonicalBody, err := signer.Sign(method, path, body)
	require.NoError(t, err)

	var reader io.Reader
	if canonicalBody != nil {
		reader = bytes.NewReader(canonicalBody)
	}
	req := httptest.NewRequest(method, "/"+path, reader)
	hs.Apply(req.Header)
	return req
}

func TestMiddleware_PassesAuthenticatedRequest(t *testing.T) {
	signer, validator := newTestPair(t)

	var sawBody []byte
	mux := chi.NewRouter()
	mux.Use(validator.Middleware(discardLogger()))
	mux.Post("/users", func(w http.ResponseWriter, r *http.Request) {
		sawBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	})

	req := signedRequest(t, signer, "POST", "users", []byte(`{"b":2,"a":1}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	// The handler sees the body the middleware already consumed for hashing.
	assert.Equal(t, `{"a":1,"b":2}`, string(sawBody))
}

func TestMiddleware_RejectsUnsignedRequest(t *testing.T) {
	_, validator := newTestPair(t)

	mux := chi.NewRouter()
	mux.Use(validator.Middleware(discardLogger()))
	mux.Get("/users", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("business logic must not run for rejected requests")
	})

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, genericRejectBody, w.Body.String())
}

func TestMiddleware_GenericResponseForEveryReason(t *testing.T) {
	signer, validator := newTestPair(t)

	good := func() *http.Request { return signedRequest(t, signer, "GET", "users", nil) }

	tamper := map[string]func(*http.Request){
		"missing signature": func(r *http.Request) { r.Header.Del(HeaderSignature) },
		"wrong id":          func(r *http.Request) { r.Header.Set(HeaderID, "impostor") },
		"stale timestamp":   func(r *http.Request) { r.Header.Set(HeaderTimestamp, "1") },
		"bad signature":     func(r *http.Request) { r.Header.Set(HeaderSignature, "deadbeef") },
	}

	mux := chi.NewRouter()
	mux.Use(validator.Middleware(discardLogger()))
	mux.Get("/users", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for name, mutate := range tamper {
		req := good()
		mutate(req)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		// Identical status and body regardless of which stage failed.
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
		assert.Equal(t, genericRejectBody, w.Body.String(), name)
	}
}
