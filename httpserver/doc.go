/*
Package httpserver implements the HTTP process shell for the BFF gateway.

It hosts the proxy forwarder under /api/* and provides the operational
endpoints a deployment needs around it. Request authentication itself lives in
the bffauth and proxy packages; this package only wires routing, logging,
rate limiting, metrics, and lifecycle.

# Endpoints

  - ANY /api/* - signed and forwarded to the upstream admin API
  - GET /livez - liveness check
  - GET /readyz - readiness check
  - GET /drain - gracefully mark server as not ready
  - GET /undrain - mark server as ready
  - /debug - pprof, when enabled

Metrics are served on a separate listener so scrapes never compete with
forwarded traffic.

# Example Usage

	cfg := &httpserver.HTTPServerConfig{
		ListenAddr:               ":8080",
		MetricsAddr:              ":9090",
		Log:                      logger,
		Forwarder:                forwarder,
		DrainDuration:            30 * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}

	server, err := httpserver.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	server.RunInBackground()
	defer server.Shutdown()
*/
package httpserver
