package main

import (
	"context"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/panelkit/admin-bff/bffauth"
	"github.com/panelkit/admin-bff/common"
	"github.com/panelkit/admin-bff/httpserver"
	"github.com/panelkit/admin-bff/metrics"
	"github.com/panelkit/admin-bff/middleware"
	"github.com/panelkit/admin-bff/proxy"
	"github.com/panelkit/admin-bff/secrets"
)

var flags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:    "listen-addr",
		Value:   "127.0.0.1:8080",
		EnvVars: []string{"BFF_LISTEN_ADDR"},
		Usage:   "address to listen on for API",
	},
	&cli.StringFlag{
		Name:    "metrics-addr",
		Value:   "127.0.0.1:8090",
		EnvVars: []string{"BFF_METRICS_ADDR"},
		Usage:   "address to listen on for Prometheus metrics",
	},
	&cli.StringFlag{
		Name:    "upstream-url",
		Value:   "http://127.0.0.1:9000",
		EnvVars: []string{"BFF_UPSTREAM_URL"},
		Usage:   "base URL of the upstream admin API",
	},
	&cli.StringFlag{
		Name:    "bff-id",
		Value:   bffauth.DefaultID,
		EnvVars: []string{"BFF_ID"},
		Usage:   "signing-party identifier sent in the X-BFF-Id header",
	},
	&cli.StringFlag{
		Name:    "secret-source",
		Value:   "env",
		EnvVars: []string{"BFF_SECRET_SOURCE"},
		Usage:   "where to read the shared HMAC secret: 'env' or 'vault'",
	},
	&cli.StringFlag{
		Name:    "vault-addr",
		Value:   "",
		EnvVars: []string{"VAULT_ADDR"},
		Usage:   "Vault server address (required if secret-source is 'vault')",
	},
	&cli.StringFlag{
		Name:    "vault-token",
		Value:   "",
		EnvVars: []string{"VAULT_TOKEN"},
		Usage:   "Vault token (required if secret-source is 'vault')",
	},
	&cli.StringFlag{
		Name:    "vault-mount",
		Value:   "secret",
		EnvVars: []string{"BFF_VAULT_MOUNT"},
		Usage:   "Vault KV v2 mount path",
	},
	&cli.StringFlag{
		Name:    "vault-path",
		Value:   "admin-bff/hmac",
		EnvVars: []string{"BFF_VAULT_PATH"},
		Usage:   "path of the secret within the Vault mount",
	},
	&cli.StringFlag{
		Name:    "vault-field",
		Value:   "shared_secret",
		EnvVars: []string{"BFF_VAULT_FIELD"},
		Usage:   "field of the Vault secret holding the HMAC key",
	},
	&cli.Int64Flag{
		Name:    "forward-timeout-ms",
		Value:   30000,
		EnvVars: []string{"BFF_FORWARD_TIMEOUT_MS"},
		Usage:   "timeout in milliseconds for upstream calls",
	},
	&cli.BoolFlag{
		Name:    "secure-cookies",
		Value:   false,
		EnvVars: []string{"BFF_SECURE_COOKIES"},
		Usage:   "mark credential cookies Secure (enable behind TLS)",
	},
	&cli.Float64Flag{
		Name:    "rate-limit-rps",
		Value:   0,
		EnvVars: []string{"BFF_RATE_LIMIT_RPS"},
		Usage:   "per-client requests per second, 0 disables rate limiting",
	},
	&cli.IntFlag{
		Name:    "rate-limit-burst",
		Value:   20,
		EnvVars: []string{"BFF_RATE_LIMIT_BURST"},
		Usage:   "per-client burst size when rate limiting is enabled",
	},
	&cli.BoolFlag{
		Name:  "log-json",
		Value: false,
		Usage: "log in JSON format",
	},
	&cli.BoolFlag{
		Name:  "log-debug",
		Value: false,
		Usage: "log debug messages",
	},
	&cli.BoolFlag{
		Name:  "log-uid",
		Value: false,
		Usage: "generate a uuid and add to all log messages",
	},
	&cli.StringFlag{
		Name:  "log-service",
		Value: common.PackageName,
		Usage: "add 'service' tag to logs",
	},
	&cli.BoolFlag{
		Name:  "pprof",
		Value: false,
		Usage: "enable pprof debug endpoint",
	},
	&cli.Int64Flag{
		Name:  "drain-seconds",
		Value: 45,
		Usage: "seconds to wait in drain HTTP request",
	},
}

func main() {
	app := &cli.App{
		Name:  "bff-gateway",
		Usage: "Sign and forward admin API requests on behalf of the browser",
		Flags: flags,
		Action: func(cCtx *cli.Context) error {
			listenAddr := cCtx.String("listen-addr")
			metricsAddr := cCtx.String("metrics-addr")
			upstreamRaw := cCtx.String("upstream-url")
			bffID := cCtx.String("bff-id")
			forwardTimeout := time.Duration(cCtx.Int64("forward-timeout-ms")) * time.Millisecond
			drainDuration := time.Duration(cCtx.Int64("drain-seconds")) * time.Second

			logger := common.SetupLogger(&common.LoggingOpts{
				Debug:   cCtx.Bool("log-debug"),
				JSON:    cCtx.Bool("log-json"),
				Service: cCtx.String("log-service"),
				Version: common.Version,
			})

			if cCtx.Bool("log-uid") {
				id := uuid.Must(uuid.NewRandom())
				logger = logger.With("uid", id.String())
			}

			upstream, err := url.Parse(upstreamRaw)
			if err != nil || upstream.Host == "" {
				logger.Error("Invalid upstream-url", "url", upstreamRaw, "err", err)
				return cli.Exit("invalid upstream-url", 1)
			}

			// Resolve the shared secret before anything listens: a missing
			// secret is fatal, never a per-request condition.
			var source secrets.Source
			switch cCtx.String("secret-source") {
			case "env":
				source = secrets.EnvSource{}
			case "vault":
				source, err = secrets.NewVaultSource(
					cCtx.String("vault-addr"),
					cCtx.String("vault-token"),
					cCtx.String("vault-mount"),
					cCtx.String("vault-path"),
					cCtx.String("vault-field"),
					logger,
				)
				if err != nil {
					logger.Error("Failed to create Vault secret source", "err", err)
					return err
				}
			default:
				return cli.Exit("invalid secret-source: must be 'env' or 'vault'", 1)
			}

			secretCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			secret, err := source.SharedSecret(secretCtx)
			cancel()
			if err != nil {
				logger.Error("Failed to resolve shared secret", "err", err)
				return err
			}

			signer, err := bffauth.NewSigner(bffID, secret)
			if err != nil {
				logger.Error("Failed to create signer", "err", err)
				return err
			}

			cfg := &httpserver.HTTPServerConfig{
				ListenAddr:               listenAddr,
				MetricsAddr:              metricsAddr,
				Log:                      logger,
				EnablePprof:              cCtx.Bool("pprof"),
				DrainDuration:            drainDuration,
				GracefulShutdownDuration: 30 * time.Second,
				ReadTimeout:              60 * time.Second,
				WriteTimeout:             30 * time.Second,
			}

			if rps := cCtx.Float64("rate-limit-rps"); rps > 0 {
				cfg.RateLimiter = middleware.NewRateLimiter(rps, cCtx.Int("rate-limit-burst"), logger)
			}

			m := metrics.New(common.PackageName)
			cfg.Metrics = m

			forwarder, err := proxy.NewForwarder(proxy.Config{
				Upstream:       upstream,
				Signer:         signer,
				ForwardTimeout: forwardTimeout,
				SecureCookies:  cCtx.Bool("secure-cookies"),
				Log:            logger,
				Metrics:        m,
			})
			if err != nil {
				logger.Error("Failed to create forwarder", "err", err)
				return err
			}
			cfg.Forwarder = forwarder

			server, err := httpserver.New(cfg)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting gateway",
				"listenAddr", listenAddr,
				"upstream", upstream.String(),
				"bffId", signer.ID(),
				"forwardTimeout", forwardTimeout)
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
