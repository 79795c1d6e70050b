// Package secrets resolves the shared HMAC secret at startup. The secret is
// required configuration with no default: a source that cannot produce a
// non-empty value is a fatal error before the server ever listens.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Source produces the shared HMAC secret.
type Source interface {
	SharedSecret(ctx context.Context) (string, error)
}

// DefaultEnvVar is where EnvSource looks unless configured otherwise.
const DefaultEnvVar = "BFF_SHARED_SECRET"

// EnvSource reads the secret from the process environment.
type EnvSource struct {
	// Var is the environment variable name. Empty means DefaultEnvVar.
	Var string
}

func (e EnvSource) SharedSecret(_ context.Context) (string, error) {
	name := e.Var
	if name == "" {
		name = DefaultEnvVar
	}
	secret := strings.TrimSpace(os.Getenv(name))
	if secret == "" {
		return "", fmt.Errorf("environment variable %s is not set", name)
	}
	return secret, nil
}
