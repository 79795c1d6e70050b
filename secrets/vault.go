package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
)

// VaultSource reads the shared HMAC secret from a HashiCorp Vault KV v2
// mount, so the secret never lands in the environment or on disk.
type VaultSource struct {
	client     *api.Client
	mountPath  string
	secretPath string
	field      string
	log        *slog.Logger
}

// NewVaultSource creates a Vault-backed secret source.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - token: Vault token used for the read
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - secretPath: path within the mount (e.g. "admin-bff/hmac")
//   - field: field inside the secret holding the value (e.g. "shared_secret")
func NewVaultSource(address, token, mountPath, secretPath, field string, log *slog.Logger) (*VaultSource, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.HttpClient = &http.Client{
		Timeout: 30 * time.Second,
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	client.SetToken(token)

	return &VaultSource{
		client:     client,
		mountPath:  strings.TrimSuffix(mountPath, "/"),
		secretPath: strings.Trim(secretPath, "/"),
		field:      field,
		log:        log,
	}, nil
}

// SharedSecret reads the secret using the KV v2 API, which nests the payload
// under a "data" key.
func (v *VaultSource) SharedSecret(ctx context.Context) (string, error) {
	path := fmt.Sprintf("%s/data/%s", v.mountPath, v.secretPath)

	start := time.Now()
	secret, err := v.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("no secret found at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("unexpected secret format at %s", path)
	}
	value, ok := data[v.field].(string)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("field %q missing or empty at %s", v.field, path)
	}

	v.log.Debug("Loaded shared secret from Vault",
		"path", path, "durationMs", time.Since(start).Milliseconds())
	return value, nil
}
