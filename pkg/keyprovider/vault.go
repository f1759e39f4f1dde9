package keyprovider

import (
	"fmt"

	"github.com/hashicorp/vault/api"
)

// VaultConfig configures a VaultKeyProvider, mirroring the `vault://`
// scheme options the teacher's Vault-backend plugin example accepts
// (address, token, KV mount, and path).
type VaultConfig struct {
	Address string
	Token   string
	Mount   string // KV v2 mount, default "secret"
	Path    string // secret path under the mount
	Field   string // key name inside the secret's data, default "key"
}

// VaultKeyProvider fetches the AES key for fileproto from a Vault KV v2
// mount, keyed off the file-protocol option `key.vault.path`. Grounded on
// the teacher's Vault-backend example plugin's use of api.Client and the
// KV v2 "<mount>/data/<path>" read convention.
type VaultKeyProvider struct {
	client *api.Client
	cfg    VaultConfig
}

// NewVaultKeyProvider builds a Vault client from cfg and verifies
// connectivity with a health check, exactly as the teacher's Vault-backend
// example does before first use.
func NewVaultKeyProvider(cfg VaultConfig) (*VaultKeyProvider, error) {
	if cfg.Mount == "" {
		cfg.Mount = "secret"
	}
	if cfg.Field == "" {
		cfg.Field = "key"
	}

	vaultConfig := api.DefaultConfig()
	if cfg.Address != "" {
		vaultConfig.Address = cfg.Address
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	if _, err := client.Sys().Health(); err != nil {
		return nil, fmt.Errorf("vault health check failed: %w", err)
	}

	return &VaultKeyProvider{client: client, cfg: cfg}, nil
}

// Key reads the secret at <mount>/data/<path> and pad/truncates the named
// field to 16 bytes, using the same legacy pad/truncate rule as Static.
func (v *VaultKeyProvider) Key() ([16]byte, error) {
	var out [16]byte

	path := fmt.Sprintf("%s/data/%s", v.cfg.Mount, v.cfg.Path)
	secret, err := v.client.Logical().Read(path)
	if err != nil {
		return out, fmt.Errorf("read vault secret: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return out, errNoKey
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return out, errNoKey
	}

	raw, ok := data[v.cfg.Field].(string)
	if !ok || raw == "" {
		return out, errNoKey
	}

	copy(out[:], []byte(raw))
	return out, nil
}
