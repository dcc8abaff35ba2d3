// Package vault stores per-user exchange API credentials in HashiCorp
// Vault. With Vault disabled the client degrades to an in-memory store so
// development and paper runs need no Vault instance.
package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"rsi-trend-trader/config"
)

// APIKeyData represents one user's exchange credentials.
type APIKeyData struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	IsTestnet bool   `json:"is_testnet"`
}

// Client wraps the HashiCorp Vault client with a read cache.
type Client struct {
	client *api.Client
	config config.VaultConfig
	mu     sync.RWMutex
	cache  map[int64]*APIKeyData
}

// NewClient creates a Vault client. When cfg.Enabled is false the client
// works purely from its in-memory cache.
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{
			config: cfg,
			cache:  make(map[int64]*APIKeyData),
		}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{CACert: cfg.CACert}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &Client{
		client: client,
		config: cfg,
		cache:  make(map[int64]*APIKeyData),
	}, nil
}

func (c *Client) secretPath(userID int64) string {
	return fmt.Sprintf("%s/data/%s/%d", c.config.MountPath, c.config.SecretPath, userID)
}

func (c *Client) metadataPath(userID int64) string {
	return fmt.Sprintf("%s/metadata/%s/%d", c.config.MountPath, c.config.SecretPath, userID)
}

// StoreAPIKey stores credentials for a user.
func (c *Client) StoreAPIKey(ctx context.Context, userID int64, data APIKeyData) error {
	c.mu.Lock()
	c.cache[userID] = &data
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"api_key":    data.APIKey,
			"secret_key": data.SecretKey,
			"is_testnet": data.IsTestnet,
		},
	}

	if _, err := c.client.Logical().WriteWithContext(ctx, c.secretPath(userID), secretData); err != nil {
		return fmt.Errorf("failed to store API key in vault: %w", err)
	}
	return nil
}

// GetAPIKey retrieves credentials for a user, preferring the cache.
func (c *Client) GetAPIKey(ctx context.Context, userID int64) (*APIKeyData, error) {
	c.mu.RLock()
	if cached, ok := c.cache[userID]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return nil, fmt.Errorf("API key for user %d not found and vault is disabled", userID)
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to read API key from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("API key for user %d not found", userID)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format for user %d", userID)
	}

	keyData := &APIKeyData{
		APIKey:    getString(data, "api_key"),
		SecretKey: getString(data, "secret_key"),
		IsTestnet: getBool(data, "is_testnet"),
	}

	c.mu.Lock()
	c.cache[userID] = keyData
	c.mu.Unlock()

	return keyData, nil
}

// DeleteAPIKey removes credentials for a user.
func (c *Client) DeleteAPIKey(ctx context.Context, userID int64) error {
	c.mu.Lock()
	delete(c.cache, userID)
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	if _, err := c.client.Logical().DeleteWithContext(ctx, c.metadataPath(userID)); err != nil {
		return fmt.Errorf("failed to delete API key from vault: %w", err)
	}
	return nil
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func getBool(data map[string]interface{}, key string) bool {
	if v, ok := data[key].(bool); ok {
		return v
	}
	return false
}
