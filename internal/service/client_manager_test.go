package service

import (
	"context"
	"testing"

	"github.com/dexgate/gateway/internal/config"
	"github.com/dexgate/gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClientRepo struct {
	byAPIKey map[string]*model.Client
}

func (r *fakeClientRepo) GetByAPIKey(ctx context.Context, apiKey string) (*model.Client, error) {
	return r.byAPIKey[apiKey], nil
}

func TestNewClientManagerSeedsClientsFromConfig(t *testing.T) {
	cfg := &config.Config{
		Clients: []config.ClientConfig{
			{ID: "c1", Name: "Client One", APIKey: "key1", Risk: config.RiskConfig{MaxOrderValue: 500}},
			{ID: "c2", Name: "Client Two", APIKey: "key2"},
		},
	}
	cm := NewClientManager(cfg, nil)

	c1, ok := cm.GetClientByAPIKey("key1")
	require.True(t, ok)
	assert.Equal(t, "c1", c1.ID)
	assert.Equal(t, float64(500), c1.Risk.MaxOrderValue)

	assert.Len(t, cm.ListClients(), 2)
	assert.NotNil(t, cm.GetLimiterForClient("c1"))
}

func TestNewClientManagerSingleAPIKeyModeRegistersDefaultClient(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{APIKey: "singlekey"}}
	cm := NewClientManager(cfg, nil)

	def := cm.DefaultClient()
	require.NotNil(t, def)
	assert.Equal(t, "default-client", def.ID)

	c, ok := cm.GetClientByAPIKey("singlekey")
	require.True(t, ok)
	assert.Equal(t, def.ID, c.ID)
}

func TestGetClientByAPIKeyWithFallbackConsultsRepoOnMiss(t *testing.T) {
	cfg := &config.Config{}
	repo := &fakeClientRepo{byAPIKey: map[string]*model.Client{
		"repo-key": {ID: "repo-client", APIKey: "repo-key"},
	}}
	cm := NewClientManager(cfg, repo)

	_, ok := cm.GetClientByAPIKey("repo-key")
	assert.False(t, ok, "must not be present before the fallback lookup")

	c, ok := cm.GetClientByAPIKeyWithFallback(context.Background(), "repo-key")
	require.True(t, ok)
	assert.Equal(t, "repo-client", c.ID)

	// Second lookup must hit the in-memory cache, not the repo again.
	c2, ok := cm.GetClientByAPIKey("repo-key")
	require.True(t, ok)
	assert.Equal(t, c.ID, c2.ID)
}

func TestGetClientByAPIKeyWithFallbackReturnsFalseWhenUnknown(t *testing.T) {
	cfg := &config.Config{}
	repo := &fakeClientRepo{byAPIKey: map[string]*model.Client{}}
	cm := NewClientManager(cfg, repo)

	_, ok := cm.GetClientByAPIKeyWithFallback(context.Background(), "nope")
	assert.False(t, ok)
}

func TestReplaceClientSwapsRegistrationByID(t *testing.T) {
	cfg := &config.Config{}
	cm := NewClientManager(cfg, nil)
	cm.RegisterClient(&model.Client{ID: "c1", APIKey: "old-key", Rate: model.RateLimitConfig{QPS: 5, Burst: 5}})

	cm.ReplaceClient(&model.Client{ID: "c1", APIKey: "new-key", Rate: model.RateLimitConfig{QPS: 5, Burst: 5}})

	_, ok := cm.GetClientByAPIKey("old-key")
	assert.False(t, ok)
	c, ok := cm.GetClientByAPIKey("new-key")
	require.True(t, ok)
	assert.Equal(t, "c1", c.ID)
}
