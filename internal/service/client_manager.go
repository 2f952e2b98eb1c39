package service

import (
	"context"
	"sync"

	"github.com/dexgate/gateway/internal/config"
	"github.com/dexgate/gateway/internal/model"
	"golang.org/x/time/rate"
)

// ClientManager holds every registered client's credentials, risk/rate
// configuration, and per-client rate limiter (A.6). Clients are seeded from
// config at startup and lazily filled in from the repository on first use
// of an unseen API key.
type ClientManager struct {
	mu            sync.RWMutex
	clients       map[string]*model.Client // key: API key
	limiters      map[string]*rate.Limiter // key: client ID
	config        *config.Config
	defaultClient *model.Client
	repo          ClientRepo
}

type ClientRepo interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*model.Client, error)
}

func NewClientManager(cfg *config.Config, repo ClientRepo) *ClientManager {
	cm := &ClientManager{
		clients:  make(map[string]*model.Client),
		limiters: make(map[string]*rate.Limiter),
		config:   cfg,
		repo:     repo,
	}

	if len(cfg.Clients) > 0 {
		for _, cc := range cfg.Clients {
			client := &model.Client{
				ID:             cc.ID,
				Name:           cc.Name,
				APIKey:         cc.APIKey,
				AllowedSigners: cc.Signers,
				Risk: model.RiskConfig{
					MaxOrderValue:             chooseFloat(cfg.Risk.MaxOrderValue, cc.Risk.MaxOrderValue),
					MaxDailyValue:             chooseFloat(cfg.Risk.MaxDailyValue, cc.Risk.MaxDailyValue),
					MaxDailyOrders:            chooseInt(cfg.Risk.MaxDailyOrders, cc.Risk.MaxDailyOrders),
					MaxSlippage:               chooseFloat(cfg.Risk.MaxSlippage, cc.Risk.MaxSlippage),
					RestrictedPools:           chooseStringSlice(cfg.Risk.RestrictedPools, cc.Risk.RestrictedPools),
					AllowUnverifiedSignatures: cfg.Risk.AllowUnverifiedSignatures || cc.Risk.AllowUnverifiedSignatures,
				},
				Rate: model.RateLimitConfig{QPS: 10, Burst: 20},
			}
			cm.RegisterClient(client)
		}
		return cm
	}

	if cfg.Auth.APIKey != "" {
		defaultClient := &model.Client{
			ID:     "default-client",
			Name:   "Default Client",
			APIKey: cfg.Auth.APIKey,
			Risk: model.RiskConfig{
				MaxOrderValue:             cfg.Risk.MaxOrderValue,
				MaxDailyValue:             cfg.Risk.MaxDailyValue,
				MaxDailyOrders:            cfg.Risk.MaxDailyOrders,
				MaxSlippage:               cfg.Risk.MaxSlippage,
				RestrictedPools:           cfg.Risk.RestrictedPools,
				AllowUnverifiedSignatures: cfg.Risk.AllowUnverifiedSignatures,
			},
			Rate: model.RateLimitConfig{QPS: 10, Burst: 20},
		}
		cm.RegisterClient(defaultClient)
		cm.defaultClient = defaultClient
	}

	return cm
}

func (cm *ClientManager) RegisterClient(c *model.Client) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if c == nil {
		return
	}
	cm.clients[c.APIKey] = c

	limit := rate.Limit(c.Rate.QPS)
	if limit == 0 {
		limit = rate.Inf
	}
	burst := c.Rate.Burst
	if burst == 0 {
		burst = 1
	}
	cm.limiters[c.ID] = rate.NewLimiter(limit, burst)
}

func (cm *ClientManager) ReplaceClient(c *model.Client) {
	cm.RemoveClientByID(c.ID)
	cm.RegisterClient(c)
}

func (cm *ClientManager) RemoveClientByID(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for key, c := range cm.clients {
		if c != nil && c.ID == id {
			delete(cm.clients, key)
			delete(cm.limiters, c.ID)
		}
	}
}

func (cm *ClientManager) GetClientByID(id string) (*model.Client, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	for _, c := range cm.clients {
		if c != nil && c.ID == id {
			return c, true
		}
	}
	return nil, false
}

func (cm *ClientManager) ListClients() []*model.Client {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	results := make([]*model.Client, 0, len(cm.clients))
	seen := make(map[string]struct{})
	for _, c := range cm.clients {
		if c == nil {
			continue
		}
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		results = append(results, c)
	}
	return results
}

func (cm *ClientManager) GetClientByAPIKey(apiKey string) (*model.Client, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	c, ok := cm.clients[apiKey]
	return c, ok
}

func (cm *ClientManager) GetClientByAPIKeyWithFallback(ctx context.Context, apiKey string) (*model.Client, bool) {
	if c, ok := cm.GetClientByAPIKey(apiKey); ok {
		return c, true
	}
	if cm.repo == nil {
		return nil, false
	}
	c, err := cm.repo.GetByAPIKey(ctx, apiKey)
	if err != nil || c == nil {
		return nil, false
	}
	cm.RegisterClient(c)
	return c, true
}

func (cm *ClientManager) DefaultClient() *model.Client {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.defaultClient
}

func (cm *ClientManager) GetLimiterForClient(clientID string) *rate.Limiter {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.limiters[clientID]
}

func chooseFloat(base, override float64) float64 {
	if override > 0 {
		return override
	}
	return base
}

func chooseStringSlice(base, override []string) []string {
	if len(override) > 0 {
		return override
	}
	return base
}

func chooseInt(base, override int) int {
	if override > 0 {
		return override
	}
	return base
}
