package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dexgate/gateway/internal/model"
	"github.com/dexgate/gateway/internal/repository"
	"gorm.io/gorm"
)

// ClientService is the CRUD layer behind the admin client-management
// surface: it keeps the durable repository and the in-memory ClientManager
// (used by auth/ratelimit middleware) consistent with each other.
type ClientService struct {
	repo    ClientRepoCRUD
	manager *ClientManager
}

type ClientRepoCRUD interface {
	ClientRepo
	List(ctx context.Context, limit, offset int) ([]*model.Client, error)
	GetByID(ctx context.Context, id string) (*model.Client, error)
	Create(ctx context.Context, c *model.Client) error
	Update(ctx context.Context, c *model.Client) error
	Delete(ctx context.Context, id string) error
}

type ClientCreateRequest struct {
	ID             string                `json:"id" binding:"required"`
	Name           string                `json:"name"`
	APIKey         string                `json:"api_key" binding:"required"`
	AllowedSigners []string              `json:"allowed_signers"`
	Signer         model.SignerCreds     `json:"signer"`
	Risk           model.RiskConfig      `json:"risk"`
	Rate           model.RateLimitConfig `json:"rate_limit"`
}

type ClientUpdateRequest struct {
	Name           *string                `json:"name"`
	APIKey         *string                `json:"api_key"`
	AllowedSigners []string               `json:"allowed_signers"`
	Signer         *model.SignerCreds     `json:"signer"`
	Risk           *model.RiskConfig      `json:"risk"`
	Rate           *model.RateLimitConfig `json:"rate_limit"`
}

type ClientSignerUpdateRequest struct {
	Signer model.SignerCreds `json:"signer" binding:"required"`
}

func NewClientService(manager *ClientManager, repo ClientRepoCRUD) *ClientService {
	return &ClientService{repo: repo, manager: manager}
}

func (s *ClientService) List(ctx context.Context, limit, offset int) ([]*model.Client, error) {
	if s.repo != nil {
		return s.repo.List(ctx, limit, offset)
	}
	return s.manager.ListClients(), nil
}

func (s *ClientService) Get(ctx context.Context, id string) (*model.Client, error) {
	if s.repo != nil {
		c, err := s.repo.GetByID(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrClientNotFound
		}
		return c, err
	}
	c, ok := s.manager.GetClientByID(id)
	if !ok {
		return nil, repository.ErrClientNotFound
	}
	return c, nil
}

func (s *ClientService) Create(ctx context.Context, req ClientCreateRequest) (*model.Client, error) {
	c := &model.Client{
		ID:             strings.TrimSpace(req.ID),
		Name:           req.Name,
		APIKey:         strings.TrimSpace(req.APIKey),
		AllowedSigners: req.AllowedSigners,
		Signer:         req.Signer,
		Risk:           req.Risk,
		Rate:           req.Rate,
	}
	if c.ID == "" || c.APIKey == "" {
		return nil, fmt.Errorf("id and api_key are required")
	}
	if s.repo != nil {
		if err := s.repo.Create(ctx, c); err != nil {
			return nil, err
		}
	}
	s.manager.RegisterClient(c)
	return c, nil
}

func (s *ClientService) Update(ctx context.Context, id string, req ClientUpdateRequest) (*model.Client, error) {
	c, err := s.current(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.APIKey != nil && *req.APIKey != "" {
		c.APIKey = *req.APIKey
	}
	if req.AllowedSigners != nil {
		c.AllowedSigners = req.AllowedSigners
	}
	if req.Signer != nil {
		c.Signer = *req.Signer
	}
	if req.Risk != nil {
		c.Risk = *req.Risk
	}
	if req.Rate != nil {
		c.Rate = *req.Rate
	}

	if s.repo != nil {
		if err := s.repo.Update(ctx, c); err != nil {
			return nil, err
		}
	}
	s.manager.ReplaceClient(c)
	return c, nil
}

func (s *ClientService) Delete(ctx context.Context, id string) error {
	if s.repo != nil {
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
	}
	s.manager.RemoveClientByID(id)
	return nil
}

func (s *ClientService) UpdateSigner(ctx context.Context, id string, req ClientSignerUpdateRequest) (*model.Client, error) {
	c, err := s.current(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Signer = req.Signer

	if s.repo != nil {
		if err := s.repo.Update(ctx, c); err != nil {
			return nil, err
		}
	}
	s.manager.ReplaceClient(c)
	return c, nil
}

func (s *ClientService) current(ctx context.Context, id string) (*model.Client, error) {
	if s.repo != nil {
		c, err := s.repo.GetByID(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrClientNotFound
		}
		return c, err
	}
	c, ok := s.manager.GetClientByID(id)
	if !ok {
		return nil, repository.ErrClientNotFound
	}
	return c, nil
}
