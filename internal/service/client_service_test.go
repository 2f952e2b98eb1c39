package service

import (
	"context"
	"errors"
	"testing"

	"github.com/dexgate/gateway/internal/config"
	"github.com/dexgate/gateway/internal/model"
	"github.com/dexgate/gateway/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeClientRepoCRUD struct {
	byID map[string]*model.Client
}

func newFakeClientRepoCRUD() *fakeClientRepoCRUD {
	return &fakeClientRepoCRUD{byID: make(map[string]*model.Client)}
}

func (r *fakeClientRepoCRUD) GetByAPIKey(ctx context.Context, apiKey string) (*model.Client, error) {
	for _, c := range r.byID {
		if c.APIKey == apiKey {
			return c, nil
		}
	}
	return nil, repository.ErrClientNotFound
}

func (r *fakeClientRepoCRUD) List(ctx context.Context, limit, offset int) ([]*model.Client, error) {
	out := make([]*model.Client, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out, nil
}

func (r *fakeClientRepoCRUD) GetByID(ctx context.Context, id string) (*model.Client, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (r *fakeClientRepoCRUD) Create(ctx context.Context, c *model.Client) error {
	r.byID[c.ID] = c
	return nil
}

func (r *fakeClientRepoCRUD) Update(ctx context.Context, c *model.Client) error {
	if _, ok := r.byID[c.ID]; !ok {
		return errors.New("not found")
	}
	r.byID[c.ID] = c
	return nil
}

func (r *fakeClientRepoCRUD) Delete(ctx context.Context, id string) error {
	delete(r.byID, id)
	return nil
}

func TestClientServiceCreateRegistersWithManager(t *testing.T) {
	repo := newFakeClientRepoCRUD()
	manager := NewClientManager(&config.Config{}, repo)
	svc := NewClientService(manager, repo)

	c, err := svc.Create(context.Background(), ClientCreateRequest{ID: "c1", APIKey: "key1"})
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)

	got, ok := manager.GetClientByAPIKey("key1")
	require.True(t, ok)
	assert.Equal(t, "c1", got.ID)
}

func TestClientServiceCreateRequiresIDAndAPIKey(t *testing.T) {
	repo := newFakeClientRepoCRUD()
	manager := NewClientManager(&config.Config{}, repo)
	svc := NewClientService(manager, repo)

	_, err := svc.Create(context.Background(), ClientCreateRequest{ID: "", APIKey: ""})
	assert.Error(t, err)
}

func TestClientServiceUpdateAppliesPartialFields(t *testing.T) {
	repo := newFakeClientRepoCRUD()
	manager := NewClientManager(&config.Config{}, repo)
	svc := NewClientService(manager, repo)

	_, err := svc.Create(context.Background(), ClientCreateRequest{ID: "c1", APIKey: "key1", Name: "Old Name"})
	require.NoError(t, err)

	newName := "New Name"
	updated, err := svc.Update(context.Background(), "c1", ClientUpdateRequest{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	assert.Equal(t, "key1", updated.APIKey) // untouched field preserved

	got, ok := manager.GetClientByAPIKey("key1")
	require.True(t, ok)
	assert.Equal(t, "New Name", got.Name)
}

func TestClientServiceGetUnknownReturnsErrClientNotFound(t *testing.T) {
	repo := newFakeClientRepoCRUD()
	manager := NewClientManager(&config.Config{}, repo)
	svc := NewClientService(manager, repo)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrClientNotFound))
}

func TestClientServiceDeleteRemovesFromManager(t *testing.T) {
	repo := newFakeClientRepoCRUD()
	manager := NewClientManager(&config.Config{}, repo)
	svc := NewClientService(manager, repo)

	_, err := svc.Create(context.Background(), ClientCreateRequest{ID: "c1", APIKey: "key1"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "c1"))

	_, ok := manager.GetClientByAPIKey("key1")
	assert.False(t, ok)
}
