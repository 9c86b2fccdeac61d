package usecase

import (
	"context"
	"strings"
	"sync"

	"grocery-price-assistant/internal/derror"
	"grocery-price-assistant/internal/domain/model"
	"grocery-price-assistant/internal/domain/ports/repository"
)

// --- In-memory fakes for the chat core's ports ---

type memStateRepo struct {
	mu     sync.Mutex
	states map[string]*repository.ConversationState

	SetErr error
	GetErr error
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{states: make(map[string]*repository.ConversationState)}
}

func (m *memStateRepo) SetState(ctx context.Context, sessionID string, state *repository.ConversationState) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[sessionID] = state
	return nil
}

func (m *memStateRepo) GetState(ctx context.Context, sessionID string) (*repository.ConversationState, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[sessionID], nil
}

func (m *memStateRepo) ClearState(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, sessionID)
	return nil
}

func (m *memStateRepo) state(sessionID string) *repository.ConversationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[sessionID]
}

type memLookup struct {
	products []*model.Product
	Err      error
}

func (m *memLookup) FindByName(ctx context.Context, name string) (*model.Product, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	needle := strings.ToLower(name)
	for _, p := range m.products {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			return p, nil
		}
	}
	return nil, derror.ErrNotFound
}
