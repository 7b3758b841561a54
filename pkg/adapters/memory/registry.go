package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/chatwalk/chatwalk/pkg/domain"
)

// Registry implements ports.BotLoader over an in-memory map of
// published graphs.
type Registry struct {
	mu   sync.RWMutex
	bots map[string]*domain.Graph
}

// NewRegistry creates an empty bot registry.
func NewRegistry() *Registry {
	return &Registry{bots: make(map[string]*domain.Graph)}
}

// Register publishes a graph under its ID.
func (r *Registry) Register(g *domain.Graph) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bots[g.ID] = g
}

// LoadBot resolves a bot ID to its graph snapshot.
func (r *Registry) LoadBot(ctx context.Context, botID string) (*domain.Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.bots[botID]
	if !ok {
		return nil, fmt.Errorf("bot %q is not registered", botID)
	}
	return g, nil
}
