package storage

import (
	"sync"
	"time"
)

// Health is the last known state of one backend
type Health struct {
	LastCheck time.Time `json:"last_check"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// HealthManager manages storage health status in memory
type HealthManager struct {
	mu     sync.RWMutex
	health map[string]Health
}

// NewHealthManager creates a new health manager
func NewHealthManager() *HealthManager {
	return &HealthManager{
		health: make(map[string]Health),
	}
}

// UpdateHealth updates the health status for a storage backend
func (hm *HealthManager) UpdateHealth(backend string, health Health) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.health[backend] = health
}

// GetHealth retrieves the health status for a specific storage backend
func (hm *HealthManager) GetHealth(backend string) (Health, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	health, exists := hm.health[backend]
	return health, exists
}

// GetAllHealth returns a copy of every backend's status
func (hm *HealthManager) GetAllHealth() map[string]Health {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	out := make(map[string]Health, len(hm.health))
	for k, v := range hm.health {
		out[k] = v
	}
	return out
}
