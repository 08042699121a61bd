package core

import "github.com/fundwise/steward/internal/models"

// CacheNotifier is told which tables changed so dependent read caches can
// drop their entries.
type CacheNotifier interface {
	Invalidate(table models.Table)
}

// NopNotifier is a CacheNotifier that does nothing.
type NopNotifier struct{}

func (NopNotifier) Invalidate(models.Table) {}
