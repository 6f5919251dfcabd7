package tools

import (
	"fmt"
	"sync"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// SiteMapStore backs the get_site_map built-in tool: one POI/route
// composition per (tenant, site).
type SiteMapStore interface {
	GetSiteMap(scope domain.Scope) (domain.SiteMap, error)
	PutSiteMap(scope domain.Scope, siteMap domain.SiteMap) error
}

// MemorySiteMapStore is the in-process SiteMapStore implementation.
type MemorySiteMapStore struct {
	mu   sync.RWMutex
	maps map[string]domain.SiteMap
}

func NewMemorySiteMapStore() *MemorySiteMapStore {
	return &MemorySiteMapStore{maps: make(map[string]domain.SiteMap)}
}

func siteMapKey(scope domain.Scope) string {
	return scope.TenantID + "|" + scope.SiteID
}

func (s *MemorySiteMapStore) GetSiteMap(scope domain.Scope) (domain.SiteMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.maps[siteMapKey(scope)]
	if !ok {
		return domain.SiteMap{}, fmt.Errorf("tools: no site map for %s/%s", scope.TenantID, scope.SiteID)
	}
	return m, nil
}

func (s *MemorySiteMapStore) PutSiteMap(scope domain.Scope, siteMap domain.SiteMap) error {
	if !scope.Valid() {
		return fmt.Errorf("tools: tenant and site are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maps[siteMapKey(scope)] = siteMap
	return nil
}
