package permission

import (
	"sync"

	"github.com/janus-web/janus-db/pkg/types"
)

// MemoryRoleStore is a mutex-guarded in-memory role table. It exists so the
// engine carries no ambient global permission state; deployments with an
// external identity system implement RoleStore against it instead.
type MemoryRoleStore struct {
	mu     sync.RWMutex
	grants map[string]map[types.RoleId]struct{}
}

func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{
		grants: make(map[string]map[types.RoleId]struct{}),
	}
}

func (s *MemoryRoleStore) Grant(role types.RoleId, subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.grants[subject] == nil {
		s.grants[subject] = make(map[types.RoleId]struct{})
	}
	s.grants[subject][role] = struct{}{}
}

func (s *MemoryRoleStore) Revoke(role types.RoleId, subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.grants[subject], role)
}

func (s *MemoryRoleStore) HasRole(role types.RoleId, subject string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.grants[subject][role]
	return ok
}
