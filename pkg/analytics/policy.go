package analytics

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/Cheegro/milledright-timber-web/pkg/observability"
)

// Suppression reasons reported by TrackingPolicy.Suppresses and counted
// in the tracking_suppressed_total metric.
const (
	SuppressDisabled  = "disabled"
	SuppressAdminPath = "admin_path"
	SuppressAdminUser = "admin_user"
)

// TrackingPolicy controls whether a request gets tracked at all.
type TrackingPolicy struct {
	Enabled         bool   `yaml:"enabled"`
	ExcludeAdmins   bool   `yaml:"exclude_admins"`
	AdminPathPrefix string `yaml:"admin_path_prefix"`
}

// DefaultPolicy tracks everything except requests under /admin.
func DefaultPolicy() TrackingPolicy {
	return TrackingPolicy{
		Enabled:         true,
		ExcludeAdmins:   true,
		AdminPathPrefix: "/admin",
	}
}

// Suppresses reports whether a request for path, optionally made by an
// authenticated admin, should be dropped. The second return names the
// reason when suppression applies.
func (p TrackingPolicy) Suppresses(path string, isAdmin bool) (bool, string) {
	if !p.Enabled {
		return true, SuppressDisabled
	}
	if p.AdminPathPrefix != "" && strings.HasPrefix(path, p.AdminPathPrefix) {
		return true, SuppressAdminPath
	}
	if p.ExcludeAdmins && isAdmin {
		return true, SuppressAdminUser
	}
	return false, ""
}

// PolicyStore holds the live tracking policy and hot-reloads it from a
// yaml file when the file changes on disk.
type PolicyStore struct {
	mu     sync.RWMutex
	policy TrackingPolicy
	path   string
	logger *observability.Logger
}

// NewPolicyStore returns a store seeded with the default policy. Pass an
// empty path to run without a backing file.
func NewPolicyStore(path string, logger *observability.Logger) *PolicyStore {
	return &PolicyStore{
		policy: DefaultPolicy(),
		path:   path,
		logger: logger,
	}
}

// Current returns the active policy.
func (s *PolicyStore) Current() TrackingPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// LoadFile reads the policy file and swaps in the parsed policy.
func (s *PolicyStore) LoadFile() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read policy file %s: %w", s.path, err)
	}
	policy := DefaultPolicy()
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return fmt.Errorf("failed to parse policy file %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.policy = policy
	s.mu.Unlock()
	return nil
}

// Watch reloads the policy whenever the backing file is written. It blocks
// until ctx is cancelled and is meant to run in its own goroutine. A reload
// failure keeps the previous policy in place.
func (s *PolicyStore) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create policy watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.path); err != nil {
		return fmt.Errorf("failed to watch policy file %s: %w", s.path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := s.LoadFile(); err != nil {
					s.logger.WithError(err).Warn("Policy reload failed, keeping previous policy")
					continue
				}
				s.logger.WithField("path", s.path).Info("Tracking policy reloaded")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.WithError(err).Warn("Policy watcher error")
		}
	}
}
