package analytics

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cheegro/milledright-timber-web/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestTrackingPolicy_Suppresses(t *testing.T) {
	tests := []struct {
		name       string
		policy     TrackingPolicy
		path       string
		isAdmin    bool
		wantDrop   bool
		wantReason string
	}{
		{
			name:     "default policy tracks normal path",
			policy:   DefaultPolicy(),
			path:     "/products/decking",
			wantDrop: false,
		},
		{
			name:       "disabled policy drops everything",
			policy:     TrackingPolicy{Enabled: false},
			path:       "/",
			wantDrop:   true,
			wantReason: SuppressDisabled,
		},
		{
			name:       "admin path prefix",
			policy:     DefaultPolicy(),
			path:       "/admin/orders",
			wantDrop:   true,
			wantReason: SuppressAdminPath,
		},
		{
			name:       "admin user on public path",
			policy:     DefaultPolicy(),
			path:       "/products",
			isAdmin:    true,
			wantDrop:   true,
			wantReason: SuppressAdminUser,
		},
		{
			name:       "admin path dropped even when exclusion off",
			policy:     TrackingPolicy{Enabled: true, ExcludeAdmins: false, AdminPathPrefix: "/admin"},
			path:       "/admin/orders",
			wantDrop:   true,
			wantReason: SuppressAdminPath,
		},
		{
			name:     "admin user tracked when exclusion off",
			policy:   TrackingPolicy{Enabled: true, ExcludeAdmins: false, AdminPathPrefix: "/admin"},
			path:     "/products",
			isAdmin:  true,
			wantDrop: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drop, reason := tt.policy.Suppresses(tt.path, tt.isAdmin)
			assert.Equal(t, tt.wantDrop, drop)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestPolicyStore_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracking.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enabled: false\nexclude_admins: false\n"), 0o644))

	store := NewPolicyStore(path, testLogger())
	require.NoError(t, store.LoadFile())

	policy := store.Current()
	assert.False(t, policy.Enabled)
	assert.False(t, policy.ExcludeAdmins)
}

func TestPolicyStore_LoadFileMissing(t *testing.T) {
	store := NewPolicyStore(filepath.Join(t.TempDir(), "nope.yaml"), testLogger())
	err := store.LoadFile()
	require.Error(t, err)

	// Failed load keeps the seeded default.
	assert.True(t, store.Current().Enabled)
}

func TestPolicyStore_NoBackingFile(t *testing.T) {
	store := NewPolicyStore("", testLogger())
	require.NoError(t, store.LoadFile())
	assert.True(t, store.Current().Enabled)
}

func TestPolicyStore_WatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracking.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enabled: true\n"), 0o644))

	store := NewPolicyStore(path, testLogger())
	require.NoError(t, store.LoadFile())
	require.True(t, store.Current().Enabled)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- store.Watch(ctx)
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("enabled: false\n"), 0o644))

	assert.Eventually(t, func() bool {
		return !store.Current().Enabled
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
