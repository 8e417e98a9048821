// Package persist resolves on-disk storage locations for the memory store
// and detects whether they survive restarts.
package persist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Smashkat12/crechebooks-sub006/internal/config"
	"github.com/Smashkat12/crechebooks-sub006/internal/logging"
)

// Layout describes the resolved persistence locations.
type Layout struct {
	// DataDir is the base directory for all persisted state.
	DataDir string

	// CollectionsDir holds the vector store's per-collection files.
	CollectionsDir string

	// LedgerPath is the sqlite database file for the decision ledger.
	LedgerPath string

	// Durable reports whether DataDir sits on a persistent mount. When
	// false the vector store runs in memory and the ledger uses a
	// throwaway file; data will not survive a restart.
	Durable bool

	// BootstrapEnabled mirrors the configuration gate for cold-start seeding.
	BootstrapEnabled bool
}

// persistentRootEnv overrides the durable-mount detection in deployments
// where the persistent volume is mounted at a non-standard path.
const persistentRootEnv = "AGENTMEM_PERSISTENT_ROOT"

// persistentPrefixes are mount points treated as durable without probing.
var persistentPrefixes = []string{"/data", "/var/lib", "/mnt"}

// Resolver computes and caches the persistence layout.
type Resolver struct {
	cfg    *config.Config
	logger *logging.Logger

	once   sync.Once
	layout *Layout
	err    error
}

// NewResolver creates a Resolver. The layout is computed on first Resolve call
// and cached for the process lifetime.
func NewResolver(cfg *config.Config, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{cfg: cfg, logger: logger}
}

// Resolve returns the cached layout, computing it on first use.
func (r *Resolver) Resolve(ctx context.Context) (*Layout, error) {
	r.once.Do(func() {
		r.layout, r.err = r.resolve(ctx)
	})
	return r.layout, r.err
}

func (r *Resolver) resolve(ctx context.Context) (*Layout, error) {
	dataDir, err := expandPath(r.cfg.Memory.DataDirectory)
	if err != nil {
		return nil, fmt.Errorf("expanding data directory: %w", err)
	}

	layout := &Layout{
		DataDir:          dataDir,
		CollectionsDir:   filepath.Join(dataDir, "collections"),
		LedgerPath:       filepath.Join(dataDir, "ledger", "agentmem.db"),
		BootstrapEnabled: r.cfg.Memory.BootstrapEnabled,
	}

	// Idempotent directory creation; failure here means we cannot even
	// probe writability, so degrade to in-memory operation.
	created := true
	for _, dir := range []string{layout.DataDir, layout.CollectionsDir, filepath.Dir(layout.LedgerPath)} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			r.logger.Warn(ctx, "failed to create data directory",
				zap.String("dir", dir),
				zap.Error(err))
			created = false
			break
		}
	}

	layout.Durable = created && isDurableMount(dataDir)

	if layout.Durable {
		r.logger.Info(ctx, "persistence resolved",
			zap.String("data_dir", layout.DataDir),
			zap.String("ledger", layout.LedgerPath))
	} else {
		// One-time observable degradation, never silent.
		r.logger.Warn(ctx, "data directory is not on a persistent mount; operating in memory, data will not survive a restart",
			zap.String("data_dir", layout.DataDir))
	}

	return layout, nil
}

// isDurableMount applies the platform heuristic: a known persistent-volume
// path prefix in production, or a writability probe in development.
func isDurableMount(dir string) bool {
	if root := os.Getenv(persistentRootEnv); root != "" {
		if strings.HasPrefix(dir, root) {
			return true
		}
	}

	// /tmp is writable but explicitly ephemeral.
	if strings.HasPrefix(dir, os.TempDir()) || strings.HasPrefix(dir, "/tmp") {
		return false
	}

	for _, prefix := range persistentPrefixes {
		if strings.HasPrefix(dir, prefix) {
			return true
		}
	}

	return probeWritable(dir)
}

// probeWritable checks that the directory accepts writes.
func probeWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".durability-probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}

// expandPath expands a leading ~ to the user home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
