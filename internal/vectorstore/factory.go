package vectorstore

import (
	"fmt"

	"github.com/Smashkat12/crechebooks-sub006/internal/config"
	"github.com/Smashkat12/crechebooks-sub006/internal/logging"
	"github.com/Smashkat12/crechebooks-sub006/internal/persist"
)

// NewStore creates a Store based on the configured provider:
//   - "chromem" (default): embedded store, no external dependencies. The
//     data directory comes from the persistence layout; a non-durable
//     layout degrades to a purely in-memory store.
//   - "qdrant": external Qdrant server over gRPC.
func NewStore(cfg config.VectorStoreConfig, layout *persist.Layout, logger *logging.Logger) (Store, error) {
	switch cfg.Provider {
	case "chromem", "":
		path := ""
		if layout != nil && layout.Durable {
			path = layout.CollectionsDir
		}
		return NewChromemStore(ChromemConfig{
			Path:     path,
			Compress: cfg.Compress,
		}, logger)

	case "qdrant":
		return NewQdrantStore(QdrantConfig{
			Host:   cfg.Qdrant.Host,
			Port:   cfg.Qdrant.Port,
			APIKey: cfg.Qdrant.APIKey.Value(),
			UseTLS: cfg.Qdrant.UseTLS,
		}, logger)

	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore provider %q (supported: chromem, qdrant)", ErrInvalidConfig, cfg.Provider)
	}
}
