package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/lakeflow/pkg/persistence"
	"github.com/dukex/lakeflow/pkg/persistence/file"
	"github.com/dukex/lakeflow/pkg/persistence/memory"
	"github.com/dukex/lakeflow/pkg/persistence/postgresql"
	"github.com/dukex/lakeflow/pkg/persistence/sqlite"
)

var supportedPersistenceProviders = []string{"file", "memory", "postgres", "postgresql", "sqlite"}

// NewPersistence opens the persistence selected by the scheme of databaseURL.
// A URL without a known scheme is a file persistence root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	provider := parsePersistenceProvider(databaseURL)

	logger.InfoContext(ctx, "Opening persistence", "provider", provider)

	switch provider {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to open PostgreSQL persistence: %w", err))
		}

		return p
	case "sqlite":
		p, err := sqlite.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to open SQLite persistence: %w", err))
		}

		return p
	case "memory":
		p, err := memory.NewPersistence()
		if err != nil {
			panic(err)
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")

	provider := parts[0]
	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
