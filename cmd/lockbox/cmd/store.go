package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmcleod/lockbox/breach"
	"github.com/jmcleod/lockbox/internal/config"
	"github.com/jmcleod/lockbox/storage"
	bboltstorage "github.com/jmcleod/lockbox/storage/bbolt"
	"github.com/jmcleod/lockbox/storage/memory"
	"github.com/jmcleod/lockbox/storage/postgres"
	"github.com/jmcleod/lockbox/storage/sqlite"
	"github.com/jmcleod/lockbox/vault"
)

// openRepository opens the backend named in c. The returned close function
// is always safe to call.
func openRepository(ctx context.Context, c config.Config) (storage.Repository, func(), error) {
	noop := func() {}
	path := c.StoragePath()

	switch c.Storage.Backend {
	case "memory":
		slog.Warn("memory backend selected; vault contents are lost on exit")
		return memory.NewRepository(), noop, nil
	case "bbolt", "sqlite":
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, noop, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	switch c.Storage.Backend {
	case "bbolt":
		repo, err := bboltstorage.NewRepositoryFromFile(path, nil)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open vault storage: %w", err)
		}
		return repo, func() { repo.Close() }, nil
	case "sqlite":
		repo, err := sqlite.Open(path)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open vault storage: %w", err)
		}
		return repo, func() { repo.Close() }, nil
	case "postgres":
		repo, err := postgres.NewRepositoryFromDSN(ctx, c.Storage.DSN)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open vault storage: %w", err)
		}
		return repo, repo.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
}

// openVault opens the configured repository and wraps it in a Vault.
func openVault(ctx context.Context) (*vault.Vault, func(), error) {
	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return nil, closeRepo, err
	}
	slog.Debug("vault storage opened",
		slog.String("backend", cfg.Storage.Backend),
		slog.String("path", cfg.StoragePath()),
	)
	return vault.New(repo, vault.WithTOTPIssuer(cfg.TOTP.Issuer)), closeRepo, nil
}

func newBreachClient(c config.BreachConfig) (*breach.Client, error) {
	return breach.NewClient(
		breach.WithEndpoint(c.Endpoint),
		breach.WithDelay(c.Delay),
		breach.WithTimeout(c.Timeout),
		breach.WithPadding(c.Padding),
	)
}
