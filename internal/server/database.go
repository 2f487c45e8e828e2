package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/docrepo/internal/common"
	"github.com/joseph-ayodele/docrepo/internal/repository"
)

const pingTimeout = 5 * time.Second

// ConnectDB opens the configured database and pings it so a bad DSN fails at startup.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repository.DB, error) {
	db, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := db.HealthCheck(ctx, pingTimeout); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
