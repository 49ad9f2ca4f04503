// Package app wires configuration, the csv loader and the session together
// for the commands.
package app

import (
	"fmt"
	"log/slog"

	"github.com/Jonatan852/columnar-datasource/internal/config"
	"github.com/Jonatan852/columnar-datasource/internal/datasource"
	"github.com/Jonatan852/columnar-datasource/internal/loader"
	"github.com/Jonatan852/columnar-datasource/internal/session"
)

// LoadTable reads cfg.Data.Path into an in-memory source.
func LoadTable(cfg *config.Config, logger *slog.Logger) (*datasource.MemSource, error) {
	schema, err := cfg.TableSchema()
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	opts := cfg.LoaderOptions()
	opts.Logger = logger
	rows, _, err := loader.LoadFile(cfg.Data.Path, schema, opts)
	if err != nil {
		return nil, err
	}
	return datasource.NewMemSource(schema, rows)
}

// OpenSession creates a session with the configured table registered.
// An empty data path yields an empty session.
func OpenSession(cfg *config.Config, logger *slog.Logger) (*session.Context, error) {
	sess := session.NewContext(
		session.WithLogger(logger),
		session.WithBatchSize(cfg.Server.BatchSize),
	)
	if cfg.Data.Path == "" {
		return sess, nil
	}
	src, err := LoadTable(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := sess.RegisterTable(cfg.Data.Table, src); err != nil {
		_ = src.Close()
		return nil, err
	}
	return sess, nil
}
