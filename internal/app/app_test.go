package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jonatan852/columnar-datasource/internal/config"
)

func TestOpenSession(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "people.csv")
	require.NoError(t, os.WriteFile(data, []byte("id,name\n1,ana\n2,NULL\n"), 0o644))
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"data:\n  path: "+data+"\n  table: people\n  schema: \"id:u64,name:text?\"\n"), 0o644))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sess, err := OpenSession(cfg, logger)
	require.NoError(t, err)
	require.Equal(t, []string{"people"}, sess.TableNames())

	res, err := sess.SQL(context.Background(), "SELECT name FROM people WHERE name IS NULL")
	require.NoError(t, err)
	defer res.Release()
	require.EqualValues(t, 1, res.NumRows())
}

func TestOpenSessionWithoutData(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Data.Path = ""
	sess, err := OpenSession(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.Empty(t, sess.TableNames())

	cfg.Data.Path = filepath.Join(t.TempDir(), "missing.csv.gz")
	_, err = OpenSession(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}
