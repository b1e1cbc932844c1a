// Package backend selects a document repository from a DSN.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/app/migrate"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository/jsonfile"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository/memory"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository/postgres"
)

// Options tunes backend construction.
type Options struct {
	// AutoMigrate applies pending postgres migrations before use.
	AutoMigrate   bool
	MigrationsDir string
	Logger        *slog.Logger
}

// Open builds the repository for dsn. Supported schemes: file (or a bare
// path), memory, postgres.
func Open(ctx context.Context, dsn string, opts Options) (repository.DocumentRepository, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: store dsn required", repository.ErrInvalidArgument)
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: parse store dsn: %v", repository.ErrInvalidArgument, err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "", "file":
		path := parsed.Path
		if parsed.Scheme == "" {
			path = dsn
		} else if parsed.Host != "" {
			path = parsed.Host + parsed.Path
		}
		return jsonfile.New(path)
	case "memory", "mem":
		return memory.New(), nil
	case "postgres", "postgresql":
		return openPostgres(ctx, dsn, opts)
	default:
		return nil, fmt.Errorf("%w: unsupported store scheme %q", repository.ErrInvalidArgument, parsed.Scheme)
	}
}

func openPostgres(ctx context.Context, dsn string, opts Options) (repository.DocumentRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect postgres: %v", repository.ErrStorage, err)
	}
	if opts.AutoMigrate {
		runner, err := migrate.New(dsn, opts.MigrationsDir, opts.Logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		if err := runner.Ensure(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("%w: %v", repository.ErrStorage, err)
		}
	}
	return postgres.New(pool), nil
}
