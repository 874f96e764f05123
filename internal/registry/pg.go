package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	migrations "github.com/dropDatabas3/credstart/migrations/postgres"
)

// PGStore reads registered clients from postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects a pool for the given DSN.
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Lookup(ctx context.Context, clientID string) (*RegisteredClient, error) {
	const q = `
		SELECT client_id, issuer, COALESCE(redirect_uri, '')
		FROM registered_clients
		WHERE client_id = $1`

	var rc RegisteredClient
	err := s.pool.QueryRow(ctx, q, clientID).Scan(&rc.ClientID, &rc.Issuer, &rc.RedirectURI)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	// An entry without an issuer cannot gate trust decisions; treat it the
	// same as an unknown client.
	if rc.Issuer == "" {
		return nil, ErrNotFound
	}
	return &rc, nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *PGStore) Close() {
	s.pool.Close()
}

// Migrate applies the embedded registry migrations in lexical order. It is
// idempotent; every statement guards its own existence.
func (s *PGStore) Migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrations.RegistryFS, migrations.RegistryDir)
	if err != nil {
		return fmt.Errorf("registry: read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		sql, err := fs.ReadFile(migrations.RegistryFS, path.Join(migrations.RegistryDir, name))
		if err != nil {
			return fmt.Errorf("registry: read migration %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("registry: apply migration %s: %w", name, err)
		}
	}
	return nil
}
