// Package staging manages the PostgreSQL staging tables an import writes into
// before they are swapped in as the live tables.
package staging

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/dukex/lakeflow/pkg/protocol"
	"github.com/lib/pq"
)

const stagingSuffix = "__staging"

var ErrEmptyEntity = errors.New("entity name is empty")

type Store struct {
	db     *sql.DB
	schema string
	logger *slog.Logger
}

// Open connects to databaseURL and verifies the connection.
func Open(ctx context.Context, logger *slog.Logger, databaseURL, schema string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open staging database: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to ping staging database: %w", err)
	}

	store := NewStore(db, schema, logger)

	err = store.EnsureSchema(ctx)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return store, nil
}

// NewStore uses db for the tables of schema; an empty schema means "public".
func NewStore(db *sql.DB, schema string, logger *slog.Logger) *Store {
	if schema == "" {
		schema = "public"
	}

	return &Store{db: db, schema: schema, logger: logger.With("module", "staging")}
}

// EnsureSchema creates the schema holding the tables when it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE SCHEMA IF NOT EXISTS `+pq.QuoteIdentifier(s.schema))
	if err != nil {
		return fmt.Errorf("failed to create schema %s: %w", s.schema, err)
	}

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LiveTable is the table holding the imported rows of entity.
func LiveTable(entity string) string {
	return strings.ToLower(entity)
}

// StagingTable is the table an import of entity writes into.
func StagingTable(entity string) string {
	return LiveTable(entity) + stagingSuffix
}

func (s *Store) qualified(table string) string {
	return pq.QuoteIdentifier(s.schema) + "." + pq.QuoteIdentifier(table)
}

// Prepare makes sure the live table of entity exists and creates an empty
// staging table shaped like it.
func (s *Store) Prepare(ctx context.Context, entity string) (string, error) {
	if entity == "" {
		return "", protocol.DomainInvalid(ErrEmptyEntity)
	}

	live := s.qualified(LiveTable(entity))
	staging := s.qualified(StagingTable(entity))

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		statements := []string{
			`CREATE TABLE IF NOT EXISTS ` + live + ` (
				id TEXT PRIMARY KEY,
				payload JSONB NOT NULL,
				imported_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			)`,
			`DROP TABLE IF EXISTS ` + staging,
			`CREATE TABLE ` + staging + ` (LIKE ` + live + ` INCLUDING ALL)`,
		}

		for _, statement := range statements {
			_, err := tx.ExecContext(ctx, statement)
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return "", classify(ctx, fmt.Errorf("prepare staging table for %s: %w", entity, err))
	}

	s.logger.InfoContext(ctx, "Staging table prepared", "entity", entity, "table", StagingTable(entity))

	return StagingTable(entity), nil
}

// Swap replaces the live table of entity with its staging table in one
// transaction. It reports false when there is no staging table to swap.
func (s *Store) Swap(ctx context.Context, entity string) (bool, error) {
	if entity == "" {
		return false, protocol.DomainInvalid(ErrEmptyEntity)
	}

	swapped := false

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		exists, err := s.tableExists(ctx, tx, StagingTable(entity))
		if err != nil || !exists {
			return err
		}

		_, err = tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+s.qualified(LiveTable(entity)))
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `ALTER TABLE `+s.qualified(StagingTable(entity))+
			` RENAME TO `+pq.QuoteIdentifier(LiveTable(entity)))
		if err != nil {
			return err
		}

		swapped = true

		return nil
	})
	if err != nil {
		return false, classify(ctx, fmt.Errorf("swap staging table for %s: %w", entity, err))
	}

	s.logger.InfoContext(ctx, "Staging table swapped", "entity", entity, "swapped", swapped)

	return swapped, nil
}

// Drop removes the staging tables left for entities and returns the tables
// it dropped.
func (s *Store) Drop(ctx context.Context, entities []string) ([]string, error) {
	dropped := []string{}

	for _, entity := range entities {
		if entity == "" {
			continue
		}

		table := StagingTable(entity)

		exists, err := s.tableExists(ctx, s.db, table)
		if err != nil {
			return dropped, classify(ctx, fmt.Errorf("look up %s: %w", table, err))
		}

		if !exists {
			continue
		}

		_, err = s.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+s.qualified(table))
		if err != nil {
			return dropped, classify(ctx, fmt.Errorf("drop %s: %w", table, err))
		}

		dropped = append(dropped, table)
	}

	return dropped, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) tableExists(ctx context.Context, q queryer, table string) (bool, error) {
	var exists bool

	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)`,
		s.schema, table,
	).Scan(&exists)

	return exists, err
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		_ = tx.Rollback()

		return err
	}

	return tx.Commit()
}

// classify maps database failures to task failure kinds: connection and
// serialization problems are transient, exhausted resources are reported as
// such and everything the server rejects is domain-invalid.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "40", "57":
			return protocol.Transient(err)
		case "53":
			return protocol.ResourceExhausted(err)
		default:
			return protocol.DomainInvalid(err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return protocol.ClientTimeout(err)
	}

	return protocol.Transient(err)
}
