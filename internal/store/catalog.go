// Package store provides the Data Access Layer (Repository) for the catalog
// tables. It handles all direct interactions with PostgreSQL using the pgx driver.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/tipsengine/internal/catalog"
	"github.com/rafaeljc/tipsengine/internal/observability"
)

var _ catalog.Source = (*PostgresStore)(nil)

// CatalogRepository defines the persistence operations for the catalog.
type CatalogRepository interface {
	// Revision returns the current catalog revision without loading documents.
	Revision(ctx context.Context) (int64, error)

	// LoadSnapshot reads the documents together with their revision.
	LoadSnapshot(ctx context.Context) (catalog.Snapshot, error)

	// ReplaceCatalog validates docs and replaces the stored catalog,
	// returning the new revision.
	ReplaceCatalog(ctx context.Context, docs catalog.Documents) (int64, error)
}

var (
	_ CatalogRepository     = (*PostgresStore)(nil)
	_ observability.Checker = (*PostgresStore)(nil)
)

// PostgresStore is the implementation of CatalogRepository backed by PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new repository instance with the given connection pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	if db == nil {
		panic("store: database pool cannot be nil")
	}
	return &PostgresStore{db: db}
}

// Name identifies the store as a catalog source.
func (s *PostgresStore) Name() string { return "postgres" }

// Load implements catalog.Source.
func (s *PostgresStore) Load(ctx context.Context) (catalog.Documents, error) {
	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		return catalog.Documents{}, err
	}
	return snap.Documents, nil
}

// Revision returns the current catalog revision.
func (s *PostgresStore) Revision(ctx context.Context) (int64, error) {
	var rev int64
	if err := s.db.QueryRow(ctx, `SELECT revision FROM catalog_revision`).Scan(&rev); err != nil {
		return 0, fmt.Errorf("failed to read catalog revision: %w", err)
	}
	return rev, nil
}

// Check reports the store ready once the catalog schema answers queries.
func (s *PostgresStore) Check(ctx context.Context) error {
	_, err := s.Revision(ctx)
	return err
}

const snapshotQuery = `
	SELECT
		r.revision,
		(SELECT coalesce(jsonb_agg(body ORDER BY position), '[]'::jsonb) FROM tips),
		(SELECT coalesce(jsonb_object_agg(id, body), '{}'::jsonb) FROM compound_rules),
		(SELECT coalesce(jsonb_agg(body ORDER BY position), '[]'::jsonb) FROM enrichments)
	FROM catalog_revision r
`

// LoadSnapshot reads all three tables and the revision in a single
// repeatable-read transaction, so the documents always match the revision.
func (s *PostgresStore) LoadSnapshot(ctx context.Context) (catalog.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return catalog.Snapshot{}, fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only

	var (
		snap                      catalog.Snapshot
		tipsDoc, rules, enrichDoc []byte
	)
	if err := tx.QueryRow(ctx, snapshotQuery).Scan(&snap.Revision, &tipsDoc, &rules, &enrichDoc); err != nil {
		return catalog.Snapshot{}, fmt.Errorf("failed to load catalog snapshot: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return catalog.Snapshot{}, fmt.Errorf("failed to commit snapshot transaction: %w", err)
	}

	snap.Documents = catalog.Documents{
		Tips:        tipsDoc,
		Rules:       rules,
		Enrichments: enrichDoc,
	}
	return snap, nil
}

// ReplaceCatalog swaps the stored catalog for docs in one transaction and
// bumps the revision. Invalid documents are rejected before any write.
func (s *PostgresStore) ReplaceCatalog(ctx context.Context, docs catalog.Documents) (int64, error) {
	if _, err := catalog.Build(docs); err != nil {
		return 0, fmt.Errorf("refusing to store invalid catalog: %w", err)
	}

	rows, err := splitDocuments(docs)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `TRUNCATE tips, compound_rules, enrichments`); err != nil {
		return 0, fmt.Errorf("failed to clear catalog tables: %w", err)
	}

	batch := &pgx.Batch{}
	for i, t := range rows.tips {
		batch.Queue(`INSERT INTO tips (position, tip_id, body) VALUES ($1, $2, $3::jsonb)`, i, t.id, string(t.body))
	}
	for id, body := range rows.rules {
		batch.Queue(`INSERT INTO compound_rules (id, body) VALUES ($1, $2::jsonb)`, id, string(body))
	}
	for i, body := range rows.enrichments {
		batch.Queue(`INSERT INTO enrichments (position, body) VALUES ($1, $2::jsonb)`, i, string(body))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		var pgErr *pgconn.PgError
		// Error Code 23505: unique_violation
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("duplicate tip id in catalog: %s", pgErr.Detail)
		}
		return 0, fmt.Errorf("failed to insert catalog rows: %w", err)
	}

	var rev int64
	err = tx.QueryRow(ctx, `
		UPDATE catalog_revision
		SET revision = revision + 1, updated_at = NOW()
		RETURNING revision
	`).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("failed to bump catalog revision: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit catalog: %w", err)
	}
	return rev, nil
}

type tipRow struct {
	id   string
	body json.RawMessage
}

type catalogRows struct {
	tips        []tipRow
	rules       map[string]json.RawMessage
	enrichments []json.RawMessage
}

// splitDocuments breaks the documents into one JSON body per row.
func splitDocuments(docs catalog.Documents) (catalogRows, error) {
	var out catalogRows

	var rawTips []json.RawMessage
	if err := decodeOptional(docs.Tips, &rawTips); err != nil {
		return out, fmt.Errorf("failed to split tips: %w", err)
	}
	for _, raw := range rawTips {
		var head struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return out, fmt.Errorf("failed to read tip id: %w", err)
		}
		out.tips = append(out.tips, tipRow{id: head.ID, body: raw})
	}

	if err := decodeOptional(docs.Rules, &out.rules); err != nil {
		return out, fmt.Errorf("failed to split compound rules: %w", err)
	}
	if err := decodeOptional(docs.Enrichments, &out.enrichments); err != nil {
		return out, fmt.Errorf("failed to split enrichments: %w", err)
	}
	return out, nil
}

func decodeOptional(data json.RawMessage, v any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	return json.Unmarshal(data, v)
}
