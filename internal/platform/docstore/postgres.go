package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/synergyos/synergyos/internal/platform/db"
	"github.com/synergyos/synergyos/internal/shared"
)

const uniqueViolation = "23505"

// PostgresStore keeps every collection in a single JSONB table.
type PostgresStore struct {
	pool  *pgxpool.Pool
	clock func() time.Time
}

// NewPostgres wires the store to an existing pool.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, clock: time.Now}
}

// EnsureSchema creates the documents table and one expression index per
// schema index. Safe to call on every boot, including from several
// processes at once.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	return db.WithAdvisoryLock(ctx, s.pool, "docstore:schema", func(tx pgx.Tx) error {
		for _, stmt := range schemaStatements() {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("docstore: ensure schema: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) Insert(ctx context.Context, collection string, doc any) (Record, error) {
	if err := checkCollection(collection); err != nil {
		return Record{}, err
	}
	id := NewID()
	createdAt := s.clock().UTC()
	body, _, err := encodeBody(doc, id, createdAt)
	if err != nil {
		return Record{}, err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, body, created_at) VALUES ($1, $2, $3, $4)`,
		collection, id, []byte(body), createdAt)
	if err != nil {
		return Record{}, mapError("insert", collection, err)
	}
	return Record{ID: id, CreatedAt: createdAt, Body: body}, nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Record, error) {
	if err := checkCollection(collection); err != nil {
		return Record{}, err
	}
	var rec Record
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, created_at, body FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&rec.ID, &rec.CreatedAt, &body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, fmt.Errorf("%w: %s/%s", shared.ErrNotFound, collection, id)
		}
		return Record{}, mapError("get", collection, err)
	}
	rec.Body = body
	return rec, nil
}

func (s *PostgresStore) Query(ctx context.Context, collection, index string, values ...string) ([]Record, error) {
	idx, err := lookupIndex(collection, index, values)
	if err != nil {
		return nil, err
	}
	query, args := buildQuery(collection, idx.Fields[:len(values)], values)
	return s.collect(ctx, collection, query, args...)
}

func (s *PostgresStore) List(ctx context.Context, collection string) ([]Record, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	query, args := buildQuery(collection, nil, nil)
	return s.collect(ctx, collection, query, args...)
}

func (s *PostgresStore) collect(ctx context.Context, collection, query string, args ...any) ([]Record, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("query", collection, err)
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		var rec Record
		var body []byte
		if err := rows.Scan(&rec.ID, &rec.CreatedAt, &body); err != nil {
			return nil, mapError("scan", collection, err)
		}
		rec.Body = body
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("query", collection, err)
	}
	return out, nil
}

func (s *PostgresStore) Replace(ctx context.Context, collection, id string, doc any) error {
	current, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	body, _, err := encodeBody(doc, id, current.CreatedAt)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET body = $3 WHERE collection = $1 AND id = $2`,
		collection, id, []byte(body))
	if err != nil {
		return mapError("replace", collection, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s/%s", shared.ErrNotFound, collection, id)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return mapError("delete", collection, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s/%s", shared.ErrNotFound, collection, id)
	}
	return nil
}

func buildQuery(collection string, fields, values []string) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT id, created_at, body FROM documents WHERE collection = $1`)
	args := make([]any, 0, len(values)+1)
	args = append(args, collection)
	for i, field := range fields {
		fmt.Fprintf(&b, ` AND %s = $%d`, fieldExpr(field), i+2)
		args = append(args, values[i])
	}
	b.WriteString(` ORDER BY id`)
	return b.String(), args
}

func fieldExpr(field string) string {
	return fmt.Sprintf(`COALESCE(body->>'%s', '')`, strings.ReplaceAll(field, "'", "''"))
}

func schemaStatements() []string {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			body JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, id)
		)`,
	}
	for _, collection := range sortedCollections() {
		for _, idx := range Schema[collection] {
			exprs := make([]string, len(idx.Fields))
			for i, f := range idx.Fields {
				exprs[i] = "(" + fieldExpr(f) + ")"
			}
			kind := "INDEX"
			if idx.Unique {
				kind = "UNIQUE INDEX"
			}
			stmts = append(stmts, fmt.Sprintf(
				`CREATE %s IF NOT EXISTS documents_%s_%s ON documents (%s) WHERE collection = '%s'`,
				kind, strings.ToLower(collection), idx.Name, strings.Join(exprs, ", "), collection))
		}
	}
	return stmts
}

func sortedCollections() []string {
	return []string{Circles, CircleVersions, Flashcards, Permissions, Policies, RoleAssignments, RolePermissions, Roles}
}

func mapError(op, collection string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s %s: %s", shared.ErrConflict, op, collection, pgErr.ConstraintName)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: docstore: %s %s: %w", shared.ErrStoreUnavailable, op, collection, err)
}
