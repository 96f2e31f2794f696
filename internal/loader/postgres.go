package loader

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresWriter persists batches to Postgres. Each flush is one transaction
// using COPY for the three tables, so a batch lands atomically or not at all.
type PostgresWriter struct {
	db          *sql.DB
	postColumns []string
}

// NewPostgresWriter creates a writer inserting post tuples under the given
// column list (see catalog.TupleColumns).
func NewPostgresWriter(db *sql.DB, postColumns []string) *PostgresWriter {
	return &PostgresWriter{db: db, postColumns: postColumns}
}

// RegisterTag inserts a tag row and returns its assigned identifier.
func (w *PostgresWriter) RegisterTag(ctx context.Context, name string) (int64, error) {
	var id int64
	err := w.db.QueryRowContext(ctx,
		`INSERT INTO tags (name, post_count) VALUES ($1, 0) RETURNING id`,
		name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert tag: %w", err)
	}
	return id, nil
}

// Flush writes all three buffers in a single transaction.
func (w *PostgresWriter) Flush(ctx context.Context, batch *Batch) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if len(batch.Posts) > 0 {
		rows := make([][]any, len(batch.Posts))
		copy(rows, batch.Posts)
		if err := w.copyRows(ctx, tx, "posts", w.postColumns, rows); err != nil {
			return err
		}
	}
	if len(batch.PostTags) > 0 {
		rows := make([][]any, 0, len(batch.PostTags))
		for _, link := range batch.PostTags {
			rows = append(rows, []any{link.PostID, link.TagID})
		}
		if err := w.copyRows(ctx, tx, "post_tags", []string{"post_id", "tag_id"}, rows); err != nil {
			return err
		}
	}
	if len(batch.Sources) > 0 {
		rows := make([][]any, 0, len(batch.Sources))
		for _, src := range batch.Sources {
			rows = append(rows, []any{src.PostID, src.URL})
		}
		if err := w.copyRows(ctx, tx, "sources", []string{"post_id", "url"}, rows); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (w *PostgresWriter) copyRows(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, columns...))
	if err != nil {
		return fmt.Errorf("prepare copy into %s: %w", table, err)
	}
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			stmt.Close()
			return fmt.Errorf("copy row into %s: %w", table, err)
		}
	}
	// Final Exec drains the COPY buffer.
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("finish copy into %s: %w", table, err)
	}
	return stmt.Close()
}

// TruncateAll removes existing content ahead of a full reload.
func (w *PostgresWriter) TruncateAll(ctx context.Context) error {
	_, err := w.db.ExecContext(ctx, `TRUNCATE TABLE sources, post_tags, tags, posts`)
	if err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}
