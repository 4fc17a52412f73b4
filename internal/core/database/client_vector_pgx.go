package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/embedding-forge/internal/config"
	"github.com/markdave123-py/embedding-forge/internal/core"
	"github.com/markdave123-py/embedding-forge/internal/models"
)

type VectorClient struct {
	db *sql.DB
}

var _ core.VectorStore = (*VectorClient)(nil)

func NewVectorClient(ctx context.Context, cfg *config.Config) (*VectorClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("vector client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	dsn := cfg.DatabaseURL
	if cfg.SslCertPath != "" {
		if _, err := os.Stat(cfg.SslCertPath); err != nil {
			return nil, fmt.Errorf("ssl cert not accessible at %q: %w", cfg.SslCertPath, err)
		}
		u, err := url.Parse(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		q := u.Query()
		q.Set("sslmode", "verify-ca")
		q.Set("sslrootcert", cfg.SslCertPath)
		u.RawQuery = q.Encode()
		dsn = u.String()
	}

	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for a batch job; adjust as needed.
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	ctxPing, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctxPing); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &VectorClient{db: sqlDB}, nil
}

func (c *VectorClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// UpsertRecord writes one vector row, replacing any previous row with the
// same id.
func (c *VectorClient) UpsertRecord(ctx context.Context, rec models.EmbeddingRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("empty record id")
	}
	if len(rec.Vector) == 0 {
		return fmt.Errorf("empty vector for %s", rec.ID)
	}

	const q = `
		INSERT INTO embedding_records
			(id, embedding, bucket_name, object_key, chunk_index, chunk_text, source, file_type, title, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (id) DO UPDATE SET
			embedding   = EXCLUDED.embedding,
			bucket_name = EXCLUDED.bucket_name,
			object_key  = EXCLUDED.object_key,
			chunk_index = EXCLUDED.chunk_index,
			chunk_text  = EXCLUDED.chunk_text,
			source      = EXCLUDED.source,
			file_type   = EXCLUDED.file_type,
			title       = EXCLUDED.title,
			updated_at  = now()
	`
	vec := pgvector.NewVector(rec.Vector)
	_, err := c.db.ExecContext(ctx, q,
		rec.ID, vec, rec.Meta.BucketName, rec.Meta.ObjectKey, rec.Meta.ChunkIndex,
		rec.Meta.ChunkText, rec.Meta.Source, rec.Meta.FileType, rec.Meta.Title)
	return err
}

// ListIDsByPrefix returns every record id starting with prefix, in
// chunk-index order.
func (c *VectorClient) ListIDsByPrefix(ctx context.Context, prefix string) ([]string, error) {
	const q = `
		SELECT id FROM embedding_records
		WHERE id LIKE $1 ESCAPE '\'
		ORDER BY chunk_index ASC
	`
	rows, err := c.db.QueryContext(ctx, q, escapeLike(prefix)+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteByIDs removes the given records in a single transaction. Missing ids
// are not an error.
func (c *VectorClient) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `DELETE FROM embedding_records WHERE id = $1`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// DeleteByFilter removes every record matching the non-zero filter fields.
// An all-zero filter is rejected rather than matching everything.
func (c *VectorClient) DeleteByFilter(ctx context.Context, filter core.RecordFilter) error {
	var (
		conds []string
		args  []any
	)
	if filter.BucketName != "" {
		args = append(args, filter.BucketName)
		conds = append(conds, fmt.Sprintf("bucket_name = $%d", len(args)))
	}
	if filter.ObjectKey != "" {
		args = append(args, filter.ObjectKey)
		conds = append(conds, fmt.Sprintf("object_key = $%d", len(args)))
	}
	if filter.FileType != "" {
		args = append(args, filter.FileType)
		conds = append(conds, fmt.Sprintf("file_type = $%d", len(args)))
	}
	if len(conds) == 0 {
		return fmt.Errorf("empty record filter")
	}

	q := "DELETE FROM embedding_records WHERE " + strings.Join(conds, " AND ")
	_, err := c.db.ExecContext(ctx, q, args...)
	return err
}

// escapeLike neutralizes LIKE metacharacters so a prefix containing "%" or
// "_" only matches itself.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
