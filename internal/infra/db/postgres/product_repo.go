package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"grocery-price-assistant/internal/derror"
	"grocery-price-assistant/internal/domain/model"
	"grocery-price-assistant/internal/domain/ports/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

type ProductRepo struct {
	pool *pgxpool.Pool
}

func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

// EnsureSchema creates the products table when it does not exist yet.
func (r *ProductRepo) EnsureSchema(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS products (
  id          BIGSERIAL PRIMARY KEY,
  source      TEXT NOT NULL,
  name        TEXT NOT NULL,
  quantity    TEXT NOT NULL DEFAULT '',
  price       TEXT NOT NULL,
  discount    TEXT NOT NULL DEFAULT 'No Discount',
  source_url  TEXT NOT NULL DEFAULT '',
  scraped_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (source, name, quantity)
);
CREATE INDEX IF NOT EXISTS products_source_name_idx ON products (source, lower(name));
`
	_, err := r.pool.Exec(ctx, q)
	return err
}

// SaveBatch inserts scraped records, skipping duplicates of the same
// (source, name, quantity) listing. Returns the number of rows written.
func (r *ProductRepo) SaveBatch(ctx context.Context, products []*model.Product) (int, error) {
	const q = `
INSERT INTO products (source, name, quantity, price, discount, source_url, scraped_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (source, name, quantity) DO UPDATE SET
  price=$4, discount=$5, source_url=$6, scraped_at=$7;
`
	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(q, p.Source, p.Name, p.Quantity, p.Price, p.Discount, p.SourceURL, p.ScrapedAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	written := 0
	for range products {
		if _, err := results.Exec(); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				return written, fmt.Errorf("insert product (%s): %w", pgErr.Code, err)
			}
			return written, fmt.Errorf("insert product: %w", err)
		}
		written++
	}
	return written, nil
}

// Lookup binds the repo to one source as a ProductLookup.
func (r *ProductRepo) Lookup(source model.Source) repository.ProductLookup {
	return &sourceLookup{repo: r, source: source}
}

func (r *ProductRepo) Stats(ctx context.Context) ([]repository.SourceStats, error) {
	rows, err := r.pool.Query(ctx, `SELECT source, COUNT(*), MAX(scraped_at) FROM products GROUP BY source ORDER BY source;`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var stats []repository.SourceStats
	for rows.Next() {
		var s repository.SourceStats
		if err := rows.Scan(&s.Source, &s.Products, &s.LastScraped); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

type sourceLookup struct {
	repo   *ProductRepo
	source model.Source
}

// FindByName does a case-insensitive substring match and returns the first
// hit only, mirroring the lookup contract the chat core expects.
func (l *sourceLookup) FindByName(ctx context.Context, name string) (*model.Product, error) {
	const q = `
SELECT id, source, name, quantity, price, discount, source_url, scraped_at
  FROM products
 WHERE source = $1 AND name ILIKE '%' || $2 || '%' ESCAPE '\'
 ORDER BY id
 LIMIT 1;
`
	row := l.repo.pool.QueryRow(ctx, q, l.source, escapeLike(name))
	var p model.Product
	err := row.Scan(&p.ID, &p.Source, &p.Name, &p.Quantity, &p.Price, &p.Discount, &p.SourceURL, &p.ScrapedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, derror.ErrNotFound
		}
		return nil, fmt.Errorf("find by name: %w", err)
	}
	return &p, nil
}

// escapeLike neutralizes LIKE metacharacters in user input so the query
// stays a plain substring match.
func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}
