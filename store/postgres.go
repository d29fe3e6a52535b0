package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/use-agent/jobscout/models"
)

// schema keeps the whole record as JSONB next to the columns that are
// filtered, sorted or unique-constrained.
const schema = `
CREATE TABLE IF NOT EXISTS job_records (
	job_id         TEXT PRIMARY KEY,
	job_hash       TEXT NOT NULL UNIQUE,
	url            TEXT NOT NULL UNIQUE,
	status         TEXT NOT NULL,
	platform       TEXT NOT NULL,
	title          TEXT NOT NULL,
	company        TEXT NOT NULL,
	location       TEXT NOT NULL,
	match_score    INTEGER NOT NULL DEFAULT 0,
	priority_score INTEGER NOT NULL DEFAULT 0,
	scraped_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	doc            JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS job_records_status_match_idx ON job_records (status, match_score DESC);
CREATE INDEX IF NOT EXISTS job_records_scraped_at_idx ON job_records (scraped_at);
CREATE INDEX IF NOT EXISTS job_records_priority_idx ON job_records (priority_score DESC, scraped_at DESC);
`

const pgUniqueViolation = "23505"

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL, verifies the connection and applies
// the schema.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) InsertIfAbsent(ctx context.Context, rec *models.JobRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO job_records (job_id, job_hash, url, status, platform, title, company, location,
		                          match_score, priority_score, scraped_at, updated_at, doc)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT DO NOTHING`,
		rec.JobID, rec.JobHash, rec.Source.URL, string(rec.Status), string(rec.Source.Platform),
		rec.Title, rec.Company, rec.Location, rec.Quality.MatchScore, rec.Quality.PriorityScore,
		rec.Source.ScrapedAt, rec.UpdatedAt, doc,
	)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", rec.JobID, ErrDuplicate)
	}
	return nil
}

func (p *Postgres) FindByKeys(ctx context.Context, hash, url, id string) (*models.JobRecord, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT doc FROM job_records
		 WHERE ($1 <> '' AND job_hash = $1) OR ($2 <> '' AND url = $2) OR ($3 <> '' AND job_id = $3)
		 ORDER BY CASE WHEN job_hash = $1 THEN 0 WHEN url = $2 THEN 1 ELSE 2 END
		 LIMIT 1`,
		hash, url, id,
	)
	return scanRecord(row)
}

func (p *Postgres) Get(ctx context.Context, id string) (*models.JobRecord, error) {
	return scanRecord(p.pool.QueryRow(ctx, `SELECT doc FROM job_records WHERE job_id = $1`, id))
}

func (p *Postgres) Update(ctx context.Context, rec *models.JobRecord) error {
	return p.update(ctx, rec, "")
}

func (p *Postgres) UpdateIf(ctx context.Context, rec *models.JobRecord, expect models.Status) error {
	return p.update(ctx, rec, expect)
}

// update rewrites the row. A non-empty expect is checked in the WHERE
// clause, so the compare and the write are one statement.
func (p *Postgres) update(ctx context.Context, rec *models.JobRecord, expect models.Status) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	tag, err := p.pool.Exec(ctx,
		`UPDATE job_records SET job_hash = $2, url = $3, status = $4, platform = $5, title = $6,
		        company = $7, location = $8, match_score = $9, priority_score = $10,
		        scraped_at = $11, updated_at = $12, doc = $13
		 WHERE job_id = $1 AND ($14::text = '' OR status = $14::text)`,
		rec.JobID, rec.JobHash, rec.Source.URL, string(rec.Status), string(rec.Source.Platform),
		rec.Title, rec.Company, rec.Location, rec.Quality.MatchScore, rec.Quality.PriorityScore,
		rec.Source.ScrapedAt, rec.UpdatedAt, doc, string(expect),
	)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if expect == "" {
		return ErrNotFound
	}

	var current string
	err = p.pool.QueryRow(ctx, `SELECT status FROM job_records WHERE job_id = $1`, rec.JobID).Scan(&current)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case err != nil:
		return classify(err)
	}
	return fmt.Errorf("job %s is %s, not %s: %w", rec.JobID, current, expect, ErrConflict)
}

// UpdateStatus rewrites the status column and the copy inside doc in one
// statement.
func (p *Postgres) UpdateStatus(ctx context.Context, f Filter, status models.Status, at time.Time) (int64, error) {
	where, args := f.sql(3)
	args = append([]any{string(status), at}, args...)
	q := `UPDATE job_records
	      SET status = $1, updated_at = $2,
	          doc = jsonb_set(jsonb_set(doc, '{status}', to_jsonb($1::text)), '{updated_at}', to_jsonb($2::timestamptz))
	      WHERE status <> $1` + strings.Replace(where, "WHERE", " AND", 1)
	tag, err := p.pool.Exec(ctx, q, args...)
	if err != nil {
		return 0, classify(err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) Count(ctx context.Context, f Filter) (int64, error) {
	where, args := f.sql(1)
	var n int64
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM job_records`+where, args...).Scan(&n); err != nil {
		return 0, classify(err)
	}
	return n, nil
}

func (p *Postgres) List(ctx context.Context, q Query) ([]*models.JobRecord, int64, error) {
	total, err := p.Count(ctx, q.Filter)
	if err != nil {
		return nil, 0, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	where, args := q.sql(1)
	n := len(args)
	args = append(args, limit, max(q.Offset, 0))
	rows, err := p.pool.Query(ctx,
		`SELECT doc FROM job_records`+where+
			` ORDER BY priority_score DESC, scraped_at DESC, job_id`+
			` LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2),
		args...,
	)
	if err != nil {
		return nil, 0, classify(err)
	}
	defer rows.Close()

	var out []*models.JobRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify(err)
	}
	return out, total, nil
}

func (p *Postgres) Stats(ctx context.Context) (*models.JobStats, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT status, platform, count(*) FROM job_records GROUP BY status, platform`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	stats := &models.JobStats{
		ByStatus:   make(map[models.Status]int64),
		ByPlatform: make(map[models.Platform]int64),
	}
	for rows.Next() {
		var status, platform string
		var n int64
		if err := rows.Scan(&status, &platform, &n); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		stats.Total += n
		stats.ByStatus[models.Status(status)] += n
		stats.ByPlatform[models.Platform(platform)] += n
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return stats, nil
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM job_records WHERE job_id = $1`, id)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM job_records`)
	if err != nil {
		return 0, classify(err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (p *Postgres) Close() { p.pool.Close() }

// sql renders f as a WHERE clause whose placeholders start at $first.
func (f Filter) sql(first int) (string, []any) {
	var conds []string
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(first+len(args)-1)
	}

	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		conds = append(conds, "status = ANY("+next(statuses)+")")
	}
	if f.Platform != "" {
		conds = append(conds, "platform = "+next(string(f.Platform)))
	}
	if !f.ScrapedBefore.IsZero() {
		conds = append(conds, "scraped_at < "+next(f.ScrapedBefore))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		ph := next("%" + likeEscaper.Replace(s) + "%")
		conds = append(conds, "(title ILIKE "+ph+" OR company ILIKE "+ph+" OR location ILIKE "+ph+")")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func scanRecord(row pgx.Row) (*models.JobRecord, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, classify(err)
	}
	var rec models.JobRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	rec.Normalize()
	return &rec, nil
}

// classify maps driver errors onto the package sentinels. Errors the server
// answered (constraint violations aside) pass through; anything else means
// the database could not be reached.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrDuplicate)
		}
		return fmt.Errorf("postgres: %w", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
