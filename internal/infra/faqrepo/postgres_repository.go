package faqrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/yanqian/eldertech-assistant/internal/domain/faq"
)

const entryColumns = `
	f.id, f.question, f.answer, f.category_id, COALESCE(c.name, ''), f.tags, f.priority,
	f.helpful_count, f.unhelpful_count, f.ask_count, f.semantic_hash,
	f.created_at, f.updated_at, f.last_asked_at`

const entryFrom = `
	FROM faqs f
	LEFT JOIN faq_categories c ON c.id = f.category_id`

// PostgresRepository implements faq.Repository using pgx and pgvector.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// List filters by category name and a case-insensitive substring of question or answer.
func (r *PostgresRepository) List(ctx context.Context, filter faq.ListFilter) ([]faq.Entry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+entryFrom+`
		WHERE ($1 = '' OR lower(c.name) = lower($1))
		  AND ($2 = '' OR f.question ILIKE '%' || $2 || '%' OR f.answer ILIKE '%' || $2 || '%')
		ORDER BY f.id
		LIMIT $3
	`, filter.Category, filter.Search, limit)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

// Get fetches by primary key.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (faq.Entry, bool, error) {
	return r.queryOne(ctx, `SELECT `+entryColumns+entryFrom+` WHERE f.id = $1`, id)
}

// Create inserts a new entry.
func (r *PostgresRepository) Create(ctx context.Context, entry faq.Entry, embedding []float32) (faq.Entry, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO faqs (question, question_key, answer, category_id, tags, embedding, semantic_hash, created_at, updated_at, priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, entry.Question, faq.NormalizeQuestion(entry.Question), entry.Answer, entry.CategoryID, tagsOrEmpty(entry.Tags),
		vectorArg(embedding), hashArg(entry.SemanticHash), entry.CreatedAt, entry.UpdatedAt, priorityOrDefault(entry.Priority)).Scan(&id)
	if err != nil {
		return faq.Entry{}, err
	}
	created, _, err := r.Get(ctx, id)
	return created, err
}

// Update replaces the editable columns. A nil embedding keeps the stored vector.
func (r *PostgresRepository) Update(ctx context.Context, entry faq.Entry, embedding []float32) (faq.Entry, bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE faqs
		SET question = $2, question_key = $3, answer = $4, category_id = $5, tags = $6,
		    embedding = COALESCE($7, embedding), semantic_hash = $8, updated_at = $9, priority = $10
		WHERE id = $1
	`, entry.ID, entry.Question, faq.NormalizeQuestion(entry.Question), entry.Answer, entry.CategoryID,
		tagsOrEmpty(entry.Tags), vectorArg(embedding), hashArg(entry.SemanticHash), entry.UpdatedAt, priorityOrDefault(entry.Priority))
	if err != nil {
		return faq.Entry{}, false, err
	}
	if tag.RowsAffected() == 0 {
		return faq.Entry{}, false, nil
	}
	return r.Get(ctx, entry.ID)
}

// Delete removes an entry and its feedback.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM faqs WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Categories lists categories with their entry counts.
func (r *PostgresRepository) Categories(ctx context.Context) ([]faq.Category, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.name, c.description, c.created_at, COUNT(f.id)
		FROM faq_categories c
		LEFT JOIN faqs f ON f.category_id = c.id
		GROUP BY c.id
		ORDER BY c.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []faq.Category
	for rows.Next() {
		var c faq.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.FAQCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// EnsureCategory upserts by case-insensitive name.
func (r *PostgresRepository) EnsureCategory(ctx context.Context, name, description string) (faq.Category, error) {
	var c faq.Category
	err := r.pool.QueryRow(ctx, `
		INSERT INTO faq_categories (name, description)
		VALUES ($1, $2)
		ON CONFLICT ((lower(name))) DO UPDATE SET name = faq_categories.name
		RETURNING id, name, description, created_at
	`, name, description).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	return c, err
}

// FindExact matches on the normalized question key.
func (r *PostgresRepository) FindExact(ctx context.Context, question string) (faq.Entry, bool, error) {
	return r.queryOne(ctx, `SELECT `+entryColumns+entryFrom+`
		WHERE f.question_key = $1
		ORDER BY f.id
		LIMIT 1
	`, faq.NormalizeQuestion(question))
}

// FindBySemanticHash fetches by deterministic hash.
func (r *PostgresRepository) FindBySemanticHash(ctx context.Context, hash uint64) (faq.Entry, bool, error) {
	return r.queryOne(ctx, `SELECT `+entryColumns+entryFrom+`
		WHERE f.semantic_hash = $1
		ORDER BY f.id
		LIMIT 1
	`, int64(hash))
}

// FindNearest returns the closest pgvector matches by L2 distance.
func (r *PostgresRepository) FindNearest(ctx context.Context, embedding []float32, limit int) ([]faq.SimilarityMatch, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+`, f.embedding <-> $1 AS distance`+entryFrom+`
		WHERE f.embedding IS NOT NULL
		ORDER BY f.embedding <-> $1, f.id
		LIMIT $2
	`, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []faq.SimilarityMatch
	for rows.Next() {
		var distance float64
		entry, err := scanEntry(rows, &distance)
		if err != nil {
			return nil, err
		}
		out = append(out, faq.SimilarityMatch{Entry: entry, Distance: distance})
	}
	return out, rows.Err()
}

// RecordFeedback stores the feedback row and bumps the counter in one transaction.
func (r *PostgresRepository) RecordFeedback(ctx context.Context, fb faq.Feedback) (faq.Entry, bool, error) {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE faqs
			SET helpful_count = helpful_count + CASE WHEN $2 THEN 1 ELSE 0 END,
			    unhelpful_count = unhelpful_count + CASE WHEN $2 THEN 0 ELSE 1 END
			WHERE id = $1
		`, fb.EntryID, fb.Helpful)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errEntryMissing
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO faq_feedback (faq_id, user_id, helpful, feedback_text, created_at)
			VALUES ($1, NULLIF($2, 0), $3, $4, $5)
		`, fb.EntryID, fb.UserID, fb.Helpful, fb.Text, fb.CreatedAt)
		return err
	})
	if errors.Is(err, errEntryMissing) {
		return faq.Entry{}, false, nil
	}
	if err != nil {
		return faq.Entry{}, false, err
	}
	return r.Get(ctx, fb.EntryID)
}

// MarkAsked bumps ask_count and last_asked_at.
func (r *PostgresRepository) MarkAsked(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE faqs
		SET ask_count = ask_count + 1,
		    last_asked_at = GREATEST(COALESCE(last_asked_at, $2), $2)
		WHERE id = $1
	`, id, at)
	return err
}

// Snapshot reads every entry ordered by id.
func (r *PostgresRepository) Snapshot(ctx context.Context) ([]faq.Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+entryFrom+` ORDER BY f.id`)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (faq.Entry, bool, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return faq.Entry{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return faq.Entry{}, false, rows.Err()
	}
	entry, err := scanEntry(rows)
	if err != nil {
		return faq.Entry{}, false, err
	}
	return entry, true, rows.Err()
}

func collectEntries(rows pgx.Rows) ([]faq.Entry, error) {
	defer rows.Close()
	out := make([]faq.Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

var errEntryMissing = errors.New("faq entry missing")

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner, extras ...any) (faq.Entry, error) {
	var (
		entry     faq.Entry
		semantic  sql.NullInt64
		lastAsked sql.NullTime
	)
	args := []any{
		&entry.ID, &entry.Question, &entry.Answer, &entry.CategoryID, &entry.Category, &entry.Tags, &entry.Priority,
		&entry.HelpfulCount, &entry.UnhelpfulCount, &entry.AskCount, &semantic,
		&entry.CreatedAt, &entry.UpdatedAt, &lastAsked,
	}
	if err := row.Scan(append(args, extras...)...); err != nil {
		return faq.Entry{}, err
	}
	if semantic.Valid {
		hash := uint64(semantic.Int64)
		entry.SemanticHash = &hash
	}
	if lastAsked.Valid {
		entry.LastAskedAt = lastAsked.Time.UTC()
	}
	if entry.Tags == nil {
		entry.Tags = []string{}
	}
	return entry, nil
}

func vectorArg(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	v := pgvector.NewVector(embedding)
	return &v
}

func hashArg(hash *uint64) any {
	if hash == nil {
		return nil
	}
	return int64(*hash)
}

func priorityOrDefault(priority int) int {
	if priority <= 0 {
		return faq.DefaultPriority
	}
	return priority
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

var _ faq.Repository = (*PostgresRepository)(nil)
