package faqrepo

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yanqian/eldertech-assistant/internal/domain/faq"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

const sqliteEntryColumns = `
	f.id, f.question, f.answer, COALESCE(f.category_id, 0), COALESCE(c.name, ''), f.tags, f.priority,
	f.helpful_count, f.unhelpful_count, f.ask_count, f.semantic_hash,
	f.created_at, f.updated_at, f.last_asked_at`

// SQLiteRepository implements faq.Repository on a local SQLite file. Nearest neighbour
// search scans the stored vectors in process.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens path (":memory:" for an ephemeral database) and applies the schema.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps pragmas and :memory: databases consistent.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Close releases the database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// List implements faq.Repository.
func (r *SQLiteRepository) List(ctx context.Context, filter faq.ListFilter) ([]faq.Entry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	like := "%" + strings.ToLower(filter.Search) + "%"
	return r.queryEntries(ctx, `SELECT `+sqliteEntryColumns+`
		FROM faqs f LEFT JOIN faq_categories c ON c.id = f.category_id
		WHERE (? = '' OR c.name = ? COLLATE NOCASE)
		  AND (? = '' OR lower(f.question) LIKE ? OR lower(f.answer) LIKE ?)
		ORDER BY f.id
		LIMIT ?`,
		filter.Category, filter.Category, filter.Search, like, like, limit)
}

// Get implements faq.Repository.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (faq.Entry, bool, error) {
	return r.queryOne(ctx, `SELECT `+sqliteEntryColumns+`
		FROM faqs f LEFT JOIN faq_categories c ON c.id = f.category_id
		WHERE f.id = ?`, id)
}

// Create implements faq.Repository.
func (r *SQLiteRepository) Create(ctx context.Context, entry faq.Entry, embedding []float32) (faq.Entry, error) {
	tags, err := json.Marshal(tagsOrEmpty(entry.Tags))
	if err != nil {
		return faq.Entry{}, err
	}
	vector, err := encodeVector(embedding)
	if err != nil {
		return faq.Entry{}, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO faqs (question, question_key, answer, category_id, tags, embedding, semantic_hash, created_at, updated_at, priority)
		VALUES (?, ?, ?, NULLIF(?, 0), ?, ?, ?, ?, ?, ?)`,
		entry.Question, faq.NormalizeQuestion(entry.Question), entry.Answer, entry.CategoryID, string(tags),
		vector, hashArg(entry.SemanticHash), formatTime(entry.CreatedAt), formatTime(entry.UpdatedAt), priorityOrDefault(entry.Priority))
	if err != nil {
		return faq.Entry{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return faq.Entry{}, err
	}
	created, _, err := r.Get(ctx, id)
	return created, err
}

// Update implements faq.Repository. A nil embedding keeps the stored vector.
func (r *SQLiteRepository) Update(ctx context.Context, entry faq.Entry, embedding []float32) (faq.Entry, bool, error) {
	tags, err := json.Marshal(tagsOrEmpty(entry.Tags))
	if err != nil {
		return faq.Entry{}, false, err
	}
	vector, err := encodeVector(embedding)
	if err != nil {
		return faq.Entry{}, false, err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE faqs
		SET question = ?, question_key = ?, answer = ?, category_id = NULLIF(?, 0), tags = ?,
		    embedding = COALESCE(?, embedding), semantic_hash = ?, updated_at = ?, priority = ?
		WHERE id = ?`,
		entry.Question, faq.NormalizeQuestion(entry.Question), entry.Answer, entry.CategoryID, string(tags),
		vector, hashArg(entry.SemanticHash), formatTime(entry.UpdatedAt), priorityOrDefault(entry.Priority), entry.ID)
	if err != nil {
		return faq.Entry{}, false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return faq.Entry{}, false, nil
	}
	return r.Get(ctx, entry.ID)
}

// Delete implements faq.Repository.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM faqs WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Categories implements faq.Repository.
func (r *SQLiteRepository) Categories(ctx context.Context) ([]faq.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.description, c.created_at, COUNT(f.id)
		FROM faq_categories c
		LEFT JOIN faqs f ON f.category_id = c.id
		GROUP BY c.id
		ORDER BY c.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []faq.Category
	for rows.Next() {
		var (
			c       faq.Category
			created string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &created, &c.FAQCount); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(created)
		out = append(out, c)
	}
	return out, rows.Err()
}

// EnsureCategory implements faq.Repository.
func (r *SQLiteRepository) EnsureCategory(ctx context.Context, name, description string) (faq.Category, error) {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO faq_categories (name, description, created_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO NOTHING`, name, description, formatTime(time.Now())); err != nil {
		return faq.Category{}, err
	}
	var (
		c       faq.Category
		created string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at FROM faq_categories WHERE name = ? COLLATE NOCASE`, name).
		Scan(&c.ID, &c.Name, &c.Description, &created)
	c.CreatedAt = parseTime(created)
	return c, err
}

// FindExact implements faq.Repository.
func (r *SQLiteRepository) FindExact(ctx context.Context, question string) (faq.Entry, bool, error) {
	return r.queryOne(ctx, `SELECT `+sqliteEntryColumns+`
		FROM faqs f LEFT JOIN faq_categories c ON c.id = f.category_id
		WHERE f.question_key = ?
		ORDER BY f.id LIMIT 1`, faq.NormalizeQuestion(question))
}

// FindBySemanticHash implements faq.Repository.
func (r *SQLiteRepository) FindBySemanticHash(ctx context.Context, hash uint64) (faq.Entry, bool, error) {
	return r.queryOne(ctx, `SELECT `+sqliteEntryColumns+`
		FROM faqs f LEFT JOIN faq_categories c ON c.id = f.category_id
		WHERE f.semantic_hash = ?
		ORDER BY f.id LIMIT 1`, int64(hash))
}

// FindNearest implements faq.Repository.
func (r *SQLiteRepository) FindNearest(ctx context.Context, embedding []float32, limit int) ([]faq.SimilarityMatch, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sqliteEntryColumns+`, f.embedding
		FROM faqs f LEFT JOIN faq_categories c ON c.id = f.category_id
		WHERE f.embedding IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []faq.SimilarityMatch
	for rows.Next() {
		var raw string
		entry, err := scanSQLiteEntry(rows, &raw)
		if err != nil {
			return nil, err
		}
		var stored []float32
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return nil, fmt.Errorf("decode embedding for faq %d: %w", entry.ID, err)
		}
		out = append(out, faq.SimilarityMatch{Entry: entry, Distance: euclideanDistance(embedding, stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nearest(out, limit), nil
}

// RecordFeedback implements faq.Repository.
func (r *SQLiteRepository) RecordFeedback(ctx context.Context, fb faq.Feedback) (faq.Entry, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return faq.Entry{}, false, err
	}
	defer tx.Rollback()

	column := "unhelpful_count"
	if fb.Helpful {
		column = "helpful_count"
	}
	res, err := tx.ExecContext(ctx, `UPDATE faqs SET `+column+` = `+column+` + 1 WHERE id = ?`, fb.EntryID)
	if err != nil {
		return faq.Entry{}, false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return faq.Entry{}, false, nil
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO faq_feedback (faq_id, user_id, helpful, feedback_text, created_at)
		VALUES (?, NULLIF(?, 0), ?, ?, ?)`,
		fb.EntryID, fb.UserID, fb.Helpful, fb.Text, formatTime(fb.CreatedAt)); err != nil {
		return faq.Entry{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return faq.Entry{}, false, err
	}
	return r.Get(ctx, fb.EntryID)
}

// MarkAsked implements faq.Repository.
func (r *SQLiteRepository) MarkAsked(ctx context.Context, id int64, at time.Time) error {
	ts := formatTime(at)
	_, err := r.db.ExecContext(ctx, `
		UPDATE faqs
		SET ask_count = ask_count + 1,
		    last_asked_at = CASE WHEN last_asked_at IS NULL OR last_asked_at < ? THEN ? ELSE last_asked_at END
		WHERE id = ?`, ts, ts, id)
	return err
}

// Snapshot implements faq.Repository.
func (r *SQLiteRepository) Snapshot(ctx context.Context) ([]faq.Entry, error) {
	return r.queryEntries(ctx, `SELECT `+sqliteEntryColumns+`
		FROM faqs f LEFT JOIN faq_categories c ON c.id = f.category_id
		ORDER BY f.id`)
}

func (r *SQLiteRepository) queryEntries(ctx context.Context, query string, args ...any) ([]faq.Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]faq.Entry, 0)
	for rows.Next() {
		entry, err := scanSQLiteEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) queryOne(ctx context.Context, query string, args ...any) (faq.Entry, bool, error) {
	entry, err := scanSQLiteEntry(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return faq.Entry{}, false, nil
	}
	if err != nil {
		return faq.Entry{}, false, err
	}
	return entry, true, nil
}

func scanSQLiteEntry(row rowScanner, extras ...any) (faq.Entry, error) {
	var (
		entry     faq.Entry
		tags      string
		semantic  sql.NullInt64
		created   string
		updated   string
		lastAsked sql.NullString
	)
	args := []any{
		&entry.ID, &entry.Question, &entry.Answer, &entry.CategoryID, &entry.Category, &tags, &entry.Priority,
		&entry.HelpfulCount, &entry.UnhelpfulCount, &entry.AskCount, &semantic,
		&created, &updated, &lastAsked,
	}
	if err := row.Scan(append(args, extras...)...); err != nil {
		return faq.Entry{}, err
	}
	if err := json.Unmarshal([]byte(tags), &entry.Tags); err != nil || entry.Tags == nil {
		entry.Tags = []string{}
	}
	if semantic.Valid {
		hash := uint64(semantic.Int64)
		entry.SemanticHash = &hash
	}
	entry.CreatedAt = parseTime(created)
	entry.UpdatedAt = parseTime(updated)
	if lastAsked.Valid {
		entry.LastAskedAt = parseTime(lastAsked.String)
	}
	return entry, nil
}

func encodeVector(embedding []float32) (any, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(embedding)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Timestamps are stored as fixed-width UTC strings so they compare lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

var _ faq.Repository = (*SQLiteRepository)(nil)
