package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when the referenced title does not exist.
	ErrNotFound = errors.New("title not found")
	// ErrDuplicate is returned when a (topic, title) pair is already saved.
	ErrDuplicate = errors.New("title already saved for this topic")
)

// maxListResults caps ListTitles output. There is no pagination beyond this.
const maxListResults = 50

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS blog_titles (
        id TEXT PRIMARY KEY, -- UUID
        topic TEXT NOT NULL,
        title TEXT NOT NULL,
        category TEXT,
        is_favorite BOOLEAN NOT NULL DEFAULT TRUE,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        UNIQUE (topic, title)
    );

    CREATE TABLE IF NOT EXISTS generation_history (
        id TEXT PRIMARY KEY, -- UUID
        topic TEXT NOT NULL,
        titles TEXT NOT NULL, -- JSON array of generated titles
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// CreateTitle saves a new title for a topic. The UNIQUE(topic, title) index is
// the authority on duplicates: a constraint violation from the insert itself is
// reported as ErrDuplicate, so concurrent saves cannot both slip past a check.
func (s *SQLiteStore) CreateTitle(topic, title string, category *string) (*SavedTitle, error) {
	saved := &SavedTitle{
		ID:         uuid.NewString(),
		Topic:      strings.TrimSpace(topic),
		Title:      strings.TrimSpace(title),
		Category:   category,
		IsFavorite: true, // Default to favorite when saving
	}

	stmt, err := s.db.Prepare("INSERT INTO blog_titles (id, topic, title, category, is_favorite, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare title insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	saved.CreatedAt = now
	saved.UpdatedAt = now

	_, err = stmt.Exec(saved.ID, saved.Topic, saved.Title, saved.Category, saved.IsFavorite, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to execute title insert: %w", err)
	}
	return saved, nil
}

func (s *SQLiteStore) GetTitle(id string) (*SavedTitle, error) {
	var saved SavedTitle
	var category sql.NullString
	err := s.db.QueryRow("SELECT id, topic, title, category, is_favorite, created_at, updated_at FROM blog_titles WHERE id = ?", id).
		Scan(&saved.ID, &saved.Topic, &saved.Title, &category, &saved.IsFavorite, &saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get title: %w", err)
	}
	if category.Valid {
		saved.Category = &category.String
	}
	return &saved, nil
}

// ListTitles returns saved titles newest first, capped at 50. Search matches
// title, topic or category as a case-insensitive substring; category is an
// exact match.
func (s *SQLiteStore) ListTitles(filters TitleFilters) ([]SavedTitle, error) {
	query := "SELECT id, topic, title, category, is_favorite, created_at, updated_at FROM blog_titles"
	var conditions []string
	var args []any

	if filters.Search != "" {
		needle := "%" + strings.ToLower(filters.Search) + "%"
		conditions = append(conditions, "(LOWER(title) LIKE ? OR LOWER(topic) LIKE ? OR LOWER(IFNULL(category, '')) LIKE ?)")
		args = append(args, needle, needle, needle)
	}
	if filters.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filters.Category)
	}
	if filters.IsFavorite != nil {
		conditions = append(conditions, "is_favorite = ?")
		args = append(args, *filters.IsFavorite)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, maxListResults)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query titles: %w", err)
	}
	defer rows.Close()

	titles := make([]SavedTitle, 0)
	for rows.Next() {
		var saved SavedTitle
		var category sql.NullString
		if err := rows.Scan(&saved.ID, &saved.Topic, &saved.Title, &category, &saved.IsFavorite, &saved.CreatedAt, &saved.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan title row: %w", err)
		}
		if category.Valid {
			saved.Category = &category.String
		}
		titles = append(titles, saved)
	}
	return titles, rows.Err()
}

// UpdateTitle applies a partial patch. Omitted fields keep their prior value.
func (s *SQLiteStore) UpdateTitle(id string, patch TitleUpdate) (*SavedTitle, error) {
	var sets []string
	var args []any

	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, strings.TrimSpace(*patch.Title))
	}
	if patch.CategorySet {
		sets = append(sets, "category = ?")
		args = append(args, patch.Category) // nil clears to NULL
	}
	if patch.IsFavorite != nil {
		sets = append(sets, "is_favorite = ?")
		args = append(args, *patch.IsFavorite)
	}

	if len(sets) == 0 {
		return s.GetTitle(id)
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now())
	args = append(args, id)

	res, err := s.db.Exec("UPDATE blog_titles SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to execute title update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil, ErrNotFound
	}
	return s.GetTitle(id)
}

func (s *SQLiteStore) DeleteTitle(id string) error {
	res, err := s.db.Exec("DELETE FROM blog_titles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to execute title delete: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendHistory records a generation run. Callers treat a failure here as
// non-fatal; the generation response must not depend on it.
func (s *SQLiteStore) AppendHistory(topic, titlesJSON string) error {
	_, err := s.db.Exec("INSERT INTO generation_history (id, topic, titles, created_at) VALUES (?, ?, ?, ?)",
		uuid.NewString(), strings.TrimSpace(topic), titlesJSON, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert generation history: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
