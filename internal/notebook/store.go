// Package notebook provides durable working notes for the agent: key
// facts and key code snippets it can record during a session and recall
// or prune later.
package notebook

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Fact is a short piece of recorded knowledge.
type Fact struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Snippet is a recorded source excerpt with its location.
type Snippet struct {
	ID          int64     `json:"id"`
	Filepath    string    `json:"filepath"`
	LineNumber  int       `json:"line_number"`
	Source      string    `json:"source"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store manages notebook persistence.
type Store struct {
	db *sql.DB
}

// NewStore creates a notebook store using the given database path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// NewStoreWithDB creates a notebook store using an existing database
// connection.
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS notebook_facts (
			id INTEGER PRIMARY KEY,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS notebook_snippets (
			id INTEGER PRIMARY KEY,
			filepath TEXT NOT NULL,
			line_number INTEGER NOT NULL,
			source TEXT NOT NULL,
			description TEXT,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS notebook_counters (
			kind TEXT PRIMARY KEY,
			next INTEGER NOT NULL
		);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// nextID allocates the next ID for a kind. IDs are never reused, even
// after the row they identified is deleted.
func nextID(tx *sql.Tx, kind string) (int64, error) {
	var next int64
	err := tx.QueryRow(`SELECT next FROM notebook_counters WHERE kind = ?`, kind).Scan(&next)
	switch {
	case err == sql.ErrNoRows:
		next = 1
		if _, err := tx.Exec(`INSERT INTO notebook_counters (kind, next) VALUES (?, ?)`, kind, next+1); err != nil {
			return 0, err
		}
	case err != nil:
		return 0, err
	default:
		if _, err := tx.Exec(`UPDATE notebook_counters SET next = ? WHERE kind = ?`, next+1, kind); err != nil {
			return 0, err
		}
	}
	return next, nil
}

// AddFacts records one or more facts and returns their assigned IDs in
// input order.
func (s *Store) AddFacts(contents []string) ([]int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	ids := make([]int64, 0, len(contents))
	for _, content := range contents {
		id, err := nextID(tx, "fact")
		if err != nil {
			return nil, err
		}
		if _, err := tx.Exec(
			`INSERT INTO notebook_facts (id, content, created_at) VALUES (?, ?, ?)`,
			id, content, now,
		); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteFacts removes facts by ID. It returns the IDs actually deleted
// and the IDs that did not exist; unknown IDs are not an error.
func (s *Store) DeleteFacts(ids []int64) (deleted, missing []int64, err error) {
	for _, id := range ids {
		res, err := s.db.Exec(`DELETE FROM notebook_facts WHERE id = ?`, id)
		if err != nil {
			return nil, nil, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			deleted = append(deleted, id)
		} else {
			missing = append(missing, id)
		}
	}
	return deleted, missing, nil
}

// Facts returns all recorded facts in ID order.
func (s *Store) Facts() ([]Fact, error) {
	rows, err := s.db.Query(`SELECT id, content, created_at FROM notebook_facts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		var created string
		if err := rows.Scan(&f.ID, &f.Content, &created); err != nil {
			return nil, err
		}
		f.CreatedAt, _ = time.Parse(time.RFC3339, created)
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// AddSnippet records a source excerpt and returns its assigned ID.
func (s *Store) AddSnippet(sn Snippet) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	id, err := nextID(tx, "snippet")
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(
		`INSERT INTO notebook_snippets (id, filepath, line_number, source, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, sn.Filepath, sn.LineNumber, sn.Source, sn.Description, now,
	); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// DeleteSnippets removes snippets by ID, returning deleted and missing
// IDs like DeleteFacts.
func (s *Store) DeleteSnippets(ids []int64) (deleted, missing []int64, err error) {
	for _, id := range ids {
		res, err := s.db.Exec(`DELETE FROM notebook_snippets WHERE id = ?`, id)
		if err != nil {
			return nil, nil, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			deleted = append(deleted, id)
		} else {
			missing = append(missing, id)
		}
	}
	return deleted, missing, nil
}

// Snippets returns all recorded snippets in ID order.
func (s *Store) Snippets() ([]Snippet, error) {
	rows, err := s.db.Query(
		`SELECT id, filepath, line_number, source, COALESCE(description, ''), created_at
		 FROM notebook_snippets ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snippets []Snippet
	for rows.Next() {
		var sn Snippet
		var created string
		if err := rows.Scan(&sn.ID, &sn.Filepath, &sn.LineNumber, &sn.Source, &sn.Description, &created); err != nil {
			return nil, err
		}
		sn.CreatedAt, _ = time.Parse(time.RFC3339, created)
		snippets = append(snippets, sn)
	}
	return snippets, rows.Err()
}

// FactsReport renders the recorded facts as markdown for injection
// into the model context. Returns "" when there are none.
func (s *Store) FactsReport() (string, error) {
	facts, err := s.Facts()
	if err != nil {
		return "", err
	}
	if len(facts) == 0 {
		return "", nil
	}

	sort.Slice(facts, func(i, j int) bool { return facts[i].ID < facts[j].ID })

	var b strings.Builder
	b.WriteString("## Key Facts\n\n")
	for _, f := range facts {
		fmt.Fprintf(&b, "#%d: %s\n", f.ID, f.Content)
	}
	return b.String(), nil
}

// SnippetsReport renders the recorded snippets as markdown. Returns ""
// when there are none.
func (s *Store) SnippetsReport() (string, error) {
	snippets, err := s.Snippets()
	if err != nil {
		return "", err
	}
	if len(snippets) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("## Key Snippets\n\n")
	for _, sn := range snippets {
		fmt.Fprintf(&b, "### Snippet #%d (%s:%d)\n", sn.ID, sn.Filepath, sn.LineNumber)
		if sn.Description != "" {
			fmt.Fprintf(&b, "%s\n", sn.Description)
		}
		fmt.Fprintf(&b, "```\n%s\n```\n\n", sn.Source)
	}
	return b.String(), nil
}
