package taxonomy

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNoRevision is returned by Load when the store has never been seeded.
var ErrNoRevision = errors.New("taxonomy store has no revisions")

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS taxonomy_revisions (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	revision_id   TEXT NOT NULL UNIQUE,
	source        TEXT,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
	revision_id   TEXT NOT NULL,
	position      INTEGER NOT NULL,
	category      TEXT NOT NULL,
	keywords_json TEXT NOT NULL,
	related_json  TEXT NOT NULL,
	PRIMARY KEY (revision_id, category),
	FOREIGN KEY (revision_id) REFERENCES taxonomy_revisions(revision_id)
);

CREATE TABLE IF NOT EXISTS issue_types (
	revision_id   TEXT NOT NULL,
	category      TEXT NOT NULL,
	position      INTEGER NOT NULL,
	issue_id      TEXT NOT NULL,
	name          TEXT NOT NULL,
	description   TEXT,
	keywords_json TEXT NOT NULL,
	urgency       TEXT NOT NULL,
	PRIMARY KEY (revision_id, issue_id),
	FOREIGN KEY (revision_id, category) REFERENCES categories(revision_id, category)
);

CREATE TABLE IF NOT EXISTS remedies (
	revision_id        TEXT NOT NULL,
	position           INTEGER NOT NULL,
	remedy_id          TEXT NOT NULL,
	name               TEXT NOT NULL,
	description        TEXT,
	category           TEXT NOT NULL,
	preconditions_json TEXT NOT NULL,
	jurisdictions_json TEXT NOT NULL,
	urgency            TEXT NOT NULL,
	base_success_rate  REAL NOT NULL,
	cost               TEXT,
	legal_refs_json    TEXT NOT NULL,
	PRIMARY KEY (revision_id, remedy_id),
	FOREIGN KEY (revision_id) REFERENCES taxonomy_revisions(revision_id)
);
`
// #endregion schema

// #region store-struct
// Store keeps revisions of the taxonomy in SQLite. Each Seed writes a new
// revision; Load reads the most recent one.
type Store struct {
	db *sql.DB
}

// Revision describes one stored taxonomy.
type Revision struct {
	ID        string
	Source    string
	CreatedAt time.Time
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion constructor

// #region seed
// Seed writes t as a new revision and returns it.
func (s *Store) Seed(t *Taxonomy, source string) (Revision, error) {
	rev := Revision{
		ID:        uuid.New().String(),
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Revision{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO taxonomy_revisions (revision_id, source, created_at) VALUES (?, ?, ?)`,
		rev.ID, source, rev.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Revision{}, fmt.Errorf("insert revision: %w", err)
	}

	for pos, cs := range t.categories {
		related := make([]string, len(cs.Related))
		for i, r := range cs.Related {
			related[i] = string(r)
		}
		_, err = tx.Exec(
			`INSERT INTO categories (revision_id, position, category, keywords_json, related_json)
			 VALUES (?, ?, ?, ?, ?)`,
			rev.ID, pos, string(cs.Category), mustJSON(cs.Keywords), mustJSON(related),
		)
		if err != nil {
			return Revision{}, fmt.Errorf("insert category %s: %w", cs.Category, err)
		}
		for ipos, it := range cs.IssueTypes {
			_, err = tx.Exec(
				`INSERT INTO issue_types (revision_id, category, position, issue_id, name, description, keywords_json, urgency)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				rev.ID, string(cs.Category), ipos, it.ID, it.Name, it.Description,
				mustJSON(it.RequiredKeywords), string(it.Urgency),
			)
			if err != nil {
				return Revision{}, fmt.Errorf("insert issue type %s: %w", it.ID, err)
			}
		}
	}

	for pos, r := range t.remedies {
		_, err = tx.Exec(
			`INSERT INTO remedies (revision_id, position, remedy_id, name, description, category,
				preconditions_json, jurisdictions_json, urgency, base_success_rate, cost, legal_refs_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rev.ID, pos, r.ID, r.Name, r.Description, string(r.Category),
			mustJSON(r.Preconditions), mustJSON(r.Jurisdictions), string(r.Urgency),
			r.BaseSuccessRate, r.Cost, mustJSON(r.LegalRefs),
		)
		if err != nil {
			return Revision{}, fmt.Errorf("insert remedy %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Revision{}, fmt.Errorf("commit: %w", err)
	}
	return rev, nil
}

// #endregion seed

// #region load
// Load reads the most recently seeded revision.
func (s *Store) Load() (*Taxonomy, Revision, error) {
	var rev Revision
	var created string
	err := s.db.QueryRow(
		`SELECT revision_id, COALESCE(source, ''), created_at FROM taxonomy_revisions ORDER BY seq DESC LIMIT 1`,
	).Scan(&rev.ID, &rev.Source, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Revision{}, ErrNoRevision
	}
	if err != nil {
		return nil, Revision{}, fmt.Errorf("get latest revision: %w", err)
	}
	rev.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)

	t, err := s.LoadRevision(rev.ID)
	if err != nil {
		return nil, Revision{}, err
	}
	return t, rev, nil
}

// LoadRevision reads one revision by ID.
func (s *Store) LoadRevision(revisionID string) (*Taxonomy, error) {
	var f File
	index := make(map[string]int)

	rows, err := s.db.Query(
		`SELECT category, keywords_json, related_json FROM categories
		 WHERE revision_id = ? ORDER BY position`, revisionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	for rows.Next() {
		var fc FileCategory
		var kw, rel string
		if err := rows.Scan(&fc.Category, &kw, &rel); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan category: %w", err)
		}
		if err := unmarshalJSON(kw, &fc.Keywords, rel, &fc.Related); err != nil {
			rows.Close()
			return nil, fmt.Errorf("category %s: %w", fc.Category, err)
		}
		index[fc.Category] = len(f.Categories)
		f.Categories = append(f.Categories, fc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	rows, err = s.db.Query(
		`SELECT category, issue_id, name, COALESCE(description, ''), keywords_json, urgency FROM issue_types
		 WHERE revision_id = ? ORDER BY category, position`, revisionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query issue types: %w", err)
	}
	for rows.Next() {
		var cat, kw string
		var fi FileIssueType
		if err := rows.Scan(&cat, &fi.ID, &fi.Name, &fi.Description, &kw, &fi.Urgency); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan issue type: %w", err)
		}
		if err := json.Unmarshal([]byte(kw), &fi.RequiredKeywords); err != nil {
			rows.Close()
			return nil, fmt.Errorf("issue type %s keywords: %w", fi.ID, err)
		}
		i, ok := index[cat]
		if !ok {
			rows.Close()
			return nil, fmt.Errorf("issue type %s references missing category %s", fi.ID, cat)
		}
		f.Categories[i].IssueTypes = append(f.Categories[i].IssueTypes, fi)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issue types: %w", err)
	}

	rows, err = s.db.Query(
		`SELECT remedy_id, name, COALESCE(description, ''), category, preconditions_json, jurisdictions_json,
			urgency, base_success_rate, COALESCE(cost, ''), legal_refs_json FROM remedies
		 WHERE revision_id = ? ORDER BY position`, revisionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query remedies: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var fr FileRemedy
		var pre, jur, refs string
		if err := rows.Scan(&fr.ID, &fr.Name, &fr.Description, &fr.Category, &pre, &jur,
			&fr.Urgency, &fr.BaseSuccessRate, &fr.Cost, &refs); err != nil {
			return nil, fmt.Errorf("scan remedy: %w", err)
		}
		if err := unmarshalJSON(pre, &fr.Preconditions, jur, &fr.Jurisdictions, refs, &fr.LegalRefs); err != nil {
			return nil, fmt.Errorf("remedy %s: %w", fr.ID, err)
		}
		f.Remedies = append(f.Remedies, fr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate remedies: %w", err)
	}

	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("revision %s: %w", revisionID, ErrNoRevision)
	}
	return f.Build("sqlite revision " + revisionID)
}

// Revisions lists stored revisions, newest first.
func (s *Store) Revisions() ([]Revision, error) {
	rows, err := s.db.Query(
		`SELECT revision_id, COALESCE(source, ''), created_at FROM taxonomy_revisions ORDER BY seq DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		var rev Revision
		var created string
		if err := rows.Scan(&rev.ID, &rev.Source, &created); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		rev.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, rev)
	}
	return out, rows.Err()
}

// #endregion load

// #region helpers
func mustJSON(v []string) string {
	if v == nil {
		v = []string{}
	}
	data, _ := json.Marshal(v)
	return string(data)
}

// unmarshalJSON decodes (json, target) pairs.
func unmarshalJSON(pairs ...any) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		raw, _ := pairs[i].(string)
		if err := json.Unmarshal([]byte(raw), pairs[i+1]); err != nil {
			return fmt.Errorf("decode list: %w", err)
		}
	}
	return nil
}

// #endregion helpers
