// Package store indexes extracted medicines in SQLite for lookup and
// search.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/dgallion1/pmdaparse/internal/extract"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	content_hash TEXT PRIMARY KEY,
	filename     TEXT NOT NULL,
	processed_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS medicines (
	id                         INTEGER PRIMARY KEY AUTOINCREMENT,
	content_hash               TEXT NOT NULL REFERENCES documents(content_hash) ON DELETE CASCADE,
	product_code               TEXT NOT NULL,
	product_name               TEXT NOT NULL,
	therapeutic_classification TEXT NOT NULL,
	form                       TEXT NOT NULL,
	manufacturer_code          TEXT NOT NULL,
	manufacturer_name          TEXT NOT NULL,
	package_insert_no          TEXT NOT NULL,
	source_filename            TEXT NOT NULL,
	active_ingredients         TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_medicines_code ON medicines(product_code);
CREATE TABLE IF NOT EXISTS clinical_records (
	medicine_id INTEGER NOT NULL REFERENCES medicines(id) ON DELETE CASCADE,
	category    TEXT NOT NULL,
	position    INTEGER NOT NULL,
	text        TEXT NOT NULL,
	PRIMARY KEY (medicine_id, category, position)
);
CREATE INDEX IF NOT EXISTS idx_records_category ON clinical_records(category);
`

// Store is a SQLite-backed record store. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.ApplySchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing database handle. The caller applies the schema.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// ApplySchema creates the tables if they do not exist.
func (s *Store) ApplySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// HasDocument reports whether a document with this content hash was stored.
func (s *Store) HasDocument(ctx context.Context, contentHash string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE content_hash = ?`, contentHash).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check document: %w", err)
	}
	return n > 0, nil
}

// SaveDocument stores a document and its medicines in one transaction,
// replacing any previous version with the same hash.
func (s *Store) SaveDocument(ctx context.Context, contentHash, filename string, medicines []extract.Medicine) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	// foreign_keys is per connection, so cascades are not relied on.
	for _, q := range []string{
		`DELETE FROM clinical_records WHERE medicine_id IN (SELECT id FROM medicines WHERE content_hash = ?)`,
		`DELETE FROM medicines WHERE content_hash = ?`,
		`DELETE FROM documents WHERE content_hash = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, contentHash); err != nil {
			return fmt.Errorf("replace document: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (content_hash, filename, processed_at) VALUES (?, ?, ?)`,
		contentHash, filename, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	for _, m := range medicines {
		ingredients, err := encodeIngredients(m.ClinicalInfo.ActiveIngredients)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO medicines (content_hash, product_code, product_name, therapeutic_classification,
				form, manufacturer_code, manufacturer_name, package_insert_no, source_filename, active_ingredients)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			contentHash, m.ProductCode, m.ProductName, m.TherapeuticClassification,
			m.Form, m.ManufacturerCode, m.ManufacturerName, m.PackageInsertNo, m.SourceFilename, ingredients)
		if err != nil {
			return fmt.Errorf("insert medicine %s: %w", m.ProductCode, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("medicine id: %w", err)
		}

		for _, cat := range extract.TextCategories {
			for pos, text := range m.ClinicalInfo.Texts(cat) {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO clinical_records (medicine_id, category, position, text) VALUES (?, ?, ?, ?)`,
					id, string(cat), pos, text); err != nil {
					return fmt.Errorf("insert %s record: %w", cat, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const medicineColumns = `id, product_code, product_name, therapeutic_classification, form,
	manufacturer_code, manufacturer_name, package_insert_no, source_filename, active_ingredients`

// FindByProductCode returns every stored medicine with the given code,
// most recently stored first.
func (s *Store) FindByProductCode(ctx context.Context, code string) ([]extract.Medicine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+medicineColumns+` FROM medicines WHERE product_code = ? ORDER BY id DESC`, code)
	if err != nil {
		return nil, fmt.Errorf("find medicine: %w", err)
	}
	meds, ids, err := scanMedicines(rows)
	if err != nil {
		return nil, err
	}
	if len(meds) == 0 {
		return nil, ErrNotFound
	}
	for i := range meds {
		if err := s.loadRecords(ctx, ids[i], &meds[i].ClinicalInfo); err != nil {
			return nil, err
		}
	}
	return meds, nil
}

func scanMedicines(rows *sql.Rows) ([]extract.Medicine, []int64, error) {
	defer rows.Close()
	var (
		meds []extract.Medicine
		ids  []int64
	)
	for rows.Next() {
		var (
			m           extract.Medicine
			id          int64
			ingredients string
		)
		if err := rows.Scan(&id, &m.ProductCode, &m.ProductName, &m.TherapeuticClassification, &m.Form,
			&m.ManufacturerCode, &m.ManufacturerName, &m.PackageInsertNo, &m.SourceFilename, &ingredients); err != nil {
			return nil, nil, fmt.Errorf("scan medicine: %w", err)
		}
		list, err := decodeIngredients(ingredients)
		if err != nil {
			return nil, nil, err
		}
		m.ClinicalInfo.ActiveIngredients = list
		meds = append(meds, m)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate medicines: %w", err)
	}
	return meds, ids, nil
}

func (s *Store) loadRecords(ctx context.Context, medicineID int64, info *extract.ClinicalInfo) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, text FROM clinical_records WHERE medicine_id = ? ORDER BY category, position`, medicineID)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	defer rows.Close()

	byCat := make(map[extract.Category][]string)
	for rows.Next() {
		var cat, text string
		if err := rows.Scan(&cat, &text); err != nil {
			return fmt.Errorf("scan record: %w", err)
		}
		byCat[extract.Category(cat)] = append(byCat[extract.Category(cat)], text)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate records: %w", err)
	}
	info.Indications = byCat[extract.Indications]
	info.Dosage = byCat[extract.Dosage]
	info.Contraindications = byCat[extract.Contraindications]
	info.Warnings = byCat[extract.Warnings]
	info.SideEffects = byCat[extract.SideEffects]
	info.Interactions = byCat[extract.Interactions]
	info.Compositions = byCat[extract.Compositions]
	return nil
}

// Hit is one search match.
type Hit struct {
	ProductCode string           `json:"product_code"`
	ProductName string           `json:"product_name"`
	Category    extract.Category `json:"category"`
	Text        string           `json:"text"`
}

// Search finds records whose text contains query, optionally limited to
// one category. Results are capped at limit (default 50).
func (s *Store) Search(ctx context.Context, query string, cat extract.Category, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT m.product_code, m.product_name, r.category, r.text
		FROM clinical_records r JOIN medicines m ON m.id = r.medicine_id
		WHERE r.text LIKE ? ESCAPE '\'`
	args := []any{"%" + escapeLike(query) + "%"}
	if cat != "" {
		q += ` AND r.category = ?`
		args = append(args, string(cat))
	}
	q += ` ORDER BY m.id, r.category, r.position LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var c string
		if err := rows.Scan(&h.ProductCode, &h.ProductName, &c, &h.Text); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		h.Category = extract.Category(c)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hits: %w", err)
	}
	return hits, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Stats counts stored rows.
type Stats struct {
	Documents int                      `json:"documents"`
	Medicines int                      `json:"medicines"`
	Records   map[extract.Category]int `json:"records"`
}

// Stats returns row counts per table and per category.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Records: make(map[extract.Category]int)}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&st.Documents); err != nil {
		return st, fmt.Errorf("count documents: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM medicines`).Scan(&st.Medicines); err != nil {
		return st, fmt.Errorf("count medicines: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM clinical_records GROUP BY category`)
	if err != nil {
		return st, fmt.Errorf("count records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return st, fmt.Errorf("scan count: %w", err)
		}
		st.Records[extract.Category(cat)] = n
	}
	return st, rows.Err()
}
