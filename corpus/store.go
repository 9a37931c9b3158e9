// Package corpus manages labeled text samples: a SQLite-backed store, file
// ingestion and train/test splitting.
package corpus

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Sample is one labeled text example.
type Sample struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Store persists samples in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sample database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	query := `
    CREATE TABLE IF NOT EXISTS samples (
        id INTEGER PRIMARY KEY,
        text TEXT NOT NULL,
        label VARCHAR(64) NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_samples_label ON samples(label);
    `
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Add inserts samples in one transaction.
func (s *Store) Add(samples []Sample) error {
	if len(samples) == 0 {
		return errors.New("no samples to add")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO samples (text, label) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, sample := range samples {
		if sample.Text == "" || sample.Label == "" {
			tx.Rollback()
			return fmt.Errorf("sample with empty text or label")
		}
		if _, err := stmt.Exec(sample.Text, sample.Label); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// All returns every stored sample in insertion order.
func (s *Store) All() ([]Sample, error) {
	rows, err := s.db.Query("SELECT text, label FROM samples ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var sample Sample
		if err := rows.Scan(&sample.Text, &sample.Label); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// Labels returns the distinct labels present in the store.
func (s *Store) Labels() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT label FROM samples ORDER BY label")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// Count returns the number of stored samples.
func (s *Store) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM samples").Scan(&count)
	return count, err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
