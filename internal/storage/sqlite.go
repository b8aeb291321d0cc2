// Package storage provides the SQLite-backed vector index that holds
// review feedback examples and their embeddings.
package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	_ "github.com/mattn/go-sqlite3"
)

// Example is the payload stored alongside an embedding. Older databases
// were written with a "smell_type" metadata key instead of "smell", so
// both are declared and reconciled on read.
type Example struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Smell     string `json:"smell,omitempty"`
	SmellType string `json:"smell_type,omitempty"`
	Fix       string `json:"fix"`
}

// Category returns the smell label regardless of which metadata key the
// record was written with.
func (e Example) Category() string {
	if e.Smell != "" {
		return e.Smell
	}
	return e.SmellType
}

// VectorExample couples an example with its embedding for insertion.
type VectorExample struct {
	Example   Example
	Embedding []float32
}

// Match is one ranked neighbour from a similarity search.
type Match struct {
	Score   float32
	Example Example
}

// SQLiteStore persists examples and serves brute-force cosine search.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS examples (
		id        TEXT PRIMARY KEY,
		metadata  TEXT NOT NULL,
		embedding BLOB NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create examples table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// UpsertExamples writes the given examples in a single transaction,
// replacing any rows with matching IDs.
func (s *SQLiteStore) UpsertExamples(ctx context.Context, examples []VectorExample) error {
	if len(examples) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO examples (id, metadata, embedding) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET metadata = excluded.metadata, embedding = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, ex := range examples {
		meta, err := json.Marshal(ex.Example)
		if err != nil {
			return fmt.Errorf("marshal example %s: %w", ex.Example.ID, err)
		}
		blob, err := encodeEmbedding(ex.Embedding)
		if err != nil {
			return fmt.Errorf("encode embedding for %s: %w", ex.Example.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, ex.Example.ID, string(meta), blob); err != nil {
			return fmt.Errorf("upsert example %s: %w", ex.Example.ID, err)
		}
	}

	return tx.Commit()
}

// SearchSimilar returns up to topK stored examples ranked by cosine
// similarity to the query vector. No similarity floor is applied here;
// callers filter scores themselves.
func (s *SQLiteStore) SearchSimilar(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT metadata, embedding FROM examples`)
	if err != nil {
		return nil, fmt.Errorf("query examples: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var meta string
		var blob []byte
		if err := rows.Scan(&meta, &blob); err != nil {
			return nil, fmt.Errorf("scan example row: %w", err)
		}

		var ex Example
		if err := json.Unmarshal([]byte(meta), &ex); err != nil {
			return nil, fmt.Errorf("unmarshal example metadata: %w", err)
		}
		emb, err := decodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("decode embedding for %s: %w", ex.ID, err)
		}

		score := cosineSimilarity(vector, emb)
		matches = insertRanked(matches, Match{Score: score, Example: ex}, topK)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate examples: %w", err)
	}

	return matches, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// insertRanked keeps matches sorted by descending score, capped at topK.
func insertRanked(matches []Match, m Match, topK int) []Match {
	pos := len(matches)
	for i, existing := range matches {
		if m.Score > existing.Score {
			pos = i
			break
		}
	}
	if pos >= topK {
		return matches
	}

	matches = append(matches, Match{})
	copy(matches[pos+1:], matches[pos:])
	matches[pos] = m
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

func encodeEmbedding(vec []float32) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEmbedding(blob []byte) ([]float32, error) {
	vec := make([]float32, len(blob)/4)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, &vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
