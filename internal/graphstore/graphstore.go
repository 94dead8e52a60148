// Package graphstore persists the dependency graph in SQLite so a
// fresh process can patch the previous build's graph instead of
// re-analyzing the whole tree. A missing or unreadable database
// degrades to an empty graph; the only cost is a full re-analysis.
package graphstore

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/soda-gql/sodabuild/internal/canonical"
	"github.com/soda-gql/sodabuild/internal/depgraph"
)

// DBFileName is the graph database's file name inside the cache
// directory.
const DBFileName = "graph.db"

// Store is the SQLite data access layer for the persisted graph.
type Store struct {
	db *sql.DB
}

// NewStore opens the graph database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("graphstore: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("graphstore: ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("graphstore: migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS nodes (
  id             TEXT PRIMARY KEY,
  file_path      TEXT NOT NULL,
  kind           TEXT NOT NULL,
  expression     TEXT NOT NULL,
  is_top_level   INTEGER NOT NULL,
  is_exported    INTEGER NOT NULL,
  export_binding TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_nodes_file_path ON nodes(file_path);

CREATE TABLE IF NOT EXISTS node_deps (
  node_id  TEXT NOT NULL,
  position INTEGER NOT NULL,
  dep_id   TEXT NOT NULL,
  PRIMARY KEY (node_id, position)
);

CREATE TABLE IF NOT EXISTS metadata (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`

// LoadGraph reads every persisted node into an in-memory graph.
func (s *Store) LoadGraph() (depgraph.Graph, error) {
	graph := make(depgraph.Graph)

	rows, err := s.db.Query(
		`SELECT id, file_path, kind, expression, is_top_level, is_exported, export_binding FROM nodes`)
	if err != nil {
		return nil, fmt.Errorf("graphstore: load nodes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, filePath string
		var sum depgraph.Summary
		if err := rows.Scan(&id, &filePath, &sum.Kind, &sum.Expression,
			&sum.IsTopLevel, &sum.IsExported, &sum.ExportBinding); err != nil {
			return nil, fmt.Errorf("graphstore: scan node: %w", err)
		}
		graph[canonical.ID(id)] = &depgraph.Node{
			ID:       canonical.ID(id),
			FilePath: filePath,
			Summary:  sum,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("graphstore: iterate nodes: %w", err)
	}

	depRows, err := s.db.Query(
		`SELECT node_id, dep_id FROM node_deps ORDER BY node_id, position`)
	if err != nil {
		return nil, fmt.Errorf("graphstore: load deps: %w", err)
	}
	defer depRows.Close()
	for depRows.Next() {
		var nodeID, depID string
		if err := depRows.Scan(&nodeID, &depID); err != nil {
			return nil, fmt.Errorf("graphstore: scan dep: %w", err)
		}
		if node, ok := graph[canonical.ID(nodeID)]; ok {
			node.Dependencies = append(node.Dependencies, canonical.ID(depID))
		}
	}
	if err := depRows.Err(); err != nil {
		return nil, fmt.Errorf("graphstore: iterate deps: %w", err)
	}

	return graph, nil
}

// ApplyPatch mirrors depgraph.ApplyPatch onto the database inside one
// transaction, in the same fixed order: whole-module removals, node
// removals, upserts.
func (s *Store) ApplyPatch(patch *depgraph.Patch) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("graphstore: begin: %w", err)
	}
	defer tx.Rollback()

	for _, path := range patch.RemovedModules {
		if _, err := tx.Exec(
			`DELETE FROM node_deps WHERE node_id IN (SELECT id FROM nodes WHERE file_path = ?)`, path); err != nil {
			return fmt.Errorf("graphstore: remove module deps: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM nodes WHERE file_path = ?`, path); err != nil {
			return fmt.Errorf("graphstore: remove module: %w", err)
		}
	}

	for _, id := range patch.RemovedNodes {
		if _, err := tx.Exec(`DELETE FROM node_deps WHERE node_id = ?`, string(id)); err != nil {
			return fmt.Errorf("graphstore: remove node deps: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM nodes WHERE id = ?`, string(id)); err != nil {
			return fmt.Errorf("graphstore: remove node: %w", err)
		}
	}

	for _, node := range patch.UpsertNodes {
		if _, err := tx.Exec(`
INSERT INTO nodes (id, file_path, kind, expression, is_top_level, is_exported, export_binding)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  file_path = excluded.file_path,
  kind = excluded.kind,
  expression = excluded.expression,
  is_top_level = excluded.is_top_level,
  is_exported = excluded.is_exported,
  export_binding = excluded.export_binding`,
			string(node.ID), node.FilePath, node.Summary.Kind, node.Summary.Expression,
			node.Summary.IsTopLevel, node.Summary.IsExported, node.Summary.ExportBinding); err != nil {
			return fmt.Errorf("graphstore: upsert node: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM node_deps WHERE node_id = ?`, string(node.ID)); err != nil {
			return fmt.Errorf("graphstore: clear node deps: %w", err)
		}
		for i, dep := range node.Dependencies {
			if _, err := tx.Exec(
				`INSERT INTO node_deps (node_id, position, dep_id) VALUES (?, ?, ?)`,
				string(node.ID), i, string(dep)); err != nil {
				return fmt.Errorf("graphstore: insert dep: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("graphstore: commit: %w", err)
	}
	return nil
}

// Reset deletes every node and dependency, keeping metadata.
func (s *Store) Reset() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("graphstore: begin reset: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM node_deps`); err != nil {
		return fmt.Errorf("graphstore: reset deps: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM nodes`); err != nil {
		return fmt.Errorf("graphstore: reset nodes: %w", err)
	}
	return tx.Commit()
}

// GetMetadata returns the value for a key, or "" when absent.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("graphstore: get metadata %q: %w", key, err)
	}
	return value, nil
}

// SetMetadata stores a key/value pair, replacing any previous value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("graphstore: set metadata %q: %w", key, err)
	}
	return nil
}
