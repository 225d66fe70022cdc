// Package symdb stores computed class layouts in a SQLite database so that
// debuggers and other tools can map tags, offsets and dispatch slots in a
// running program back to source names.
package symdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/coolgen/compiler"
)

var log = commonlog.GetLogger("coolgen.symdb")

var schema = []string{
	`CREATE TABLE IF NOT EXISTS session (
		id TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS classes (
		tag INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		parent TEXT,
		size INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS attributes (
		class TEXT NOT NULL,
		idx INTEGER NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		declared_by TEXT NOT NULL,
		byte_offset INTEGER NOT NULL,
		PRIMARY KEY (class, idx)
	)`,
	`CREATE TABLE IF NOT EXISTS methods (
		class TEXT NOT NULL,
		slot INTEGER NOT NULL,
		name TEXT NOT NULL,
		defined_by TEXT NOT NULL,
		PRIMARY KEY (class, slot)
	)`,
}

// ErrClassNotFound indicates the requested class is not in the database.
var ErrClassNotFound = errors.New("class not found")

// Class is one row of the classes table.
type Class struct {
	Tag    int
	Name   string
	Parent string // empty for the root
	Size   int    // words
}

// Attribute is one row of the attributes table.
type Attribute struct {
	Index      int
	Name       string
	Type       string
	DeclaredBy string
	Offset     int
}

// Method is one row of the methods table.
type Method struct {
	Slot      int
	Name      string
	DefinedBy string
}

// Write replaces the database at path with the layouts of classes.
func Write(ctx context.Context, path, sessionID string, classes *compiler.ClassTable) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing old database: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating tables: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO session (id) VALUES (?)`, sessionID); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	for _, c := range classes.All() {
		var parent any
		if c.Parent != nil {
			parent = c.Parent.Name
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO classes (tag, name, parent, size) VALUES (?, ?, ?, ?)`,
			c.Tag, c.Name, parent, c.Size()); err != nil {
			return fmt.Errorf("writing class %s: %w", c.Name, err)
		}
		for i, a := range c.Attributes() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO attributes (class, idx, name, type, declared_by, byte_offset) VALUES (?, ?, ?, ?, ?, ?)`,
				c.Name, i, a.Name, a.Type, a.Class, a.Offset); err != nil {
				return fmt.Errorf("writing attribute %s.%s: %w", c.Name, a.Name, err)
			}
		}
		for _, m := range c.DispatchTable() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO methods (class, slot, name, defined_by) VALUES (?, ?, ?, ?)`,
				c.Name, m.Slot, m.Method, m.Class); err != nil {
				return fmt.Errorf("writing method %s.%s: %w", c.Name, m.Method, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	log.Infof("wrote %d classes to %s", classes.Len(), path)
	return nil
}

// DB is a read-only view of a symbol database.
type DB struct {
	db *sql.DB
}

// Open opens an existing symbol database.
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Session returns the id of the compilation that wrote the database.
func (d *DB) Session(ctx context.Context) (string, error) {
	var id string
	if err := d.db.QueryRowContext(ctx, `SELECT id FROM session LIMIT 1`).Scan(&id); err != nil {
		return "", fmt.Errorf("reading session: %w", err)
	}
	return id, nil
}

// Classes returns every class in tag order.
func (d *DB) Classes(ctx context.Context) ([]Class, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT tag, name, parent, size FROM classes ORDER BY tag`)
	if err != nil {
		return nil, fmt.Errorf("querying classes: %w", err)
	}
	defer rows.Close()

	var out []Class
	for rows.Next() {
		var c Class
		var parent sql.NullString
		if err := rows.Scan(&c.Tag, &c.Name, &parent, &c.Size); err != nil {
			return nil, fmt.Errorf("scanning class: %w", err)
		}
		c.Parent = parent.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// ClassByTag looks up a class by its runtime tag.
func (d *DB) ClassByTag(ctx context.Context, tag int) (Class, error) {
	c := Class{Tag: tag}
	var parent sql.NullString
	err := d.db.QueryRowContext(ctx,
		`SELECT name, parent, size FROM classes WHERE tag = ?`, tag).Scan(&c.Name, &parent, &c.Size)
	if err == sql.ErrNoRows {
		return Class{}, ErrClassNotFound
	}
	if err != nil {
		return Class{}, fmt.Errorf("querying class %d: %w", tag, err)
	}
	c.Parent = parent.String
	return c, nil
}

// Attributes returns the flattened attribute layout of a class.
func (d *DB) Attributes(ctx context.Context, class string) ([]Attribute, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT idx, name, type, declared_by, byte_offset FROM attributes WHERE class = ? ORDER BY idx`, class)
	if err != nil {
		return nil, fmt.Errorf("querying attributes of %s: %w", class, err)
	}
	defer rows.Close()

	var out []Attribute
	for rows.Next() {
		var a Attribute
		if err := rows.Scan(&a.Index, &a.Name, &a.Type, &a.DeclaredBy, &a.Offset); err != nil {
			return nil, fmt.Errorf("scanning attribute: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Methods returns the dispatch table of a class in slot order.
func (d *DB) Methods(ctx context.Context, class string) ([]Method, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT slot, name, defined_by FROM methods WHERE class = ? ORDER BY slot`, class)
	if err != nil {
		return nil, fmt.Errorf("querying methods of %s: %w", class, err)
	}
	defer rows.Close()

	var out []Method
	for rows.Next() {
		var m Method
		if err := rows.Scan(&m.Slot, &m.Name, &m.DefinedBy); err != nil {
			return nil, fmt.Errorf("scanning method: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
