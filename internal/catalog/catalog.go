// Package catalog serves the read-only list of course modules shown to users
// next to the questionnaire.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("catalog item not found")

// Item is one catalog entry.
type Item struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

// DefaultItems seeds a fresh catalog.
var DefaultItems = []Item{
	{ID: 1, Description: "VCc01. Working with spreadsheets through an API, using spreadsheets as a database"},
	{ID: 2, Description: "VCc02. Using MCP servers in Cursor"},
	{ID: 3, Description: "VCc03. What autonomous agents are and how they work, with a basic site-scraping example"},
}

// Catalog reads catalog items from a SQLite file.
type Catalog struct {
	db *sql.DB
}

// Open opens the catalog database, creating the file and table if missing.
func Open(dbPath string) (*Catalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create catalog directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}

	c := &Catalog{db: db}
	if err := c.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize catalog schema: %w", err)
	}
	return c, nil
}

func (c *Catalog) initSchema() error {
	_, err := c.db.Exec(`CREATE TABLE IF NOT EXISTS catalog (
		id INTEGER PRIMARY KEY,
		description TEXT NOT NULL
	)`)
	return err
}

// Seed replaces the catalog contents with items.
func (c *Catalog) Seed(ctx context.Context, items []Item) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog`); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}
	for _, it := range items {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO catalog (id, description) VALUES (?, ?)`,
			it.ID, it.Description,
		); err != nil {
			return fmt.Errorf("insert catalog item %d: %w", it.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

// List returns all items ordered by id.
func (c *Catalog) List(ctx context.Context) ([]Item, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, description FROM catalog ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Description); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog rows: %w", err)
	}
	return items, nil
}

// Get returns a single item.
func (c *Catalog) Get(ctx context.Context, id int) (Item, error) {
	var it Item
	err := c.db.QueryRowContext(ctx, `SELECT id, description FROM catalog WHERE id = ?`, id).
		Scan(&it.ID, &it.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("get catalog item: %w", err)
	}
	return it, nil
}

func (c *Catalog) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Catalog) Close() error {
	return c.db.Close()
}
