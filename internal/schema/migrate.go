package schema

import (
	"context"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-product-dal/internal/dal"
	"github.com/jmoiron/sqlx"
)

// The DDL sticks to types and clauses understood by both Postgres and SQLite.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS tax (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		rate DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS product_manufacturer (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		link TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS media_album (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		position INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS media (
		id TEXT PRIMARY KEY,
		album_id TEXT NOT NULL REFERENCES media_album (id),
		file_name TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		file_size INTEGER NOT NULL DEFAULT 0,
		name TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS category (
		id TEXT PRIMARY KEY,
		parent_id TEXT REFERENCES category (id),
		name TEXT NOT NULL,
		position INTEGER,
		active BOOLEAN,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS category_attribute (
		id TEXT PRIMARY KEY,
		category_id TEXT NOT NULL REFERENCES category (id),
		attribute1 TEXT,
		attribute2 TEXT,
		attribute3 TEXT,
		attribute4 TEXT,
		attribute5 TEXT,
		attribute6 TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS product (
		id TEXT PRIMARY KEY,
		parent_id TEXT REFERENCES product (id),
		tax_id TEXT REFERENCES tax (id),
		manufacturer_id TEXT REFERENCES product_manufacturer (id),
		price DOUBLE PRECISION,
		stock INTEGER,
		active BOOLEAN,
		ean TEXT,
		category_tree TEXT,
		category_join_id TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_product_parent ON product (parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_product_manufacturer ON product (manufacturer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_product_category_join ON product (category_join_id)`,
	`CREATE TABLE IF NOT EXISTS product_translation (
		product_id TEXT NOT NULL REFERENCES product (id),
		language_id TEXT NOT NULL,
		name TEXT,
		description TEXT,
		PRIMARY KEY (product_id, language_id)
	)`,
	`CREATE TABLE IF NOT EXISTS product_category (
		product_id TEXT NOT NULL REFERENCES product (id),
		category_id TEXT NOT NULL REFERENCES category (id),
		PRIMARY KEY (product_id, category_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_product_category_category ON product_category (category_id)`,
	`CREATE TABLE IF NOT EXISTS product_media (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES product (id),
		media_id TEXT NOT NULL REFERENCES media (id),
		is_cover BOOLEAN,
		position INTEGER,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_product_media_product ON product_media (product_id)`,
	`CREATE TABLE IF NOT EXISTS product_price_rule (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES product (id),
		currency_id TEXT NOT NULL,
		quantity_start INTEGER NOT NULL,
		quantity_end INTEGER,
		rule_id TEXT,
		gross DOUBLE PRECISION NOT NULL,
		net DOUBLE PRECISION NOT NULL,
		position INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_product_price_rule_product ON product_price_rule (product_id)`,
}

// Migrate creates the catalog tables and seeds the default tax.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}

	seed := db.Rebind(`INSERT INTO tax (id, name, rate, created_at) VALUES (?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`)
	if _, err := db.ExecContext(ctx, seed, dal.DefaultTaxID, "Standard rate", 19.0, time.Now().UTC()); err != nil {
		return fmt.Errorf("seed default tax: %w", err)
	}
	return nil
}
