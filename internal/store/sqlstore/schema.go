package sqlstore

import (
	"context"
	"strings"
)

// Money is NUMERIC on PostgreSQL and TEXT on SQLite; SQLite's numeric
// affinity would turn decimal strings into floats.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS inventory_items (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		sku TEXT NOT NULL DEFAULT '',
		upc TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 0),
		unit_cost {{money}} NOT NULL,
		msrp {{money}} NOT NULL,
		purchased_qty INTEGER NOT NULL,
		created_at {{time}} NOT NULL,
		updated_at {{time}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_items_owner ON inventory_items (owner_id, name)`,
	`CREATE TABLE IF NOT EXISTS inventory_history (
		position {{serial}},
		id TEXT NOT NULL UNIQUE,
		owner_id TEXT NOT NULL,
		item_id TEXT NOT NULL REFERENCES inventory_items (id),
		old_quantity INTEGER NOT NULL,
		new_quantity INTEGER NOT NULL CHECK (new_quantity >= 0),
		delta INTEGER NOT NULL,
		type TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		sale_id TEXT,
		created_at {{time}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_history_item ON inventory_history (owner_id, item_id)`,
	`CREATE TABLE IF NOT EXISTS sequence_counters (
		owner_id TEXT NOT NULL,
		scope TEXT NOT NULL,
		value INTEGER NOT NULL,
		PRIMARY KEY (owner_id, scope)
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		item_id TEXT,
		buyer_id TEXT,
		item_name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_sale_price {{money}} NOT NULL,
		unit_cost_snapshot {{money}} NOT NULL,
		shipping {{money}} NOT NULL,
		commission {{money}} NOT NULL,
		other_fees {{money}} NOT NULL,
		profit {{money}} NOT NULL,
		channel TEXT NOT NULL DEFAULT '',
		sequence_number INTEGER NOT NULL,
		period TEXT NOT NULL,
		sale_date {{time}} NOT NULL,
		is_refund BOOLEAN NOT NULL,
		created_at {{time}} NOT NULL,
		updated_at {{time}} NOT NULL,
		UNIQUE (owner_id, period, sequence_number)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_item ON sales (owner_id, item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_buyer ON sales (owner_id, buyer_id)`,
	`CREATE TABLE IF NOT EXISTS sale_refunds (
		position {{serial}},
		id TEXT NOT NULL UNIQUE,
		owner_id TEXT NOT NULL,
		source_sale_id TEXT NOT NULL REFERENCES sales (id),
		item_name TEXT NOT NULL,
		buyer_id TEXT,
		purchase_amount {{money}} NOT NULL,
		sale_amount {{money}} NOT NULL,
		shipping_amount {{money}} NOT NULL,
		original_sale_date {{time}} NOT NULL,
		date_refunded {{time}} NOT NULL,
		created_at {{time}} NOT NULL,
		UNIQUE (owner_id, source_sale_id)
	)`,
	`CREATE TABLE IF NOT EXISTS buyers (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		sequence_number INTEGER NOT NULL,
		name TEXT NOT NULL,
		credit {{money}} NOT NULL,
		discounts {{money}} NOT NULL,
		created_at {{time}} NOT NULL,
		UNIQUE (owner_id, sequence_number)
	)`,
	`CREATE TABLE IF NOT EXISTS buyer_payments (
		position {{serial}},
		id TEXT NOT NULL UNIQUE,
		owner_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		buyer_id TEXT NOT NULL REFERENCES buyers (id),
		linked_sale_id TEXT,
		amount {{money}} NOT NULL,
		method TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		paid_at {{time}} NOT NULL,
		created_at {{time}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_buyer_payments_buyer ON buyer_payments (owner_id, buyer_id)`,
}

func (s *Store) migrate(ctx context.Context) error {
	var types *strings.Replacer
	switch s.dialect {
	case Postgres:
		types = strings.NewReplacer("{{money}}", "NUMERIC", "{{time}}", "TIMESTAMPTZ", "{{serial}}", "BIGSERIAL PRIMARY KEY")
	default:
		types = strings.NewReplacer("{{money}}", "TEXT", "{{time}}", "DATETIME", "{{serial}}", "INTEGER PRIMARY KEY AUTOINCREMENT")
		for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys = ON"} {
			if _, err := s.db.ExecContext(ctx, pragma); err != nil {
				return err
			}
		}
	}

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, types.Replace(stmt)); err != nil {
			return err
		}
	}
	return nil
}
