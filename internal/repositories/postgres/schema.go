package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

var schemaModels = []any{
	(*categoryRow)(nil),
	(*productRow)(nil),
	(*orderRow)(nil),
	(*conversationRow)(nil),
	(*messageRow)(nil),
	(*favoriteRow)(nil),
	(*addressRow)(nil),
	(*userRow)(nil),
	(*reviewRow)(nil),
	(*commentRow)(nil),
}

// schemaUpgrades adds columns introduced after a table was first created.
var schemaUpgrades = []string{
	`ALTER TABLE products ADD COLUMN IF NOT EXISTS brand_key text NOT NULL DEFAULT ''`,
	`UPDATE products SET brand_key = lower(brand) WHERE brand_key = '' AND brand <> ''`,
}

var schemaIndexes = []string{
	`CREATE INDEX IF NOT EXISTS products_status_created_idx ON products (status, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS products_seller_idx ON products (seller_id)`,
	`CREATE INDEX IF NOT EXISTS products_category_idx ON products (category_id)`,
	`CREATE INDEX IF NOT EXISTS orders_buyer_idx ON orders (buyer_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS orders_seller_idx ON orders (seller_id, created_at DESC)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS conversations_triple_key ON conversations (product_id, buyer_id, seller_id)`,
	`CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, created_at)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS favorites_user_product_key ON favorites (user_id, product_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS addresses_single_default ON addresses (user_id) WHERE is_default`,
	`CREATE UNIQUE INDEX IF NOT EXISTS reviews_product_user_key ON reviews (product_id, user_id)`,
	`CREATE INDEX IF NOT EXISTS comments_product_idx ON comments (product_id, created_at)`,
}

// Migrate creates tables and indexes when absent. It is idempotent.
func Migrate(ctx context.Context, db *bun.DB) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, model := range schemaModels {
			if _, err := tx.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
				return fmt.Errorf("create table %T: %w", model, err)
			}
		}
		for _, stmt := range schemaUpgrades {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("upgrade schema: %w", err)
			}
		}
		for _, stmt := range schemaIndexes {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create index: %w", err)
			}
		}
		return nil
	})
}
