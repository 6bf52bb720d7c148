package database

import (
	"database/sql"
	"fmt"

	"vcspos-server/models"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type DB struct {
	*sql.DB
}

var Database *DB

// Connect establishes a connection to the PostgreSQL database
func Connect(databaseURL string) (*DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	Database = &DB{db}
	return Database, nil
}

// InitializeTables creates all tables if they don't exist
func (db *DB) InitializeTables() error {
	// Enable pgcrypto extension for gen_random_uuid()
	if _, err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`); err != nil {
		return fmt.Errorf("failed to enable pgcrypto extension: %w", err)
	}

	// Creation order respects foreign key dependencies.
	tables := []interface{}{
		models.User{},
		models.Customer{},
		models.Product{},
		models.LoyaltyTier{},
		models.LoyaltyMember{},
		models.Transaction{},
		models.TransactionItem{},
		models.LoyaltyTransaction{},
		models.RefundRequest{},
		models.LoyaltySetting{},
		models.ActivityLog{},
	}

	for _, model := range tables {
		tableModel, ok := model.(interface {
			TableName() string
			CreateTableSQL() string
		})
		if !ok {
			continue
		}

		log.Debug().Str("table", tableModel.TableName()).Msg("creating table")
		if _, err := db.Exec(tableModel.CreateTableSQL()); err != nil {
			return fmt.Errorf("failed to create table %s: %w", tableModel.TableName(), err)
		}
	}

	if err := db.runMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := db.seedDefaults(); err != nil {
		return fmt.Errorf("failed to seed defaults: %w", err)
	}

	log.Info().Msg("database schema ready")
	return nil
}

// runMigrations handles schema updates for existing tables
func (db *DB) runMigrations() error {
	migrations := []string{
		// Lifecycle columns added after the first loyalty release.
		`ALTER TABLE loyalty_members ADD COLUMN IF NOT EXISTS is_archived BOOLEAN NOT NULL DEFAULT FALSE;`,
		`ALTER TABLE loyalty_members ADD COLUMN IF NOT EXISTS archived_at TIMESTAMP WITH TIME ZONE;`,
		`ALTER TABLE loyalty_members ADD COLUMN IF NOT EXISTS deactivated_at TIMESTAMP WITH TIME ZONE;`,
		`ALTER TABLE loyalty_members ADD COLUMN IF NOT EXISTS activated_at TIMESTAMP WITH TIME ZONE;`,
		`ALTER TABLE loyalty_members ADD COLUMN IF NOT EXISTS last_active_at TIMESTAMP WITH TIME ZONE;`,
		`ALTER TABLE loyalty_members ADD COLUMN IF NOT EXISTS reactivation_remaining INTEGER NOT NULL DEFAULT 3;`,

		// Reward redemption support.
		`ALTER TABLE products ADD COLUMN IF NOT EXISTS points_cost BIGINT NOT NULL DEFAULT 0;`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// seedDefaults inserts loyalty settings and default tiers on first boot.
func (db *DB) seedDefaults() error {
	settings := []struct {
		key, value, typ, description string
		min, max                     *float64
	}{
		{key: "pesos_per_point", value: "10", typ: "number", description: "Pesos spent per point earned", min: f(1), max: f(1000)},
		{key: "max_discount_percent", value: "20", typ: "number", description: "Upper bound for tier discount percent", min: f(0), max: f(100)},
		{key: "allow_points_redemption", value: "true", typ: "boolean", description: "Enable reward redemption"},
		{key: "min_purchase_for_points", value: "0", typ: "number", description: "Minimum sale total that earns points", min: f(0), max: f(100000)},
	}

	for _, s := range settings {
		_, err := db.Exec(`
			INSERT INTO loyalty_settings (setting_key, setting_value, setting_type, min_value, max_value, description)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (setting_key) DO NOTHING`,
			s.key, s.value, s.typ, s.min, s.max, s.description)
		if err != nil {
			return fmt.Errorf("failed to seed setting %s: %w", s.key, err)
		}
	}

	tiers := []struct {
		name                  string
		minPoints             int64
		maxPoints             *int64
		discount, multiplier  float64
		color                 string
	}{
		{name: "Bronze", minPoints: 1, maxPoints: i(99), discount: 0, multiplier: 1.00, color: "#CD7F32"},
		{name: "Silver", minPoints: 100, maxPoints: i(499), discount: 3, multiplier: 1.25, color: "#C0C0C0"},
		{name: "Gold", minPoints: 500, maxPoints: i(999), discount: 5, multiplier: 1.50, color: "#FFD700"},
		{name: "Platinum", minPoints: 1000, maxPoints: nil, discount: 10, multiplier: 2.00, color: "#E5E4E2"},
	}

	for _, t := range tiers {
		_, err := db.Exec(`
			INSERT INTO loyalty_tiers (name, min_points, max_points, discount_percent, points_multiplier, color, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE)
			ON CONFLICT (name) DO NOTHING`,
			t.name, t.minPoints, t.maxPoints, t.discount, t.multiplier, t.color)
		if err != nil {
			return fmt.Errorf("failed to seed tier %s: %w", t.name, err)
		}
	}

	return nil
}

func f(v float64) *float64 { return &v }
func i(v int64) *int64     { return &v }
