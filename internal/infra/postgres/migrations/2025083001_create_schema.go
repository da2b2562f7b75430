package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_create_schema.sql
var createSchemaSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(createSchemaSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(`
				DROP TABLE IF EXISTS user_badges;
				DROP TABLE IF EXISTS badges;
				DROP TABLE IF EXISTS user_stats;
				DROP TABLE IF EXISTS friendships;
				DROP TABLE IF EXISTS attempts;
				DROP TABLE IF EXISTS missions;
				DROP TABLE IF EXISTS profiles;
			`)
			return err
		},
	)
}
