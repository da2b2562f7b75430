package cli

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"cybersensei-service/internal/config"
	"cybersensei-service/internal/domain"
	transport "cybersensei-service/internal/transport/http"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// NewSeedCmd loads mission content from a JSON file into Postgres and can
// mint a development token for manual testing.
func NewSeedCmd(configPath *string) *cobra.Command {
	var (
		missionsFile string
		tokenUser    string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed mission content and mint dev tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			if tokenUser != "" {
				secret := cfg.Auth.Secret
				if secret == "" {
					secret = "dev-secret"
				}
				token, err := transport.MintToken(secret, tokenUser)
				if err != nil {
					return err
				}
				fmt.Println(token)
			}

			if missionsFile == "" {
				return nil
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}

			raw, err := os.ReadFile(missionsFile)
			if err != nil {
				return err
			}
			var missions []domain.Mission
			if err := json.Unmarshal(raw, &missions); err != nil {
				return fmt.Errorf("parse missions file: %w", err)
			}

			sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
			db := bun.NewDB(sqldb, pgdialect.New())
			defer db.Close()

			ctx := cmd.Context()
			for _, m := range missions {
				payload, err := json.Marshal(m.Payload)
				if err != nil {
					return err
				}
				_, err = db.ExecContext(ctx, `
					INSERT INTO missions (id, level, type, payload)
					VALUES (?, ?, ?, ?::jsonb)
					ON CONFLICT (id) DO UPDATE
					SET level = EXCLUDED.level, type = EXCLUDED.type, payload = EXCLUDED.payload`,
					m.ID, m.Level, m.Type, string(payload))
				if err != nil {
					return fmt.Errorf("seed mission %s: %w", m.ID, err)
				}
			}
			log.Printf("seeded %d missions", len(missions))
			return nil
		},
	}

	cmd.Flags().StringVar(&missionsFile, "missions", "", "path to missions JSON file")
	cmd.Flags().StringVar(&tokenUser, "token-for", "", "mint a dev token for this user id")
	return cmd
}
