package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinic/dashboard/internal/config"
	"github.com/clinic/dashboard/internal/platform/db"
	"github.com/clinic/dashboard/internal/platform/mailer"
	"github.com/clinic/dashboard/internal/platform/metrics"
	"github.com/clinic/dashboard/internal/platform/realtime"
	"github.com/clinic/dashboard/internal/platform/sandbox"
	"github.com/clinic/dashboard/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dashboard-server",
		Short: "Practice dashboard API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func poolConfig(cfg *config.Config) db.PoolConfig {
	return db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Schema:   cfg.DBSchema,
	}
}

// newMigrator reads migrations from dir when given, otherwise from the SQL
// files compiled into the binary.
func newMigrator(cfg *config.Config, dir, schema string) (*db.Migrator, func(), error) {
	if schema == "" {
		schema = cfg.DBSchema
	}
	pool, err := db.NewPool(context.Background(), poolConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	if dir != "" {
		return db.NewMigrator(pool, dir, schema), pool.Close, nil
	}
	return db.NewMigratorFS(pool, migrations.FS, schema), pool.Close, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			migrator, closePool, err := newMigrator(cfg, dir, schema)
			if err != nil {
				return err
			}
			defer closePool()

			count, err := migrator.Up(context.Background())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "", "Target schema (defaults to DB_SCHEMA)")
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			migrator, closePool, err := newMigrator(cfg, dir, schema)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(context.Background())
			if err != nil {
				return err
			}
			printStatus(os.Stdout, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("schema", "", "Target schema (defaults to DB_SCHEMA)")
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")

	cmd.AddCommand(upCmd, statusCmd)
	return cmd
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func seedCmd() *cobra.Command {
	defaults := sandbox.DefaultSeedConfig()
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with generated demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env)

			seedCfg := defaults
			flags := cmd.Flags()
			seedCfg.VendorCount, _ = flags.GetInt("vendors")
			seedCfg.ItemsPerVendor, _ = flags.GetInt("items")
			seedCfg.LowStockPerVendor, _ = flags.GetInt("low")
			seedCfg.PatientCount, _ = flags.GetInt("patients")
			seedCfg.Months, _ = flags.GetInt("months")
			seedCfg.Seed, _ = flags.GetInt64("seed")

			ctx := context.Background()
			pool, err := db.NewPool(ctx, poolConfig(cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			mail := mailer.New(mailer.NewTemplateEngine(), mailer.LogSender{Logger: logger}, cfg.MailFrom)
			svc := newServices(cfg, pool, realtime.Discard{}, mail, metrics.New(), logger)

			res, err := sandbox.NewSeeder(seedCfg, svc.inventory, svc.identity, svc.financial, logger).Run(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d vendor(s), %d stock item(s) (%d low), %d patient(s), %d financial record(s) in %s.\n",
				res.Vendors, res.StockItems, res.LowStock, res.Patients, res.Records, res.Duration)
			return nil
		},
	}
	cmd.Flags().Int("vendors", defaults.VendorCount, "Number of vendors")
	cmd.Flags().Int("items", defaults.ItemsPerVendor, "Stock items per vendor")
	cmd.Flags().Int("low", defaults.LowStockPerVendor, "Low-stock items per vendor")
	cmd.Flags().Int("patients", defaults.PatientCount, "Number of patients")
	cmd.Flags().Int("months", defaults.Months, "Months of financial history")
	cmd.Flags().Int64("seed", defaults.Seed, "Random seed")
	return cmd
}
