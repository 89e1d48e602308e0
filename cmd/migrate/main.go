package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"flowhq.dev/internal/config"
	"flowhq.dev/internal/migrate"
)

var (
	dsnFlag     string
	dirFlag     string
	timeoutFlag time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Apply flowhq schema migrations and catalog seeds",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: withManager(func(ctx context.Context, cmd *cobra.Command, mgr *migrate.Manager) error {
		applied, err := mgr.Up(ctx)
		for _, name := range applied {
			fmt.Fprintln(cmd.OutOrStdout(), "applied", name)
		}
		return err
	}),
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	Args:  cobra.NoArgs,
	RunE: withManager(func(ctx context.Context, cmd *cobra.Command, mgr *migrate.Manager) error {
		name, err := mgr.Down(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "rolled back", name)
		return nil
	}),
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Install the builtin roles and permissions",
	Args:  cobra.NoArgs,
	RunE: withManager(func(ctx context.Context, cmd *cobra.Command, mgr *migrate.Manager) error {
		applied, err := mgr.Seed(ctx)
		for _, name := range applied {
			fmt.Fprintln(cmd.OutOrStdout(), "seeded", name)
		}
		return err
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List applied migrations in order",
	Args:  cobra.NoArgs,
	RunE: withManager(func(ctx context.Context, cmd *cobra.Command, mgr *migrate.Manager) error {
		history, err := mgr.Status(ctx)
		if err != nil {
			return err
		}
		for _, item := range history {
			fmt.Fprintln(cmd.OutOrStdout(), item)
		}
		return nil
	}),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dsnFlag, "dsn", os.Getenv(config.EnvPGDSN), "PostgreSQL DSN (defaults to "+config.EnvPGDSN+")")
	rootCmd.PersistentFlags().StringVar(&dirFlag, "dir", "", "read sql/ and seeds/ from this directory instead of the embedded copies")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 30*time.Second, "overall deadline for the command")
	rootCmd.AddCommand(upCmd, downCmd, seedCmd, statusCmd)
}

type managerFunc func(ctx context.Context, cmd *cobra.Command, mgr *migrate.Manager) error

func withManager(fn managerFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		if dsnFlag == "" {
			return errors.New("missing DSN: provide via --dsn or " + config.EnvPGDSN)
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag)
		defer cancel()

		db, err := sql.Open("pgx", dsnFlag)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer db.Close()

		var files fs.FS
		if dirFlag != "" {
			files = os.DirFS(dirFlag)
		}
		if err := fn(ctx, cmd, migrate.NewManager(db, files)); err != nil {
			return fmt.Errorf("migrate %s: %w", cmd.Name(), err)
		}
		return nil
	}
}

func main() {
	log.SetFlags(0)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
