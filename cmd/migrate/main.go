// Command migrate applies the SQL migrations in ./migrations to the recetas
// database with golang-migrate.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/welldanyogia/recetas/backend/internal/config"
)

// Version is set at build time
var Version = "dev"

const (
	defaultTimeout        = 5 * time.Minute
	defaultMigrationsPath = "migrations"
	migrationsTable       = "schema_migrations"
)

type options struct {
	dsn     string
	path    string
	timeout time.Duration
	dryRun  bool
}

func main() {
	path := flag.String("path", envOr("MIGRATIONS_PATH", defaultMigrationsPath), "Path to migrations directory")
	timeout := flag.Duration("timeout", defaultTimeout, "Connection and lock timeout")
	dryRun := flag.Bool("dry-run", false, "Show what would be done without executing")
	version := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <command> [args]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  up [N]       Apply all or N up migrations\n")
		fmt.Fprintf(os.Stderr, "  down [N]     Roll back N migrations (default 1)\n")
		fmt.Fprintf(os.Stderr, "  force V      Set version V without running migrations\n")
		fmt.Fprintf(os.Stderr, "  version      Print current migration version\n")
		fmt.Fprintf(os.Stderr, "  create NAME  Create a new migration file pair\n")
		fmt.Fprintf(os.Stderr, "\nDatabase settings come from DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME and DB_SSLMODE.\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *version {
		fmt.Printf("migrate version %s\n", Version)
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.Load("")
	opts := options{
		dsn:     cfg.Database.DSN(),
		path:    *path,
		timeout: *timeout,
		dryRun:  *dryRun,
	}

	if err := run(opts, args[0], args[1:]); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run(opts options, cmd string, args []string) error {
	switch cmd {
	case "create":
		if len(args) < 1 {
			return errors.New("create requires a migration name")
		}
		return create(opts, args[0])
	case "version":
		return withMigrate(opts, func(m *migrate.Migrate) error {
			v, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				log.Println("No migrations have been applied yet")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to get version: %w", err)
			}
			log.Printf("Current migration version: %d (dirty=%v)", v, dirty)
			return nil
		})
	case "up":
		n, err := optionalInt(args, 0)
		if err != nil {
			return err
		}
		if opts.dryRun {
			log.Printf("[DRY RUN] Would apply %d up migrations (0 = all)", n)
			return nil
		}
		return withMigrate(opts, func(m *migrate.Migrate) error { return step(m, n) })
	case "down":
		n, err := optionalInt(args, 1)
		if err != nil {
			return err
		}
		if opts.dryRun {
			log.Printf("[DRY RUN] Would roll back %d migrations", n)
			return nil
		}
		return withMigrate(opts, func(m *migrate.Migrate) error { return step(m, -n) })
	case "force":
		if len(args) < 1 {
			return errors.New("force requires a version number")
		}
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version: %s", args[0])
		}
		if opts.dryRun {
			log.Printf("[DRY RUN] Would force version to %d", v)
			return nil
		}
		return withMigrate(opts, func(m *migrate.Migrate) error { return m.Force(v) })
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func optionalInt(args []string, def int) (int, error) {
	if len(args) == 0 {
		return def, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid number of steps: %s", args[0])
	}
	return n, nil
}

// step applies n migrations, or all pending ones when n is 0.
func step(m *migrate.Migrate, n int) error {
	from, _, _ := m.Version()

	var err error
	if n == 0 {
		err = m.Up()
	} else {
		err = m.Steps(n)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Println("No migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	to, _, _ := m.Version()
	log.Printf("Migration completed: %d -> %d", from, to)
	return nil
}

func withMigrate(opts options, fn func(*migrate.Migrate) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	db, err := sql.Open("pgx", opts.dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	abs, err := filepath.Abs(opts.path)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to resolve migrations path: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+abs, "postgres", driver)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()
	m.LockTimeout = opts.timeout

	return fn(m)
}

// create writes NNNNNN_name.up.sql and .down.sql after the highest existing number.
func create(opts options, name string) error {
	next := 1
	entries, err := os.ReadDir(opts.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, e := range entries {
		var n int
		if _, err := fmt.Sscanf(e.Name(), "%d_", &n); err == nil && n >= next {
			next = n + 1
		}
	}

	stamp := time.Now().Format(time.RFC3339)
	files := map[string]string{
		fmt.Sprintf("%06d_%s.up.sql", next, name):   fmt.Sprintf("-- Migration: %s\n-- Created: %s\n", name, stamp),
		fmt.Sprintf("%06d_%s.down.sql", next, name): fmt.Sprintf("-- Migration: %s (rollback)\n-- Created: %s\n", name, stamp),
	}

	if opts.dryRun {
		for f := range files {
			log.Printf("[DRY RUN] Would create: %s", filepath.Join(opts.path, f))
		}
		return nil
	}
	if err := os.MkdirAll(opts.path, 0o755); err != nil {
		return fmt.Errorf("failed to create migrations directory: %w", err)
	}
	for f, content := range files {
		p := filepath.Join(opts.path, f)
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to create %s: %w", p, err)
		}
		log.Printf("Created %s", p)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
