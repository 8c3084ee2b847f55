package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/nordcrm/pipeline-api/internal/config"
	"github.com/nordcrm/pipeline-api/migrations"
	"github.com/pressly/goose/v3"
)

const usage = `usage: migrate [flags] <command> [args]

Commands:
  up              apply all pending migrations
  up-to <ver>     migrate up to a specific version
  down            roll back the most recent migration
  down-to <ver>   roll back to a specific version
  status          print the status of every migration
  version         print the current schema version
`

func main() {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	if err := run(fs.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("no command given")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	command, rest := args[0], args[1:]

	switch command {
	case "up":
		if err := goose.Up(db, "."); err != nil {
			return fmt.Errorf("up: %w", err)
		}
		fmt.Println("migrations applied")

	case "up-to":
		version, err := parseVersion(rest)
		if err != nil {
			return err
		}
		if err := goose.UpTo(db, ".", version); err != nil {
			return fmt.Errorf("up-to %d: %w", version, err)
		}
		fmt.Printf("migrated up to version %d\n", version)

	case "down":
		if err := goose.Down(db, "."); err != nil {
			return fmt.Errorf("down: %w", err)
		}
		fmt.Println("rolled back one migration")

	case "down-to":
		version, err := parseVersion(rest)
		if err != nil {
			return err
		}
		if err := goose.DownTo(db, ".", version); err != nil {
			return fmt.Errorf("down-to %d: %w", version, err)
		}
		fmt.Printf("rolled back to version %d\n", version)

	case "status":
		if err := goose.Status(db, "."); err != nil {
			return fmt.Errorf("status: %w", err)
		}

	case "version":
		version, err := goose.GetDBVersion(db)
		if err != nil {
			return fmt.Errorf("version: %w", err)
		}
		fmt.Printf("schema version: %d\n", version)

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}

	return nil
}

func parseVersion(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("a target version is required")
	}
	version, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q", args[0])
	}
	return version, nil
}
