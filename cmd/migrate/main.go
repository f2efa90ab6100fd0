// migrate applies the embedded schema migrations to the Postgres (DATABASE_URL) or SQLite
// (SQLITE_PATH) store selected by STORE_DRIVER.
package main

import (
	"flag"
	"fmt"
	"os"

	"pushauth/backend/internal/config"
	"pushauth/backend/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	var dsn string
	switch cfg.StoreDriver {
	case config.StorePostgres:
		dsn = cfg.DatabaseURL
	case config.StoreSQLite:
		dsn = "sqlite://" + cfg.SQLitePath
	default:
		fmt.Fprintf(os.Stderr, "STORE_DRIVER=%s has no schema to migrate; use postgres or sqlite\n", cfg.StoreDriver)
		os.Exit(1)
	}

	if err := migrate.Run(dsn, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	fmt.Printf("migrations %s applied (%s)\n", *direction, cfg.StoreDriver)
}
