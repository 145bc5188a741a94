// Package seed parses seed command flags and imports case files.
package seed

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/mdc-engine/ramka/internal/catalog"
	entrypoint "github.com/mdc-engine/ramka/internal/platform/cmd"
	"github.com/mdc-engine/ramka/internal/storage/sqlite"
)

// Config holds seed command configuration.
type Config struct {
	DBPath   string `env:"RAMKA_SEED_DB_PATH" envDefault:"data/ramka.db"`
	CasesDir string `env:"RAMKA_SEED_CASES_DIR" envDefault:"cases"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The SQLite database path")
	fs.StringVar(&cfg.CasesDir, "cases-dir", cfg.CasesDir, "Directory of case JSON files")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run imports all case files from the configured directory.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSeed, func(ctx context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close store: %v", err)
			}
		}()

		importer, err := catalog.NewImporter(store)
		if err != nil {
			return fmt.Errorf("case importer: %w", err)
		}
		imported, err := importer.ImportDir(ctx, cfg.CasesDir)
		if err != nil {
			return err
		}
		log.Printf("imported %d case(s) from %s", imported, cfg.CasesDir)
		return nil
	})
}
