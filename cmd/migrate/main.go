package main

import (
	"errors"
	"flag"
	"fmt"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/tenacity/ops-backend/internal/config"
	"github.com/tenacity/ops-backend/internal/logger"
)

func main() {
	var migrationDir string
	flag.StringVar(&migrationDir, "path", "migrations", "Path to migration files")
	flag.Usage = printUsage
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat).With().Str("component", "migrate").Logger()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		return
	}

	m, err := migrate.New("file://"+migrationDir, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("path", migrationDir).Msg("Migration failed to initialize")
	}
	defer m.Close()

	intArg := func() int {
		if len(args) < 2 {
			log.Fatal().Msgf("%s requires a number argument", args[0])
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid number")
		}
		return n
	}

	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Msg("Up failed")
		}
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Msg("Down failed")
		}
	case "steps":
		if err := m.Steps(intArg()); err != nil {
			log.Fatal().Err(err).Msg("Steps failed")
		}
	case "force":
		if err := m.Force(intArg()); err != nil {
			log.Fatal().Err(err).Msg("Force failed")
		}
	case "version":
	default:
		printUsage()
		return
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Info().Msg("No migrations applied")
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Version failed")
	}
	log.Info().Uint("version", version).Bool("dirty", dirty).Msgf("Schema at version %d", version)
}

func printUsage() {
	fmt.Println("Usage: migrate [flags] <command>")
	fmt.Println("Commands: up, down, steps <n>, force <version>, version")
	fmt.Println("Flags:")
	flag.PrintDefaults()
}
