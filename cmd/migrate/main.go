package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"

	"arcade/internal/config"
	"arcade/internal/database"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	migrationsPath := config.Load().MigrationsPath

	if command == "create" {
		if len(os.Args) < 3 {
			log.Fatal("Usage: migrate create <migration_name>")
		}
		createMigration(migrationsPath, os.Args[2])
		return
	}

	db, err := sql.Open("pgx", dbURL())
	if err != nil {
		log.Fatalf("[MIGRATE] Failed to open database: %v", err)
	}
	defer db.Close()

	switch command {
	case "up":
		log.Println("[MIGRATE] Applying migrations...")
		if err := database.RunMigrations(db, migrationsPath); err != nil {
			log.Fatalf("[MIGRATE] Migration failed: %v", err)
		}

	case "down":
		log.Println("[MIGRATE] Rolling back last migration...")
		if err := database.RollbackMigration(db, migrationsPath); err != nil {
			log.Fatalf("[MIGRATE] Rollback failed: %v", err)
		}
		log.Println("[MIGRATE] Rollback completed")

	case "version":
		version, dirty, err := database.GetMigrationVersion(db, migrationsPath)
		if err != nil {
			log.Fatalf("[MIGRATE] Failed to read version: %v", err)
		}
		if dirty {
			log.Printf("[MIGRATE] Current version: %d (DIRTY, fix manually)", version)
		} else {
			log.Printf("[MIGRATE] Current version: %d", version)
		}

	default:
		log.Printf("[MIGRATE] Unknown command: %s", command)
		printUsage()
		os.Exit(1)
	}
}

func dbURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		getEnv("BLUEPRINT_DB_USERNAME", "postgres"),
		getEnv("BLUEPRINT_DB_PASSWORD", "postgres"),
		getEnv("BLUEPRINT_DB_HOST", "localhost"),
		getEnv("BLUEPRINT_DB_PORT", "5432"),
		getEnv("BLUEPRINT_DB_DATABASE", "arcadedb"),
		getEnv("BLUEPRINT_DB_SCHEMA", "public"),
	)
}

// nextVersion is one past the highest numeric prefix in dir.
func nextVersion(dir string) (int, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	highest := 0
	for _, f := range files {
		prefix, _, ok := strings.Cut(f.Name(), "_")
		if f.IsDir() || !ok {
			continue
		}
		if n, err := strconv.Atoi(prefix); err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}

func createMigration(dir, name string) {
	version, err := nextVersion(dir)
	if err != nil {
		log.Fatalf("[MIGRATE] Failed to read %s: %v", dir, err)
	}

	base := fmt.Sprintf("%06d_%s", version, name)
	upFile := filepath.Join(dir, base+".up.sql")
	downFile := filepath.Join(dir, base+".down.sql")

	upContent := fmt.Sprintf("-- Migration: %s\n-- Created: %s\n\n", name, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(upFile, []byte(upContent), 0644); err != nil {
		log.Fatalf("[MIGRATE] Failed to create up migration: %v", err)
	}
	downContent := fmt.Sprintf("-- Rollback: %s\n\n", name)
	if err := os.WriteFile(downFile, []byte(downContent), 0644); err != nil {
		log.Fatalf("[MIGRATE] Failed to create down migration: %v", err)
	}

	log.Printf("[MIGRATE] Created %s and %s", upFile, downFile)
}

func printUsage() {
	fmt.Println("Arcade migration tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate up              Apply all pending migrations")
	fmt.Println("  migrate down            Roll back the last migration")
	fmt.Println("  migrate version         Show the current schema version")
	fmt.Println("  migrate create <name>   Create an empty migration pair")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  BLUEPRINT_DB_HOST       Database host (default: localhost)")
	fmt.Println("  BLUEPRINT_DB_PORT       Database port (default: 5432)")
	fmt.Println("  BLUEPRINT_DB_DATABASE   Database name (default: arcadedb)")
	fmt.Println("  BLUEPRINT_DB_USERNAME   Database user (default: postgres)")
	fmt.Println("  BLUEPRINT_DB_PASSWORD   Database password (default: postgres)")
	fmt.Println("  MIGRATIONS_PATH         Path to migrations (default: ./migrations)")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
