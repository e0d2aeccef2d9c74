package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"ghiblyze/internal/adapter/repo"
	"ghiblyze/internal/infra"
	"ghiblyze/internal/sqlinline"
)

func main() {
	var (
		driverFlag string
		sqliteFlag string
	)
	flag.StringVar(&driverFlag, "driver", "", "gallery driver to migrate (postgres or sqlite, defaults to GALLERY_DRIVER)")
	flag.StringVar(&sqliteFlag, "sqlite", "", "sqlite database path (defaults to SQLITE_PATH or ghiblyze.db)")
	flag.Parse()

	_ = godotenv.Load()
	logger := infra.NewLogger(os.Getenv("APP_ENV"))

	driver := strings.ToLower(strings.TrimSpace(driverFlag))
	if driver == "" {
		driver = strings.ToLower(strings.TrimSpace(os.Getenv("GALLERY_DRIVER")))
	}
	if driver == "" {
		driver = infra.GalleryDriverPostgres
	}

	switch driver {
	case infra.GalleryDriverSQLite:
		path := strings.TrimSpace(sqliteFlag)
		if path == "" {
			path = strings.TrimSpace(os.Getenv("SQLITE_PATH"))
		}
		if path == "" {
			path = "ghiblyze.db"
		}
		db, err := repo.OpenGallerySQLite(path, logger)
		if err != nil {
			exitWithError(err)
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		fmt.Printf("gallery table ready in %s\n", path)
	case infra.GalleryDriverPostgres:
		dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
		if dbURL == "" {
			exitWithError(errors.New("DATABASE_URL is required"))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := infra.ApplySchema(ctx, dbURL, logger, sqlinline.Schema...); err != nil {
			exitWithError(err)
		}
		fmt.Printf("applied %d schema statements\n", len(sqlinline.Schema))
	default:
		exitWithError(fmt.Errorf("unsupported driver %q", driver))
	}
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
	os.Exit(1)
}
