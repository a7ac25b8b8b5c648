// Command migrate applies the embedded SQL migrations with goose.
//
//	migrate up | up-by-one | up-to VERSION | down | down-to VERSION | redo | reset | status | version
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-api/migrations"
	"github.com/noah-isme/academy-api/pkg/config"
	"github.com/noah-isme/academy-api/pkg/database"
	"github.com/noah-isme/academy-api/pkg/logger"
)

var errUsage = errors.New("usage: migrate up|up-by-one|up-to V|down|down-to V|redo|reset|status|version")

var gooseRunFunc = goose.Run // mockable

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		log.Fatal("connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if err := migrate(db.DB, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		log.Fatal("migrate", zap.Strings("args", os.Args[1:]), zap.Error(err))
	}
	log.Info("migrate done", zap.Strings("args", os.Args[1:]))
}

func migrate(db *sql.DB, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return gooseRunFunc(args[0], db, ".", args[1:]...)
}
