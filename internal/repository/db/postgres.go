package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"homebids/internal/config"

	_ "github.com/lib/pq"
)

func NewPostgresDB(cfg *config.PostgresConfig) (*sql.DB, error) {
	slog.Debug("connecting db", "conn", redact(cfg.Conn))
	db, err := sql.Open("postgres", cfg.Conn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func redact(conn string) string {
	if len(conn) > 24 {
		return fmt.Sprintf("%s...", conn[:24])
	}
	return conn
}
