package main

import (
	"log/slog"
	"os"

	"homebids/internal/app"
)

func main() {
	app, err := app.NewApp()
	if err != nil {
		slog.Error("app startup failed", "err", err)
		os.Exit(1)
	}

	app.Run()
}
