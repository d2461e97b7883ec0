package main

import (
	"context"
	"os"
	"os/signal"

	// Register database adapters.
	_ "github.com/sqlsweep/sqlsweep/internal/adapter/duckdb"
	_ "github.com/sqlsweep/sqlsweep/internal/adapter/mssql"
	_ "github.com/sqlsweep/sqlsweep/internal/adapter/mysql"
	_ "github.com/sqlsweep/sqlsweep/internal/adapter/postgres"
	_ "github.com/sqlsweep/sqlsweep/internal/adapter/sqlite"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
