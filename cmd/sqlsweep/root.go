package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sqlsweep/sqlsweep/internal/adapter"
	"github.com/sqlsweep/sqlsweep/internal/artifact"
	"github.com/sqlsweep/sqlsweep/internal/audit"
	"github.com/sqlsweep/sqlsweep/internal/config"
	"github.com/sqlsweep/sqlsweep/internal/history"
	"github.com/sqlsweep/sqlsweep/internal/suggest"
	"github.com/sqlsweep/sqlsweep/internal/theme"
	"github.com/sqlsweep/sqlsweep/internal/ui"
)

// rootState carries the persistent flag values and the collaborators shared
// by every subcommand. It is populated once in PersistentPreRunE.
type rootState struct {
	configPath string
	envFile    string
	connName   string
	adapterVal string
	dsn        string
	host       string
	port       int
	user       string
	password   string
	database   string
	file       string
	themeName  string
	noColor    bool
	verbose    bool

	cfg     *config.Config
	printer *ui.Printer
}

func newRootCmd() *cobra.Command {
	rt := &rootState{}

	cmd := &cobra.Command{
		Use:   "sqlsweep",
		Short: "Referential cascade cleanup planner and SQL schema toolkit",
		Long: `sqlsweep discovers foreign key graphs from live database metadata and plans
cascade deletions: given root rows, it finds every dependent row, orders the
deletes child-first, and emits or executes a batched cleanup script.

The same metadata layer powers the companion tools: ER diagrams, schema size
reports, cross-environment object comparison, view and procedure smoke tests,
and query exports.

Examples:
  sqlsweep cleanup --connection prod --table dbo.customers --ids 42,87
  sqlsweep cleanup -a sqlite -f ./app.db --table customers --ids-query "SELECT id FROM customers WHERE churned = 1" --mode script
  sqlsweep diagram --connection dev --format mermaid
  sqlsweep compare dev staging prod --kind view
  sqlsweep smoke --connection dev --schedule "0 6 * * *"`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.setup()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&rt.configPath, "config", "c", "", "Config file path (default ~/.config/sqlsweep/config.yaml)")
	pf.StringVar(&rt.envFile, "env-file", "", "Env file to load before resolving connections")
	pf.StringVar(&rt.connName, "connection", "", "Saved connection name from the config file")
	pf.StringVarP(&rt.adapterVal, "adapter", "a", "", "Database adapter (mssql, mysql, postgres, sqlite, duckdb)")
	pf.StringVar(&rt.dsn, "dsn", "", "Connection string")
	pf.StringVarP(&rt.host, "host", "H", "", "Database host")
	pf.IntVarP(&rt.port, "port", "p", 0, "Database port")
	pf.StringVarP(&rt.user, "user", "u", "", "Database user")
	pf.StringVarP(&rt.password, "password", "P", "", "Database password")
	pf.StringVarP(&rt.database, "database", "d", "", "Database name")
	pf.StringVarP(&rt.file, "file", "f", "", "Database file (sqlite, duckdb)")
	pf.StringVar(&rt.themeName, "theme", "", "Output theme (default, light, monokai, plain)")
	pf.BoolVar(&rt.noColor, "no-color", false, "Disable styled output")
	pf.BoolVarP(&rt.verbose, "verbose", "v", false, "Log lookup and execution steps to stderr")

	cmd.AddCommand(
		newCleanupCmd(rt),
		newDiagramCmd(rt),
		newSizeCmd(rt),
		newCompareCmd(rt),
		newSmokeCmd(rt),
		newExportCmd(rt),
		newHistoryCmd(rt),
		newVersionCmd(),
	)
	return cmd
}

// setup loads the env file and config, then wires the theme, printer, and
// default logger for this invocation.
func (rt *rootState) setup() error {
	if rt.envFile != "" {
		if err := godotenv.Load(rt.envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	} else {
		// A .env in the working directory is loaded when present.
		_ = godotenv.Load()
	}

	var err error
	if rt.configPath != "" {
		rt.cfg, err = config.Load(rt.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		rt.cfg, err = config.LoadDefault()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not load config: %v\n", err)
			rt.cfg = config.DefaultConfig()
		}
	}

	name := rt.cfg.Theme
	if rt.themeName != "" {
		name = rt.themeName
	}
	if rt.noColor {
		name = "plain"
	}
	theme.Current = theme.Get(name)
	rt.printer = ui.New(os.Stdout, theme.Current)

	level := slog.LevelWarn
	if rt.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// resolveTarget determines the adapter name and DSN for this invocation,
// in precedence order: saved connection, explicit DSN, individual flags.
func (rt *rootState) resolveTarget() (string, string, error) {
	if rt.connName != "" {
		sc, ok := rt.cfg.Connection(rt.connName)
		if !ok {
			msg := fmt.Sprintf("unknown connection %q", rt.connName)
			if hint := suggest.Hint(rt.connName, rt.cfg.ConnectionNames()); hint != "" {
				msg += ", " + hint
			}
			return "", "", errors.New(msg)
		}
		dsn, err := sc.ResolveDSN()
		if err != nil {
			return "", "", fmt.Errorf("connection %q: %w", rt.connName, err)
		}
		return strings.ToLower(sc.Adapter), dsn, nil
	}

	if rt.dsn != "" {
		name := strings.ToLower(rt.adapterVal)
		if name == "" {
			name = detectAdapter(rt.dsn)
		}
		if name == "" {
			return "", "", errors.New("cannot detect adapter from DSN, pass --adapter")
		}
		return name, rt.dsn, nil
	}

	if rt.adapterVal != "" {
		sc := config.SavedConnection{
			Adapter:  rt.adapterVal,
			Host:     rt.host,
			Port:     rt.port,
			User:     rt.user,
			Password: rt.password,
			Database: rt.database,
			File:     rt.file,
		}
		return strings.ToLower(rt.adapterVal), sc.BuildDSN(), nil
	}

	return "", "", errors.New("no connection specified: use --connection, --dsn, or --adapter with host flags")
}

// connect resolves the target and opens a connection. The returned DSN is
// the resolved one, for audit and script headers.
func (rt *rootState) connect(ctx context.Context) (adapter.Adapter, adapter.Connection, string, error) {
	name, dsn, err := rt.resolveTarget()
	if err != nil {
		return nil, nil, "", err
	}
	a, ok := adapter.Get(name)
	if !ok {
		msg := fmt.Sprintf("unknown adapter %q (available: %s)", name, strings.Join(adapter.Names(), ", "))
		if hint := suggest.Hint(name, adapter.Names()); hint != "" {
			msg += ", " + hint
		}
		return nil, nil, "", errors.New(msg)
	}
	conn, err := a.Connect(ctx, dsn)
	if err != nil {
		return nil, nil, "", fmt.Errorf("connect: %w", err)
	}
	return a, conn, dsn, nil
}

// openSink builds the artifact destination: the local directory, mirrored
// to S3 when the config asks for it.
func (rt *rootState) openSink(ctx context.Context) (artifact.Sink, error) {
	local, err := artifact.NewLocalSink(rt.cfg.Artifacts.Dir)
	if err != nil {
		return nil, fmt.Errorf("artifact dir: %w", err)
	}
	s3 := rt.cfg.Artifacts.S3
	if s3 == nil {
		return local, nil
	}
	remote, err := artifact.NewS3Sink(ctx, artifact.S3Options{
		Bucket:    s3.Bucket,
		Prefix:    s3.Prefix,
		Region:    s3.Region,
		Endpoint:  s3.Endpoint,
		PathStyle: s3.PathStyle,
	})
	if err != nil {
		slog.Warn("s3 mirror unavailable, writing locally only", "bucket", s3.Bucket, "error", err)
		return local, nil
	}
	return artifact.NewMirror(local, remote, slog.Default()), nil
}

// openAudit returns the audit logger, or nil when auditing is disabled or
// cannot be set up. A nil logger is a no-op for all callers.
func (rt *rootState) openAudit() *audit.Logger {
	if !rt.cfg.Audit.Enabled {
		return nil
	}
	dir, err := rt.cfg.AuditDir()
	if err != nil {
		slog.Warn("audit log disabled", "error", err)
		return nil
	}
	log, err := audit.New(filepath.Join(dir, "audit.jsonl"), rt.cfg.Audit.MaxSizeMB)
	if err != nil {
		slog.Warn("audit log disabled", "error", err)
		return nil
	}
	return log
}

// openHistory returns the run history store, or nil when history is
// disabled or cannot be opened.
func (rt *rootState) openHistory() *history.Store {
	if !rt.cfg.History.Enabled {
		return nil
	}
	path, err := rt.cfg.HistoryPath()
	if err != nil {
		slog.Warn("history disabled", "error", err)
		return nil
	}
	store, err := history.Open(path)
	if err != nil {
		slog.Warn("history disabled", "path", path, "error", err)
		return nil
	}
	return store
}

func newRunID() string {
	return uuid.NewString()
}

// detectAdapter guesses the adapter from a DSN's shape. Empty means the
// caller must pass --adapter explicitly.
func detectAdapter(dsn string) string {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "sqlserver://") || strings.HasPrefix(lower, "mssql://"):
		return "mssql"
	case strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(lower, "mysql://"):
		return "mysql"
	case strings.HasPrefix(lower, "duckdb://"), strings.HasSuffix(lower, ".duckdb"):
		return "duckdb"
	case strings.HasPrefix(lower, "sqlite://") || strings.HasPrefix(lower, "file:"):
		return "sqlite"
	case strings.HasSuffix(lower, ".db") || strings.HasSuffix(lower, ".sqlite") || strings.HasSuffix(lower, ".sqlite3"):
		return "sqlite"
	case strings.Contains(lower, "@tcp("):
		return "mysql"
	case strings.Contains(lower, "server="):
		return "mssql"
	case strings.Contains(lower, "host=") || strings.Contains(lower, "dbname="):
		return "postgres"
	}
	return ""
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sqlsweep %s (commit: %s, built: %s)\n", version, commit, date)
			fmt.Println("\nSupported adapters:")
			for _, name := range adapter.Names() {
				fmt.Printf("  - %s\n", name)
			}
		},
	}
}
