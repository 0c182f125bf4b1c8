package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mchmarny/belong/pkg/config"
	"github.com/mchmarny/belong/pkg/data"
	"github.com/mchmarny/belong/pkg/logging"
	urfave "github.com/urfave/cli/v3"
)

const (
	appName = "belong"
)

const (
	debugFlagName  = "debug"
	homeFlagName   = "home"
	dbFlagName     = "db"
	formatFlagName = "format"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""
)

func globalFlags() []urfave.Flag {
	return []urfave.Flag{
		&urfave.BoolFlag{
			Name:  debugFlagName,
			Usage: "Prints verbose logs (optional, default: false)",
		},
		&urfave.StringFlag{
			Name:    homeFlagName,
			Usage:   "Path to the app directory holding config.yaml and the database (default: $HOME/.belong)",
			Sources: urfave.EnvVars("BELONG_HOME"),
		},
		&urfave.StringFlag{
			Name:  dbFlagName,
			Usage: "Path to the Sqlite database file (default: <home>/data.db)",
		},
		&urfave.StringFlag{
			Name:  formatFlagName,
			Usage: "Output format [json, yaml] (default: from config)",
		},
	}
}

// Execute creates and runs the CLI application.
func Execute() {
	initLogging(false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp()
	if err := app.Run(ctx, os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		stop()
		os.Exit(1)
	}
}

type appConfig struct {
	Home   string
	DBPath string
	Debug  bool
	Format string
	Conf   *config.Config
	DB     *sql.DB
}

func newApp() *urfave.Command {
	cfg := &appConfig{}

	return &urfave.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Belonging index of classified allelic profiles",
		Flags:                 globalFlags(),
		Commands: []*urfave.Command{
			newCalcCmd(cfg),
			newRunsCmd(cfg),
		},
		Before: func(ctx context.Context, c *urfave.Command) (context.Context, error) {
			return ctx, cfg.init(c)
		},
		After: func(_ context.Context, _ *urfave.Command) error {
			if cfg.DB != nil {
				cfg.DB.Close()
				cfg.DB = nil
			}
			return nil
		},
	}
}

func (cfg *appConfig) init(c *urfave.Command) error {
	cfg.Debug = c.Bool(debugFlagName)
	if cfg.Debug {
		initLogging(true)
	}

	home := c.String(homeFlagName)
	if home == "" {
		h, _, err := config.GetOrCreateHomeDir(appName)
		if err != nil {
			slog.Debug("error getting home dir, using current dir instead", "error", err)
			h = "."
		}
		home = h
	}
	cfg.Home = home

	conf, err := config.ReadOrCreate(home)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	cfg.Conf = conf

	cfg.Format = conf.Format
	if f := strings.ToLower(c.String(formatFlagName)); f != "" {
		switch f {
		case config.FormatYAML, "yml":
			cfg.Format = config.FormatYAML
		case config.FormatJSON:
			cfg.Format = config.FormatJSON
		default:
			return fmt.Errorf("invalid format: %s (permitted options: %s, %s)", f, config.FormatJSON, config.FormatYAML)
		}
	}

	dbPath := c.String(dbFlagName)
	if dbPath == "" {
		dbPath = filepath.Join(home, data.DataFileName)
	}

	if err := data.Init(dbPath); err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}

	db, err := data.GetDB(dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	cfg.DBPath = dbPath
	cfg.DB = db
	slog.Debug("app initialized", "home", home, "db", dbPath, "format", cfg.Format)
	return nil
}

func initLogging(debug bool) {
	level := "info"
	if debug {
		level = "debug"
	}
	logging.SetDefaultCLILogger(level)
}

func writer(c *urfave.Command) io.Writer {
	if w := c.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
