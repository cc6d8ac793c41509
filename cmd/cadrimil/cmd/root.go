// Package cmd provides the CLI commands for cadrimil.
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cadrimil/engine/diaria"
	"github.com/cadrimil/engine/factory"
	"github.com/cadrimil/engine/internal/config"
	"github.com/cadrimil/engine/internal/logging"
	"github.com/cadrimil/engine/internal/storage"
	"github.com/cadrimil/engine/ratesource"
)

// version is set at build time with -ldflags "-X ...cmd.version=...".
var version = "0.1.0-dev"

// app carries the global flags and the state shared by subcommands.
type app struct {
	cfgFile   string
	dbPath    string
	ratesFile string
	offline   bool
	verbose   bool

	cfg config.Config
	log *zap.Logger

	// Pinned by tests.
	now   func() time.Time
	newID func() string
}

// NewRootCmd builds the command tree. Each call returns independent
// commands and flag values.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "cadrimil",
		Short: "Calculate per-diem allowances for military missions",
		Long: `cadrimil computes diárias for Brazilian military missions from the
published rate table and keeps the missions you save.

Examples:
  cadrimil calc --period C:l2:2025-08-04:2025-08-29:3 --aed
  cadrimil calc --period B:l1:2025-06-02:2025-06-04:1:full --save --name "Inspeção"
  cadrimil missions list
  cadrimil report <id> --format pdf -o inspecao.pdf`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "cadrimil.yaml", "YAML config file")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path (overrides config)")
	root.PersistentFlags().StringVar(&a.ratesFile, "rates", "", "read the rate table from a JSON, YAML or Excel file")
	root.PersistentFlags().BoolVar(&a.offline, "offline", false, "use the built-in rate table")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")

	root.AddCommand(
		a.calcCmd(),
		a.tablesCmd(),
		a.missionsCmd(),
		a.exportCmd(),
		a.importCmd(),
		a.reportCmd(),
		versionCmd(),
	)
	return root
}

// Execute runs the CLI
func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) initConfig() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if a.dbPath != "" {
		cfg.Storage.Driver = config.DriverSQLite
		cfg.Storage.Path = a.dbPath
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logging.Initialize(cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	a.cfg = cfg
	a.log = logging.Named("cli")
	return nil
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

func (a *app) openStore(ctx context.Context) (storage.Opened, error) {
	st, err := storage.Open(ctx, a.cfg.Storage)
	if err != nil {
		return storage.Opened{}, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// rateTable resolves the table the same way the server does: configured
// source, then the store's cache, then the built-in table. --rates and
// --offline bypass the chain.
func (a *app) rateTable(ctx context.Context, cache ratesource.Cache) (diaria.RateTable, error) {
	var p *ratesource.Provider
	switch {
	case a.ratesFile != "":
		p = ratesource.NewProvider(ratesource.FileFetcher{Path: a.ratesFile}, ratesource.WithDefaultFallback(false))
		if err := p.Load(ctx); err != nil {
			return diaria.RateTable{}, err
		}
	case a.offline:
		p = ratesource.Static(factory.DefaultRateTable())
	default:
		opts := []ratesource.Option{ratesource.WithDefaultFallback(a.cfg.RateSource.DefaultFallback)}
		if cache != nil {
			opts = append(opts, ratesource.WithCache(cache))
		}
		p = ratesource.NewProvider(a.cfg.RateSource.Fetcher(), opts...)
		if err := p.Load(ctx); err != nil {
			a.log.Warn("rate table not fetched", zap.Error(err))
		}
	}
	a.log.Debug("rate table loaded", zap.String("source", string(p.Status().Source)))
	return p.Current()
}

func (a *app) newSession(table diaria.RateTable) *diaria.Session {
	s := diaria.NewSession(table)
	if a.now != nil {
		s.Now = a.now
	}
	if a.newID != nil {
		s.NewID = a.newID
	}
	return s
}

// confirm asks for a literal "yes" on in.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s Type 'yes' to confirm: ", prompt)
	input, _ := bufio.NewReader(in).ReadString('\n')
	return strings.TrimSpace(strings.ToLower(input)) == "yes"
}

// versionCmd prints version information
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cadrimil version %s\n", version)
		},
	}
}
