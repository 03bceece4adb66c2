package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nstogner/labassist/pkg/config"
	"github.com/nstogner/labassist/pkg/conversation"
	"github.com/nstogner/labassist/pkg/domain"
	"github.com/nstogner/labassist/pkg/lifecycle"
	"github.com/nstogner/labassist/pkg/remote"
	"github.com/nstogner/labassist/pkg/remote/openai"
	"github.com/nstogner/labassist/pkg/store"
	"github.com/nstogner/labassist/pkg/store/file"
	"github.com/nstogner/labassist/pkg/store/sqlite"
	"github.com/nstogner/labassist/pkg/sweeper"
)

var version = "dev"

type rootFlags struct {
	configFile string
	envFile    string
	logLevel   string
}

// app holds the dependencies shared by every subcommand. It is populated
// before a subcommand runs.
type app struct {
	cfg        *config.Config
	identities *file.Store
	client     remote.Client
	out        io.Writer
	in         io.Reader

	level   slog.Level
	journal *sqlite.Store
	logFile *os.File
}

// newRootCmd builds the command tree around a. The caller closes a once the
// command has run.
func newRootCmd(a *app) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "labassist",
		Short: "Manage a study assistant and its remote resources",
		Long: `labassist keeps a remote OpenAI assistant in step with local configuration,
answers questions against it with streamed citations, generates exam notes,
and deletes stale threads, files and vector stores.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			a.in = cmd.InOrStdin()
			return a.setup(flags)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", "", "config file (default ./labassist.yaml if present)")
	pf.StringVar(&flags.envFile, "env-file", "", "dotenv file to load (default ./.env if present)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")

	root.AddCommand(
		newBootstrapCmd(a),
		newAskCmd(a),
		newNotesCmd(a),
		newUsageCmd(a),
		newCleanupCmd(a),
		newHistoryCmd(a),
	)
	return root
}

func (a *app) setup(flags *rootFlags) error {
	cfg, err := config.Load(config.Options{ConfigFile: flags.configFile, EnvFile: flags.envFile})
	if err != nil {
		return err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return &domain.ConfigError{Key: "log-level", Reason: err.Error()}
	}
	a.cfg = cfg
	a.level = level

	if cfg.LogFile != "" {
		if err := a.logToFile(cfg.LogFile); err != nil {
			return err
		}
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	}

	a.identities = file.New(cfg.StateDir)
	client, err := openai.New(openai.Options{
		APIKey:       cfg.OpenAI.APIKey,
		Organization: cfg.OpenAI.Organization,
		BaseURL:      cfg.OpenAI.BaseURL,
	})
	if err != nil {
		return err
	}
	a.client = client
	return nil
}

// logToFile sends logs to path, leaving the terminal to the UI.
func (a *app) logToFile(path string) error {
	if a.logFile != nil {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &domain.LocalIOError{Op: "open log", Path: path, Err: err}
	}
	a.logFile = f
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: a.level})))
	slog.Info("Logging initialized", "level", a.level)
	return nil
}

func (a *app) journalPath() string {
	if filepath.IsAbs(a.cfg.Journal) {
		return a.cfg.Journal
	}
	return filepath.Join(a.cfg.StateDir, a.cfg.Journal)
}

// openJournal opens the SQLite journal. The journal is an audit trail, so
// callers that only write to it may continue without one.
func (a *app) openJournal() (*sqlite.Store, error) {
	if a.journal != nil {
		return a.journal, nil
	}
	path := a.journalPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &domain.LocalIOError{Op: "mkdir", Path: filepath.Dir(path), Err: err}
	}
	j, err := sqlite.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	a.journal = j
	return j, nil
}

// optionalJournal returns the journal, or nil with a warning.
func (a *app) optionalJournal() store.JournalStore {
	j, err := a.openJournal()
	if err != nil {
		slog.Warn("Journal unavailable", "error", err)
		return nil
	}
	return j
}

func (a *app) manager() *lifecycle.Manager {
	return lifecycle.NewManager(a.identities, a.client)
}

func (a *app) engine() *conversation.Engine {
	opts := []conversation.Option{conversation.WithIdentityStore(a.identities)}
	if j := a.optionalJournal(); j != nil {
		opts = append(opts, conversation.WithJournal(j))
	}
	return conversation.New(a.client, a.client, opts...)
}

func (a *app) sweeper() *sweeper.Sweeper {
	cfg := sweeper.Config{
		Inventory:  remote.NewInventory(a.client),
		Identities: a.identities,
		LocalFiles: []string{
			a.identities.Path(domain.RoleLastThread),
			filepath.Join(a.cfg.DataDir, "intro_to_llms.md"),
			filepath.Join(a.cfg.DataDir, "api_best_practices.md"),
		},
		DataDir: a.cfg.DataDir,
	}
	if j := a.optionalJournal(); j != nil {
		cfg.Journal = j
	}
	return sweeper.New(cfg)
}

func (a *app) close() error {
	var errs []error
	if a.journal != nil {
		errs = append(errs, a.journal.Close())
		a.journal = nil
	}
	if a.logFile != nil {
		errs = append(errs, a.logFile.Close())
		a.logFile = nil
	}
	return errors.Join(errs...)
}
