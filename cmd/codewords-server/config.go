package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind         string
	port         int
	baseURL      string
	dbBackend    string
	dbPath       string
	dbDSN        string
	llmBaseURL   string
	llmModel     string
	budgetUSD    float64
	wordList     string
	roomIdleTTL  time.Duration
	reapInterval time.Duration
	noAutoPlay   bool
	version      bool
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	switch c.dbBackend {
	case "sqlite", "postgres", "none":
	default:
		return fmt.Errorf("invalid db backend %q (must be sqlite, postgres or none)", c.dbBackend)
	}
	if c.dbBackend == "postgres" && c.dbDSN == "" {
		return errors.New("--db-dsn is required with the postgres backend")
	}
	if c.budgetUSD < 0 {
		return errors.New("--budget-usd must not be negative")
	}
	return nil
}

func (c *Config) listenAddr() string {
	return fmt.Sprintf("%s:%d", c.bind, c.port)
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("CODEWORDS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "codewords-server",
		Short:         "An authoritative Codenames game server with optional AI-played seats.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: CODEWORDS_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: CODEWORDS_PORT)")
	fs.StringVar(&cfg.baseURL, "base-url", "http://localhost:8080", "externally reachable URL, used in QR join links (env: CODEWORDS_BASE_URL)")
	fs.StringVar(&cfg.dbBackend, "db", "sqlite", "persistence backend: sqlite, postgres or none (env: CODEWORDS_DB)")
	fs.StringVar(&cfg.dbPath, "db-path", "codewords.db", "sqlite database file (env: CODEWORDS_DB_PATH)")
	fs.StringVar(&cfg.dbDSN, "db-dsn", "", "postgres connection string (env: CODEWORDS_DB_DSN)")
	fs.StringVar(&cfg.llmBaseURL, "llm-base-url", "", "OpenAI-compatible API base URL (env: CODEWORDS_LLM_BASE_URL)")
	fs.StringVar(&cfg.llmModel, "llm-model", "", "default model for unconfigured AI seats (env: CODEWORDS_LLM_MODEL)")
	fs.Float64Var(&cfg.budgetUSD, "budget-usd", 50.0, "monthly LLM spend ceiling in USD (env: CODEWORDS_BUDGET_USD)")
	fs.StringVar(&cfg.wordList, "word-list", "", "word list file, one word per line; empty uses the built-in list (env: CODEWORDS_WORD_LIST)")
	fs.DurationVar(&cfg.roomIdleTTL, "room-idle-ttl", 2*time.Hour, "time before idle rooms are evicted from memory (env: CODEWORDS_ROOM_IDLE_TTL)")
	fs.DurationVar(&cfg.reapInterval, "reap-interval", 5*time.Minute, "how often idle rooms are checked (env: CODEWORDS_REAP_INTERVAL)")
	fs.BoolVar(&cfg.noAutoPlay, "no-auto-play", false, "disable the background AI move loop (env: CODEWORDS_NO_AUTO_PLAY)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: CODEWORDS_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("codewords-server v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
