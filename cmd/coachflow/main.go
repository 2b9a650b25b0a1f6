package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/coachflow/coachflow/internal/api"
	"github.com/coachflow/coachflow/internal/automation"
	"github.com/coachflow/coachflow/internal/checkin"
	"github.com/coachflow/coachflow/internal/dispatch"
	"github.com/coachflow/coachflow/internal/flow"
	"github.com/coachflow/coachflow/internal/genai"
	"github.com/coachflow/coachflow/internal/intent"
	"github.com/coachflow/coachflow/internal/lockfile"
	"github.com/coachflow/coachflow/internal/media"
	"github.com/coachflow/coachflow/internal/messaging"
	"github.com/coachflow/coachflow/internal/models"
	"github.com/coachflow/coachflow/internal/scheduler"
	"github.com/coachflow/coachflow/internal/store"
	"github.com/coachflow/coachflow/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for CoachFlow state data
	DefaultStateDir = "/var/lib/coachflow"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "coachflow.db"
	// DefaultBridgeURL is the default automation bridge address
	DefaultBridgeURL = "http://127.0.0.1:9772"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := os.MkdirAll(*flags.stateDir, 0755); err != nil {
		slog.Error("Failed to create state directory", "error", err, "state_dir", *flags.stateDir)
		os.Exit(1)
	}

	// A second instance sharing the state directory would double-process
	// webhooks and corrupt the SQLite database.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	gen, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		slog.Error("Failed to create GenAI client", "error", err)
		os.Exit(1)
	}

	sender, err := messaging.NewClient(buildMessagingOptions(flags)...)
	if err != nil {
		slog.Error("Failed to create chat platform client", "error", err)
		os.Exit(1)
	}

	automator, err := automation.NewClient(automation.WithBaseURL(*flags.bridgeURL))
	if err != nil {
		slog.Error("Failed to create automation bridge client", "error", err)
		os.Exit(1)
	}

	var notifier messaging.Notifier
	if tn, err := messaging.NewTwilioNotifier(); err != nil {
		slog.Warn("Twilio not configured, operator alerts disabled", "error", err)
		notifier = messaging.NoopNotifier{}
	} else {
		notifier = tn
	}

	tracker := flow.NewDailyCounterTracker(st, filepath.Join(*flags.stateDir, "tracker_backups"))
	classifier := intent.NewClassifier(gen)
	analyzer := media.NewAnalyzer(gen)
	dispatcher := dispatch.NewDispatcher(st, gen, automator, notifier, tracker)
	checkins := checkin.NewLoader(*flags.checkinDir)
	engine := flow.NewEngine(st, gen, classifier, dispatcher, analyzer, sender, tracker, checkins)

	debouncer := flow.NewDebouncer(*flags.debounceWindow, func(id string, batch []models.WebhookPayload) {
		engine.ProcessBatch(context.Background(), id, batch)
	})

	sched, err := scheduler.NewScheduler()
	if err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	if err := sched.AddDailyJob(0, 5, func() {
		if err := tracker.EnsureReset(); err != nil {
			slog.Error("Daily tracker reset failed", "error", err)
		}
	}); err != nil {
		slog.Error("Failed to schedule daily tracker reset", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(st, debouncer, buildAPIOptions(flags)...)
	slog.Info("Bootstrapping CoachFlow", "state_dir", *flags.stateDir, "api_addr", *flags.apiAddr)
	if err := server.Run(ctx); err != nil {
		slog.Error("CoachFlow failed to run", "error", err)
	}

	// Drain buffered messages before the store closes.
	debouncer.Stop()
	if err := sched.Stop(); err != nil {
		slog.Error("Failed to stop scheduler", "error", err)
	}
	slog.Info("CoachFlow exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL    string
	StateDir       string
	OpenAIKey      string
	APIAddr        string
	BridgeURL      string
	CheckinDir     string
	PlatformKey    string
	PlatformURL    string
	DebounceWindow time.Duration
}

// Flags holds command line flag values
type Flags struct {
	stateDir       *string
	dbDSN          *string
	openaiKey      *string
	apiAddr        *string
	bridgeURL      *string
	checkinDir     *string
	platformKey    *string
	platformURL    *string
	debounceWindow *time.Duration
}

// initializeLogger sets up structured logging. COACHFLOW_DEBUG=true
// lowers the level to debug.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("COACHFLOW_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		StateDir:       os.Getenv("COACHFLOW_STATE_DIR"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		APIAddr:        os.Getenv("COACHFLOW_API_ADDR"),
		BridgeURL:      os.Getenv("AUTOMATION_BRIDGE_URL"),
		CheckinDir:     os.Getenv("CHECKIN_DATA_DIR"),
		PlatformKey:    os.Getenv("CHAT_PLATFORM_API_KEY"),
		PlatformURL:    os.Getenv("CHAT_PLATFORM_BASE_URL"),
		DebounceWindow: flow.DefaultDebounceWindow,
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No COACHFLOW_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.BridgeURL == "" {
		config.BridgeURL = DefaultBridgeURL
	}
	if config.CheckinDir == "" {
		config.CheckinDir = filepath.Join(config.StateDir, "checkins")
	}
	if raw := os.Getenv("DEBOUNCE_WINDOW"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			config.DebounceWindow = d
		} else {
			slog.Warn("Invalid DEBOUNCE_WINDOW, using default", "value", raw)
		}
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"COACHFLOW_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"COACHFLOW_API_ADDR", config.APIAddr,
		"AUTOMATION_BRIDGE_URL", config.BridgeURL,
		"CHECKIN_DATA_DIR", config.CheckinDir,
		"CHAT_PLATFORM_API_KEY_SET", config.PlatformKey != "",
		"CHAT_PLATFORM_BASE_URL_SET", config.PlatformURL != "",
		"DEBOUNCE_WINDOW", config.DebounceWindow)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:       flag.String("state-dir", config.StateDir, "state directory for CoachFlow data (overrides $COACHFLOW_STATE_DIR)"),
		dbDSN:          flag.String("db-dsn", config.DatabaseURL, "database DSN, Postgres URL or SQLite path (overrides $DATABASE_URL)"),
		openaiKey:      flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:        flag.String("api-addr", config.APIAddr, "API server address (overrides $COACHFLOW_API_ADDR)"),
		bridgeURL:      flag.String("bridge-url", config.BridgeURL, "automation bridge address (overrides $AUTOMATION_BRIDGE_URL)"),
		checkinDir:     flag.String("checkin-dir", config.CheckinDir, "directory holding check-in data files (overrides $CHECKIN_DATA_DIR)"),
		platformKey:    flag.String("platform-api-key", config.PlatformKey, "chat platform API key (overrides $CHAT_PLATFORM_API_KEY)"),
		platformURL:    flag.String("platform-base-url", config.PlatformURL, "chat platform base URL (overrides $CHAT_PLATFORM_BASE_URL)"),
		debounceWindow: flag.Duration("debounce-window", config.DebounceWindow, "how long to wait for follow-up messages before processing"),
	}

	flag.Parse()

	// No DSN anywhere means SQLite in the state directory.
	if *flags.dbDSN == "" {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", *flags.dbDSN)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"bridgeURL", *flags.bridgeURL,
		"checkinDir", *flags.checkinDir,
		"debounceWindow", *flags.debounceWindow)

	return flags
}

// buildStore opens the backend matching the DSN shape.
func buildStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgres", "dsn_set", true)
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildMessagingOptions constructs chat platform client options
func buildMessagingOptions(flags Flags) []messaging.Option {
	var msgOpts []messaging.Option
	if *flags.platformKey != "" {
		msgOpts = append(msgOpts, messaging.WithAPIKey(*flags.platformKey))
	}
	if *flags.platformURL != "" {
		msgOpts = append(msgOpts, messaging.WithBaseURL(*flags.platformURL))
	}
	return msgOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
