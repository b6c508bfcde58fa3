package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/codetrail/codetrail/internal/config"
	"github.com/codetrail/codetrail/internal/correlator"
	"github.com/codetrail/codetrail/internal/detection"
	"github.com/codetrail/codetrail/internal/git"
	"github.com/codetrail/codetrail/internal/handlers"
	"github.com/codetrail/codetrail/internal/logger"
	"github.com/codetrail/codetrail/internal/middleware"
	"github.com/codetrail/codetrail/internal/queue"
	"github.com/codetrail/codetrail/internal/recovery"
	"github.com/codetrail/codetrail/internal/sanitize"
	"github.com/codetrail/codetrail/internal/session"
	"github.com/codetrail/codetrail/internal/storage"
)

var (
	servePort      int
	serveWorkspace string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "🚀 Start the tracking daemon",
	Long: `# 🚀 Codetrail Daemon

Starts the local HTTP API the editor extension talks to.

## ⚙️  Configuration

Settings load from **~/.codetrail/config.yaml** with environment
overrides on top:

- **CODETRAIL_PORT** - API port (default 6280)
- **CODETRAIL_TOKEN** - bearer token for the local API (optional)
- **CODETRAIL_WORKSPACE** - repository to monitor (default: cwd)
- **CODETRAIL_SENSITIVITY** - detection sensitivity (low, medium, high)
- **GITHUB_TOKEN** - token for the session archive repository`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "API port (overrides config)")
	serveCmd.Flags().StringVarP(&serveWorkspace, "workspace", "w", "", "repository to monitor (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger.Configure(logger.LevelFromEnv(), isatty.IsTerminal(os.Stdout.Fd()))

	settings, err := config.Load()
	if err != nil {
		return err
	}
	if servePort != 0 {
		settings.Port = servePort
	}
	if serveWorkspace != "" {
		settings.Workspace = serveWorkspace
	}

	sanitizer, err := sanitize.New(sanitizeRulesPath())
	if err != nil {
		return err
	}

	engine := detection.NewEngine(settings.ThresholdScale())
	activity := session.NewActivityTracker()
	store := session.NewStore(session.Options{
		MaxInteractions: settings.MaxInteractionsPerSession,
		MaxHistory:      settings.MaxSessionHistory,
		IdleTimeout:     time.Duration(settings.SessionTimeoutMinutes) * time.Minute,
		Version:         Version,
		Workspace:       settings.Workspace,
	}, activity)

	reader := git.NewReader(settings.Workspace)
	monitor := git.NewMonitor(reader, settings.Workspace, 0)
	remote := storage.NewGitHubClient(settings.GitHubToken)

	// The quiet check needs the correlator, which needs the queue. The
	// closure reads corr late so construction order stays simple.
	var corr *correlator.Correlator
	tasks := queue.New(settings.MaxBackgroundOperations, 0, func(t time.Time) bool {
		if corr == nil {
			return false
		}
		quiet := corr.QuietHours()
		return quiet != nil && quiet.Contains(t.Hour())
	})
	corr = correlator.New(settings, engine, store, tasks, sanitizer, reader, monitor, remote)

	events := handlers.NewEventsHandler()
	corr.SetEmitter(events)

	if err := corr.Start(); err != nil {
		return err
	}
	defer corr.Stop()

	app := buildApp(settings, store, corr, events)

	recovery.SafeGo("http-server", func() {
		addr := fmt.Sprintf("127.0.0.1:%d", settings.Port)
		logger.Infof("🛤️  Codetrail %s listening on http://%s (workspace: %s)", Version, addr, settings.Workspace)
		if err := app.Listen(addr); err != nil {
			logger.Errorf("❌ HTTP server stopped: %v", err)
		}
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infof("👋 Shutting down")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		logger.Warnf("⚠️  Shutdown did not complete cleanly: %v", err)
	}
	return nil
}

func buildApp(settings *config.Settings, store *session.Store, corr *correlator.Correlator, events *handlers.EventsHandler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "codetrail",
		DisableStartupMessage: true,
	})
	app.Use(fiberrecover.New())
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Debugf("%s %s -> %d (%s)", c.Method(), c.Path(), c.Response().StatusCode(), time.Since(start))
		return err
	})

	auth := middleware.NewAuthMiddleware(settings.AuthToken)
	app.Use(auth.RequireAuth)

	changesHandler := handlers.NewChangesHandler(corr)
	sessionsHandler := handlers.NewSessionsHandler(store, corr)
	statsHandler := handlers.NewStatsHandler(corr)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "version": Version})
	})

	v1 := app.Group("/v1")
	v1.Post("/changes", changesHandler.HandleChange)
	v1.Post("/interactions", changesHandler.HandleInteraction)
	v1.Get("/sessions/current", sessionsHandler.GetCurrent)
	v1.Get("/sessions/current/quality", sessionsHandler.GetQuality)
	v1.Get("/sessions/history", sessionsHandler.GetHistory)
	v1.Post("/sessions/finalize", sessionsHandler.Finalize)
	v1.Get("/stats", statsHandler.GetStats)
	v1.Post("/stats/reset", statsHandler.ResetStats)
	v1.Get("/events", events.HandleSSE)

	return app
}

func sanitizeRulesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".codetrail", "sanitize.yaml")
}
