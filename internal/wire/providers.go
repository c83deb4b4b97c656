package wire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/wire"
	"github.com/jmoiron/sqlx"
	"github.com/sevigo/goframe/llms"
	"github.com/sevigo/goframe/llms/gemini"
	"github.com/sevigo/goframe/llms/ollama"

	"github.com/sevigo/merge-warden/internal/analyzer"
	"github.com/sevigo/merge-warden/internal/app"
	"github.com/sevigo/merge-warden/internal/config"
	"github.com/sevigo/merge-warden/internal/core"
	"github.com/sevigo/merge-warden/internal/db"
	"github.com/sevigo/merge-warden/internal/github"
	"github.com/sevigo/merge-warden/internal/logger"
	"github.com/sevigo/merge-warden/internal/queue"
	"github.com/sevigo/merge-warden/internal/server"
	"github.com/sevigo/merge-warden/internal/storage"
	"github.com/sevigo/merge-warden/internal/workflow"
)

var AppSet = wire.NewSet(
	app.NewApp,
	server.NewServer,
	logger.NewLogger,
	config.LoadConfig,
	db.NewDatabase,
	storage.NewStore,
	workflow.NewService,
	provideModel,
	provideAnalyzer,
	provideNotifier,
	provideQueue,
	provideJobQueue,
	provideWorkflowQueue,
	provideClientFactory,
	provideRules,
	provideLoggerConfig,
	provideLogWriter,
	provideDBConfig,
	provideSqlxDB,
)

// newLLMHTTPClient creates an HTTP client with longer timeouts for LLM
// requests. Local models can take a while, so the defaults are too tight.
func newLLMHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableKeepAlives:   false,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   5 * time.Minute,
	}
}

// provideModel creates the LLM client for the configured provider.
func provideModel(ctx context.Context, cfg *config.Config, logger *slog.Logger) (llms.Model, error) {
	switch cfg.AI.Provider {
	case "gemini":
		logger.Info("using Gemini LLM provider", "model", cfg.AI.GeminiModelName)
		if cfg.AI.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is not set in environment for gemini provider")
		}
		return gemini.New(ctx,
			gemini.WithModel(cfg.AI.GeminiModelName),
			gemini.WithAPIKey(cfg.AI.GeminiAPIKey),
		)
	case "ollama":
		logger.Info("using Ollama LLM provider", "model", cfg.AI.ModelName, "host", cfg.AI.OllamaHost)
		return ollama.New(
			ollama.WithServerURL(cfg.AI.OllamaHost),
			ollama.WithHTTPClient(newLLMHTTPClient()),
			ollama.WithModel(cfg.AI.ModelName),
			ollama.WithLogger(logger),
		)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.AI.Provider)
	}
}

func provideAnalyzer(model llms.Model, clients github.ClientFactory, rules *core.RepoRules, logger *slog.Logger) (core.Analyzer, error) {
	return analyzer.New(model, clients, rules, logger)
}

func provideNotifier(logger *slog.Logger) *queue.Notifier {
	return queue.NewNotifier(logger)
}

func provideQueue(cfg *config.Config, a core.Analyzer, notifier *queue.Notifier, logger *slog.Logger) *queue.Service {
	return queue.NewService(queue.Config{
		MaxConcurrentJobs: cfg.Queue.MaxConcurrentJobs,
		MaxRetries:        cfg.Queue.MaxRetries,
		RetryDelay:        cfg.Queue.RetryDelay,
		JobTimeout:        cfg.Queue.JobTimeout,
		PollInterval:      cfg.Queue.PollInterval,
		CleanupInterval:   cfg.Queue.CleanupInterval,
		Retention:         cfg.Queue.Retention,
	}, a, notifier, logger)
}

func provideJobQueue(q *queue.Service) core.JobQueue {
	return q
}

func provideWorkflowQueue(q *queue.Service) workflow.Queue {
	return q
}

func provideClientFactory(cfg *config.Config, logger *slog.Logger) github.ClientFactory {
	return github.NewClientFactory(cfg.GitHub.AppID, cfg.GitHub.PrivateKeyPath, logger)
}

// provideRules loads the custom review rules; a missing file just means no
// custom rules are configured.
func provideRules(cfg *config.Config, logger *slog.Logger) (*core.RepoRules, error) {
	rules, err := config.LoadReviewRules(cfg.AI.RulesPath)
	if err != nil {
		if errors.Is(err, config.ErrRulesNotFound) {
			logger.Info("no review rules file found, using defaults", "path", cfg.AI.RulesPath)
			return rules, nil
		}
		return nil, err
	}
	logger.Info("loaded review rules", "path", cfg.AI.RulesPath, "rules", len(rules.Rules))
	return rules, nil
}

func provideLoggerConfig(cfg *config.Config) logger.Config {
	return cfg.Logger
}

func provideLogWriter() io.Writer {
	return os.Stdout
}

func provideDBConfig(cfg *config.Config) *config.DBConfig {
	return cfg.Database
}

func provideSqlxDB(conn *db.DB) *sqlx.DB {
	return conn.DB
}
