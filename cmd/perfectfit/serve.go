package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonathan/perfect-fit/internal/applications"
	"github.com/jonathan/perfect-fit/internal/assessment"
	"github.com/jonathan/perfect-fit/internal/authoring"
	"github.com/jonathan/perfect-fit/internal/config"
	"github.com/jonathan/perfect-fit/internal/db"
	"github.com/jonathan/perfect-fit/internal/jobroles"
	"github.com/jonathan/perfect-fit/internal/logger"
	"github.com/jonathan/perfect-fit/internal/memstore"
	"github.com/jonathan/perfect-fit/internal/queue"
	"github.com/jonathan/perfect-fit/internal/server"
	"github.com/jonathan/perfect-fit/internal/server/ratelimit"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	servePort     int
	serveInMemory bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes the job role, application and technical
assessment endpoints. Scoring runs in-process or is published to RabbitMQ,
depending on SCORING_DISPATCH.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	serveCmd.Flags().BoolVar(&serveInMemory, "in-memory", false, "Use a non-persistent in-memory store instead of PostgreSQL")
	rootCmd.AddCommand(serveCmd)
}

// platformStore is everything the API needs from persistence. Both the
// PostgreSQL store and the in-memory store satisfy it.
type platformStore interface {
	jobroles.Store
	applications.Store
	assessment.Store
	assessment.ResultStore
	server.Pinger
}

var (
	_ platformStore = (*db.DB)(nil)
	_ platformStore = (*memstore.Store)(nil)
)

func runServe(_ *cobra.Command, _ []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	if servePort != 0 {
		cfg.Port = servePort
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		return fmt.Errorf("failed to create JWT config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store platformStore
	if serveInMemory {
		log.Warn("using in-memory store; data is lost on exit")
		store = memstore.New()
	} else {
		if err := cfg.RequireDatabase(); err != nil {
			return err
		}
		database, err := db.Connect(ctx, cfg.DatabaseURL, logger.Named(log, logger.DB))
		if err != nil {
			return err
		}
		defer database.Close()
		store = database
	}

	dispatcher, closeDispatcher, err := newDispatcher(ctx, cfg, store, log)
	if err != nil {
		return err
	}
	defer closeDispatcher()

	drafts, closeDrafts := newDrafter(ctx, cfg, log)
	defer closeDrafts()

	apiLog := logger.Named(log, logger.API)
	srv := server.New(server.Config{Port: cfg.Port}, server.Deps{
		Jobs:         jobroles.New(store, apiLog),
		Applications: applications.New(store, apiLog),
		Assessments:  assessment.NewPipeline(store, dispatcher, apiLog),
		Drafts:       drafts,
		Store:        store,
		JWT:          server.NewJWTService(jwtConfig),
		RateLimiter:  ratelimit.NewLimiter(ratelimit.LoadConfig(cfg.RateLimitRPS, cfg.RateLimitBurst)),
		Log:          apiLog,
	})

	return srv.Start(ctx)
}

// newDispatcher selects where submitted batches are scored. The returned
// func releases the dispatcher once the HTTP server has drained.
func newDispatcher(ctx context.Context, cfg *config.Config, store assessment.ResultStore, log *zap.Logger) (assessment.Dispatcher, func(), error) {
	switch cfg.ScoringDispatch {
	case config.DispatchRabbitMQ:
		mq, err := queue.Dial(cfg.RabbitMQURL, cfg.ScoringQueue, logger.Named(log, logger.Worker))
		if err != nil {
			return nil, nil, err
		}
		return mq, func() {
			if err := mq.Close(); err != nil {
				log.Warn("failed to close RabbitMQ connection", zap.Error(err))
			}
		}, nil

	default:
		client, err := newLLMClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		local := assessment.NewLocalDispatcher(newOrchestrator(cfg, client, store, log), logger.Named(log, logger.Worker))
		return local, func() {
			drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ScoringTimeout+10*time.Second)
			defer cancel()
			if err := local.Shutdown(drainCtx); err != nil {
				log.Warn("scoring did not drain before shutdown", zap.Error(err))
			}
			_ = client.Close()
		}, nil
	}
}

// newDrafter builds the job content drafter. Without an API key drafting is
// disabled and the endpoint reports an upstream error.
func newDrafter(ctx context.Context, cfg *config.Config, log *zap.Logger) (*authoring.Drafter, func()) {
	draftLog := logger.Named(log, logger.AI)
	client, err := newLLMClient(ctx, cfg)
	if err != nil {
		log.Warn("job content drafting disabled", zap.Error(err))
		return authoring.New(nil, draftLog), func() {}
	}
	return authoring.New(client, draftLog), func() { _ = client.Close() }
}
