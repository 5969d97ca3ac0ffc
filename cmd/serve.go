package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/deepreview/socratic/internal/auth"
	"github.com/deepreview/socratic/internal/config"
	"github.com/deepreview/socratic/internal/events"
	"github.com/deepreview/socratic/internal/grading"
	"github.com/deepreview/socratic/internal/llm"
	"github.com/deepreview/socratic/internal/lock"
	"github.com/deepreview/socratic/internal/logger"
	"github.com/deepreview/socratic/internal/progress"
	"github.com/deepreview/socratic/internal/questiongen"
	"github.com/deepreview/socratic/internal/server"
	"github.com/deepreview/socratic/internal/session"
	"github.com/deepreview/socratic/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP assessment service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		log, err := logger.New(cfg.Log.Mode)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer log.Sync()

		app := newApp(cfg, log)

		startCtx, cancel := context.WithTimeout(context.Background(), app.StartTimeout())
		defer cancel()
		if err := app.Start(startCtx); err != nil {
			return fmt.Errorf("start: %w", err)
		}

		sig := <-app.Wait()
		log.Info("shutting down", "signal", sig.String())

		stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
		defer cancel()
		return app.Stop(stopCtx)
	},
}

// newApp assembles the service graph.
func newApp(cfg *config.Config, log *logger.Logger) *fx.App {
	return fx.New(
		fx.Supply(cfg, log),
		fx.WithLogger(func(log *logger.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Desugar()}
		}),

		// Infrastructure
		fx.Provide(
			newStore,
			newLocker,
			newPublisher,
			newProvider,
		),

		// Assessment
		fx.Provide(
			newQuestionGenerator,
			newGrader,
			newAggregator,
			newOrchestrator,
		),

		// HTTP
		fx.Provide(
			newVerifier,
			newHandler,
			newRouter,
			newHTTPServer,
		),

		fx.Invoke(func(*server.Server) {}),
	)
}

func newStore(lc fx.Lifecycle, cfg *config.Config) (*store.Store, error) {
	s, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return s.Close() },
	})
	return s, nil
}

// newLocker uses Redis when configured so that several replicas serialize
// turns on the same session.
func newLocker(lc fx.Lifecycle, cfg *config.Config, log *logger.Logger) (lock.Locker, error) {
	if cfg.Redis.Addr == "" {
		log.Info("redis not configured, using in-process locks")
		return lock.NewLocal(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Redis.Addr, err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return client.Close() },
	})

	return lock.NewRedis(client, lock.RedisOptions{
		TTL: cfg.Assessment.TurnTimeout + time.Minute,
	}, log), nil
}

func newPublisher(lc fx.Lifecycle, cfg *config.Config, log *logger.Logger) (events.Publisher, error) {
	if cfg.AMQP.URL == "" {
		log.Info("amqp not configured, events are discarded")
		return events.Nop{}, nil
	}
	p, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return p.Close() },
	})
	return p, nil
}

func newProvider(cfg *config.Config, st *store.Store, log *logger.Logger) (llm.Provider, error) {
	p, err := llm.NewProvider(context.Background(), cfg.LLM, st.Events(), log)
	if err != nil {
		return nil, err
	}
	log.Info("LLM provider ready", "provider", cfg.LLM.Provider, "model", p.ModelID())
	return p, nil
}

func newQuestionGenerator(provider llm.Provider) questiongen.Generator {
	return questiongen.New(provider, questiongen.DefaultConfig())
}

func newGrader(provider llm.Provider, log *logger.Logger) grading.Grader {
	return grading.New(provider, grading.DefaultConfig(), log)
}

func newAggregator(cfg *config.Config, provider llm.Provider, st *store.Store, locker lock.Locker, log *logger.Logger) *progress.Aggregator {
	var evaluator progress.Evaluator
	if cfg.Assessment.EvaluateSessions {
		evaluator = progress.NewLLMEvaluator(provider)
	}
	return progress.NewAggregator(evaluator, st.Completions(), st.Proficiency(), locker, log)
}

func newOrchestrator(
	cfg *config.Config,
	st *store.Store,
	questions questiongen.Generator,
	grader grading.Grader,
	agg *progress.Aggregator,
	locker lock.Locker,
	pub events.Publisher,
	log *logger.Logger,
) *session.Orchestrator {
	return session.New(session.Deps{
		Sessions:  st.Sessions(),
		Articles:  st.Articles(),
		Questions: questions,
		Grader:    grader,
		Progress:  agg,
		Locker:    locker,
		Events:    pub,
	}, session.Config{
		TurnTimeout: cfg.Assessment.TurnTimeout,
		LockWait:    cfg.Assessment.LockWait,
	}, log)
}

func newVerifier(cfg *config.Config) (*auth.Verifier, error) {
	return auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
}

func newHandler(o *session.Orchestrator, st *store.Store) *server.Handler {
	return server.NewHandler(o, st.Proficiency(), st.Completions())
}

func newRouter(cfg *config.Config, h *server.Handler, v *auth.Verifier, st *store.Store, log *logger.Logger) *gin.Engine {
	return server.NewRouter(server.Config{
		Port:        cfg.Server.Port,
		Mode:        cfg.Server.Mode,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, h, v, st, log)
}

func newHTTPServer(lc fx.Lifecycle, cfg *config.Config, engine *gin.Engine, log *logger.Logger) *server.Server {
	srv := server.New(server.Config{Port: cfg.Server.Port}, engine, cfg.Assessment.TurnTimeout, log)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return srv.Start() },
		OnStop:  func(ctx context.Context) error { return srv.Stop(ctx) },
	})
	return srv
}
