package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/JT-427/LiveQuiz/internal/app"
	"github.com/JT-427/LiveQuiz/internal/config"
	"github.com/JT-427/LiveQuiz/internal/domain"
	"github.com/JT-427/LiveQuiz/internal/infra/memory"
	"github.com/JT-427/LiveQuiz/internal/infra/postgres"
	infraredis "github.com/JT-427/LiveQuiz/internal/infra/redis"
	transport "github.com/JT-427/LiveQuiz/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the live quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level, cfg.Log.Pretty)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	clock := clockwork.NewRealClock()
	hub := app.NewHub(cfg.Session.SubscriberBacklog)
	factory := app.NewOrchestratorFactory(hub, clock)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	deps := app.Dependencies{
		Clock:           clock,
		DefaultDuration: config.TTLDuration(cfg.Session.DefaultDuration, 30*time.Second),
	}

	var bank memory.QuestionBank = memory.NewStaticQuestionBank(sampleQuestions())
	if pool != nil {
		bank = postgres.NewQuestionBank(pool)
		deps.Activities = postgres.NewActivityStore(pool)
		deps.Participants = postgres.NewParticipantStore(pool, clock.Now)
		deps.Answers = postgres.NewAnswerLog(pool)
	} else {
		deps.Activities = memory.NewActivityStore()
		deps.Participants = memory.NewParticipantStore(clock.Now)
		deps.Answers = memory.NewAnswerLog()
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	if redisClient != nil {
		deps.Questions = infraredis.NewQuestionRepository(redisClient, bank, questionTTL)
		deps.Registry = infraredis.NewSessionRegistry(redisClient, factory)
		if pool == nil {
			deps.Answers = infraredis.NewAnswerLog(redisClient, config.TTLDuration(cfg.Redis.AnswerRetention, 0))
		}
	} else {
		deps.Questions = memory.NewQuestionRepository(bank, questionTTL)
		deps.Registry = memory.NewSessionRegistry(factory)
	}

	service := app.NewService(deps)
	handler := newHandler(service, cfg.Server.AllowedOrigins)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting live quiz server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, o := range deps.Registry.List() {
		if err := service.EndActivity(shutdownCtx, o.ID()); err != nil {
			log.Warn().Err(err).Str("activity_id", o.ID()).Msg("end activity on shutdown")
		}
	}
	return server.Shutdown(shutdownCtx)
}

// newHandler mounts the REST and WebSocket surfaces behind CORS and access logging.
func newHandler(service *app.Service, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	transport.NewAPIHandler(service).Register(mux)
	mux.HandleFunc("GET /ws", transport.NewWSHandler(service, originChecker(allowedOrigins)).ServeWS)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
		},
		AllowedOrigins: allowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	var h http.Handler = c.Handler(mux)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(h)
	h = hlog.NewHandler(log.Logger)(h)
	return h
}

// originChecker applies the CORS origin list to WebSocket upgrades.
func originChecker(allowed []string) func(r *http.Request) bool {
	if slices.Contains(allowed, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// sampleQuestions seeds the in-memory bank so a fresh server without Postgres
// has something to run.
func sampleQuestions() map[string]domain.Question {
	return map[string]domain.Question{
		"sample-capital": {
			ID:        "sample-capital",
			Prompt:    "What is the capital of Australia?",
			Kind:      domain.KindSingleChoice,
			Choices:   []string{"Sydney", "Canberra", "Melbourne"},
			TimeLimit: 20,
			Correct:   []int{1},
		},
		"sample-primes": {
			ID:        "sample-primes",
			Prompt:    "Which of these are prime?",
			Kind:      domain.KindMultiChoice,
			Choices:   []string{"2", "9", "11", "15"},
			TimeLimit: 30,
			Correct:   []int{0, 2},
		},
		"sample-feedback": {
			ID:        "sample-feedback",
			Prompt:    "One word to describe today's session?",
			Kind:      domain.KindFreeText,
			TimeLimit: 45,
		},
	}
}
