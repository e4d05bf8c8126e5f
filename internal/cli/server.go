package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quizquest-service/internal/app"
	"quizquest-service/internal/config"
	"quizquest-service/internal/docstore"
	"quizquest-service/internal/domain"
	"quizquest-service/internal/infra/memory"
	pgbank "quizquest-service/internal/infra/postgres"
	redisinfra "quizquest-service/internal/infra/redis"
	transport "quizquest-service/internal/transport/http"
)

// NewServeCmd builds the CLI subcommand to start the server.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the quiz server",
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
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	roomTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	cacheTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute)

	var loader memory.QuestionLoader
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = pgbank.NewQuestionBank(pool)
	} else {
		static, err := memory.NewStaticQuestionBank(sampleQuestions())
		if err != nil {
			return err
		}
		loader = static
		log.Warn("postgres not configured, serving built-in sample questions")
	}

	var bank app.QuestionBank
	if redisClient != nil {
		bank = redisinfra.NewQuestionBank(redisClient, loader, cacheTTL)
	} else {
		bank = memory.NewCachedQuestionBank(loader, cacheTTL)
	}

	var store docstore.Store
	var rooms app.RoomRepository
	if redisClient != nil {
		store = redisinfra.NewDocStore(redisClient)
		rooms = redisinfra.NewRoomStore(redisClient, roomTTL)
	} else {
		store = memory.NewDocStore()
		rooms = memory.NewRoomStore()
	}

	loc := cfg.Location()
	daily := app.NewDailyService(store, bank, cfg.DailyCount())
	persister := app.NewResultPersister(store, log, loc)
	streaks := app.NewStreakTracker(store, loc)
	badges := app.NewBadgeEvaluator(store, streaks, app.DefaultBadges, log, loc)
	play := app.NewPlayService(bank, daily, persister, badges, streaks, rooms, log, loc)

	api := transport.NewAPIHandler(play, log)
	ws := transport.NewWSHandler(play, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", ws.ServeWS)
	api.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting quiz service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions is the built-in content pack used when no Postgres is
// configured; it is just large enough to run a default daily challenge.
func sampleQuestions() []domain.Question {
	q := func(id, subject, theme string, d domain.Difficulty, prompt string, correct int, options [4]string, explanation string) domain.Question {
		opts := make([]domain.AnswerOption, 4)
		for i, text := range options {
			opts[i] = domain.AnswerOption{Text: text, Correct: i == correct}
		}
		return domain.Question{
			ID: id, SubjectID: subject, ThemeID: theme, Difficulty: d,
			Prompt: prompt, Options: opts, Explanation: explanation,
		}
	}
	return []domain.Question{
		q("geo-1", "geography", "capitals", domain.DifficultyEasy,
			"What is the capital of France?", 1,
			[4]string{"Berlin", "Paris", "Madrid", "Rome"},
			"Paris has been the French capital since the 10th century."),
		q("geo-2", "geography", "capitals", domain.DifficultyEasy,
			"What is the capital of Japan?", 2,
			[4]string{"Seoul", "Beijing", "Tokyo", "Bangkok"},
			"Tokyo became the capital when the emperor moved there in 1868."),
		q("geo-3", "geography", "oceans", domain.DifficultyMedium,
			"Which is the deepest ocean trench?", 0,
			[4]string{"Mariana Trench", "Tonga Trench", "Java Trench", "Puerto Rico Trench"},
			"The Mariana Trench reaches about 10,935 meters at Challenger Deep."),
		q("sci-1", "science", "astronomy", domain.DifficultyEasy,
			"Which planet is known as the Red Planet?", 2,
			[4]string{"Venus", "Jupiter", "Mars", "Mercury"},
			"Iron oxide on its surface gives Mars its reddish color."),
		q("sci-2", "science", "chemistry", domain.DifficultyMedium,
			"What is the chemical symbol for gold?", 3,
			[4]string{"Gd", "Go", "Ag", "Au"},
			"Au comes from aurum, the Latin word for gold."),
		q("sci-3", "science", "physics", domain.DifficultyHard,
			"What particle mediates the electromagnetic force?", 1,
			[4]string{"Gluon", "Photon", "W boson", "Graviton"},
			"Photons are the gauge bosons of electromagnetism."),
		q("math-1", "math", "arithmetic", domain.DifficultyEasy,
			"What is 7 × 8?", 0,
			[4]string{"56", "54", "64", "48"},
			"7 times 8 equals 56."),
		q("math-2", "math", "geometry", domain.DifficultyMedium,
			"How many degrees are in the angles of a triangle?", 2,
			[4]string{"90", "270", "180", "360"},
			"The interior angles of any triangle sum to 180 degrees."),
		q("math-3", "math", "algebra", domain.DifficultyHard,
			"What is the only even prime number?", 1,
			[4]string{"1", "2", "4", "0"},
			"Every other even number is divisible by 2 and itself."),
		q("hist-1", "history", "antiquity", domain.DifficultyMedium,
			"Which empire built the Colosseum?", 3,
			[4]string{"Greek", "Ottoman", "Byzantine", "Roman"},
			"The Colosseum opened in Rome in 80 AD under Emperor Titus."),
		q("hist-2", "history", "modern", domain.DifficultyEasy,
			"In which year did the Berlin Wall fall?", 0,
			[4]string{"1989", "1991", "1985", "1979"},
			"The wall fell on 9 November 1989."),
		q("hist-3", "history", "exploration", domain.DifficultyHard,
			"Who led the first expedition to circumnavigate the globe?", 2,
			[4]string{"Columbus", "Drake", "Magellan", "Cook"},
			"Magellan's fleet completed the voyage in 1522, though he died en route."),
	}
}
