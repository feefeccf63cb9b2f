// Package main is the entry point for WompBot.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"wompbot/internal/adapter/llm"
	"wompbot/internal/bot"
	"wompbot/internal/config"
	"wompbot/internal/events"
	"wompbot/internal/game"
	"wompbot/internal/game/answer"
	"wompbot/internal/game/jeopardy"
	"wompbot/internal/game/questions"
	"wompbot/internal/game/session"
	"wompbot/internal/game/trivia"
	"wompbot/internal/handler"
	"wompbot/internal/httpapi"
	"wompbot/internal/pkg/db"
	"wompbot/internal/repository"
	"wompbot/internal/service"
)

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to read .env file")
	}

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogging(cfg.Log)
	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database is optional: without it games still run, but nothing survives
	// a restart and leaderboards are off.
	var (
		mirror *service.Mirror
		board  *service.LeaderboardService
		dbPool *db.Pool
	)
	if cfg.Database.Enabled {
		dbPool, err = db.NewPool(ctx, &cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer dbPool.Close()

		if err := db.Migrate(ctx, dbPool.Pool); err != nil {
			log.Fatal().Err(err).Msg("Failed to run database migrations")
		}

		sessionRepo := repository.NewSessionRepository(dbPool.Pool)
		resultRepo := repository.NewResultRepository(dbPool.Pool)
		mirror = service.NewMirror(sessionRepo, resultRepo, cfg.Persistence.QueueSize, cfg.Persistence.WriteTimeout)
		board = service.NewLeaderboardService(resultRepo, time.Local)
	} else {
		log.Warn().Msg("Database disabled, sessions will not survive restarts")
	}

	kinds := game.NewRegistry()
	for _, k := range []game.Kind{trivia.New(), jeopardy.New(cfg.Games.JeopardyPenalty)} {
		if err := kinds.Register(k); err != nil {
			log.Fatal().Err(err).Str("kind", k.Command()).Msg("Failed to register game")
		}
	}
	log.Info().
		Int("game_count", kinds.Count()).
		Strs("games", kinds.Commands()).
		Msg("Games registered")

	generator := questions.NewGenerator(newCompleter(cfg.LLM), cfg.LLM.MaxTokens)
	matcher := answer.NewMatcher(cfg.Games.Matcher)

	// Front ends exist before the engine because they are its notifiers.
	notifiers := events.Multi{}
	var publisher *events.RedisPublisher
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis not reachable, event publishing may fail")
		}
		publisher = events.NewRedisPublisher(redisClient, cfg.Redis.Prefix)
		notifiers = append(notifiers, publisher)
	}

	var dispatch handler.HandlerFunc
	route := func(ctx context.Context, in handler.Inbound) (string, error) {
		return dispatch(ctx, in)
	}
	handlerTimeout := cfg.LLM.Timeout*time.Duration(cfg.LLM.MaxRetries+1) + 30*time.Second

	var discord *bot.Discord
	if cfg.Discord.Token != "" {
		discord, err = bot.NewDiscord(cfg.Discord.Token, route, handlerTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Discord bot")
		}
		notifiers = append(notifiers, discord.Notifier())
	}
	var telegram *bot.Telegram
	if cfg.Telegram.Token != "" {
		telegram, err = bot.NewTelegram(cfg.Telegram.Token, cfg.Telegram.PollTimeout, route, handlerTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Telegram bot")
		}
		notifiers = append(notifiers, telegram.Notifier())
	}

	var engineMirror session.Mirror
	if mirror != nil {
		engineMirror = mirror
	}
	engine := session.NewEngine(cfg.Games.EngineConfig(), kinds, generator, matcher, engineMirror, notifiers)

	// Leaderboard is an interface in the handler; a nil *LeaderboardService
	// must not become a non-nil interface.
	var lb handler.Leaderboard
	if board != nil {
		lb = board
	}

	// One chain per platform, each with its own command prefix.
	chains := map[string]handler.HandlerFunc{}
	for platform, prefix := range map[string]string{"discord": cfg.Discord.Prefix, "telegram": cfg.Telegram.Prefix} {
		gh := handler.NewGameHandler(engine, kinds, lb, prefix)
		chains[platform] = bot.Chain(gh.Handle,
			bot.RecoveryMiddleware(),
			bot.WhitelistMiddleware(cfg),
			bot.LoggingMiddleware(),
			bot.AdminMiddleware(cfg, engine, gh.Prefix()),
		)
	}
	dispatch = func(ctx context.Context, in handler.Inbound) (string, error) {
		return chains[in.Platform](ctx, in)
	}

	recovered, err := engine.Recover(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to recover sessions")
	} else if recovered > 0 {
		log.Info().Int("count", recovered).Msg("Recovered active sessions")
	}
	go engine.RunIdleSweeper(ctx)

	if discord != nil {
		if err := discord.Open(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start Discord bot")
		}
	}
	if telegram != nil {
		go telegram.Start()
	}
	if discord == nil && telegram == nil {
		log.Warn().Msg("No chat front end configured, set discord.token or telegram.token")
	}

	var server *http.Server
	if cfg.HTTP.Addr != "" {
		deps := httpapi.Deps{Sessions: engine}
		if lb != nil {
			deps.Leaderboard = lb
		}
		if dbPool != nil {
			deps.DB = dbPool
		}
		if mirror != nil {
			deps.Mirror = mirror
		}
		server = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           httpapi.NewRouter(deps),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP API listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("HTTP API stopped")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Stop taking input first, then let queued writes finish. Running games
	// stay active in the database and resume on the next start.
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP API shutdown failed")
		}
	}
	if telegram != nil {
		telegram.Stop()
	}
	if discord != nil {
		if err := discord.Close(); err != nil {
			log.Warn().Err(err).Msg("Discord close failed")
		}
	}
	if publisher != nil {
		publisher.Close()
	}
	if mirror != nil {
		if err := mirror.Close(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Session mirror did not drain")
		}
	}
	log.Info().Msg("Bot stopped gracefully")
}

func setupLogging(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func newCompleter(cfg config.LLMConfig) questions.Completer {
	if cfg.Mode == "mock" || cfg.APIKey == "" {
		log.Warn().Str("mode", cfg.Mode).Msg("Using built-in mock question bank")
		return llm.NewMockClient()
	}
	return llm.NewClient(llm.Options{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
		MaxRetries:  cfg.MaxRetries,
	})
}
