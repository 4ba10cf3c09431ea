package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"syscall"
	"time"

	"debatehub/config"
	"debatehub/controllers"
	"debatehub/db"
	"debatehub/internal/debate"
	"debatehub/middlewares"
	"debatehub/routes"
	"debatehub/services"
	"debatehub/utils"
	"debatehub/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "debatehub",
		Short:        "Live debate session server",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "./config/config.prod.yml", "path to the YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the debate server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, newLogger(cfg.Log.Level))
		},
	})
	root.AddCommand(newJudgeCommand(&configPath))
	root.AddCommand(newTokenCommand(&configPath))
	return root
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	utils.SetJWTSecret(cfg.JWT.Secret)

	var (
		store services.JudgmentStore = services.NewRetainingJudgmentStore(cfg.Debate.ResultRetention)
		names websocket.NameResolver
	)
	if cfg.Database.URI != "" {
		database, err := db.ConnectMongoDB(ctx, cfg.Database.URI)
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		defer func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			db.Disconnect(disconnectCtx)
		}()
		mongoStore := db.NewJudgmentStore(database, cfg.Debate.StaleClaimAfter)
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			return err
		}
		store = mongoStore
		names = db.NewUserDirectory(database)
	} else {
		logger.Warn("no database configured, judgments are kept in memory")
	}

	var (
		judge services.Judge
		bot   websocket.BotSpeaker
	)
	if cfg.Gemini.ApiKey != "" {
		gj, err := services.NewGeminiJudge(ctx, cfg.Gemini.ApiKey, cfg.Gemini.Model)
		if err != nil {
			return err
		}
		judge = gj
		gb, err := services.NewGeminiBot(ctx, cfg.Gemini.ApiKey, cfg.Gemini.Model, cfg.Gemini.BotLevel)
		if err != nil {
			return err
		}
		bot = gb
	} else {
		logger.Warn("no Gemini API key configured, debates get a failed verdict and bot rooms stay silent")
	}
	judgment := services.NewJudgmentService(store, judge, cfg.Debate.JudgeTimeout, logger.With("component", "judgment"))

	g, gctx := errgroup.WithContext(ctx)

	spectators := NewDebateHub(gctx, websocket.OriginChecker(cfg.Server.AllowedOrigins), logger.With("component", "spectators"))
	if cfg.Redis.Addr != "" {
		rdb, err := debate.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		publisher := debate.NewStreamPublisher(rdb, logger.With("component", "stream"))
		spectators.AttachStream(rdb, publisher)
		g.Go(func() error { return publisher.Run(gctx) })
	}

	hub := websocket.NewHub(gctx, websocket.Options{
		Durations:         cfg.Durations(),
		Countdown:         cfg.Debate.Countdown,
		TimerSync:         cfg.Debate.TimerSync,
		EvictionGrace:     cfg.Debate.EvictionGrace,
		JudgeTimeout:      cfg.Debate.JudgeTimeout,
		JudgePollInterval: cfg.Debate.JudgePollInterval,
		RateLimit:         rate.Limit(cfg.Debate.MessagesPerSecond),
		RateBurst:         cfg.Debate.MessageBurst,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
	}, websocket.Dependencies{
		Judgment:  judgment,
		Bot:       bot,
		Publisher: spectators,
		Names:     names,
	}, logger.With("component", "rooms"))

	transcripts := controllers.NewTranscriptController(judgment, hub, logger.With("component", "http"))
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           setupRouter(cfg, hub, spectators, transcripts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	hub.Wait()
	return err
}

func setupRouter(cfg *config.Config, hub *websocket.Hub, spectators *DebateHub, transcripts *controllers.TranscriptController) *gin.Engine {
	router := gin.Default()
	router.SetTrustedProxies([]string{"127.0.0.1", "localhost"})

	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
	}
	if origins := cfg.Server.AllowedOrigins; len(origins) == 0 || slices.Contains(origins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": hub.Len()})
	})

	// WebSocket endpoints authenticate themselves; browsers cannot send
	// headers on the upgrade request.
	router.GET("/ws", hub.ServeDebate)
	router.GET("/ws/spectate/:debateID", spectators.ServeSpectator)

	auth := router.Group("/")
	auth.Use(middlewares.AuthMiddleware())
	routes.SetupTranscriptRoutes(auth, transcripts)

	return router
}
