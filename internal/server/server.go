package server

import (
	"time"

	"github.com/TheAngryRaven/lap-tracker-pro/internal/auth"
	"github.com/TheAngryRaven/lap-tracker-pro/internal/config"
	"github.com/TheAngryRaven/lap-tracker-pro/internal/course"
	"github.com/TheAngryRaven/lap-tracker-pro/internal/publish"
	"github.com/TheAngryRaven/lap-tracker-pro/internal/session"
	"github.com/TheAngryRaven/lap-tracker-pro/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App       *fiber.App
	Cfg       config.Config
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Stream    *stream.Hub
	Publisher *publish.Publisher
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client, pub *publish.Publisher) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: (cfg.MaxUploadMB + 1) << 20,
	})
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:       app,
		Cfg:       cfg,
		DB:        db,
		Redis:     redisClient,
		Stream:    stream.NewHub(redisClient),
		Publisher: pub,
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)
	courseService := course.NewService(s.DB)
	cacheTTL := time.Duration(s.Cfg.SessionCacheTTLMin) * time.Minute
	sessionService := session.NewService(s.DB, s.Redis, s.Stream, s.Publisher, cacheTTL)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB))
	course.RegisterRoutes(s.App.Group("/courses"), courseService, jwtMiddleware)
	session.RegisterRoutes(s.App.Group("/sessions"), sessionService, courseService, s.Cfg.MaxUploadMB, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
