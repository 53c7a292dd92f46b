package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/golang-jwt/jwt/v5"
	accounts "github.com/goliatone/go-accounts"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// AppConfig is parsed from the environment, with .env loaded first when
// present. It satisfies accounts.Config.
type AppConfig struct {
	Addr            string   `env:"ADDR" envDefault:":3000"`
	BaseURL         string   `env:"BASE_URL" envDefault:"http://localhost:3000"`
	DSN             string   `env:"DATABASE_DSN" envDefault:"file:accounts.db?cache=shared&mode=rwc"`
	SigningKey      string   `env:"JWT_SIGNING_KEY,required"`
	TokenExpiration int      `env:"JWT_TOKEN_EXPIRATION" envDefault:"1"`
	Issuer          string   `env:"JWT_ISSUER" envDefault:"go-accounts"`
	Audience        []string `env:"JWT_AUDIENCE" envDefault:"web"`
	ContextKey      string   `env:"AUTH_CONTEXT_KEY" envDefault:"user"`
	AuthScheme      string   `env:"AUTH_SCHEME" envDefault:"Bearer"`
	AvatarsDir      string   `env:"AVATARS_DIR" envDefault:"public/avatars"`
	Debug           bool     `env:"DEBUG" envDefault:"false"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"no-reply@localhost"`
}

func (c AppConfig) GetSigningKey() string   { return c.SigningKey }
func (c AppConfig) GetTokenExpiration() int { return c.TokenExpiration }
func (c AppConfig) GetIssuer() string       { return c.Issuer }
func (c AppConfig) GetAudience() []string   { return c.Audience }
func (c AppConfig) GetContextKey() string   { return c.ContextKey }
func (c AppConfig) GetAuthScheme() string   { return c.AuthScheme }
func (c AppConfig) GetBaseURL() string      { return c.BaseURL }

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("skipping .env: %v", err)
	}

	cfg := AppConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("parse env: %v", err)
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer sqldb.Close()

	db := bun.NewDB(sqldb, sqlitedialect.New())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := db.NewCreateTable().
		Model((*accounts.User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		log.Fatalf("create users table: %v", err)
	}

	repo := accounts.NewRepositoryManager(db)

	tokens := accounts.NewTokenService(
		[]byte(cfg.SigningKey),
		cfg.TokenExpiration,
		cfg.Issuer,
		jwt.ClaimStrings(cfg.Audience),
		nil,
	)

	notifier, err := accounts.NewSMTPNotifier(accounts.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	if err != nil {
		log.Fatalf("smtp notifier: %v", err)
	}

	manager := accounts.NewAccounts(repo, tokens, notifier, cfg)

	avatars := accounts.NewAvatarStore(cfg.AvatarsDir)

	app := fiber.New(fiber.Config{
		AppName:      "go-accounts",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	guard := accounts.NewAuthGuard(manager, tokens, cfg)

	users := app.Group("/api/users")
	accounts.RegisterRoutes(users, guard, manager, avatars,
		accounts.WithControllerContextKey(cfg.ContextKey),
		accounts.WithControllerDebug(cfg.Debug),
	)

	app.Static("/avatars", cfg.AvatarsDir)

	go func() {
		<-ctx.Done()
		log.Println("shutting down...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("listening on %s", cfg.Addr)

	if err := app.Listen(cfg.Addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
