package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/diewo77/go-pharmacy/auth"
	"github.com/diewo77/go-pharmacy/internal/config"
	"github.com/diewo77/go-pharmacy/internal/db"
	"github.com/diewo77/go-pharmacy/internal/document/pdf"
	"github.com/diewo77/go-pharmacy/internal/lifecycle"
	"github.com/diewo77/go-pharmacy/internal/mailer"
	"github.com/diewo77/go-pharmacy/internal/policy"
	"github.com/diewo77/go-pharmacy/internal/storage"
	"github.com/joho/godotenv"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()
	var awsCfg aws.Config
	var secrets config.SecretsAPI
	if cfg.NeedsAWS() {
		c, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			log.Fatalf("Failed to load AWS config: %v", err)
		}
		awsCfg = c
		if cfg.Database.SecretARN != "" {
			secrets = secretsmanager.NewFromConfig(awsCfg)
		}
	}

	dsn, err := cfg.Database.ResolveDSN(ctx, secrets)
	if err != nil {
		log.Fatalf("Failed to resolve database DSN: %v", err)
	}
	dbConn, err := db.Connect(cfg.Database.Driver, dsn, cfg.App.Dev)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	migrateFn := func() error {
		if cfg.App.Migrations == "sql" {
			url := dsn
			if cfg.Database.SecretARN == "" {
				url = cfg.Database.URL()
			}
			return db.MigrateSQL(url, cfg.App.MigrationsDir)
		}
		return db.Migrate(dbConn)
	}
	seed := db.SeedOptions{
		AdminEmail:    cfg.Auth.AdminEmail,
		AdminPassword: cfg.Auth.AdminPassword,
		DemoCatalog:   cfg.App.Dev,
	}

	if *migrateOnlyFlag {
		if err := migrateFn(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")
		return
	}
	if *seedOnlyFlag {
		if err := db.Seed(dbConn, seed); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		log.Println("Seeding completed successfully")
		return
	}

	if err := migrateFn(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations completed")
	if cfg.App.Seed {
		if err := db.Seed(dbConn, seed); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
	}

	var dispatcher lifecycle.Dispatcher = mailer.LogDispatcher{}
	if cfg.Mail.Driver == "ses" {
		dispatcher = mailer.NewSES(awsCfg, cfg.Mail.From, cfg.Mail.ReplyTo)
	}
	var artifacts lifecycle.ArtifactStore = storage.NewMemory()
	if cfg.Storage.Driver == "s3" {
		s3 := storage.NewS3(awsCfg, cfg.Storage.Bucket, cfg.Storage.Prefix)
		if !s3.Enabled() {
			log.Fatalf("ARTIFACT_STORE=s3 requires ARTIFACT_S3_BUCKET")
		}
		artifacts = s3
	}

	auth.SetSecret(cfg.Auth.SessionSecret)
	routerCfg := policy.NewRouterConfig(policy.Deps{
		DB:         dbConn,
		Issuer:     auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL),
		Renderer:   pdf.New(cfg.App.PharmacyName),
		Dispatcher: dispatcher,
		Artifacts:  artifacts,
	})
	auth.SetUserVerifier(routerCfg.Users.Exists)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      NewApp(routerCfg, cfg.App.Metrics),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s (dev=%v, mail=%s, store=%s)",
			cfg.Server.Port, cfg.App.Dev, cfg.Mail.Driver, cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Println("Server stopped gracefully")
}
