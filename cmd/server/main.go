package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mesikahq/clinical-notes/internal/api"
	"github.com/mesikahq/clinical-notes/internal/audit"
	"github.com/mesikahq/clinical-notes/internal/auth"
	"github.com/mesikahq/clinical-notes/internal/config"
	"github.com/mesikahq/clinical-notes/internal/database"
	"github.com/mesikahq/clinical-notes/internal/encryption"
	"github.com/mesikahq/clinical-notes/internal/metrics"
	"github.com/mesikahq/clinical-notes/internal/middleware"
	"github.com/mesikahq/clinical-notes/internal/patient"
	"github.com/mesikahq/clinical-notes/internal/report"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Error loading .env file: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	gin.SetMode(cfg.Server.Mode)

	ctx := context.Background()

	// Initialize MongoDB connection
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout)
	mongoClient, err := database.NewMongoClient(connectCtx, &database.Config{
		URI:                    cfg.Mongo.URI,
		Database:               cfg.Mongo.Database,
		MaxPoolSize:            cfg.Mongo.MaxPoolSize,
		MinPoolSize:            cfg.Mongo.MinPoolSize,
		ConnectTimeout:         cfg.Mongo.ConnectTimeout,
		ServerSelectionTimeout: cfg.Mongo.ServerSelectionTimeout,
		TLSCAFile:              cfg.Mongo.TLSCAFile,
	})
	cancel()
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer database.Disconnect(mongoClient, 5*time.Second)

	// Initialize identity verifier
	projectID := cfg.Firebase.ProjectID
	if projectID == "" {
		projectID, err = auth.ProjectIDFromCredentials(cfg.Firebase.CredentialsFile)
		if err != nil {
			logger.Fatal("Failed to read identity credentials", zap.Error(err))
		}
	}
	verifier, err := auth.NewFirebaseVerifier(projectID, auth.NewKeySet(cfg.Firebase.JWKSURL, nil))
	if err != nil {
		logger.Fatal("Failed to initialize token verifier", zap.Error(err))
	}

	// Initialize audit service
	var esClient *elasticsearch.Client
	if cfg.Elasticsearch.URL != "" {
		esClient, err = elasticsearch.NewClient(elasticsearch.Config{
			Addresses: []string{cfg.Elasticsearch.URL},
			Username:  cfg.Elasticsearch.Username,
			Password:  cfg.Elasticsearch.Password,
		})
		if err != nil {
			logger.Fatal("Failed to connect to Elasticsearch", zap.Error(err))
		}
	}
	auditLogger := logrus.New()
	auditLogger.SetFormatter(&logrus.JSONFormatter{})
	auditService := audit.NewService(esClient, auditLogger)

	// Initialize encryption service
	var encryptService encryption.Service
	if cfg.Security.EncryptionKey != "" {
		encryptService, err = encryption.NewService(cfg.Security.EncryptionKey)
		if err != nil {
			logger.Fatal("Failed to initialize encryption service", zap.Error(err))
		}
	} else {
		logger.Warn("ENCRYPTION_KEY not set; cpf and phone are stored in plaintext")
	}

	// Initialize report generator
	var generator report.Generator
	if cfg.Gemini.APIKey != "" {
		gemini, err := report.NewGeminiGenerator(ctx, report.GeminiConfig{
			APIKey: cfg.Gemini.APIKey,
			Model:  cfg.Gemini.Model,
		})
		if err != nil {
			logger.Fatal("Failed to initialize report generator", zap.Error(err))
		}
		generator = gemini
	} else {
		logger.Warn("GEMINI_API_KEY not set; report generation is disabled")
	}

	// Initialize services
	appMetrics := metrics.New()
	store := patient.NewMongoStore(mongoClient.Database(cfg.Mongo.Database))
	patientService := patient.NewService(store, encryptService, auditService)
	reportService := report.NewService(patientService, generator, appMetrics, logger)

	// Initialize handler and router
	handler := api.NewHandler(patientService, reportService, logger)
	router := api.NewRouter(handler, verifier, appMetrics, api.RouterConfig{
		RateLimit: rate.Limit(cfg.Security.RateLimitRPS),
		RateBurst: cfg.Security.RateLimitBurst,
		CORS:      middleware.DefaultCORSConfig(),
	}, logger)
	engine := router.SetupRouter(logger)

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("addr", srv.Addr), zap.Bool("tls", cfg.Server.TLS.Enabled))
		var err error
		if cfg.Server.TLS.Enabled {
			err = srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
