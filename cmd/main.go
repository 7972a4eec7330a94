/**
 * @description
 * This is the main entry point for the payment-service. It is responsible for
 * initializing all components of the service, including configuration, database connection,
 * the Dwolla API client, message brokers, repositories, the core application service,
 * and the HTTP server. It wires everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/joho/godotenv: Loads the optional .env file for local development.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/dwollaclient: Client for the Dwolla API.
 * - pkg/rabbitmq, pkg/alerting: Event publishing and on-call alerting.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/splitpay/payment-service/internal/api"
	"github.com/splitpay/payment-service/internal/app"
	"github.com/splitpay/payment-service/internal/config"
	"github.com/splitpay/payment-service/internal/store"
	"github.com/splitpay/payment-service/pkg/alerting"
	"github.com/splitpay/payment-service/pkg/dwollaclient"
	"github.com/splitpay/payment-service/pkg/rabbitmq"
)

func main() {
	// Load .env file for local development. In production, env vars are set directly.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"internal api key must be configured\" env=INTERNAL_API_KEY")
	}
	if strings.TrimSpace(cfg.WebhookBaseURL) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"webhook base url must be configured\" env=WEBHOOK_BASE_URL")
	}

	log.Printf("level=info component=bootstrap msg=\"starting payment-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Webhook subscription secrets are stored encrypted; the key is mandatory.
	secretCipher, err := store.NewSecretCipher(cfg.SecretEncryptionKey)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"secret encryption key invalid\" env=SECRET_ENCRYPTION_KEY err=%v", err)
	}

	// Initialize the RabbitMQ producer to publish events.
	// This service only needs to publish, so we use a producer.
	var producer rabbitmq.Publisher
	rabbitProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &rabbitmq.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		producer = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Optional Redis-backed webhook dedupe fast path. Losing Redis degrades to
	// database-only deduplication.
	var deduper *app.RedisEventDeduper
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; webhook dedupe fast path disabled\" env=REDIS_URL")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; webhook dedupe fast path disabled\" err=%v", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; webhook dedupe fast path disabled\" err=%v", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				deduper = app.NewRedisEventDeduper(redisClient, 24*time.Hour)
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Initialize the client for the Dwolla API.
	dwollaClient := dwollaclient.NewClient(cfg.DwollaAPIBaseURL, cfg.DwollaAPIKey, cfg.DwollaAPISecret)

	// Initialize the on-call alerting client.
	alertClient := alerting.NewClient(cfg.AlertGatewayURL, cfg.AlertGatewayAPIKey, "payment-service")
	if cfg.AlertGatewayURL == "" {
		log.Println("level=warn component=bootstrap msg=\"alert gateway not configured; alerts will only be logged\"")
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool, secretCipher)

	// Initialize the core application service with its dependencies.
	paymentService := app.NewService(
		repository,
		dwollaClient,
		producer,
		alertClient,
		cfg.WebhookEndpointURL(),
		deduper,
	)

	// Guarantee a webhook subscription exists. Failure pages the on-call but
	// does not stop the service.
	bootstrapCtx, cancelBootstrap := context.WithTimeout(context.Background(), 30*time.Second)
	paymentService.BootstrapWebhookSubscription(bootstrapCtx)
	cancelBootstrap()

	// Start the pending-transfer reconciliation job.
	poller := app.NewTransferPoller(paymentService, cfg.TransferPollSchedule, cfg.TransferPollBatchSize)
	poller.Start()
	defer func() { <-poller.Stop().Done() }()

	// Initialize the API handlers and routes.
	paymentHandlers := api.NewPaymentHandlers(paymentService)
	router := api.PaymentRoutes(paymentHandlers, cfg.SessionJWKSURL, cfg.InternalAPIKey)

	// Start the HTTP server.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
