package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"aegis/internal/auth"
	"aegis/internal/bridge"
	"aegis/internal/capture"
	contactservice "aegis/internal/contacts/service"
	contactstore "aegis/internal/contacts/store"
	"aegis/internal/events"
	incidentservice "aegis/internal/incident/service"
	incidentstore "aegis/internal/incident/store"
	"aegis/internal/location"
	locationcache "aegis/internal/location/cache"
	"aegis/internal/notify"
	"aegis/internal/platform/config"
	"aegis/internal/platform/httpserver"
	"aegis/internal/platform/logger"
	"aegis/internal/platform/metrics"
	"aegis/internal/platform/middleware"
	"aegis/internal/platform/postgres"
	"aegis/internal/platform/redis"
	"aegis/internal/realtime"
	recordingservice "aegis/internal/recording/service"
	recordingstore "aegis/internal/recording/store"
	"aegis/internal/sos"
	httptransport "aegis/internal/transport/http"
	userservice "aegis/internal/user/service"
	userstore "aegis/internal/user/store"
	"aegis/migrations"
	id "aegis/pkg/domain"
)

const (
	tokenIssuer   = "aegis"
	tokenAudience = "aegis-api"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "aegis: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage. Every store has a memory fallback so the service runs with no
	// external dependencies in development.
	db, err := postgres.Open(cfg.PostgresURL)
	if err != nil {
		return err
	}
	var userStore userstore.Store = userstore.NewMemory()
	var contactStore contactstore.Store = contactstore.NewMemory()
	var incidentStore incidentstore.Store = incidentstore.NewMemory()
	var recordingStore recordingstore.Store = recordingstore.NewMemory()
	if db != nil {
		defer db.Close()
		if _, err := db.ExecContext(ctx, migrations.Schema); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		userStore = userstore.NewPostgres(db)
		contactStore = contactstore.NewPostgres(db)
		incidentStore = incidentstore.NewPostgres(db)

		// Recordings carry media payloads, so they get their own pgx pool
		// instead of sharing the database/sql one.
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("open pgx pool: %w", err)
		}
		defer pool.Close()
		recordingStore = recordingstore.NewPgx(pool)
		log.Info("postgres storage enabled")
	} else {
		log.Warn("no postgres configured, using in-memory stores")
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	var posCache location.Cache = locationcache.NewMemory()
	if redisClient != nil {
		defer redisClient.Close()
		posCache = locationcache.NewRedis(redisClient.Client, cfg.SOS.LocationCacheFreshness)
		log.Info("redis position cache enabled")
	}

	// Domain services.
	users, err := userservice.New(userStore, userservice.WithLogger(log))
	if err != nil {
		return err
	}
	contacts, err := contactservice.New(contactStore,
		contactservice.WithLogger(log),
		contactservice.WithMaxContacts(cfg.SOS.MaxTrustedContacts),
	)
	if err != nil {
		return err
	}
	incidents, err := incidentservice.New(incidentStore,
		incidentservice.WithLogger(log),
		incidentservice.WithMetrics(m),
	)
	if err != nil {
		return err
	}
	recordings, err := recordingservice.New(recordingStore, recordingservice.WithLogger(log))
	if err != nil {
		return err
	}

	hub := realtime.NewHub(realtime.WithLogger(log))
	defer hub.Close()
	gateway := bridge.NewGateway(bridge.WithLogger(log))

	// Lifecycle events always reach connected clients; Kafka is added when
	// brokers are configured.
	var publisher events.Publisher = realtime.NewEventPublisher(hub)
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := events.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, events.WithLogger(log))
		if err != nil {
			return err
		}
		publisher = events.NewFanout(publisher, kafka)
		log.Info("kafka event stream enabled", "topic", cfg.Kafka.Topic)
	}
	defer publisher.Close()

	// Alert channels. The share and local-notification channels ride the
	// websocket hub; the alerting user's ID travels in the request context.
	sms := notify.NewResilientSMSGateway(
		notify.NewHTTPSMSGateway(cfg.SMSGatewayURL, cfg.SMSGatewayToken),
		notify.WithBreakerLogger(log),
	)
	alerter := notify.New(
		sms,
		notify.NewSMTPEmailSender(cfg.SMTP.Addr, cfg.SMTP.From),
		notify.WithLogger(log),
		notify.WithMetrics(m),
		notify.WithPerContactTimeout(cfg.SOS.PerContactTimeout),
		notify.WithSharer(hubSharer(hub)),
		notify.WithLocalNotifier(hubNotifier(hub)),
	)

	// SOS lifecycle engine.
	recorders := func(userID id.UserID, onAutoStop func(capture.Artifact)) (sos.Recorder, error) {
		return capture.New(gateway.MediaProviderFor(userID),
			capture.WithLogger(log),
			capture.WithMaxDuration(cfg.SOS.MaxRecordingDuration),
			capture.WithAutoStopHandler(onAutoStop),
		)
	}
	acquirers := func(userID id.UserID) (sos.LocationAcquirer, error) {
		return location.New(gateway.LocationProviderFor(userID), posCache, userID.String(),
			location.WithLogger(log),
			location.WithFixTimeout(cfg.SOS.LocationFixTimeout),
		)
	}
	orchestrator, err := sos.New(recorders, acquirers, contacts, alerter, incidents,
		sos.WithLogger(log),
		sos.WithMetrics(m),
		sos.WithPublisher(publisher),
		sos.WithMaxCacheAge(cfg.SOS.LocationCacheFreshness),
		sos.WithEntitlementPolicy(sos.FreeTierPolicy(users, incidents, cfg.SOS.FreeIncidentLimit)),
		sos.WithArchiver(recordings, sos.PremiumArchivePolicy(users)),
	)
	if err != nil {
		return err
	}
	defer orchestrator.Shutdown()

	// HTTP surface.
	tokens := auth.NewTokenService(cfg.JWTSigningKey, tokenIssuer, tokenAudience)
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:    log,
		Validator: tokens,
		Public: []httptransport.Registrar{
			httptransport.NewAuthHandler(users, tokens, cfg.TokenTTL, log),
		},
		Protected: []httptransport.Registrar{
			httptransport.NewSOSHandler(orchestrator),
			httptransport.NewContactsHandler(contacts),
			httptransport.NewIncidentsHandler(incidents),
			httptransport.NewRecordingsHandler(recordings),
			httptransport.NewUserHandler(users),
			httptransport.NewDeviceHandler(gateway),
			httptransport.NewWSHandler(hub, log),
		},
	})

	server := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// hubSharer is the last-resort delivery channel: the alert is pushed to
// another of the user's own connected devices so a person there can relay it.
func hubSharer(hub *realtime.Hub) notify.SharerFunc {
	return func(ctx context.Context, contactName, message string) error {
		userID := id.UserID(middleware.GetUserID(ctx))
		if userID.IsNil() || hub.SubscriberCount(userID) == 0 {
			return errors.New("no connected device to share from")
		}
		return hub.Publish(ctx, userID, map[string]string{
			"type":    "share_request",
			"contact": contactName,
			"message": message,
		})
	}
}

// hubNotifier confirms the fan-out back to the user's own devices.
func hubNotifier(hub *realtime.Hub) notify.LocalNotifierFunc {
	return func(ctx context.Context, title, body string) error {
		userID := id.UserID(middleware.GetUserID(ctx))
		if userID.IsNil() {
			return nil
		}
		return hub.Publish(ctx, userID, map[string]string{
			"type":  "notification",
			"title": title,
			"body":  body,
		})
	}
}
