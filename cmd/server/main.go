package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"tripsecretary/internal/cards/events"
	"tripsecretary/internal/cards/issuer"
	cardservice "tripsecretary/internal/cards/service"
	cardstore "tripsecretary/internal/cards/store"
	cardmemory "tripsecretary/internal/cards/store/memory"
	cardpostgres "tripsecretary/internal/cards/store/postgres"
	"tripsecretary/internal/forms/debounce"
	"tripsecretary/internal/forms/fieldstate"
	"tripsecretary/internal/forms/interaction"
	interactionstore "tripsecretary/internal/forms/interaction/store"
	"tripsecretary/internal/jwtauth"
	"tripsecretary/internal/platform/config"
	"tripsecretary/internal/platform/httpserver"
	"tripsecretary/internal/platform/kafka/producer"
	"tripsecretary/internal/platform/logger"
	"tripsecretary/internal/platform/metrics"
	"tripsecretary/internal/platform/redis"
	recordservice "tripsecretary/internal/records/service"
	recordstore "tripsecretary/internal/records/store"
	recordmemory "tripsecretary/internal/records/store/memory"
	recordpostgres "tripsecretary/internal/records/store/postgres"
	httptransport "tripsecretary/internal/transport/http"
	"tripsecretary/pkg/platform/audit"
	auditoutbox "tripsecretary/pkg/platform/audit/outbox"
	outboxmemory "tripsecretary/pkg/platform/audit/outbox/store/memory"
	outboxpostgres "tripsecretary/pkg/platform/audit/outbox/store/postgres"
	"tripsecretary/pkg/platform/audit/publisher"
	auditmemory "tripsecretary/pkg/platform/audit/store/memory"
	auditpostgres "tripsecretary/pkg/platform/audit/store/postgres"
	"tripsecretary/pkg/platform/audit/worker"
	"tripsecretary/pkg/platform/circuit"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	m := metrics.New()

	// Storage. Postgres when configured, otherwise everything lives in
	// memory (local development and tests).
	var (
		db          *sql.DB
		records     recordstore.Stores
		cards       cardstore.CardStore
		auditStore  audit.Store
		outboxStore auditoutbox.Store
	)
	if cfg.Postgres.URL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			return err
		}
		records = recordstore.Stores{
			Passports:    recordpostgres.NewPassportStore(db),
			PersonalInfo: recordpostgres.NewPersonalInfoStore(db),
			FundItems:    recordpostgres.NewFundItemStore(db),
			TravelInfo:   recordpostgres.NewTravelInfoStore(db),
			EntryInfo:    recordpostgres.NewEntryInfoStore(db),
		}
		cards = cardpostgres.NewCardStore(db)
		auditStore = auditpostgres.New(db)
		outboxStore = outboxpostgres.New(db)
		log.Info("using postgres stores")
	} else {
		records = recordstore.Stores{
			Passports:    recordmemory.NewPassportStore(),
			PersonalInfo: recordmemory.NewPersonalInfoStore(),
			FundItems:    recordmemory.NewFundItemStore(),
			TravelInfo:   recordmemory.NewTravelInfoStore(),
			EntryInfo:    recordmemory.NewEntryInfoStore(),
		}
		cards = cardmemory.NewCardStore()
		auditStore = auditmemory.NewInMemoryStore()
		outboxStore = outboxmemory.New()
		log.Warn("POSTGRES_URL not set, using in-memory stores")
	}

	// Interaction state. Redis survives restarts; memory does not.
	var interactions interaction.Store
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		interactions = interactionstore.NewRedis(redisClient.Client)
		log.Info("using redis interaction store")
	} else {
		interactions = interactionstore.NewMemory()
		log.Warn("REDIS_URL not set, interaction state is in-memory")
	}

	tracker, err := interaction.NewTracker(interactions, interaction.WithLogger(log))
	if err != nil {
		return err
	}
	fields, err := fieldstate.NewManager(tracker, fieldstate.WithDropCounter(m.FieldsDropped))
	if err != nil {
		return err
	}
	saves := debounce.New(cfg.Forms.DebounceWindow,
		debounce.WithLogger(log),
		debounce.WithFlushCounter(m),
	)

	// The audit trail is fail-closed through the outbox; when brokers are
	// configured a worker drains pending entries to Kafka.
	trail := publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(256),
		publisher.WithLogger(log),
	)
	defer trail.Close()

	cardOpts := []cardservice.Option{
		cardservice.WithAuditor(trail),
		cardservice.WithCounters(m),
		cardservice.WithLogger(log),
	}

	if len(cfg.Kafka.Brokers) > 0 {
		prod, err := producer.New(producer.Config{
			Brokers: cfg.Kafka.Brokers,
			Retries: 3,
		}, log)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			prod.Close(ctx)
		}()

		w := worker.New(outboxStore, prod,
			worker.WithTopic(cfg.Kafka.Topic),
			worker.WithLogger(log),
		)
		w.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := w.Stop(ctx); err != nil {
				log.Warn("outbox worker stop", "error", err)
			}
		}()

		cardOpts = append(cardOpts, cardservice.WithEventPublisher(
			events.NewKafkaPublisher(prod, cfg.Kafka.Topic, log)))
		log.Info("kafka publishing enabled", "topic", cfg.Kafka.Topic)
	} else {
		cardOpts = append(cardOpts, cardservice.WithEventPublisher(events.NewLogPublisher(log)))
		log.Warn("KAFKA_BROKERS not set, card events degrade to log lines")
	}

	// Remote card authority. The stub keeps local development offline.
	var issuerClient issuer.Client
	if cfg.Issuer.BaseURL != "" {
		issuerClient = issuer.NewHTTPClient(cfg.Issuer.BaseURL, cfg.Issuer.APIKey, cfg.Issuer.Timeout,
			issuer.WithBreaker(circuit.New("card-issuer")),
			issuer.WithMaxAttempts(cfg.Issuer.MaxRetries+1),
			issuer.WithBackoff(cfg.Issuer.RetryBackoff),
			issuer.WithLatencyObserver(m.IssuerCallDurationMs),
			issuer.WithLogger(log),
		)
	} else {
		issuerClient = &issuer.Stub{}
		log.Warn("CARD_ISSUER_URL not set, using stub issuer")
	}

	recordsSvc, err := recordservice.New(records, tracker, fields, saves,
		recordservice.WithAuditor(trail),
		recordservice.WithMetrics(m),
		recordservice.WithLogger(log),
	)
	if err != nil {
		return err
	}

	cardOpts = append(cardOpts, cardservice.WithFormFlusher(recordsSvc))
	cardsSvc, err := cardservice.New(cards, records, issuerClient, cardOpts...)
	if err != nil {
		return err
	}

	tokens := jwtauth.NewService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)

	handler := httptransport.NewHandler(recordsSvc, cardsSvc, log)
	router := httptransport.NewRouter(handler, jwtauth.NewAdapter(tokens))

	srv := httpserver.New(cfg.Server.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting tripsecretary", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
