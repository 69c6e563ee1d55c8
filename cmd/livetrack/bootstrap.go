package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livetrack/config"
	"livetrack/internal/broker/kafka"
	"livetrack/internal/cache/rediscache"
	"livetrack/internal/checkpoint"
	"livetrack/internal/credentials"
	"livetrack/internal/hub"
	"livetrack/internal/services/deliveries"
	"livetrack/internal/storage/pgdelivery"
)

type liveTrackApp struct {
	ctx    context.Context
	cancel context.CancelFunc

	opts     liveTrackOpts
	svc      *deliveries.Service
	hub      *hub.Hub
	consumer *kafka.Consumer
	closeDB  func()
}

func mustBootstrapLiveTrack() *liveTrackApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("load config: %v", err))
	}

	httpAddr := cfg.LiveTrack.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.LiveTrack.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "livetrack"
	}
	locationTopic := cfg.Kafka.LocationUpdatedTopicName
	if locationTopic == "" {
		locationTopic = "delivery.location.updated"
	}
	checkpointTopic := cfg.Kafka.CheckpointCreatedTopicName
	if checkpointTopic == "" {
		checkpointTopic = "delivery.checkpoint.created"
	}

	snapshotTTL := time.Duration(cfg.LiveTrack.SnapshotTTLSeconds) * time.Second
	if snapshotTTL <= 0 {
		snapshotTTL = 30 * time.Second
	}
	retention := time.Duration(cfg.LiveTrack.TrackingLinkRetentionDays) * 24 * time.Hour
	rateLimit := cfg.LiveTrack.LocationRateLimitPerMin
	if rateLimit <= 0 {
		rateLimit = 120
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)

	policy := checkpoint.NewPolicy(cfg.LiveTrack.CheckpointDistanceKm)
	st := mustOpenPostgresWithRetry(connString, policy, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	rl := rediscache.NewRateLimiter(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	consumer := kafka.NewConsumer(brokers, locationTopic, consumerGroup)

	h := hub.New()
	creds := credentials.New(st, retention)
	svc := deliveries.New(st, creds, h, rc, snapshotTTL).
		WithRateLimiter(rl, int64(rateLimit)).
		WithProducer(producer, checkpointTopic)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &liveTrackApp{
		ctx:    ctx,
		cancel: cancel,
		opts: liveTrackOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			topic:         locationTopic,
			consumerGroup: consumerGroup,
			opsAuthorizer: opsTokenAuthorizer(cfg.LiveTrack.OpsToken),
		},
		svc:      svc,
		hub:      h,
		consumer: consumer,
		closeDB:  st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, decider pgdelivery.CheckpointDecider, wait time.Duration) *pgdelivery.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgdelivery.New(connString, decider)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

// opsTokenAuthorizer gates the dispatch websocket with a shared bearer token.
// An empty token disables the gate.
func opsTokenAuthorizer(token string) func(r *http.Request) bool {
	if token == "" {
		return nil
	}
	want := "Bearer " + token
	return func(r *http.Request) bool {
		return r.Header.Get("Authorization") == want
	}
}

func (a *liveTrackApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *liveTrackApp) Run() error {
	return runLiveTrack(a.ctx, a.opts, a.svc, a.hub, a.consumer)
}
