package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"livetrack/internal/api/deliveries_api"
	"livetrack/internal/broker/messages"
	"livetrack/internal/hub"
	"livetrack/internal/services/deliveries"
	"livetrack/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type liveTrackOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string

	opsAuthorizer func(r *http.Request) bool

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

func runLiveTrack(ctx context.Context, opts liveTrackOpts, svc *deliveries.Service, h *hub.Hub, consumer kafkaConsumer) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	r := chi.NewRouter()

	deliveries_api.New(svc).Register(r)

	wsHandler := ws.NewHandler(svc, h)
	if opts.opsAuthorizer != nil {
		wsHandler.WithOpsAuthorizer(opts.opsAuthorizer)
	}
	wsHandler.Register(r)

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, opts.swaggerPath)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger.json"),
	))

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	go func() {
		slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
		_ = consumer.Consume(ctx, feedHandler(ctx, svc))
	}()

	srv := &http.Server{Handler: r}
	httpErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", lis.Addr().String())
		httpErr <- srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}

// feedHandler decodes one location-topic message and applies it. An
// undecodable message is logged and dropped so it gets committed; returning
// the error would end the consume loop and the same message would be
// refetched forever.
func feedHandler(ctx context.Context, svc *deliveries.Service) func(key, value []byte) error {
	return func(_key, value []byte) error {
		var m messages.LocationUpdated
		if err := json.Unmarshal(value, &m); err != nil {
			slog.Warn("undecodable location message dropped", "err", err)
			return nil
		}
		return svc.ApplyFeedUpdate(ctx, m)
	}
}

func isContextDone(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
