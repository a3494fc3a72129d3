package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"citebroker/internal/broker"
	brokerhandler "citebroker/internal/broker/handler"
	brokermetrics "citebroker/internal/broker/metrics"
	"citebroker/internal/catalog"
	"citebroker/internal/citation"
	"citebroker/internal/consortial"
	"citebroker/internal/platform/config"
	"citebroker/internal/platform/httpserver"
	"citebroker/internal/platform/kafka"
	"citebroker/internal/platform/logger"
	"citebroker/internal/platform/metrics"
	"citebroker/internal/platform/redis"
	"citebroker/internal/requestlog"
	"citebroker/internal/service"
	"citebroker/internal/service/cache"
	servicemetrics "citebroker/internal/service/metrics"
	"citebroker/internal/service/stub"
	"citebroker/pkg/platform/httputil"
	"citebroker/pkg/platform/middleware/metadata"
	"citebroker/pkg/platform/middleware/requestscope"
)

// main wires configuration, external clients and the broker, then serves
// until interrupted.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("citebroker stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	cat, err := catalog.Load(cfg.ConfigDir, log)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	app := cat.Application

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	kafkaClient, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		return err
	}
	var publisher requestlog.Publisher = requestlog.NewLogPublisher(log)
	if kafkaClient != nil {
		defer kafkaClient.Close()
		publisher = requestlog.NewKafkaPublisher(kafkaClient, cfg.Kafka.RequestLogTopic)
	}

	callers, err := buildCallers(cat, cfg.ResultCacheTTL, redisClient, log)
	if err != nil {
		return err
	}

	b, err := broker.New(broker.Config{
		Registry: cat.Registry,
		Rules:    cat.Rules,
		Tiers:    cat.Tiers,
		Callers:  callers,
	},
		broker.WithLogger(log),
		broker.WithMetrics(brokermetrics.New()),
		broker.WithMessages(cat.Messages),
		broker.WithAPIVersion(app.ClientAPIVersion),
		broker.WithTierTimeout(app.TierTimeout()),
		broker.WithRequestLog(publisher),
	)
	if err != nil {
		return fmt.Errorf("build broker: %w", err)
	}

	handlerOpts := []brokerhandler.Option{
		brokerhandler.WithMessages(cat.Messages),
		brokerhandler.WithAPIVersions(app.ServiceAPIVersion, app.ClientAPIVersion),
	}
	if app.Consortial != nil {
		handlerOpts = append(handlerOpts, brokerhandler.WithAffiliations(consortial.New(consortial.Config{
			TranslateFromIP:   app.Consortial.TranslateFromIP,
			TranslateFromCode: app.Consortial.TranslateFromCode,
			Timeout:           app.Consortial.Timeout(),
			MaxResponseBytes:  app.ServiceMaxResponseLength,
		}, consortial.WithLogger(log))))
	}
	parser := citation.NewParser(cat.Registry, cat.Translator(catalog.OpenURLTranslator), app.OpenURLClientAffiliation)
	h := brokerhandler.New(b, parser, log, handlerOpts...)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestscope.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(metrics.New().Middleware)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := redisClient.Health(req.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "redis": err.Error()})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())
	h.Register(r)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(ctx, httpserver.New(cfg.Addr, r), cfg.ShutdownTimeout, log)
	})
	if app.DefaultContentService {
		stubRouter := chi.NewRouter()
		stub.New(cat.Registry, log).Register(stubRouter)
		addr := ":" + strconv.Itoa(app.DefaultContentServicePort)
		g.Go(func() error {
			return httpserver.Run(ctx, httpserver.New(addr, stubRouter), cfg.ShutdownTimeout, log)
		})
	}
	return g.Wait()
}

// buildCallers creates one caller per configured service, fronted by the
// result cache when a TTL is set. Redis backs the cache when available.
func buildCallers(cat *catalog.Catalog, ttl time.Duration, redisClient *redis.Client, log *slog.Logger) (map[string]service.Caller, error) {
	var results service.ResultCache
	if ttl > 0 {
		if redisClient != nil {
			results = cache.NewRedisStore(redisClient.Client)
		} else {
			results = cache.NewMemoryStore()
		}
	}

	m := servicemetrics.New()
	callers := make(map[string]service.Caller)
	for _, t := range cat.Tiers {
		for _, def := range t.Services {
			svc, err := service.New(def,
				service.WithLogger(log),
				service.WithMetrics(m),
				service.WithMessages(cat.Messages),
				service.WithTranslator(cat.Translator(def.Translator)),
				service.WithMaxResponseBytes(cat.Application.ServiceMaxResponseLength),
			)
			if err != nil {
				return nil, fmt.Errorf("service %q: %w", def.Name, err)
			}
			callers[def.Name] = service.NewCachingCaller(svc, results, ttl,
				service.WithCacheLogger(log),
				service.WithCacheMetrics(m),
			)
		}
	}
	return callers, nil
}
