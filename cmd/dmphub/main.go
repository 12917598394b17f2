package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dmphub-lab/dmphub/internal/auth"
	"github.com/dmphub-lab/dmphub/internal/config"
	"github.com/dmphub-lab/dmphub/internal/core/storage/backend"
	"github.com/dmphub-lab/dmphub/internal/dmp"
	"github.com/dmphub-lab/dmphub/internal/dmpapi"
	"github.com/dmphub-lab/dmphub/internal/identifier"
	"github.com/dmphub-lab/dmphub/internal/metrics"
	"github.com/dmphub-lab/dmphub/internal/notify"
	"github.com/dmphub-lab/dmphub/internal/provenance"
	"github.com/dmphub-lab/dmphub/internal/schema"
	schemaapi "github.com/dmphub-lab/dmphub/internal/schema/api"
	"github.com/dmphub-lab/dmphub/internal/schema/formats/protobuf"
	"github.com/dmphub-lab/dmphub/internal/schema/formats/yaml"
	schemaStorage "github.com/dmphub-lab/dmphub/internal/schema/storage"
	"github.com/dmphub-lab/dmphub/internal/server"
	"github.com/dmphub-lab/dmphub/internal/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "dmphub.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger (text until the config says otherwise)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	// 1. Load Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))
	slog.Info("Loaded config",
		"storage", cfg.Storage.Backend,
		"notify_sink", cfg.Notify.Sink,
		"outbox", cfg.Notify.Outbox,
		"shoulder", cfg.Identifier.Shoulder,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Initialize Tracing
	tracingCfg := tracing.Config{ServiceName: "dmphub", ServiceVersion: version, SampleRatio: cfg.Tracing.SampleRatio}
	if cfg.Tracing.Enabled {
		tracingCfg.Endpoint = cfg.Tracing.Endpoint
	}
	shutdownTracing, err := tracing.Init(ctx, tracingCfg)
	if err != nil {
		slog.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Warn("Tracer shutdown failed", "error", err)
		}
	}()

	// 3. Initialize Storage
	store, err := backend.Open(ctx, cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize storage", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close storage", "error", err)
		}
	}()

	// 4. Initialize Contract Registry
	var schemaRepo schema.Repository
	if cfg.Schema.SourceType == "filesystem" {
		schemaRepo = schemaStorage.NewFileSystemRepository(cfg.Schema.Path)
	} else {
		slog.Error("Unsupported schema source type", "type", cfg.Schema.SourceType)
		os.Exit(1)
	}

	registry := schema.NewRegistryWithCache(schemaRepo, cfg.Schema.CacheTTL)

	formatRegistry := schema.NewFormatRegistry()
	formatRegistry.RegisterFormat(schema.FormatProtobuf, protobuf.NewCompiler(), protobuf.NewValidator())
	formatRegistry.RegisterFormat(schema.FormatYaml, yaml.NewCompiler(), yaml.NewValidator())

	validator := schema.NewValidator(formatRegistry)
	contracts := schema.NewContractValidator(registry, validator)

	// 5. Initialize Metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promRegistry)

	// 6. Initialize Change Notification
	sink, closeSink, err := openSink(ctx, cfg.Notify)
	if err != nil {
		slog.Error("Failed to initialize notification sink", "sink", cfg.Notify.Sink, "error", err)
		os.Exit(1)
	}
	defer closeSink()

	publisher := sink
	var relay *notify.Relay
	if cfg.Notify.Outbox && sink != nil {
		outbox := store.Outbox()
		publisher = notify.NewOutboxPublisher(outbox)
		relay = notify.NewRelay(outbox, sink, notify.RelayOptions{
			Name:      "dmphub-" + cfg.Notify.Sink,
			Interval:  cfg.Notify.RelayInterval,
			BatchSize: cfg.Notify.BatchSize,
		})
		relay.OnFailure = func(event *notify.Event, err error) {
			m.RelayFailed()
		}
	}

	// 7. Initialize Registry Core
	codec, err := identifier.NewCodec(cfg.Identifier.BaseDomain)
	if err != nil {
		slog.Error("Invalid identifier configuration", "error", err)
		os.Exit(1)
	}

	provenances := provenance.NewStore(store.Store)
	resolver := provenance.NewResolver(provenances, provenance.ResolverConfig{
		TrustedIssuers: trustedIssuers(cfg.Auth),
		ClientAliases:  cfg.Auth.ClientAliases,
		CacheTTL:       cfg.Provenance.CacheTTL,
	})

	dmps := dmp.NewService(store.Store, codec, contracts, publisher, dmp.Config{
		Shoulder:          cfg.Identifier.Shoulder,
		MintAttempts:      cfg.Identifier.MintAttempts,
		QuiescenceWindow:  cfg.Versioning.QuiescenceWindow,
		ConditionalWrites: cfg.Versioning.ConditionalWrites,
		APIBaseURL:        cfg.Server.APIBaseURL,
		DefaultPerPage:    cfg.Pagination.DefaultPerPage,
		MaxPerPage:        cfg.Pagination.MaxPerPage,
	}, dmp.WithMetrics(m))

	// 8. Initialize Server
	tokens := auth.NewTokenService(cfg.Auth.SigningKey, cfg.Auth.Issuer)

	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), store, m, cfg.Server.Mode)
	api := srv.Engine.Group("", auth.Middleware(tokens))
	dmpapi.NewService(dmps, resolver, cfg.Server.MaxBodySizeMB).RegisterRoutes(api)
	schemaapi.NewHandler(registry, validator).RegisterRoutes(srv.Engine)

	// 9. Start Services
	relayDone := make(chan struct{})
	if relay != nil {
		go func() {
			defer close(relayDone)
			if err := relay.Start(ctx); err != nil {
				slog.Error("Relay stopped with error", "error", err)
			}
		}()
	} else {
		close(relayDone)
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
		cancel()
	}
	<-relayDone

	slog.Info("Shutdown complete")
}

func openSink(ctx context.Context, cfg config.NotifyConfig) (notify.Publisher, func(), error) {
	switch cfg.Sink {
	case "redis":
		client, err := notify.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		pub := notify.NewRedisPublisher(client, notify.RedisConfig{
			URL:    cfg.Redis.URL,
			Stream: cfg.Redis.Stream,
			MaxLen: cfg.Redis.MaxLen,
		})
		return pub, func() { client.Close() }, nil

	case "kafka":
		client, err := notify.NewKafkaClient(notify.KafkaConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		if err != nil {
			return nil, nil, err
		}
		return notify.NewKafkaPublisher(client, cfg.Kafka.Topic), client.Close, nil

	case "none":
		return nil, func() {}, nil

	default:
		return notify.NewLogPublisher(slog.Default()), func() {}, nil
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// trustedIssuers defaults to the local issuer so tokens minted by dmpctl
// are accepted out of the box.
func trustedIssuers(cfg config.AuthConfig) []string {
	if len(cfg.TrustedIssuers) > 0 {
		return cfg.TrustedIssuers
	}
	if cfg.Issuer == "" {
		return nil
	}
	return []string{cfg.Issuer}
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
