package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/soltixdb/chunkfs/internal/config"
	"github.com/soltixdb/chunkfs/internal/coordinator"
	"github.com/soltixdb/chunkfs/internal/grpc"
	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/metadata"
	"github.com/soltixdb/chunkfs/internal/metrics"
	"github.com/soltixdb/chunkfs/internal/queue"
	"github.com/soltixdb/chunkfs/internal/registry"
	"github.com/soltixdb/chunkfs/internal/router"
	"github.com/soltixdb/chunkfs/internal/services"
	"github.com/soltixdb/chunkfs/internal/utils"
	"github.com/soltixdb/chunkfs/internal/workerclient"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)
	logger.Info("NameNode starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metadata store
	logger.Info("Opening metadata store", "backend", cfg.Metadata.Backend)
	store, err := metadata.New(cfg.Metadata, cfg.Etcd)
	if err != nil {
		logger.Fatal("Failed to open metadata store", "error", err)
	}
	defer func() { _ = store.Close() }()

	// Event queue (configurable backend)
	logger.Info("Connecting to Queue", "type", cfg.Queue.Type, "url", cfg.Queue.URL)
	queueClient, err := queue.NewQueue(cfg.Queue)
	if err != nil {
		logger.Fatal("Failed to connect to Queue", "error", err)
	}
	defer func() { _ = queueClient.Close() }()
	events := queue.NewEvents(queueClient, logger)

	// Worker transport
	var client workerclient.Client
	switch cfg.WorkerClient.Transport {
	case "grpc":
		grpcClient := grpc.NewClient(logger, cfg.WorkerClient.Timeout)
		defer grpcClient.Close()
		client = grpcClient
	default:
		client = workerclient.NewHTTPClient(cfg.WorkerClient.Timeout)
	}
	logger.Info("Worker transport ready", "transport", cfg.WorkerClient.Transport)

	// Worker addresses: static list, optionally merged with etcd registrations
	var source registry.AddressSource = registry.StaticSource(cfg.Coordinator.Workers)
	if cfg.Discovery.Enabled {
		etcdClient, err := metadata.NewEtcdClient(cfg.Etcd)
		if err != nil {
			logger.Fatal("Failed to connect to etcd", "error", err)
		}
		defer func(c *clientv3.Client) { _ = c.Close() }(etcdClient)
		source = registry.NewDiscovery(etcdClient, cfg.Coordinator.Workers, cfg.WorkerClient.Transport, cfg.Discovery.PollInterval, logger)
		logger.Info("DataNode discovery enabled", "endpoints", cfg.Etcd.Endpoints)
	}

	m := metrics.New()

	coord := coordinator.New(ctx, coordinator.Config{
		ReplicationFactor: cfg.Coordinator.ReplicationFactor,
		MaxInFlight:       cfg.Replication.MaxInFlight,
		ProbeInterval:     cfg.Coordinator.ProbeInterval,
		ProbeTimeout:      cfg.Coordinator.ProbeTimeout,
		AllowPartial:      cfg.Retrieval.AllowPartial,
	}, coordinator.Deps{
		Store:   store,
		Client:  client,
		Source:  source,
		Metrics: m,
		Events:  events,
		Logger:  logger,
	})
	coord.Start(ctx)

	files := services.NewFileService(logger, store, coord, client, m, events, cfg.Coordinator.ReplicationFactor)
	namespace := services.NewNamespaceService(logger, store, files, events)
	if err := namespace.EnsureRoot(ctx); err != nil {
		logger.Fatal("Failed to create root directory", "error", err)
	}

	app := router.New(logger, files, namespace, router.Options{
		Version:   Version,
		BodyLimit: cfg.Server.BodyLimit,
		Metrics:   m,
	})

	// Start server in goroutine
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
		logger.Info("Server listening", "address", addr)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), utils.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Let in-flight replication finish before closing the store
	coord.Stop()

	logger.Info("Server exited")
}
