package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/soltixdb/chunkfs/internal/chunkstore"
	"github.com/soltixdb/chunkfs/internal/compression"
	"github.com/soltixdb/chunkfs/internal/config"
	"github.com/soltixdb/chunkfs/internal/datanode"
	"github.com/soltixdb/chunkfs/internal/grpc"
	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/metadata"
	"github.com/soltixdb/chunkfs/internal/metrics"
	"github.com/soltixdb/chunkfs/internal/models"
	"github.com/soltixdb/chunkfs/internal/registry"
	"github.com/soltixdb/chunkfs/internal/utils"
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

	// 1. Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	logger.Info("DataNode starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	// 3. Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Resolve node identity
	identityPath := cfg.DataNode.IdentityFile
	if identityPath == "" {
		identityPath = filepath.Join(cfg.DataNode.DataDir, "identity.toml")
	}
	identity, err := datanode.LoadOrCreateIdentity(identityPath, cfg.DataNode.NodeID)
	if err != nil {
		logger.Fatal("Failed to load node identity", "error", err)
	}
	logger.Info("Using node identity", "node_id", identity.NodeID, "identity_file", identityPath)

	// 5. Open chunk store
	algo, err := compression.ParseAlgorithm(cfg.DataNode.Compression)
	if err != nil {
		logger.Fatal("Invalid compression", "error", err)
	}
	store, err := chunkstore.NewDiskStore(cfg.DataNode.DataDir, algo)
	if err != nil {
		logger.Fatal("Failed to open chunk store", "error", err)
	}

	m := metrics.NewDataNode()
	svc := datanode.NewService(store, identity, logger, m)

	// 6. Start HTTP API
	app := datanode.NewHTTPApp(svc, logger, m, datanode.HTTPConfig{
		BodyLimit: cfg.Server.BodyLimit,
		Version:   Version,
	})
	httpBindAddress := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	go func() {
		logger.Info("Server listening", "address", httpBindAddress)
		if err := app.Listen(httpBindAddress); err != nil {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// 7. Start gRPC server in a goroutine
	grpcBindAddress := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort)
	grpcServer := grpc.NewChunkServer(grpcBindAddress, svc, logger)
	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()
	go func() {
		if err := grpcServer.Start(serverCtx); err != nil {
			logger.Error("gRPC server error", "error", err)
		}
	}()

	// 8. Register with etcd (optional)
	if cfg.DataNode.Register {
		host := advertiseHost(logger, cfg)
		nodeInfo := models.NodeInfo{
			ID:          identity.NodeID,
			HTTPAddress: fmt.Sprintf("%s:%d", host, cfg.Server.HTTPPort),
			GRPCAddress: fmt.Sprintf("%s:%d", host, cfg.Server.GRPCPort),
			Status:      "active",
			Version:     Version,
			UpdatedAt:   time.Now(),
		}

		etcdClient, err := metadata.NewEtcdClient(cfg.Etcd)
		if err != nil {
			logger.Fatal("Failed to connect to etcd", "error", err)
		}
		defer func() { _ = etcdClient.Close() }()

		registration := registry.NewNodeRegistration(etcdClient, nodeInfo, svc, logger)
		if err := registration.Register(ctx); err != nil {
			logger.Fatal("Failed to register node", "error", err)
		}
		defer func() {
			deregCtx, deregCancel := context.WithTimeout(context.Background(), utils.MetadataOpTimeout)
			defer deregCancel()
			if err := registration.Deregister(deregCtx); err != nil {
				logger.Error("Failed to deregister node", "error", err)
			}
		}()
	}

	logger.Info("DataNode started successfully",
		"node_id", identity.NodeID,
		"http_bind_address", httpBindAddress,
		"grpc_bind_address", grpcBindAddress,
		"data_dir", cfg.DataNode.DataDir,
		"compression", cfg.DataNode.Compression,
	)

	// 9. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received shutdown signal", "signal", sig.String())

	serverCancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), utils.ShutdownTimeout)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("DataNode stopped")
}

// getOutboundIP gets the non-loopback IP address of this machine.
// Returns empty string if detection fails.
func getOutboundIP() string {
	// UDP dial sends no packets, it only picks the local address
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer func() { _ = conn.Close() }()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}

// advertiseHost is the host other services use to reach this node
func advertiseHost(logger *logging.Logger, cfg *config.Config) string {
	if cfg.DataNode.AdvertiseAddress != "" {
		return cfg.DataNode.AdvertiseAddress
	}
	if cfg.Server.Host != "" && cfg.Server.Host != "0.0.0.0" {
		return cfg.Server.Host
	}
	if ip := getOutboundIP(); ip != "" {
		logger.Info("Auto-detected machine IP address for service discovery", "advertise_host", ip)
		return ip
	}
	logger.Fatal("Failed to auto-detect IP address. Please set datanode.advertise_address in config")
	return ""
}
