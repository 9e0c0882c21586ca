package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration from file. An empty path searches the default locations
// and falls back to defaults when no file exists.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/chunkfs")
	}

	setDefaults(v)

	// CHUNKFS_COORDINATOR_REPLICATION_FACTOR overrides coordinator.replication_factor
	v.SetEnvPrefix("CHUNKFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.http_port", d.Server.HTTPPort)
	v.SetDefault("server.grpc_port", d.Server.GRPCPort)
	v.SetDefault("server.body_limit", d.Server.BodyLimit)

	v.SetDefault("coordinator.replication_factor", d.Coordinator.ReplicationFactor)
	v.SetDefault("coordinator.workers", d.Coordinator.Workers)
	v.SetDefault("coordinator.probe_interval", d.Coordinator.ProbeInterval)
	v.SetDefault("coordinator.probe_timeout", d.Coordinator.ProbeTimeout)

	v.SetDefault("replication.max_in_flight", d.Replication.MaxInFlight)
	v.SetDefault("retrieval.allow_partial", d.Retrieval.AllowPartial)

	v.SetDefault("worker_client.transport", d.WorkerClient.Transport)
	v.SetDefault("worker_client.timeout", d.WorkerClient.Timeout)

	v.SetDefault("metadata.backend", d.Metadata.Backend)
	v.SetDefault("metadata.cache_ttl", d.Metadata.CacheTTL)

	v.SetDefault("etcd.endpoints", d.Etcd.Endpoints)
	v.SetDefault("etcd.dial_timeout", d.Etcd.DialTimeout)

	v.SetDefault("queue.type", d.Queue.Type)
	v.SetDefault("queue.url", d.Queue.URL)
	v.SetDefault("queue.redis_stream", d.Queue.RedisStream)
	v.SetDefault("queue.redis_group", d.Queue.RedisGroup)
	v.SetDefault("queue.kafka_group_id", d.Queue.KafkaGroupID)

	v.SetDefault("datanode.data_dir", d.DataNode.DataDir)
	v.SetDefault("datanode.identity_file", d.DataNode.IdentityFile)
	v.SetDefault("datanode.compression", d.DataNode.Compression)

	v.SetDefault("discovery.poll_interval", d.Discovery.PollInterval)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output_path", d.Logging.OutputPath)
}

func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "0.0.0.0",
			HTTPPort:  5000,
			GRPCPort:  5100,
			BodyLimit: 64 * 1024 * 1024,
		},
		Coordinator: CoordinatorConfig{
			ReplicationFactor: 3,
			Workers: []string{
				"localhost:5001",
				"localhost:5002",
				"localhost:5003",
				"localhost:5004",
			},
			ProbeInterval: time.Second,
			ProbeTimeout:  2 * time.Second,
		},
		Replication: ReplicationConfig{
			MaxInFlight: 8,
		},
		WorkerClient: WorkerClientConfig{
			Transport: "http",
			Timeout:   5 * time.Second,
		},
		Metadata: MetadataConfig{
			Backend:  "memory",
			CacheTTL: 30 * time.Second,
		},
		Etcd: EtcdConfig{
			Endpoints:   []string{"http://localhost:2379"},
			DialTimeout: 5 * time.Second,
		},
		Queue: QueueConfig{
			Type:         "memory",
			URL:          "nats://localhost:4222",
			RedisStream:  "chunkfs",
			RedisGroup:   "chunkfs-group",
			KafkaGroupID: "chunkfs",
		},
		DataNode: DataNodeConfig{
			DataDir:      "./data",
			IdentityFile: "node.toml",
			Compression:  "none",
		},
		Discovery: DiscoveryConfig{
			PollInterval: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
		},
	}
}
