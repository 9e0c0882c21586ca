package config

import (
	"fmt"
	"time"
)

// Config represents the complete configuration shared by the namenode and datanode binaries
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Coordinator  CoordinatorConfig  `mapstructure:"coordinator"`
	Replication  ReplicationConfig  `mapstructure:"replication"`
	Retrieval    RetrievalConfig    `mapstructure:"retrieval"`
	WorkerClient WorkerClientConfig `mapstructure:"worker_client"`
	Metadata     MetadataConfig     `mapstructure:"metadata"`
	Etcd         EtcdConfig         `mapstructure:"etcd"`
	Queue        QueueConfig        `mapstructure:"queue"`
	DataNode     DataNodeConfig     `mapstructure:"datanode"`
	Discovery    DiscoveryConfig    `mapstructure:"discovery"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig represents the listening side of either binary
type ServerConfig struct {
	Host     string `mapstructure:"host"`
	HTTPPort int    `mapstructure:"http_port"`
	GRPCPort int    `mapstructure:"grpc_port"`
	// BodyLimit caps upload size in bytes
	BodyLimit int `mapstructure:"body_limit"`
}

// CoordinatorConfig controls worker tracking on the namenode
type CoordinatorConfig struct {
	ReplicationFactor int           `mapstructure:"replication_factor"`
	Workers           []string      `mapstructure:"workers"` // static worker addresses, order defines placement order
	ProbeInterval     time.Duration `mapstructure:"probe_interval"`
	ProbeTimeout      time.Duration `mapstructure:"probe_timeout"`
}

// ReplicationConfig bounds background replication
type ReplicationConfig struct {
	MaxInFlight int `mapstructure:"max_in_flight"` // concurrent chunk pushes per upload
}

// RetrievalConfig controls reassembly behavior
type RetrievalConfig struct {
	// AllowPartial omits unrecoverable chunks instead of failing the read
	AllowPartial bool `mapstructure:"allow_partial"`
}

// WorkerClientConfig selects how the namenode talks to datanodes
type WorkerClientConfig struct {
	Transport string        `mapstructure:"transport"` // http (default), grpc
	Timeout   time.Duration `mapstructure:"timeout"`
}

// MetadataConfig selects the metadata store backend
type MetadataConfig struct {
	Backend  string        `mapstructure:"backend"`   // memory, etcd
	CacheTTL time.Duration `mapstructure:"cache_ttl"` // file document cache, 0 disables
}

// EtcdConfig represents etcd configuration
type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
}

// QueueConfig represents event queue configuration
type QueueConfig struct {
	Type     string `mapstructure:"type"` // none, memory, nats, redis, kafka
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	RedisDB       int    `mapstructure:"redis_db"`
	RedisStream   string `mapstructure:"redis_stream"`
	RedisGroup    string `mapstructure:"redis_group"`
	RedisConsumer string `mapstructure:"redis_consumer"`

	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaGroupID string   `mapstructure:"kafka_group_id"`
}

// DataNodeConfig represents a storage worker
type DataNodeConfig struct {
	NodeID           string `mapstructure:"node_id"` // empty: read or create the identity file
	DataDir          string `mapstructure:"data_dir"`
	IdentityFile     string `mapstructure:"identity_file"`
	Compression      string `mapstructure:"compression"`       // none, snappy, zstd
	AdvertiseAddress string `mapstructure:"advertise_address"` // host registered in etcd, detected when empty
	Register         bool   `mapstructure:"register"`          // register in etcd with a lease
}

// DiscoveryConfig lets the namenode pick up registered datanodes
type DiscoveryConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
	TimeFormat string `mapstructure:"time_format"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Coordinator.Validate(); err != nil {
		return fmt.Errorf("coordinator config: %w", err)
	}
	if c.Replication.MaxInFlight < 1 {
		return fmt.Errorf("replication config: max_in_flight must be at least 1")
	}
	if err := c.WorkerClient.Validate(); err != nil {
		return fmt.Errorf("worker_client config: %w", err)
	}
	if err := c.Metadata.Validate(); err != nil {
		return fmt.Errorf("metadata config: %w", err)
	}
	if c.NeedsEtcd() {
		if err := c.Etcd.Validate(); err != nil {
			return fmt.Errorf("etcd config: %w", err)
		}
	}
	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue config: %w", err)
	}
	if err := c.DataNode.Validate(); err != nil {
		return fmt.Errorf("datanode config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// NeedsEtcd reports whether any enabled component talks to etcd
func (c *Config) NeedsEtcd() bool {
	return c.Metadata.Backend == "etcd" || c.Discovery.Enabled || c.DataNode.Register
}

// Validate validates server configuration
func (c *ServerConfig) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc_port: %d", c.GRPCPort)
	}
	if c.HTTPPort == c.GRPCPort {
		return fmt.Errorf("http_port and grpc_port cannot be the same")
	}
	if c.BodyLimit < 0 {
		return fmt.Errorf("body_limit cannot be negative")
	}
	return nil
}

// Validate validates coordinator configuration
func (c *CoordinatorConfig) Validate() error {
	if c.ReplicationFactor < 1 {
		return fmt.Errorf("replication_factor must be at least 1")
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("probe_interval must be positive")
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive")
	}
	seen := make(map[string]bool, len(c.Workers))
	for _, addr := range c.Workers {
		if addr == "" {
			return fmt.Errorf("workers cannot contain an empty address")
		}
		if seen[addr] {
			return fmt.Errorf("duplicate worker address: %s", addr)
		}
		seen[addr] = true
	}
	return nil
}

// Validate validates worker client configuration
func (c *WorkerClientConfig) Validate() error {
	if c.Transport != "http" && c.Transport != "grpc" {
		return fmt.Errorf("transport must be 'http' or 'grpc'")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// Validate validates metadata configuration
func (c *MetadataConfig) Validate() error {
	if c.Backend != "memory" && c.Backend != "etcd" {
		return fmt.Errorf("backend must be 'memory' or 'etcd'")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl cannot be negative")
	}
	return nil
}

// Validate validates etcd configuration
func (c *EtcdConfig) Validate() error {
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("etcd.endpoints is required")
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("etcd.dial_timeout must be positive")
	}
	return nil
}

// Validate validates queue configuration
func (c *QueueConfig) Validate() error {
	switch c.Type {
	case "", "none", "memory", "nats", "redis", "kafka":
		return nil
	default:
		return fmt.Errorf("unsupported queue type: %s", c.Type)
	}
}

// Validate validates datanode configuration
func (c *DataNodeConfig) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	switch c.Compression {
	case "", "none", "snappy", "zstd":
		return nil
	default:
		return fmt.Errorf("compression must be one of: none, snappy, zstd")
	}
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}
	return nil
}
