package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/naoina/toml"
	"gopkg.in/yaml.v3"
)

// Supported data sources
const (
	SourceRPC      = "rpc"
	SourceExplorer = "explorer"
)

// Shield sync modes
const (
	ShieldModeBinary  = "binary"
	ShieldModePolling = "polling"
)

// Storage engines
const (
	EnginePebble  = "pebble"
	EngineLevelDB = "leveldb"
)

type RPCConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     string `yaml:"port" toml:"port"`
	User     string `yaml:"user" toml:"user"`
	Password string `yaml:"password" toml:"password"`
}

type ShieldSyncConfig struct {
	Mode        string `yaml:"mode" toml:"mode"`
	Concurrency int    `yaml:"concurrency" toml:"concurrency"`
	BatchBlocks int    `yaml:"batch_blocks" toml:"batch_blocks"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Pretty bool   `yaml:"pretty" toml:"pretty"`
}

type Config struct {
	Network         string           `yaml:"network" toml:"network"`
	DataDir         string           `yaml:"data_dir" toml:"data_dir"`
	StorageEngine   string           `yaml:"storage_engine" toml:"storage_engine"`
	Source          string           `yaml:"source" toml:"source"`
	RPC             RPCConfig        `yaml:"rpc" toml:"rpc"`
	ExplorerURL     string           `yaml:"explorer_url" toml:"explorer_url"`
	ShieldURL       string           `yaml:"shield_url" toml:"shield_url"`
	ZMQAddress      []string         `yaml:"zmq_address" toml:"zmq_address"`
	APIPort         string           `yaml:"api_port" toml:"api_port"`
	SyncIntervalSec int              `yaml:"sync_interval_sec" toml:"sync_interval_sec"`
	ShieldSync      ShieldSyncConfig `yaml:"shield_sync" toml:"shield_sync"`
	FeePerByte      uint64           `yaml:"fee_per_byte" toml:"fee_per_byte"`
	AccountIndex    uint32           `yaml:"account_index" toml:"account_index"`
	Log             LogConfig        `yaml:"log" toml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Network:         "mainnet",
		DataDir:         "data",
		StorageEngine:   EnginePebble,
		Source:          SourceExplorer,
		ExplorerURL:     "https://explorer.pivx.org",
		ShieldURL:       "https://rpc.pivx.org/mainnet",
		APIPort:         "8080",
		SyncIntervalSec: 10,
		ShieldSync: ShieldSyncConfig{
			Mode:        ShieldModeBinary,
			Concurrency: 8,
			BatchBlocks: 10,
		},
		FeePerByte: 10,
		RPC: RPCConfig{
			Host: "localhost",
			Port: "51473",
		},
		Log: LogConfig{Level: "INFO", Pretty: true},
	}
}

// ChainParams returns the parameters of the configured network.
func (c *Config) ChainParams() (*ChainParams, error) {
	switch c.Network {
	case "mainnet":
		return &MainNet, nil
	case "testnet":
		return &TestNet, nil
	default:
		return nil, fmt.Errorf("unknown network: %s", c.Network)
	}
}

// Validate checks the fields that have a closed set of values.
func (c *Config) Validate() error {
	if _, err := c.ChainParams(); err != nil {
		return err
	}
	switch c.Source {
	case SourceRPC, SourceExplorer:
	default:
		return fmt.Errorf("unsupported source: %s, supported sources: rpc, explorer", c.Source)
	}
	switch c.ShieldSync.Mode {
	case ShieldModeBinary, ShieldModePolling:
	default:
		return fmt.Errorf("unsupported shield sync mode: %s", c.ShieldSync.Mode)
	}
	switch c.StorageEngine {
	case EnginePebble, EngineLevelDB:
	default:
		return fmt.Errorf("unsupported storage engine: %s", c.StorageEngine)
	}
	if c.ShieldSync.Concurrency <= 0 {
		return fmt.Errorf("shield_sync.concurrency must be positive")
	}
	return nil
}

// LoadConfig reads a yaml (or toml, by extension) file on top of the defaults,
// then applies environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) {
	if network := os.Getenv("NETWORK"); network != "" {
		cfg.Network = network
	}
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	if host := os.Getenv("RPC_HOST"); host != "" {
		cfg.RPC.Host = host
	}
	if port := os.Getenv("RPC_PORT"); port != "" {
		cfg.RPC.Port = port
	}
	if user := os.Getenv("RPC_USER"); user != "" {
		cfg.RPC.User = user
	}
	if pass := os.Getenv("RPC_PASS"); pass != "" {
		cfg.RPC.Password = pass
	}
	if url := os.Getenv("EXPLORER_URL"); url != "" {
		cfg.ExplorerURL = url
	}
	if url := os.Getenv("SHIELD_URL"); url != "" {
		cfg.ShieldURL = url
	}
	if zmq := os.Getenv("ZMQ_ADDRESS"); zmq != "" {
		cfg.ZMQAddress = strings.Split(zmq, ",")
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if fee := os.Getenv("FEE_PER_BYTE"); fee != "" {
		if v, err := strconv.ParseUint(fee, 10, 64); err == nil && v > 0 {
			cfg.FeePerByte = v
		}
	}
}
