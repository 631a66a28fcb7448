package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Helius   HeliusConfig
	Telegram TelegramConfig
	Notables NotablesConfig
	Gateways GatewayConfig
	Store    StoreConfig
	Server   ServerConfig
	Pipeline PipelineConfig
	Policy   PolicyConfig
	Tracing  TracingConfig
	Log      LogConfig
}

type HeliusConfig struct {
	APIKey string
	APIURL string
}

type TelegramConfig struct {
	BotToken  string
	ChannelID string
	APIBase   string
	Timeout   time.Duration
}

type NotablesConfig struct {
	APIURL        string
	CookiesFile   string
	RequiredCount int
	TopN          int
	RPS           float64
	Burst         int
	Timeout       time.Duration
}

type GatewayConfig struct {
	IPFSBases   []string
	ArweaveBase string
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

type StoreConfig struct {
	DataDir  string
	DBURL    string
	RedisURL string
}

type ServerConfig struct {
	ListenAddr  string
	MetricsAddr string
}

type PipelineConfig struct {
	Workers   int
	QueueSize int
}

type PolicyConfig struct {
	WalletsFile string
}

type TracingConfig struct {
	Endpoint string
	Insecure bool
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Helius: HeliusConfig{
			APIKey: getEnv("HELIUS_API_KEY", ""),
			APIURL: getEnv("HELIUS_API_URL", "https://api.helius.xyz"),
		},
		Telegram: TelegramConfig{
			BotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChannelID: getEnv("TELEGRAM_CHANNEL_ID", ""),
			APIBase:   getEnv("TELEGRAM_API_BASE", "https://api.telegram.org"),
			Timeout:   time.Duration(getEnvInt("TELEGRAM_TIMEOUT_SEC", 5)) * time.Second,
		},
		Notables: NotablesConfig{
			APIURL:        getEnv("PROTOKOLS_API_URL", "https://api.protokols.io/api/trpc/smartFollowers.getPaginatedSmartFollowers"),
			CookiesFile:   getEnv("PROTOKOLS_COOKIES_FILE", "protokols_cookies.json"),
			RequiredCount: getEnvInt("REQUIRED_NOTABLE_COUNT", 5),
			TopN:          getEnvInt("NOTABLES_TOP_N", 5),
			RPS:           getEnvFloat("NOTABLES_RPS", 2),
			Burst:         getEnvInt("NOTABLES_BURST", 5),
			Timeout:       time.Duration(getEnvInt("NOTABLES_TIMEOUT_SEC", 10)) * time.Second,
		},
		Gateways: GatewayConfig{
			ArweaveBase: getEnv("ARWEAVE_GATEWAY", "https://arweave.net/"),
			Timeout:     time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 10)) * time.Second,
			MaxRetries:  getEnvInt("MAX_RETRIES", 3),
			RetryDelay:  time.Duration(getEnvInt("RETRY_DELAY_MS", 500)) * time.Millisecond,
		},
		Store: StoreConfig{
			DataDir:  getEnv("DATA_DIR", "data"),
			DBURL:    getEnv("DB_URL", ""),
			RedisURL: getEnv("REDIS_URL", ""),
		},
		Server: ServerConfig{
			ListenAddr:  getEnv("LISTEN_ADDR", ":3003"),
			MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		},
		Pipeline: PipelineConfig{
			Workers:   getEnvInt("WORKERS", 4),
			QueueSize: getEnvInt("QUEUE_SIZE", 64),
		},
		Policy: PolicyConfig{
			WalletsFile: getEnv("WALLETS_FILE", "wallets.yaml"),
		},
		Tracing: TracingConfig{
			Endpoint: getEnv("OTEL_EXPORTER_ENDPOINT", ""),
			Insecure: getEnv("OTEL_EXPORTER_INSECURE", "true") == "true",
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	gateways := getEnv("IPFS_GATEWAYS", "https://ipfs.io/ipfs/,https://cloudflare-ipfs.com/ipfs/,https://gateway.pinata.cloud/ipfs/")
	for _, base := range strings.Split(gateways, ",") {
		base = strings.TrimSpace(base)
		if base == "" {
			continue
		}
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		cfg.Gateways.IPFSBases = append(cfg.Gateways.IPFSBases, base)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.Telegram.ChannelID == "" {
		return fmt.Errorf("TELEGRAM_CHANNEL_ID is required")
	}
	if c.Helius.APIKey == "" {
		return fmt.Errorf("HELIUS_API_KEY is required")
	}
	if len(c.Gateways.IPFSBases) == 0 {
		return fmt.Errorf("IPFS_GATEWAYS must name at least one gateway")
	}
	if c.Notables.RequiredCount < 0 {
		return fmt.Errorf("REQUIRED_NOTABLE_COUNT must not be negative")
	}
	return nil
}

// WalletsFile is the on-disk shape of the wallet allow-list: address -> label.
type WalletsFile struct {
	Wallets map[string]string `yaml:"wallets"`
}

// LoadWallets reads the wallet allow-list from a YAML file. Only mints whose
// fee payer appears in this set are processed.
func LoadWallets(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wallets file: %w", err)
	}
	var wf WalletsFile
	if err := yaml.Unmarshal(raw, &wf); err != nil {
		return nil, fmt.Errorf("parse wallets file: %w", err)
	}
	if len(wf.Wallets) == 0 {
		return nil, fmt.Errorf("wallets file %s lists no wallets", path)
	}
	return wf.Wallets, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
