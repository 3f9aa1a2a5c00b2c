package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	Storage StorageConfig `mapstructure:"storage"`
	Polling PollingConfig `mapstructure:"polling"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
	Server  ServerConfig  `mapstructure:"server"`
	UI      UIConfig      `mapstructure:"ui"`
}

type BackendConfig struct {
	URL       string  `mapstructure:"url"`
	Token     string  `mapstructure:"token"`
	Timeout   string  `mapstructure:"timeout"`
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

type StorageConfig struct {
	Path     string         `mapstructure:"path"`
	Memgraph MemgraphConfig `mapstructure:"memgraph"`
}

type MemgraphConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// PollingConfig holds per-page refresh intervals in Go duration format.
type PollingConfig struct {
	Dashboard    string `mapstructure:"dashboard"`
	Alerts       string `mapstructure:"alerts"`
	Logs         string `mapstructure:"logs"`
	Assets       string `mapstructure:"assets"`
	Discovery    string `mapstructure:"discovery"`
	Analytics    string `mapstructure:"analytics"`
	Remediation  string `mapstructure:"remediation"`
	Anomalies    string `mapstructure:"anomalies"`
	Agent        string `mapstructure:"agent"`
	Device       string `mapstructure:"device"`
	Integrations string `mapstructure:"integrations"`
	Settings     string `mapstructure:"settings"`
}

type AlertsConfig struct {
	WarningThreshold  float64       `mapstructure:"warning_threshold"`
	CriticalThreshold float64       `mapstructure:"critical_threshold"`
	HistorySize       int           `mapstructure:"history_size"`
	Webhook           WebhookConfig `mapstructure:"webhook"`
	Stdout            StdoutConfig  `mapstructure:"stdout"`
}

type WebhookConfig struct {
	Enabled     bool              `mapstructure:"enabled"`
	URL         string            `mapstructure:"url"`
	Headers     map[string]string `mapstructure:"headers"`
	MinSeverity string            `mapstructure:"min_severity"` // "warning" (all) or "critical"
}

type StdoutConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type ServerConfig struct {
	Listen     string `mapstructure:"listen"`
	ReadOnly   bool   `mapstructure:"read_only"`
	APIToken   string `mapstructure:"api_token"`
	CORSOrigin string `mapstructure:"cors_origin"`
	ProxyAPI   bool   `mapstructure:"proxy_api"`
}

type UIConfig struct {
	DefaultTheme string `mapstructure:"default_theme"`
	ActionsFile  string `mapstructure:"actions_file"`
	LogLimit     int    `mapstructure:"log_limit"`
	AuditLimit   int    `mapstructure:"audit_limit"`
}

// Load reads the configuration from file and environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".acp"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("acp")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("ACP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.expandEnv()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.url", "http://localhost:8000")
	v.SetDefault("backend.timeout", "10s")
	v.SetDefault("backend.rate_limit", 20.0)
	v.SetDefault("backend.rate_burst", 40)
	v.SetDefault("storage.path", "./data/acp.db")
	v.SetDefault("storage.memgraph.enabled", false)
	v.SetDefault("storage.memgraph.uri", "bolt://localhost:7687")
	v.SetDefault("polling.dashboard", "5s")
	v.SetDefault("polling.alerts", "5s")
	v.SetDefault("polling.logs", "5s")
	v.SetDefault("polling.assets", "5s")
	v.SetDefault("polling.discovery", "15s")
	v.SetDefault("polling.analytics", "15s")
	v.SetDefault("polling.remediation", "5s")
	v.SetDefault("polling.anomalies", "5s")
	v.SetDefault("polling.agent", "5s")
	v.SetDefault("polling.device", "10s")
	v.SetDefault("polling.integrations", "15s")
	v.SetDefault("polling.settings", "15s")
	v.SetDefault("alerts.warning_threshold", 70.0)
	v.SetDefault("alerts.critical_threshold", 90.0)
	v.SetDefault("alerts.history_size", 10)
	v.SetDefault("alerts.stdout.enabled", true)
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_only", false)
	v.SetDefault("server.proxy_api", true)
	v.SetDefault("ui.default_theme", "dark")
	v.SetDefault("ui.log_limit", 50)
	v.SetDefault("ui.audit_limit", 20)
}

// expandEnv resolves ${VAR} references in secret-bearing fields.
func (c *Config) expandEnv() {
	c.Backend.Token = os.ExpandEnv(c.Backend.Token)
	c.Server.APIToken = os.ExpandEnv(c.Server.APIToken)
	c.Storage.Memgraph.Password = os.ExpandEnv(c.Storage.Memgraph.Password)
	for k, v := range c.Alerts.Webhook.Headers {
		c.Alerts.Webhook.Headers[k] = os.ExpandEnv(v)
	}
}
