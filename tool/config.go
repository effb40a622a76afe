package tool

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigName = "config.yaml"
	EnvPrefix         = "SYNCCLIPBOARD_"
)

type TLSConfig struct {
	Cert       string `yaml:"cert"`
	Key        string `yaml:"key"`
	SelfSigned bool   `yaml:"self_signed"`
}

type ServerConfig struct {
	Enabled       bool      `yaml:"enabled"`
	Host          string    `yaml:"host"`
	Port          int       `yaml:"port"`
	WebDAVEnabled bool      `yaml:"webdav_enabled"`
	UploadDir     string    `yaml:"upload_dir"`
	TLS           TLSConfig `yaml:"tls"`
}

type ClientConfig struct {
	Enabled    bool   `yaml:"enabled"`
	RemoteHost string `yaml:"remote_host"`
	RemotePort int    `yaml:"remote_port"`
	Scheme     string `yaml:"scheme"`
}

type AuthConfig struct {
	Token           string `yaml:"token"`
	EncryptPassword string `yaml:"encrypt_password"`
}

type HistoryConfig struct {
	MaxCount int    `yaml:"max_count"`
	DBPath   string `yaml:"db_path"`
}

type GeneralConfig struct {
	DeviceName string `yaml:"device_name"`
	DeviceID   string `yaml:"device_id"`
}

type DiscoveryConfig struct {
	Enabled          bool   `yaml:"enabled"`
	MulticastAddress string `yaml:"multicast_address"`
	MulticastPort    int    `yaml:"multicast_port"`
	MDNS             bool   `yaml:"mdns"`
}

type NotifyConfig struct {
	URL     string            `yaml:"url"`
	Method  string            `yaml:"method"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`
}

// AppConfig is built once at startup and handed to each component.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Client    ClientConfig    `yaml:"client"`
	Auth      AuthConfig      `yaml:"auth"`
	History   HistoryConfig   `yaml:"history"`
	General   GeneralConfig   `yaml:"general"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Notify    NotifyConfig    `yaml:"notify"`
}

func DefaultConfig() AppConfig {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "Unknown Device"
	}
	return AppConfig{
		Server: ServerConfig{
			Enabled:   true,
			Host:      "0.0.0.0",
			Port:      5033,
			UploadDir: "uploads",
		},
		Client: ClientConfig{
			Enabled:    true,
			RemoteHost: "127.0.0.1",
			RemotePort: 5033,
			Scheme:     "http",
		},
		History: HistoryConfig{
			MaxCount: 100,
			DBPath:   "history.db",
		},
		General: GeneralConfig{
			DeviceName: hostname,
			DeviceID:   uuid.NewString(),
		},
		Discovery: DiscoveryConfig{
			Enabled:          true,
			MulticastAddress: "224.0.0.168",
			MulticastPort:    5354,
			MDNS:             true,
		},
	}
}

// DefaultConfigPath is config.yaml next to the executable.
func DefaultConfigPath() string {
	dir := GetRunPositionDir()
	if dir == "" {
		return DefaultConfigName
	}
	return filepath.Join(dir, DefaultConfigName)
}

// LoadConfig layers defaults, the YAML file and SYNCCLIPBOARD_* variables.
// A missing file is created from the defaults so the device id is stable.
func LoadConfig(path string) (AppConfig, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := SaveConfig(path, cfg); err != nil {
			DefaultLogger.Warnf("failed to write default config to %s: %v", path, err)
		} else {
			DefaultLogger.Infof("default config written to %s", path)
		}
	case err != nil:
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		generatedID := cfg.General.DeviceID
		cfg.General.DeviceID = ""
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if cfg.General.DeviceID == "" {
			cfg.General.DeviceID = generatedID
			if err := SaveConfig(path, cfg); err != nil {
				DefaultLogger.Warnf("failed to persist generated device id: %v", err)
			}
		}
	}

	overrideFromEnv(&cfg, os.LookupEnv)
	return cfg, nil
}

func SaveConfig(path string, cfg AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o600)
}

type lookupFunc func(key string) (string, bool)

func envString(lookup lookupFunc, key string, dst *string) {
	if val, ok := lookup(EnvPrefix + key); ok && val != "" {
		*dst = val
	}
}

func envInt(lookup lookupFunc, key string, dst *int) {
	if val, ok := lookup(EnvPrefix + key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			*dst = n
		} else {
			DefaultLogger.Warnf("ignoring %s%s=%q: %v", EnvPrefix, key, val, err)
		}
	}
}

func envBool(lookup lookupFunc, key string, dst *bool) {
	if val, ok := lookup(EnvPrefix + key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			*dst = b
		} else {
			DefaultLogger.Warnf("ignoring %s%s=%q: %v", EnvPrefix, key, val, err)
		}
	}
}

func envDuration(lookup lookupFunc, key string, dst *time.Duration) {
	if val, ok := lookup(EnvPrefix + key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(val)); err == nil {
			*dst = d
		} else {
			DefaultLogger.Warnf("ignoring %s%s=%q: %v", EnvPrefix, key, val, err)
		}
	}
}

// overrideFromEnv overrides configuration values from environment variables
func overrideFromEnv(cfg *AppConfig, lookup lookupFunc) {
	envBool(lookup, "SERVER_ENABLED", &cfg.Server.Enabled)
	envString(lookup, "SERVER_HOST", &cfg.Server.Host)
	envInt(lookup, "SERVER_PORT", &cfg.Server.Port)
	envBool(lookup, "SERVER_WEBDAV_ENABLED", &cfg.Server.WebDAVEnabled)
	envString(lookup, "SERVER_UPLOAD_DIR", &cfg.Server.UploadDir)
	envString(lookup, "SERVER_TLS_CERT", &cfg.Server.TLS.Cert)
	envString(lookup, "SERVER_TLS_KEY", &cfg.Server.TLS.Key)
	envBool(lookup, "SERVER_TLS_SELF_SIGNED", &cfg.Server.TLS.SelfSigned)

	envBool(lookup, "CLIENT_ENABLED", &cfg.Client.Enabled)
	envString(lookup, "CLIENT_REMOTE_HOST", &cfg.Client.RemoteHost)
	envInt(lookup, "CLIENT_REMOTE_PORT", &cfg.Client.RemotePort)
	envString(lookup, "CLIENT_SCHEME", &cfg.Client.Scheme)

	envString(lookup, "AUTH_TOKEN", &cfg.Auth.Token)
	envString(lookup, "AUTH_ENCRYPT_PASSWORD", &cfg.Auth.EncryptPassword)

	envInt(lookup, "HISTORY_MAX_COUNT", &cfg.History.MaxCount)
	envString(lookup, "HISTORY_DB_PATH", &cfg.History.DBPath)

	envString(lookup, "GENERAL_DEVICE_NAME", &cfg.General.DeviceName)
	envString(lookup, "GENERAL_DEVICE_ID", &cfg.General.DeviceID)

	envBool(lookup, "DISCOVERY_ENABLED", &cfg.Discovery.Enabled)
	envString(lookup, "DISCOVERY_MULTICAST_ADDRESS", &cfg.Discovery.MulticastAddress)
	envInt(lookup, "DISCOVERY_MULTICAST_PORT", &cfg.Discovery.MulticastPort)
	envBool(lookup, "DISCOVERY_MDNS", &cfg.Discovery.MDNS)

	envString(lookup, "NOTIFY_URL", &cfg.Notify.URL)
	envString(lookup, "NOTIFY_METHOD", &cfg.Notify.Method)
	envDuration(lookup, "NOTIFY_TIMEOUT", &cfg.Notify.Timeout)
}
