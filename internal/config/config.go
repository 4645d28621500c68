package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	UpstreamURL      string        `mapstructure:"upstream_url"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	SendQueue        int           `mapstructure:"send_queue"`

	ChatKind     string `mapstructure:"chat_kind"`
	TypingKind   string `mapstructure:"typing_kind"`
	IdentityKind string `mapstructure:"identity_kind"`

	TypingIdle       time.Duration `mapstructure:"typing_idle"`
	ReconnectDelay   time.Duration `mapstructure:"reconnect_delay"`
	EntryIdle        time.Duration `mapstructure:"entry_idle"`
	SendRateLimit    int           `mapstructure:"send_rate_limit"`
	SendRateInterval time.Duration `mapstructure:"send_rate_interval"`

	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "watchparty-dev-secret")

	v.SetDefault("upstream_url", "ws://localhost:9000/socket")
	v.SetDefault("handshake_timeout", "10s")
	v.SetDefault("write_timeout", "5s")
	v.SetDefault("send_queue", 32)

	v.SetDefault("chat_kind", "sendMessage")
	v.SetDefault("typing_kind", "setTypingPresence")
	v.SetDefault("identity_kind", "userId")

	v.SetDefault("typing_idle", "2s")
	v.SetDefault("reconnect_delay", "1s")
	v.SetDefault("entry_idle", "10m")
	v.SetDefault("send_rate_limit", 5)
	v.SetDefault("send_rate_interval", "1s")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "watchparty-tui.log")
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default) on top of the
// defaults. WATCHPARTY_* environment variables override both.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)
	v.SetEnvPrefix("WATCHPARTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("static", cfg.StaticPath).
		Str("upstream", cfg.UpstreamURL).
		Msg("config ready")
	return &cfg, nil
}
