package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, falling back to system environment variables")
	}
}

type Config struct {
	DiscordToken  string `env:"DISCORD_TOKEN,required,notEmpty"`
	CommandPrefix string `env:"COMMAND_PREFIX" envDefault:"/"`
	BotName       string `env:"BOT_NAME" envDefault:"DJ_Citron"`
	StoragePath   string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	DownloadDir   string `env:"DOWNLOAD_DIR" envDefault:"downloads"`

	// JSON of a Google service account (or OAuth client) allowed to read the Drive.
	CloudCredentials string `env:"CLOUD_CREDENTIALS_SECRET"`
	MySQLDSN         string `env:"MYSQL_DSN"`
	ValkeyAddr       string `env:"VALKEY_ADDR"`
	ImageSearchURL   string `env:"IMAGE_SEARCH_URL" envDefault:"http://images.google.com/images"`

	CacheTTL            time.Duration `env:"CACHE_TTL" envDefault:"10m"`
	VoiceConnectTimeout time.Duration `env:"VOICE_CONNECT_TIMEOUT" envDefault:"15s"`
	DownloadTimeout     time.Duration `env:"DOWNLOAD_TIMEOUT" envDefault:"5m"`
	CommandCooldown     time.Duration `env:"COMMAND_COOLDOWN" envDefault:"2s"`

	AudioBitrate int `env:"AUDIO_BITRATE" envDefault:"128"`
	AudioVolume  int `env:"AUDIO_VOLUME" envDefault:"256"`

	Log LogConfig
}

type LogConfig struct {
	Dir   string `env:"LOG_DIR"`
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// HelloConfig configures the standalone hello server.
type HelloConfig struct {
	Addr string `env:"HELLO_ADDR" envDefault:":8080"`
	Log  LogConfig
}

// Load reads the bot configuration from the environment.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.AudioBitrate < 8 || cfg.AudioBitrate > 512 {
		return nil, fmt.Errorf("AUDIO_BITRATE must be between 8 and 512, got %d", cfg.AudioBitrate)
	}
	return &cfg, nil
}

// LoadHello reads the hello server configuration from the environment.
func LoadHello() (*HelloConfig, error) {
	cfg, err := env.ParseAs[HelloConfig]()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
