package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"img-chaos/internal/config"
)

const envPrefix = "IMGCHAOS"

type serverConfig struct {
	Addr              string        `mapstructure:"addr" json:"addr"`
	StorePath         string        `mapstructure:"storePath" json:"store_path"`
	AllowedOrigins    []string      `mapstructure:"allowedOrigins" json:"allowed_origins"`
	ReadTimeout       time.Duration `mapstructure:"readTimeout" json:"read_timeout"`
	ReadHeaderTimeout time.Duration `mapstructure:"readHeaderTimeout" json:"read_header_timeout"`
	WriteTimeout      time.Duration `mapstructure:"writeTimeout" json:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idleTimeout" json:"idle_timeout"`
	MaxUploadBytes    int64         `mapstructure:"maxUploadBytes" json:"max_upload_bytes"`
}

type logConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

type appConfig struct {
	Cipher  config.Cipher `mapstructure:"cipher" json:"cipher"`
	Workers int           `mapstructure:"workers" json:"workers"`
	Server  serverConfig  `mapstructure:"server" json:"server"`
	Log     logConfig     `mapstructure:"log" json:"log"`
}

func setDefaults(v *viper.Viper) {
	d := config.Default()
	v.SetDefault("cipher.gridSize", d.GridSize)
	v.SetDefault("cipher.fractalOrder", d.FractalOrder)
	v.SetDefault("cipher.scramble", string(d.Scramble))
	v.SetDefault("cipher.keying", string(d.Keying))
	v.SetDefault("cipher.keystream", string(d.Keystream))
	v.SetDefault("cipher.chaos.a", d.Chaos.A)
	v.SetDefault("cipher.chaos.b", d.Chaos.B)
	v.SetDefault("cipher.chaos.transient", d.Chaos.Transient)
	v.SetDefault("cipher.chaos.epsilon", d.Chaos.Epsilon)
	v.SetDefault("cipher.chaos.combine", string(d.Chaos.Combine))
	v.SetDefault("workers", 1)

	v.SetDefault("server.addr", ":4040")
	v.SetDefault("server.storePath", "store.json")
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.readHeaderTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 120*time.Second)
	v.SetDefault("server.idleTimeout", 60*time.Second)
	v.SetDefault("server.maxUploadBytes", int64(32<<20))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// loadConfig merges defaults, the optional config file, IMGCHAOS_* variables
// (also read from .env) and any flags already bound to v.
func loadConfig(v *viper.Viper, path string) (appConfig, error) {
	_ = godotenv.Load(".env")

	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return appConfig{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg appConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return appConfig{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Cipher.Validate(); err != nil {
		return appConfig{}, err
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return cfg, nil
}
