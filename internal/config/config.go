package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	// IdleTimeout is how long the server waits for a pong before forcing
	// an unresponsive connection to disconnect.
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	// OfflineGrace lets a dropped transport reconnect without flapping
	// online/offline broadcasts.
	OfflineGrace time.Duration `mapstructure:"offline_grace" yaml:"offline_grace"`
	// SocketRateLimit caps inbound socket commands per connection per
	// minute; zero disables it.
	SocketRateLimit int `mapstructure:"socket_rate_limit" yaml:"socket_rate_limit"`

	// RedisAddr enables the cross-process fan-out bridge when set.
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "orgchat.db",
		JWTSecret:         "",
		JWTIssuer:         "orgchat",
		JWTAudience:       "orgchat-clients",
		JWTTTL:            24 * time.Hour,
		IdleTimeout:       60 * time.Second,
		PingInterval:      30 * time.Second,
		OfflineGrace:      2 * time.Minute,
		SocketRateLimit:   120,
		LogLevel:          "info",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.JWTIssuer != "" {
		c.JWTIssuer = other.JWTIssuer
	}
	if other.JWTAudience != "" {
		c.JWTAudience = other.JWTAudience
	}
	if other.JWTTTL != 0 {
		c.JWTTTL = other.JWTTTL
	}
	if other.IdleTimeout != 0 {
		c.IdleTimeout = other.IdleTimeout
	}
	if other.PingInterval != 0 {
		c.PingInterval = other.PingInterval
	}
	if other.OfflineGrace != 0 {
		c.OfflineGrace = other.OfflineGrace
	}
	if other.SocketRateLimit != 0 {
		c.SocketRateLimit = other.SocketRateLimit
	}
	if other.RedisAddr != "" {
		c.RedisAddr = other.RedisAddr
	}
	if other.RedisPassword != "" {
		c.RedisPassword = other.RedisPassword
	}
	if other.RedisDB != 0 {
		c.RedisDB = other.RedisDB
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}
