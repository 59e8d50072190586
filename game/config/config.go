package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
)

// Directory backends.
const (
	DirectoryMemory = "memory"
	DirectoryFile   = "file"
	DirectoryRedis  = "redis"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the runtime configuration of the server.
type Config struct {
	Host      string
	Port      int
	StaticDir string

	Directory     string
	DirectoryPath string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	SeedUsers     []string

	LoginClaimTTL  time.Duration
	AllowedOrigins []string

	LogLevel  string
	LogFormat string
	Debug     bool

	Ngrok       bool
	NgrokAuth   string
	NgrokDomain string
}

// Default returns the configuration used when no flag or variable is set.
func Default() *Config {
	return &Config{
		Host:          "0.0.0.0",
		Port:          8888,
		StaticDir:     "public",
		Directory:     DirectoryMemory,
		DirectoryPath: "users",
		RedisPrefix:   "gobang:user:",
		LoginClaimTTL: 30 * time.Second,
		LogLevel:      "info",
		LogFormat:     "console",
	}
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks values that flags alone cannot constrain.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}

	switch c.Directory {
	case DirectoryMemory, DirectoryFile:
	case DirectoryRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis directory requires --redis-addr", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown directory %q (want memory, file or redis)", ErrInvalidConfig, c.Directory)
	}

	if c.Directory == DirectoryFile && c.DirectoryPath == "" {
		return fmt.Errorf("%w: file directory requires --directory-path", ErrInvalidConfig)
	}
	if c.LoginClaimTTL <= 0 {
		return fmt.Errorf("%w: login claim ttl must be positive", ErrInvalidConfig)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log level: %v", ErrInvalidConfig, err)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("%w: log format %q (want console or json)", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// NewLogger builds the process logger writing to w.
func (c *Config) NewLogger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if c.Debug {
		level = zerolog.DebugLevel
	}

	if c.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	if c.Debug {
		logger = logger.With().Caller().Logger()
	}
	return logger
}

// Flags binds every field of c to a command-line flag and a GOBANG_*
// environment variable. The ngrok token also honors NGROK_AUTHTOKEN.
func Flags(c *Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "host", Value: c.Host, Usage: "HTTP server host", Sources: env("HOST"), Destination: &c.Host},
		&cli.IntFlag{Name: "port", Value: c.Port, Usage: "HTTP server port", Sources: env("PORT"), Destination: &c.Port},
		&cli.StringFlag{Name: "static-dir", Value: c.StaticDir, Usage: "directory holding the HTML pages", Sources: env("STATIC_DIR"), Destination: &c.StaticDir},

		&cli.StringFlag{Name: "directory", Value: c.Directory, Usage: "user directory backend: memory, file or redis", Sources: env("DIRECTORY"), Destination: &c.Directory},
		&cli.StringFlag{Name: "directory-path", Value: c.DirectoryPath, Usage: "folder of <username>.json files for the file directory", Sources: env("DIRECTORY_PATH"), Destination: &c.DirectoryPath},
		&cli.StringFlag{Name: "redis-addr", Usage: "Redis address for the redis directory", Sources: env("REDIS_ADDR"), Destination: &c.RedisAddr},
		&cli.StringFlag{Name: "redis-password", Usage: "Redis password", Sources: env("REDIS_PASSWORD"), Destination: &c.RedisPassword},
		&cli.IntFlag{Name: "redis-db", Usage: "Redis database number", Sources: env("REDIS_DB"), Destination: &c.RedisDB},
		&cli.StringFlag{Name: "redis-prefix", Value: c.RedisPrefix, Usage: "key prefix of user hashes", Sources: env("REDIS_PREFIX"), Destination: &c.RedisPrefix},
		&cli.StringSliceFlag{Name: "seed-users", Usage: "usernames created in the memory directory at startup (name or name:password)", Sources: env("SEED_USERS"), Destination: &c.SeedUsers},

		&cli.DurationFlag{Name: "login-claim-ttl", Value: c.LoginClaimTTL, Usage: "how long a login holds the identity before the first connection", Sources: env("LOGIN_CLAIM_TTL"), Destination: &c.LoginClaimTTL},
		&cli.StringSliceFlag{Name: "allowed-origins", Usage: "websocket origins to accept (empty accepts any)", Sources: env("ALLOWED_ORIGINS"), Destination: &c.AllowedOrigins},

		&cli.StringFlag{Name: "log-level", Value: c.LogLevel, Usage: "debug, info, warn or error", Sources: env("LOG_LEVEL"), Destination: &c.LogLevel},
		&cli.StringFlag{Name: "log-format", Value: c.LogFormat, Usage: "console or json", Sources: env("LOG_FORMAT"), Destination: &c.LogFormat},
		&cli.BoolFlag{Name: "debug", Usage: "enable debug logging with caller info", Sources: env("DEBUG"), Destination: &c.Debug},

		&cli.BoolFlag{Name: "ngrok", Usage: "expose the server through an ngrok tunnel", Sources: cli.EnvVars("GOBANG_NGROK", "NGROK_ENABLED"), Destination: &c.Ngrok},
		&cli.StringFlag{Name: "ngrok-auth", Usage: "ngrok auth token", Sources: cli.EnvVars("GOBANG_NGROK_AUTH", "NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"), Destination: &c.NgrokAuth},
		&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain", Sources: cli.EnvVars("GOBANG_NGROK_DOMAIN", "NGROK_DOMAIN"), Destination: &c.NgrokDomain},
	}
}

// Seed is one user to create at startup.
type Seed struct {
	Username string
	Password string
}

// Seeds parses SeedUsers entries of the form "name" or "name:password".
func (c *Config) Seeds() []Seed {
	seeds := make([]Seed, 0, len(c.SeedUsers))
	for _, entry := range c.SeedUsers {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, password, _ := strings.Cut(entry, ":")
		seeds = append(seeds, Seed{Username: name, Password: password})
	}
	return seeds
}

func env(name string) cli.ValueSourceChain {
	return cli.EnvVars("GOBANG_" + name)
}

