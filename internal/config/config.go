package config

import (
	"flag"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env               string `yaml:"env" env:"APP_ENV" env-default:"development"`
	PostgresConfig    `yaml:"database"`
	JWTConfig         `yaml:"jwt"`
	Server            `yaml:"server"`
	GrpcServer        `yaml:"grpc"`
	RateLimiterConfig `yaml:"rate_limiter"`
	RedisConfig       `yaml:"redis"`
	PolicyConfig      `yaml:"policy"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type RateLimiterConfig struct {
	Limit  int           `yaml:"limit" env:"RATE_LIMITER_LIMIT" env-default:"100"`
	Window time.Duration `yaml:"window" env:"RATE_LIMITER_WINDOW" env-default:"1m"`
}

type Server struct {
	Port        int           `yaml:"port" env:"SERVER_PORT" env-default:"8000"`
	Host        string        `yaml:"host" env:"SERVER_HOST" env-default:"localhost"`
	Timeout     time.Duration `yaml:"timeout" env:"SERVER_TIMEOUT" env-default:"15s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
}

type GrpcServer struct {
	Host string `yaml:"host" env:"GRPC_HOST" env-default:"0.0.0.0"`
	Port int    `yaml:"port" env:"GRPC_PORT" env-default:"50052"`
}

type JWTConfig struct {
	Secret     string        `yaml:"secret" env:"JWT_SECRET" env-required:"true"`
	Issuer     string        `yaml:"issuer" env:"JWT_ISSUER" env-default:"blog-api"`
	AccessTTL  time.Duration `yaml:"access_ttl" env:"JWT_ACCESS_TTL" env-default:"5m"`
	RefreshTTL time.Duration `yaml:"refresh_ttl" env:"JWT_REFRESH_TTL" env-default:"24h"`
}

// PolicyConfig toggles write restrictions. With OwnerOnlyWrites disabled any
// authenticated user may update or delete any post or comment.
type PolicyConfig struct {
	OwnerOnlyWrites bool `yaml:"owner_only_writes" env:"POLICY_OWNER_ONLY_WRITES" env-default:"false"`
}

// postgres config
type PostgresConfig struct {
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	Username string `yaml:"username" env:"DB_USER" env-default:"postgres"`
	Password string `yaml:"password" env:"DB_PASSWORD" env-default:"postgres"`
	Name     string `yaml:"name" env:"DB_NAME" env-default:"blog"`
	MaxConns int32  `yaml:"max_conns" env:"DB_MAX_CONNS" env-default:"10"`
}

// DSN builds a postgres URL; credentials are escaped.
func (cfg *PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// -------------Get Config Path from Flag or Env --------------
var configPath string

func init() {
	flag.StringVar(&configPath, "config", "", "Path to the config file")
}

func fetchConfigPath() string {
	var res string

	if !flag.Parsed() {
		flag.Parse()
	}

	res = configPath

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		panic("config path is not provided")
	}

	return res
}

func LoadConfig() Config {
	return LoadConfigFromPath(fetchConfigPath())
}

func LoadConfigFromPath(path string) Config {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		panic(err)
	}
	return cfg
}
