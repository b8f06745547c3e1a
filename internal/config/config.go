package config

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config is the shuttle's process configuration. Everything is read from the
// environment (optionally preloaded from a .env file) into a flat struct
// processed by go-envconfig.
type Config struct {
	HubID       string `env:"HUB_ID,required"`
	HubGRPCAddr string `env:"HUB_GRPC_ADDR,required"`
	HubEventTypes string `env:"HUB_EVENT_TYPES"` // comma-separated override of the default subscription filter

	DBUser     string `env:"DB_USER,required"`
	DBPassword string `env:"DB_PASSWORD,required"`
	DBName     string `env:"DB_NAME,required"`
	DBHost     string `env:"DB_HOST,required"`
	DBPort     string `env:"DB_PORT,required"`

	RedisAddr     string `env:"REDIS_ADDR,required"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`

	ControlPlanePort int `env:"CONTROL_PLANE_PORT,default=3001"`
}

// New loads configuration the way comunifi-relay does: an optional .env file
// followed by environment-variable processing.
func New(ctx context.Context, envpath string) (*Config, error) {
	if envpath != "" {
		log.Default().Println("loading env from file: ", envpath)
		if err := godotenv.Load(envpath); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := envconfig.Process(ctx, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
