package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
//
// SUPABASE_URL y SUPABASE_SERVICE_ROLE_KEY no son required a propósito:
// su ausencia se reporta por request (500 en user-sync, degradación en
// whoami) en vez de impedir el arranque.
type Config struct {
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	StoreBackend  string `env:"STORE_BACKEND" envDefault:"supabase"`
	SupabaseURL   string `env:"SUPABASE_URL"`
	SupabaseKey   string `env:"SUPABASE_SERVICE_ROLE_KEY"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// HasSupabaseURL indica si la URL del gateway está configurada.
func (c *Config) HasSupabaseURL() bool { return c.SupabaseURL != "" }

// HasServiceKey indica si la credencial del gateway está configurada.
func (c *Config) HasServiceKey() bool { return c.SupabaseKey != "" }
