package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"protocolo/client/es"
	"protocolo/domain/protocol"
	"protocolo/domain/sla"
	"protocolo/infra/tracing"
	"protocolo/persistence"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

const (
	BackendGorm   = "gorm"
	BackendRedis  = "redis"
	BackendMemory = "memory"

	WorkflowSourceEmbedded = "embedded"
	WorkflowSourceDir      = "dir"
	WorkflowSourceDB       = "db"
)

type Config struct {
	HTTP      HTTPConfig                 `toml:"http"`
	Log       LogConfig                  `toml:"log"`
	Storage   StorageConfig              `toml:"storage"`
	Database  persistence.DatabaseConfig `toml:"database"`
	Redis     protocol.RedisConfig       `toml:"redis"`
	Workflows WorkflowsConfig            `toml:"workflows"`
	SLA       sla.Config                 `toml:"sla"`
	Protocol  ProtocolConfig             `toml:"protocol"`
	Search    SearchConfig               `toml:"search"`
	Tracing   tracing.Config             `toml:"tracing"`
}

type HTTPConfig struct {
	Addr                   string `toml:"addr" validate:"required"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	Format string `toml:"format" validate:"omitempty,oneof=json text"`
	SQL    bool   `toml:"sql"`
}

type StorageConfig struct {
	Backend string `toml:"backend" validate:"required,oneof=gorm redis memory"`
}

type WorkflowsConfig struct {
	Source          string   `toml:"source" validate:"required,oneof=embedded dir db"`
	Dir             string   `toml:"dir" validate:"required_if=Source dir"`
	CacheTTLSeconds int      `toml:"cache_ttl_seconds" validate:"gte=0"`
	Preload         []string `toml:"preload"`
}

type ProtocolConfig struct {
	ReopenEnabled   bool `toml:"reopen_enabled"`
	ConflictRetries int  `toml:"conflict_retries" validate:"gte=0,lte=10"`
	CooldownHours   int  `toml:"cooldown_hours" validate:"gte=0"`
}

type SearchConfig struct {
	Enabled      bool     `toml:"enabled"`
	Addresses    []string `toml:"addresses"`
	Debug        bool     `toml:"debug"`
	SyncSchedule string   `toml:"sync_schedule"`
}

func Default() *Config {
	return &Config{
		HTTP:      HTTPConfig{Addr: ":8080", ShutdownTimeoutSeconds: 3},
		Log:       LogConfig{Level: "info"},
		Storage:   StorageConfig{Backend: BackendGorm},
		Database:  persistence.DatabaseConfig{DriverType: "sqlite3", DriverArgs: "protocolo.db"},
		Redis:     protocol.RedisConfig{Addr: "127.0.0.1:6379", Prefix: "protocolo"},
		Workflows: WorkflowsConfig{Source: WorkflowSourceEmbedded, CacheTTLSeconds: 300},
		SLA:       sla.Config{TimeZone: "America/Sao_Paulo", DayStrategy: sla.StrategyCalendar, DueSoonHours: 24},
		Protocol:  ProtocolConfig{CooldownHours: 24},
		Tracing:   tracing.Config{ServiceName: "protocolo"},
	}
}

var validate = validator.New()

// Load reads file over the defaults when file is not empty, then applies environment overrides.
func Load(file string) (*Config, error) {
	c := Default()
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		if err := decode(data, c); err != nil {
			return nil, fmt.Errorf("config %s: %w", file, err)
		}
	}
	if err := applyEnv(c, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func decode(data []byte, c *Config) error {
	d := toml.NewDecoder(bytes.NewReader(data))
	d.DisallowUnknownFields()
	return d.Decode(c)
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := sla.NewCalculator(c.SLA); err != nil {
		return err
	}
	if c.Workflows.Source == WorkflowSourceDB && c.Storage.Backend != BackendGorm {
		return errors.New("workflow source db requires the gorm storage backend")
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv DB_DRIVER, DB_ARGS, HTTP_ADDR, STORAGE_BACKEND, REDIS_ADDR, REDIS_PASSWORD, REDIS_DB,
// WORKFLOW_SOURCE, WORKFLOW_DIR, SLA_TIME_ZONE, LOG_LEVEL, LOG_FORMAT, REOPEN_ENABLED, SEARCH_ENABLED, ELASTICSEARCH_URL
func applyEnv(c *Config, lookup lookupFunc) error {
	str := func(key string, target *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*target = strings.TrimSpace(v)
		}
	}
	var errs []string
	boolean := func(key string, target *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, key+": "+err.Error())
				return
			}
			*target = b
		}
	}

	str("DB_DRIVER", &c.Database.DriverType)
	str("DB_ARGS", &c.Database.DriverArgs)
	str("HTTP_ADDR", &c.HTTP.Addr)
	str("STORAGE_BACKEND", &c.Storage.Backend)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	if v, ok := lookup("REDIS_DB"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, "REDIS_DB: "+err.Error())
		} else {
			c.Redis.DB = n
		}
	}
	str("WORKFLOW_SOURCE", &c.Workflows.Source)
	str("WORKFLOW_DIR", &c.Workflows.Dir)
	str("SLA_TIME_ZONE", &c.SLA.TimeZone)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	boolean("REOPEN_ENABLED", &c.Protocol.ReopenEnabled)
	boolean("SEARCH_ENABLED", &c.Search.Enabled)
	if v, ok := lookup("ELASTICSEARCH_URL"); ok && v != "" {
		c.Search.Addresses = strings.Split(v, ",")
	}
	if len(errs) > 0 {
		return errors.New("invalid environment: " + strings.Join(errs, "; "))
	}
	return nil
}

func (p ProtocolConfig) Options() protocol.Options {
	return protocol.Options{
		ReopenEnabled:   p.ReopenEnabled,
		ConflictRetries: p.ConflictRetries,
		Escalation:      protocol.EscalationPolicy{Cooldown: time.Duration(p.CooldownHours) * time.Hour},
	}
}

func (w WorkflowsConfig) CacheTTL() time.Duration {
	return time.Duration(w.CacheTTLSeconds) * time.Second
}

func (s SearchConfig) Client() es.Config {
	return es.Config{Addresses: s.Addresses, Debug: s.Debug}
}
