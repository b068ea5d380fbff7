// Package config reads the board client settings from the environment.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AndreEgeli/theAtlasBoard/storage"
)

// Config holds every setting of the board client.
type Config struct {
	Debug bool

	StorageConnection string
	Tables            storage.Tables
	ChangeQueue       string
	InitStorage       bool

	RedisConnection string
	ChangeChannel   string
	CacheTTL        time.Duration
	DeduperTTL      time.Duration

	RefreshTimeout time.Duration
	RelayEnabled   bool
	RelayIdle      time.Duration

	UserID     string
	ListenAddr string
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return load(os.LookupEnv)
}

type lookupFunc func(string) (string, bool)

func load(lookup lookupFunc) (Config, error) {
	var errs []error
	cfg := Config{
		Debug:             envBool(lookup, "DEBUG", false, &errs),
		StorageConnection: envString(lookup, "STORAGE_CONNECTION_STRING", ""),
		ChangeQueue:       envString(lookup, "CHANGE_QUEUE", "board-changes"),
		InitStorage:       envBool(lookup, "INIT_STORAGE", false, &errs),
		RedisConnection:   envString(lookup, "REDIS_CONNECTION_STRING", ""),
		ChangeChannel:     envString(lookup, "CHANGE_CHANNEL", "board-changes"),
		CacheTTL:          envDur(lookup, "CACHE_TTL", 5*time.Minute, &errs),
		DeduperTTL:        envDur(lookup, "DEDUPER_TTL", 24*time.Hour, &errs),
		RefreshTimeout:    envDur(lookup, "REFRESH_TIMEOUT", 10*time.Second, &errs),
		RelayEnabled:      envBool(lookup, "RELAY_ENABLED", true, &errs),
		RelayIdle:         envDur(lookup, "RELAY_IDLE", time.Second, &errs),
		UserID:            envString(lookup, "USER_ID", ""),
		ListenAddr:        ":" + strconv.Itoa(envInt(lookup, "FUNCTIONS_CUSTOMHANDLER_PORT", 8080, &errs)),
	}

	def := storage.DefaultTables()
	cfg.Tables = storage.Tables{
		Boards:        envString(lookup, "BOARDS_TABLE", def.Boards),
		Tasks:         envString(lookup, "TASKS_TABLE", def.Tasks),
		Todos:         envString(lookup, "TODOS_TABLE", def.Todos),
		Tags:          envString(lookup, "TAGS_TABLE", def.Tags),
		TaskTags:      envString(lookup, "TASK_TAGS_TABLE", def.TaskTags),
		TaskAssignees: envString(lookup, "TASK_ASSIGNEES_TABLE", def.TaskAssignees),
		Users:         envString(lookup, "USERS_TABLE", def.Users),
	}

	if cfg.StorageConnection == "" {
		errs = append(errs, errors.New("missing storage config"))
	}
	if cfg.RedisConnection == "" {
		errs = append(errs, errors.New("missing redis config"))
	}
	if cfg.UserID == "" {
		errs = append(errs, errors.New("missing USER_ID"))
	}
	if cfg.DeduperTTL <= 0 {
		errs = append(errs, errors.New("invalid DEDUPER_TTL: must be greater than zero"))
	}
	if cfg.RelayIdle <= 0 {
		errs = append(errs, errors.New("invalid RELAY_IDLE: must be greater than zero"))
	}
	return cfg, errors.Join(errs...)
}

func envString(lookup lookupFunc, name, def string) string {
	if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func envBool(lookup lookupFunc, name string, def bool, errs *[]error) bool {
	v, ok := lookup(name)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", name, err))
		return def
	}
	return b
}

func envInt(lookup lookupFunc, name string, def int, errs *[]error) int {
	v, ok := lookup(name)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", name, err))
		return def
	}
	if n <= 0 {
		*errs = append(*errs, fmt.Errorf("invalid %s: must be greater than zero", name))
		return def
	}
	return n
}

// envDur parses a duration. Zero is accepted and disables whatever the
// setting bounds.
func envDur(lookup lookupFunc, name string, def time.Duration, errs *[]error) time.Duration {
	v, ok := lookup(name)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", name, err))
		return def
	}
	if d < 0 {
		*errs = append(*errs, fmt.Errorf("invalid %s: must not be negative", name))
		return def
	}
	return d
}

// RedisOptions parses conn as a redis URL, falling back to the
// "host:port,password=...,ssl=true" form of Azure connection strings.
func RedisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
