package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"time"
)

// BotParams describes one computer-controlled seat profile.
type BotParams struct {
	Name       string `json:"name"`
	DelayMinMS int    `json:"delay_min_ms"`
	DelayMaxMS int    `json:"delay_max_ms"`
}

// Config holds all configurable relay and game parameters.
type Config struct {
	WSPort        int `json:"ws_port"`
	StepDelayMS   int `json:"step_delay_ms"`
	MaxPlayers    int `json:"max_players"`
	MaxNameLength int `json:"max_name_length"`

	// RoomIdleTimeoutSec closes a room once every seat has been disconnected this long.
	RoomIdleTimeoutSec int `json:"room_idle_timeout_sec"`
	// EventLogCapacity is how many sequenced events a room keeps for replay.
	EventLogCapacity int `json:"event_log_capacity"`

	// Bots lists the profiles available for computer seats in pass-and-play.
	Bots []BotParams `json:"bots"`

	DatabaseURL string `json:"-"`
	RedisURL    string `json:"-"`

	// JWTSecret enables HS256 device tokens. JWKSURL enables asymmetric tokens
	// verified against a key set. With neither set, hello tokens are not checked.
	JWTSecret string `json:"-"`
	JWKSURL   string `json:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		WSPort:             8080,
		StepDelayMS:        160,
		MaxPlayers:         8,
		MaxNameLength:      24,
		RoomIdleTimeoutSec: 300,
		EventLogCapacity:   512,
		Bots: []BotParams{
			{Name: "Bacchus", DelayMinMS: 400, DelayMaxMS: 1200},
		},
	}
}

// Load reads configuration from an optional config.json file,
// then applies environment variable overrides. Fields not set
// in either source retain their default values.
func Load() *Config {
	cfg := Defaults()

	if f, err := os.Open("config.json"); err == nil {
		defer f.Close()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			log.Printf("Warning: failed to parse config.json: %v", err)
		}
	}

	overrideInt(&cfg.WSPort, "WS_PORT")
	overrideInt(&cfg.StepDelayMS, "STEP_DELAY_MS")
	overrideInt(&cfg.MaxPlayers, "MAX_PLAYERS")
	overrideInt(&cfg.MaxNameLength, "MAX_NAME_LENGTH")
	overrideInt(&cfg.RoomIdleTimeoutSec, "ROOM_IDLE_TIMEOUT_SEC")
	overrideInt(&cfg.EventLogCapacity, "EVENT_LOG_CAPACITY")
	if len(cfg.Bots) > 0 {
		overrideString(&cfg.Bots[0].Name, "BOT_NAME")
		overrideInt(&cfg.Bots[0].DelayMinMS, "BOT_DELAY_MIN_MS")
		overrideInt(&cfg.Bots[0].DelayMaxMS, "BOT_DELAY_MAX_MS")
	}
	overrideString(&cfg.DatabaseURL, "DATABASE_URL")
	overrideString(&cfg.RedisURL, "REDIS_URL")
	overrideString(&cfg.JWTSecret, "JWT_SECRET")
	overrideString(&cfg.JWKSURL, "JWKS_URL")

	return cfg
}

// StepDelay is StepDelayMS as a duration.
func (c *Config) StepDelay() time.Duration {
	return time.Duration(c.StepDelayMS) * time.Millisecond
}

// RoomIdleTimeout is RoomIdleTimeoutSec as a duration; zero disables it.
func (c *Config) RoomIdleTimeout() time.Duration {
	if c.RoomIdleTimeoutSec <= 0 {
		return 0
	}
	return time.Duration(c.RoomIdleTimeoutSec) * time.Second
}

func overrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*field = n
		} else {
			log.Printf("Warning: invalid value for %s: %q", envKey, val)
		}
	}
}

func overrideString(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}
