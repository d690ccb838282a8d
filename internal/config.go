package internal

import (
	"chat-relay/server"
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = validator.New()

type Config struct {
	ListenAddr        string        `env:"LISTEN_ADDR,default=0.0.0.0:6161" validate:"required,hostname_port"`
	BusCapacity       int           `env:"BUS_CAPACITY,default=50" validate:"gt=0"`
	BanDuration       time.Duration `env:"BAN_DURATION,default=10s" validate:"gt=0"`
	RateCapacity      int           `env:"RATE_CAPACITY,default=10" validate:"gt=0"`
	RateRefill        int           `env:"RATE_REFILL,default=5" validate:"gt=0"`
	RateInterval      time.Duration `env:"RATE_INTERVAL,default=1s" validate:"gt=0"`
	MaxLineBytes      int           `env:"MAX_LINE_BYTES,default=4096" validate:"gte=64"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT,default=10s" validate:"gte=0"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO" validate:"required"`
	LogEvents         bool          `env:"LOG_EVENTS,default=true"`
	LogColours        bool          `env:"LOG_COLOURS,default=true"`
	DebugAddr         string        `env:"DEBUG_ADDR" validate:"omitempty,hostname_port"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=30s" validate:"gt=0"`
	CensoredWords     string        `env:"CENSORED_WORDS"`
	CensorChar        string        `env:"CENSOR_CHAR,default=*"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
}

// LoadConfig reads the relay configuration from the environment and validates it.
func LoadConfig() (Config, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if _, err := CharacterRune(config.CensorChar); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Settings extracts the per-session limits.
func (c Config) Settings() server.Settings {
	return server.Settings{
		BucketCapacity: c.RateCapacity,
		BucketRefill:   c.RateRefill,
		BucketInterval: c.RateInterval,
		BanDuration:    c.BanDuration,
		MaxLineBytes:   c.MaxLineBytes,
		WriteTimeout:   c.WriteTimeout,
	}
}

// Words splits the comma-separated moderation dictionary, dropping blanks.
func (c Config) Words() []string {
	words := lo.Map(strings.Split(c.CensoredWords, ","), func(word string, _ int) string {
		return strings.TrimSpace(word)
	})
	return lo.Compact(words)
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CENSOR_CHAR must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
