package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures environment driven configuration values for the intake
// service.
type Config struct {
	HTTPPort             int
	SQLiteDSN            string
	SessionTTL           time.Duration
	Timezone             string
	BusinessHoursStart   string
	BusinessHoursEnd     string
	SlotStepMinutes      int
	Holidays             []string
	AMQPURL              string
	AMQPQueue            string
	AvailabilityCacheTTL time.Duration
}

// Load reads a .env file when present, then parses configuration values from
// the process environment.
func Load() (Config, error) {
	// Missing .env is fine, real deployments set the environment directly.
	_ = godotenv.Load()
	return loadFromEnv()
}

func loadFromEnv() (Config, error) {
	cfg := Config{
		HTTPPort:             8080,
		SQLiteDSN:            "file:intake.db?_pragma=foreign_keys(1)",
		SessionTTL:           24 * time.Hour,
		Timezone:             "UTC",
		BusinessHoursStart:   "08:00",
		BusinessHoursEnd:     "17:00",
		SlotStepMinutes:      30,
		AMQPQueue:            "intake.request-events",
		AvailabilityCacheTTL: time.Minute,
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("INTAKE_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "INTAKE_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("INTAKE_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if ttlValue := strings.TrimSpace(os.Getenv("INTAKE_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "INTAKE_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if tz := strings.TrimSpace(os.Getenv("INTAKE_TIMEZONE")); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			invalid = append(invalid, "INTAKE_TIMEZONE")
		} else {
			cfg.Timezone = tz
		}
	}

	if start := strings.TrimSpace(os.Getenv("INTAKE_HOURS_START")); start != "" {
		if !validClockTime(start) {
			invalid = append(invalid, "INTAKE_HOURS_START")
		} else {
			cfg.BusinessHoursStart = start
		}
	}

	if end := strings.TrimSpace(os.Getenv("INTAKE_HOURS_END")); end != "" {
		if !validClockTime(end) {
			invalid = append(invalid, "INTAKE_HOURS_END")
		} else {
			cfg.BusinessHoursEnd = end
		}
	}

	if stepValue := strings.TrimSpace(os.Getenv("INTAKE_SLOT_STEP_MINUTES")); stepValue != "" {
		step, err := strconv.Atoi(stepValue)
		if err != nil || step <= 0 {
			invalid = append(invalid, "INTAKE_SLOT_STEP_MINUTES")
		} else {
			cfg.SlotStepMinutes = step
		}
	}

	if holidaysValue := strings.TrimSpace(os.Getenv("INTAKE_HOLIDAYS")); holidaysValue != "" {
		holidays, ok := parseHolidays(holidaysValue)
		if !ok {
			invalid = append(invalid, "INTAKE_HOLIDAYS")
		} else {
			cfg.Holidays = holidays
		}
	}

	if url := strings.TrimSpace(os.Getenv("INTAKE_AMQP_URL")); url != "" {
		cfg.AMQPURL = url
	}

	if queue := strings.TrimSpace(os.Getenv("INTAKE_AMQP_QUEUE")); queue != "" {
		cfg.AMQPQueue = queue
	}

	if cacheValue := strings.TrimSpace(os.Getenv("INTAKE_AVAILABILITY_CACHE_TTL")); cacheValue != "" {
		ttl, err := time.ParseDuration(cacheValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "INTAKE_AVAILABILITY_CACHE_TTL")
		} else {
			cfg.AvailabilityCacheTTL = ttl
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Location resolves the configured timezone. Load already validated it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func validClockTime(value string) bool {
	_, err := time.Parse("15:04", value)
	return err == nil
}

func parseHolidays(value string) ([]string, bool) {
	parts := strings.Split(value, ",")
	holidays := make([]string, 0, len(parts))
	for _, part := range parts {
		day := strings.TrimSpace(part)
		if day == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", day); err != nil {
			return nil, false
		}
		holidays = append(holidays, day)
	}
	return holidays, true
}
