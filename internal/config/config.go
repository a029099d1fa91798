package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Lock timings live here rather than as
// package constants so that a deployment can tune contention behaviour
// without a rebuild.
type Config struct {
	Env        string        // application environment (e.g. "dev", "prod")
	Port       string        // HTTP port to listen on
	DBUser     string        // database username
	DBPass     string        // database password (optional)
	DBHost     string        // database host address
	DBPort     string        // database port number
	DBName     string        // database name
	JWTSecret  string        // secret used to sign JWTs
	AccessTTL  time.Duration // access token time-to-live
	BcryptCost int           // bcrypt cost for password hashing

	AMQPURL string // RabbitMQ connection URL (optional; empty disables notifications)

	LockWait  time.Duration // how long a caller blocks trying to acquire a lock
	LockLease time.Duration // lease after which a held lock self-expires

	CalledTimeout     time.Duration // how long a CALLED entry may wait before forced cancellation
	SchedulerInterval time.Duration // how often the timeout scheduler scans
}

// Load reads configuration values from environment variables and returns
// a Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Durations use Go
// duration syntax (e.g. "3s", "5m").
func Load() Config {
	return Config{
		Env:        must("APP_ENV"),
		Port:       must("APP_PORT"),
		DBUser:     must("DB_USER"),
		DBPass:     os.Getenv("DB_PASS"), // empty allowed
		DBHost:     must("DB_HOST"),
		DBPort:     must("DB_PORT"),
		DBName:     must("DB_NAME"),
		JWTSecret:  must("JWT_SECRET"),
		AccessTTL:  envDur("ACCESS_TOKEN_TTL", 30*time.Minute),
		BcryptCost: envInt("BCRYPT_COST", 10),

		AMQPURL: os.Getenv("RABBITMQ_URL"), // empty disables the AMQP notifier

		LockWait:  envDur("LOCK_WAIT", 3*time.Second),
		LockLease: envDur("LOCK_LEASE", 30*time.Second),

		CalledTimeout:     envDur("QUEUE_CALLED_TIMEOUT", 5*time.Minute),
		SchedulerInterval: envDur("QUEUE_SCHEDULER_INTERVAL", time.Minute),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}

func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, v)
	}
	return d
}
