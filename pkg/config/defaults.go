// Package config provides centralized default values for Cohort
package config

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		file, err := os.Open(".env")
		if err != nil {
			return
		}
		defer file.Close()

		log.Println("Loading configuration overrides from .env file...")
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// Bus Configuration
	BusURL            string
	BusTag            string
	BusWriteTimeout   time.Duration
	BusPingInterval   time.Duration
	BusReconnectDelay time.Duration

	// Store Configuration
	DBName string
	DBURL  string

	// Database Pool
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	DBConnMaxIdleMinutes     int

	// Engine Timers
	SessionExpiry      time.Duration
	UpdateExpiry       time.Duration
	UpdateFrequency    time.Duration
	WritebackFrequency time.Duration

	// Operator Auth
	AdminPasswordHash string
	JWTSecret         string
	TokenLifetime     time.Duration

	// SSE Configuration
	SSEHeartbeatIntervalSeconds int
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "10003")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Bus Configuration
	BusURL = getEnvString("COHORT_BUS_URL", "ws://localhost:7777/bus")
	BusTag = getEnvString("COHORT_BUS_TAG", "")
	BusWriteTimeout = getEnvDuration("COHORT_BUS_WRITE_TIMEOUT", 10*time.Second)
	BusPingInterval = getEnvDuration("COHORT_BUS_PING_INTERVAL", 30*time.Second)
	BusReconnectDelay = getEnvDuration("COHORT_BUS_RECONNECT_DELAY", 2*time.Second)

	// Store Configuration
	DBName = getEnvString("COHORT_DBNAME", "cohort")
	DBURL = getEnvString("COHORT_DB_URL", "")

	// Database Pool
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	DBConnMaxIdleMinutes = getEnvInt("DB_CONN_MAX_IDLE_MINUTES", 3)

	// Engine Timers
	SessionExpiry = getEnvDuration("SESSION_EXPIRY", 60*time.Second)
	UpdateExpiry = getEnvDuration("UPDATE_EXPIRY", 5*time.Second)
	UpdateFrequency = getEnvDuration("UPDATE_FREQUENCY", 4*time.Second)
	WritebackFrequency = getEnvDuration("WRITEBACK_FREQUENCY", 31*time.Second)

	// Operator Auth
	AdminPasswordHash = getEnvString("ADMIN_PASSWORD_HASH", "")
	JWTSecret = getEnvString("JWT_SECRET", "")
	TokenLifetime = getEnvDuration("TOKEN_LIFETIME", 24*time.Hour)

	// SSE Configuration
	SSEHeartbeatIntervalSeconds = getEnvInt("SSE_HEARTBEAT_INTERVAL_SECONDS", 30)
}
