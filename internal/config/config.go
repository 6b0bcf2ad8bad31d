package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the venue.
type Config struct {
	GRPCAddr          string
	OpsAddr           string
	LogLevel          string
	WorkerCount       int
	QueueCapacity     int
	FillDwell         time.Duration
	SchedulerInterval time.Duration
	PumpInterval      time.Duration
	ShutdownTimeout   time.Duration
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	grpcAddr := getStr("GRPC_ADDR", ":50051")
	opsAddr := getStr("OPS_ADDR", ":8080")

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	workerCount, err := getInt("WORKER_COUNT", 9)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_COUNT: %w", err)
	}
	if workerCount < 1 {
		return nil, fmt.Errorf("invalid WORKER_COUNT: %d, must be at least 1", workerCount)
	}

	queueCapacity, err := getInt("QUEUE_CAPACITY", 1024)
	if err != nil {
		return nil, fmt.Errorf("invalid QUEUE_CAPACITY: %w", err)
	}
	if queueCapacity < 1 {
		return nil, fmt.Errorf("invalid QUEUE_CAPACITY: %d, must be at least 1", queueCapacity)
	}

	fillDwell, err := getDuration("FILL_DWELL", 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid FILL_DWELL: %w", err)
	}

	schedulerInterval, err := getDuration("SCHEDULER_INTERVAL", 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_INTERVAL: %w", err)
	}

	pumpInterval, err := getDuration("PUMP_INTERVAL", 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("invalid PUMP_INTERVAL: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		GRPCAddr:          grpcAddr,
		OpsAddr:           opsAddr,
		LogLevel:          logLevel,
		WorkerCount:       workerCount,
		QueueCapacity:     queueCapacity,
		FillDwell:         fillDwell,
		SchedulerInterval: schedulerInterval,
		PumpInterval:      pumpInterval,
		ShutdownTimeout:   shutdownTimeout,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
