package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string

	// AppBaseURL is the public base URL of this service. It is embedded
	// into generated callback URLs so gateways can reach us back.
	AppBaseURL string

	EasyMoneyBaseURL    string
	SuperWalletzBaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ServiceAuthSecret enables bearer-token auth on the payment API
	// when non-empty. Webhook endpoints are never behind it.
	ServiceAuthSecret string

	// InternalSecretKey moves callers presenting it onto the trusted
	// rate-limit tier.
	InternalSecretKey string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:              os.Getenv("DB_HOST"),
		DBUser:              os.Getenv("DB_USER"),
		DBPassword:          os.Getenv("DB_PASSWORD"),
		DBName:              os.Getenv("DB_NAME"),
		DBPort:              os.Getenv("DB_PORT"),
		AppPort:             getEnv("APP_PORT", "8080"),
		AppEnv:              os.Getenv("APP_ENV"),
		AppBaseURL:          os.Getenv("APP_BASE_URL"),
		EasyMoneyBaseURL:    getEnv("EASYMONEY_BASE_URL", "http://localhost:3000"),
		SuperWalletzBaseURL: getEnv("SUPERWALLETZ_BASE_URL", "http://localhost:3003"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		ServiceAuthSecret:   os.Getenv("SERVICE_AUTH_SECRET"),
		InternalSecretKey:   os.Getenv("INTERNAL_SECRET_KEY"),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
