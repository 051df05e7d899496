package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	JWTAccessSecret    string
	JWTRefreshSecret   string
	JWTAccessTTLHours  int
	JWTRefreshTTLHours int

	// Seeded admin account
	AdminEmail    string
	AdminPassword string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Razorpay
	RazorpayKey           string
	RazorpaySecret        string
	RazorpayWebhookSecret string
	PaymentCurrency       string

	// Kafka
	KafkaBrokers           []string
	KafkaRegistrationTopic string
	KafkaConsumerGroup     string

	// FCM
	FCMCredentialsPath string // Path to Firebase service account JSON
	FCMProjectID       string

	RateLimitPerMinute int
	CORSAllowedOrigins []string
	LogLevel           string

	// Portal client
	PortalBaseURL       string
	VerifyTimeout       time.Duration
	RegistrationLockTTL time.Duration
	PublishTimeout      time.Duration
}

// Load reads environment variables and returns a Config object
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file, using environment variables")
	}

	accessTTL, _ := strconv.Atoi(os.Getenv("JWT_ACCESS_TTL_HOURS"))
	refreshTTL, _ := strconv.Atoi(os.Getenv("JWT_REFRESH_TTL_HOURS"))
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))

	return &Config{
		Port: getEnv("PORT", "8080"),

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),

		JWTAccessSecret:    os.Getenv("JWT_ACCESS_SECRET"),
		JWTRefreshSecret:   os.Getenv("JWT_REFRESH_SECRET"),
		JWTAccessTTLHours:  orDefault(accessTTL, 24),
		JWTRefreshTTLHours: orDefault(refreshTTL, 24*7),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		RazorpayKey:           os.Getenv("RAZORPAY_KEY_ID"),
		RazorpaySecret:        os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
		PaymentCurrency:       getEnv("PAYMENT_CURRENCY", "INR"),

		KafkaBrokers:           splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaRegistrationTopic: getEnv("KAFKA_REGISTRATION_TOPIC", "registration.confirmed"),
		KafkaConsumerGroup:     getEnv("KAFKA_CONSUMER_GROUP", "campus-events-notifier"),

		FCMCredentialsPath: os.Getenv("FCM_CREDENTIALS_PATH"),
		FCMProjectID:       os.Getenv("FCM_PROJECT_ID"),

		RateLimitPerMinute: orDefault(atoi(os.Getenv("RATE_LIMIT_PER_MINUTE")), 100),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")),
		LogLevel:           getEnv("LOG_LEVEL", "info"),

		PortalBaseURL:       getEnv("PORTAL_BASE_URL", "http://localhost:8080/api/v1/"),
		VerifyTimeout:       getDuration("REGISTRATION_VERIFY_TIMEOUT", 30*time.Second),
		RegistrationLockTTL: getDuration("REGISTRATION_LOCK_TTL", 15*time.Second),
		PublishTimeout:      getDuration("KAFKA_PUBLISH_TIMEOUT", 2*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
