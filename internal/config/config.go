package config

import (
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Analytics AnalyticsConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CacheConfig struct {
	Enabled            bool
	RedisURL           string
	RedisHost          string
	RedisPort          string
	RedisPassword      string
	RedisDB            int
	AnalysisTTLSeconds int
}

// AnalyticsConfig carries tunable thresholds for the diagnostic rules.
type AnalyticsConfig struct {
	FeeChannels          []string
	DeliveryFeeThreshold float64
	TrafficDropRate      float64
	TrafficMinSales      int
	ChurnLookbackDays    int
	ChurnMinOrders       int
	ChurnNoOrderDays     int
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 15)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 30)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "o2o_insight")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_ANALYSIS_TTL_SECONDS", 300)
		viper.SetDefault("ANALYTICS_FEE_CHANNELS", []string{"meituan", "eleme", "jd_daojia"})
		viper.SetDefault("ANALYTICS_DELIVERY_FEE_THRESHOLD", 6.0)
		viper.SetDefault("ANALYTICS_TRAFFIC_DROP_RATE", 0.5)
		viper.SetDefault("ANALYTICS_TRAFFIC_MIN_SALES", 5)
		viper.SetDefault("ANALYTICS_CHURN_LOOKBACK_DAYS", 30)
		viper.SetDefault("ANALYTICS_CHURN_MIN_ORDERS", 2)
		viper.SetDefault("ANALYTICS_CHURN_NO_ORDER_DAYS", 7)

		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
			},
			Cache: CacheConfig{
				Enabled:            viper.GetBool("CACHE_ENABLED"),
				RedisURL:           viper.GetString("REDIS_URL"),
				RedisHost:          viper.GetString("REDIS_HOST"),
				RedisPort:          viper.GetString("REDIS_PORT"),
				RedisPassword:      viper.GetString("REDIS_PASSWORD"),
				RedisDB:            viper.GetInt("REDIS_DB"),
				AnalysisTTLSeconds: viper.GetInt("CACHE_ANALYSIS_TTL_SECONDS"),
			},
			Analytics: AnalyticsConfig{
				FeeChannels:          viper.GetStringSlice("ANALYTICS_FEE_CHANNELS"),
				DeliveryFeeThreshold: viper.GetFloat64("ANALYTICS_DELIVERY_FEE_THRESHOLD"),
				TrafficDropRate:      viper.GetFloat64("ANALYTICS_TRAFFIC_DROP_RATE"),
				TrafficMinSales:      viper.GetInt("ANALYTICS_TRAFFIC_MIN_SALES"),
				ChurnLookbackDays:    viper.GetInt("ANALYTICS_CHURN_LOOKBACK_DAYS"),
				ChurnMinOrders:       viper.GetInt("ANALYTICS_CHURN_MIN_ORDERS"),
				ChurnNoOrderDays:     viper.GetInt("ANALYTICS_CHURN_NO_ORDER_DAYS"),
			},
		}
	})

	return instance
}
