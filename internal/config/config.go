package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	JWTSecret   string
	MongoURI    string
	DBName      string
	SkipAuth    bool
	Environment string
	FSPath      string // Physical directory for file uploads
	FSURL       string // URL path prefix for file access

	Import ImportConfig
}

// ImportConfig collects the tunables of the import engine. The matching
// thresholds and weights are deliberately configuration, not constants:
// deployments calibrate them against their own data quality.
type ImportConfig struct {
	ConfirmThreshold          float64 // top candidate >= this -> row is an update
	AmbiguousThreshold        float64 // between this and confirm -> new + flagged
	NameSimilarityThreshold   float64 // minimum normalized name similarity for fuzzy rule
	GeoRadiusMeters           float64 // proximity radius for the location signal
	ConsecutiveErrorThreshold int     // auto-pause after this many consecutive row errors
	BatchSize                 int     // rows processed between checkpoint persists
	MaxStoredErrors           int     // bound on the job's stored error list
	PreviewSampleRows         int     // sample rows returned by preview
	RowTimeoutSeconds         int     // soft deadline for a single row
	RetentionDays             int     // completed/cancelled jobs older than this are pruned
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("DB_NAME", "go-cohort"),
		SkipAuth:    getEnv("SKIP_AUTH", "false") == "true",
		Environment: getEnv("ENVIRONMENT", "development"),
		FSPath:      getEnv("FS_PATH", "./uploads"),
		FSURL:       getEnv("FS_URL", "/fs/uploads"),
		Import: ImportConfig{
			ConfirmThreshold:          getEnvFloat("IMPORT_CONFIRM_THRESHOLD", 0.7),
			AmbiguousThreshold:        getEnvFloat("IMPORT_AMBIGUOUS_THRESHOLD", 0.5),
			NameSimilarityThreshold:   getEnvFloat("IMPORT_NAME_SIMILARITY", 0.85),
			GeoRadiusMeters:           getEnvFloat("IMPORT_GEO_RADIUS_METERS", 100),
			ConsecutiveErrorThreshold: getEnvInt("IMPORT_CONSECUTIVE_ERRORS", 5),
			BatchSize:                 getEnvInt("IMPORT_BATCH_SIZE", 100),
			MaxStoredErrors:           getEnvInt("IMPORT_MAX_STORED_ERRORS", 100),
			PreviewSampleRows:         getEnvInt("IMPORT_PREVIEW_SAMPLE_ROWS", 5),
			RowTimeoutSeconds:         getEnvInt("IMPORT_ROW_TIMEOUT_SECONDS", 30),
			RetentionDays:             getEnvInt("IMPORT_RETENTION_DAYS", 90),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}
