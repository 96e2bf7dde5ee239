package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// CountyLayerURL is the hosted feature layer behind the public STR map.
	CountyLayerURL string
	PortalReferer  string
	ArcGISAPIKey   string

	PageSize       int // datastore read page size
	RosterPageSize int // feature-service page size
	ThrottleMs     int

	CSVOutputPath string
	// RosterSourcesPath points at a YAML file overriding the built-in
	// municipal roster sources. Empty means defaults only.
	RosterSourcesPath string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "str"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "str123"),
		PostgresDB:       getEnv("POSTGRES_DB", "str_registry"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		CountyLayerURL: getEnv("COUNTY_LAYER_URL",
			"https://services6.arcgis.com/dmNYNuTJZDtkcRJq/arcgis/rest/services/"+
				"STR_Licenses_October_2025_public_view_layer/FeatureServer/0"),
		PortalReferer: getEnv("ARCGIS_REFERER",
			"https://experience.arcgis.com/experience/706a6886322445479abadb904db00bc0/"),
		ArcGISAPIKey: getEnv("ARCGIS_API_KEY", ""),

		PageSize:       getEnvInt("PAGE_SIZE", 1000),
		RosterPageSize: getEnvInt("ROSTER_PAGE_SIZE", 2000),
		ThrottleMs:     getEnvInt("THROTTLE_MS", 250),

		CSVOutputPath:     getEnv("CSV_OUTPUT_PATH", "./output/listings.csv"),
		RosterSourcesPath: getEnv("STR_MUNICIPAL_ROSTERS", ""),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
