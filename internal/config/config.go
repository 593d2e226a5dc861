package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"kyri56xcaesar/marathon-proj/internal/logger"

	"github.com/joho/godotenv"
)

// default listen ports per service
var defaultPorts = map[string]string{
	"mteam":     "5015",
	"mmarathon": "5030",
}

type Config struct {
	ConfigPath  string
	Service     string
	Profile     string
	Verbose     bool
	ApiGinMode  string
	InitSQLPath string
	Store       string

	Ip          string
	Port        string
	AuthAddress string

	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string

	//kc
	Issuer       string
	Audience     string
	Realm        string
	ClientID     string
	ClientSecret string

	// database
	DBAddress    string
	DBUser       string
	DBPassword   string
	DBName       string
	DBMaxConns   int
	DBWaitSecond int

	LogLevel string
	LogFile  string

	RepairIntervalSeconds int
}

// Load reads the .env file at path (if any) and fills the configuration
// of the named service from the environment.
func Load(path, service string) Config {
	if err := godotenv.Load(path); err != nil {
		logger.Printf("Failed to load the config file at %s, using default ones...", path)
	}

	port, ok := defaultPorts[service]
	if !ok {
		port = "5045"
	}

	s := strings.Split(path, "/")
	config := Config{
		ConfigPath:  s[len(s)-1],
		Service:     service,
		Profile:     getEnv("PROFILE", "baremetal"),
		Verbose:     getBoolEnv("VERBOSE", "true"),
		ApiGinMode:  getEnv("GIN_MODE", "debug"),
		InitSQLPath: getEnv("INIT_SQL_PATH", "./internal/pgstore/db/init.sql"),
		Store:       getEnv("STORE", "postgres"),

		Ip:             getEnv("IP", "localhost"),
		Port:           getEnv("PORT", port),
		AuthAddress:    getEnv("AUTH_ADDRESS", "localhost:5555"),
		AllowedOrigins: getEnvFields("ALLOW_ORIGINS", []string{"*"}),
		AllowedMethods: getEnvFields("ALLOW_METHODS", []string{"*"}),
		AllowedHeaders: getEnvFields("ALLOW_HEADERS", []string{"*"}),

		Issuer:       getEnv("KC_ISSUER", "http://localhost:5555"),
		Audience:     getEnv("KC_AUDIENCE", "marathon-front"),
		Realm:        getEnv("KC_REALM", "marathon"),
		ClientID:     getEnv("KC_CLIENT", "admin"),
		ClientSecret: getEnv("KC_CLIENT_SECRET", ""),

		DBAddress:    getEnv("DB_ADDRESS", "api-db:5432"),
		DBUser:       getEnv("DB_USER", "postgres"),
		DBPassword:   getEnv("DB_PASSWORD", "postgres"),
		DBName:       getEnv("DB_NAME", "marathon"),
		DBMaxConns:   getIntEnv("DB_MAX_CONNS", 10),
		DBWaitSecond: getIntEnv("DB_WAIT_SECONDS", 30),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		RepairIntervalSeconds: getIntEnv("REPAIR_INTERVAL_SECONDS", 300),
	}

	if config.Verbose {
		logger.Printf("%s", config.String())
	}

	return config
}

// DatabaseURL is the pgx connection string for the configured database.
func (cfg *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", cfg.DBUser, cfg.DBPassword, cfg.DBAddress, cfg.DBName)
}

func (cfg *Config) ListenAddress() string {
	return cfg.Ip + ":" + cfg.Port
}

func getEnv(env, fallback string) string {
	if value, exists := os.LookupEnv(env); exists {
		return value
	}

	return fallback
}

func getEnvFields(env string, fallback []string) []string {
	if value, exists := os.LookupEnv(env); exists {
		fields := strings.Split(strings.TrimSpace(value), ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		return fields
	}

	return fallback
}

func getBoolEnv(env, fallback string) bool {
	if value, exists := os.LookupEnv(env); exists {
		return strings.ToLower(value) == "true"
	}

	return strings.ToLower(fallback) == "true"
}

func getIntEnv(env string, fallback int) int {
	if value, exists := os.LookupEnv(env); exists {
		int_value, err := strconv.Atoi(value)
		if err == nil {
			return int_value
		}
	}

	return fallback
}

// String lists every field, masking secrets.
func (cfg *Config) String() string {
	var strBuilder strings.Builder

	reflectedValues := reflect.ValueOf(cfg).Elem()
	reflectedTypes := reflect.TypeOf(cfg).Elem()

	strBuilder.WriteString(fmt.Sprintf("[CFG]CONFIGURATION: %s\n", cfg.ConfigPath))

	for i := range reflectedValues.NumField() {
		fieldName := reflectedTypes.Field(i).Name
		fieldValue := reflectedValues.Field(i).Interface()

		if fieldName == "DBPassword" || fieldName == "ClientSecret" {
			if s, _ := fieldValue.(string); s != "" {
				fieldValue = "********"
			}
		}

		strBuilder.WriteString("[CFG]")
		if i < 9 {
			strBuilder.WriteString(fmt.Sprintf("%d.  ", i+1))
		} else {
			strBuilder.WriteString(fmt.Sprintf("%d. ", i+1))
		}
		if len(fieldName) <= 6 {
			strBuilder.WriteString(fmt.Sprintf("%v\t\t\t\t\t-> %v\n", fieldName, fieldValue))
		} else if len(fieldName) <= 14 {
			strBuilder.WriteString(fmt.Sprintf("%v\t\t\t\t-> %v\n", fieldName, fieldValue))
		} else {
			strBuilder.WriteString(fmt.Sprintf("%v\t\t\t-> %v\n", fieldName, fieldValue))
		}
	}

	return strBuilder.String()
}
