package core

import (
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Conf is the process-wide configuration. Set once via LoadConfig at startup
// (or TestConfig in tests) before anything else runs.
var Conf *Config

type (
	ServerConfig struct {
		Host    string
		Address string
	}

	DatabaseConfig struct {
		Engine     string
		Name       string
		User       string
		Password   string
		Host       string
		Port       string
		DisableTLS bool
	}

	DocStoreConfig struct {
		URI  string
		Name string
	}

	Config struct {
		Debug    bool
		TestMode bool
		Env      string
		AppName  string
		WorkDir  string

		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridAPIKey   string
		RollbarToken     string

		// TokenExpiration is how long an evaluation access link stays valid.
		TokenExpiration time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		DocStore DocStoreConfig
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

// LoadConfig reads configuration from config/.env.<env> (if present) and the
// environment, with sane defaults for local development.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("debug", true)
	v.SetDefault("appName", "EvaluacionesUAO")
	v.SetDefault("frontendBaseUrl", "http://localhost:5173")
	v.SetDefault("defaultFromEmail", "practicasypasantias@localhost")
	v.SetDefault("tokenExpiration", 90*24*time.Hour)
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbName", "evaluaciones")
	v.SetDefault("dbUser", "")
	v.SetDefault("dbPassword", "")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbDisableTls", true)
	v.SetDefault("docstoreUri", "mongodb://localhost:27017")
	v.SetDefault("docstoreName", "evaluaciones")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	v.SetDefault("testMode", strings.EqualFold(env, "TEST"))
	v.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, fmt.Errorf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		Env:              env,
		AppName:          v.GetString("appName"),
		WorkDir:          wd,
		FrontendBaseURL:  strings.TrimRight(v.GetString("frontendBaseUrl"), "/"),
		DefaultFromEmail: mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		SendgridAPIKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		TokenExpiration:  v.GetDuration("tokenExpiration"),
		Server: ServerConfig{
			Host:    v.GetString("serverHost"),
			Address: v.GetString("serverAddress"),
		},
		Database: DatabaseConfig{
			Engine:     v.GetString("dbEngine"),
			Name:       v.GetString("dbName"),
			User:       v.GetString("dbUser"),
			Password:   v.GetString("dbPassword"),
			Host:       v.GetString("dbHost"),
			Port:       v.GetString("dbPort"),
			DisableTLS: v.GetBool("dbDisableTls"),
		},
		DocStore: DocStoreConfig{
			URI:  v.GetString("docstoreUri"),
			Name: v.GetString("docstoreName"),
		},
	}
	Conf = conf
	return conf, nil
}

// TestConfig installs a config suitable for unit tests (no external services).
func TestConfig() *Config {
	conf := &Config{
		Debug:            false,
		TestMode:         true,
		Env:              "TEST",
		AppName:          "EvaluacionesUAO",
		WorkDir:          Getwd(),
		FrontendBaseURL:  "http://localhost:5173",
		DefaultFromEmail: mail.Address{Name: "EvaluacionesUAO", Address: "noreply@localhost"},
		TokenExpiration:  90 * 24 * time.Hour,
	}
	Conf = conf
	return conf
}
