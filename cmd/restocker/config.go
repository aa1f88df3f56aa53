package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/estoquel/restocker/internal/logger"
)

const (
	defaultListenAddr   = "localhost:3001"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultOrigin       = "http://localhost:3000"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the restocker service will be run
	ListenAddr string

	// Database to connect to. Empty means in-memory session storage only.
	DatabaseDSN string

	// Marketplace application credentials. The app id is public (it ends up
	// in the authorization URL), the secret never leaves the token proxy.
	MeliAppID        string
	MeliClientSecret string

	// Origin of the SPA; used to derive the OAuth redirect uri
	Origin string

	// Secret key used to sign the OAuth state parameter
	SecretKey string

	// Marketplace endpoint overrides, for tests mostly
	MeliAuthURL  string
	MeliAPIURL   string
	MeliTokenURL string

	// Token proxy endpoint the client calls. Defaults to this very server.
	TokenProxyURL string

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:    defaultLoggingLevel,
		ListenAddr:  defaultListenAddr,
		Origin:      defaultOrigin,
		Environment: defaultEnvironment,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":        setString(&c.ListenAddr),
		"DATABASE_URI":       setString(&c.DatabaseDSN),
		"MELI_APP_ID":        setString(&c.MeliAppID),
		"MELI_CLIENT_SECRET": setString(&c.MeliClientSecret),
		"APP_ORIGIN":         setString(&c.Origin),
		"SECRET_KEY":         setString(&c.SecretKey),
		"MELI_AUTH_URL":      setString(&c.MeliAuthURL),
		"MELI_API_URL":       setString(&c.MeliAPIURL),
		"MELI_TOKEN_URL":     setString(&c.MeliTokenURL),
		"TOKEN_PROXY_URL":    setString(&c.TokenProxyURL),
		"LOG_LEVEL":          setString(&c.LogLevel),
		"ENVIRONMENT":        setString(&c.Environment),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("restocker", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string (empty for in-memory sessions)")
	fs.StringVarP(&c.Origin, "origin", "o", c.Origin, "SPA origin used to derive the OAuth redirect uri")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key for signing the OAuth state")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, production)")

	return fs.Parse(args)
}
