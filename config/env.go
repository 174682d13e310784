package config

import "os"

// Env is the server environment.
type Env struct {
	Addr     string // OUTLIERS_ADDR
	HTTPAddr string // HTTPD_ADDR
	DBFile   string // DB_FILE
	LogLevel string // LOG_LEVEL
}

// FromEnv reads Env from the environment variables.
func FromEnv() Env {
	env := Env{
		Addr:     os.Getenv("OUTLIERS_ADDR"),
		HTTPAddr: os.Getenv("HTTPD_ADDR"),
		DBFile:   os.Getenv("DB_FILE"),
		LogLevel: os.Getenv("LOG_LEVEL"),
	}

	if env.Addr == "" {
		env.Addr = ":9999"
	}
	if env.HTTPAddr == "" {
		env.HTTPAddr = ":8080"
	}
	if env.DBFile == "" {
		env.DBFile = "data.db"
	}

	return env
}
