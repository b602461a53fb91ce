package config

import (
	"errors"
	"os"
	"strings"
)

// Credentials hold the Binance API key pair. They are read from the
// environment rather than the YAML file so secrets stay out of config files.
type Credentials struct {
	APIKey    string
	APISecret string
}

func CredentialsFromEnv() (Credentials, error) {
	creds := Credentials{
		APIKey:    strings.TrimSpace(os.Getenv("BINANCE_API_KEY")),
		APISecret: strings.TrimSpace(os.Getenv("BINANCE_API_SECRET")),
	}
	if creds.APIKey == "" {
		return Credentials{}, errors.New("BINANCE_API_KEY is required")
	}
	if creds.APISecret == "" {
		return Credentials{}, errors.New("BINANCE_API_SECRET is required")
	}
	return creds, nil
}
