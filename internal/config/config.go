package config

import (
	"encoding/base64"
	"fmt"
)

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	SigningKey     []byte
	AllowedOrigins []string
	// ExecURL is the endpoint of the code-execution backend. ExecClientId
	// and ExecClientSecret may be empty, in which case /api/execute is
	// disabled.
	ExecURL          string
	ExecClientId     string
	ExecClientSecret string
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string, execURL, execClientId, execClientSecret string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ServerAddr:       serverAddr,
		DatabaseDSN:      databaseDSN,
		SigningKey:       signingKey,
		AllowedOrigins:   allowedOrigins,
		ExecURL:          execURL,
		ExecClientId:     execClientId,
		ExecClientSecret: execClientSecret,
	}, nil
}
