package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// ServerConfig holds configuration for the HTTP server
type ServerConfig struct {
	Port        int    `yaml:"port"`
	Enabled     bool   `yaml:"enabled"`
	BearerToken string `yaml:"bearerToken"`
	CORS        CORS   `yaml:"cors"`
}

// CORS holds Cross-Origin Resource Sharing settings
type CORS struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
	AllowedMethods []string `yaml:"allowedMethods"`
	AllowedHeaders []string `yaml:"allowedHeaders"`
	MaxAge         int      `yaml:"maxAge"`
}

// DefaultServerConfig returns the server settings used when none are configured
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Port: 8088,
		CORS: CORS{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         3600,
		},
	}
}

// GenerateBearerToken returns a random 32 byte token, hex encoded
func GenerateBearerToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
