package main

import (
	"chat-relay/internal"

	"github.com/joho/godotenv"
)

// loadConfig reads an optional .env file, then the process environment.
func loadConfig() (internal.Config, error) {
	_ = godotenv.Load()
	return internal.LoadConfig()
}
