package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config points the viewer at the relay debug server.
type Config struct {
	DebugAddr string        `env:"DEBUG_ADDR,default=localhost:6162"`
	Timeout   time.Duration `env:"VIEWER_TIMEOUT,default=5s"`
}

// The viewer prints the relay health and its active bans.
func main() {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	base := "http://" + config.DebugAddr
	for _, path := range []string{"/healthz", "/bans"} {
		if err := fetch(ctx, os.Stdout, base+path); err != nil {
			log.Fatalf("Failed to query %s: %v", path, err)
		}
	}
}

func fetch(ctx context.Context, out io.Writer, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	_, err = io.Copy(out, resp.Body)
	return err
}
