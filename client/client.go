package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	RelayAddress string `env:"RELAY_ADDR,default=localhost:6161"`
	LogLevel     string `env:"LOG_LEVEL,default=INFO"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run connects to the relay, forwards stdin lines to it and prints every
// broadcast line on stdout until either side closes.
func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", config.RelayAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to relay at %s: %w", config.RelayAddress, err)
	}
	defer func() {
		log.Debug("Closing connection...")
		_ = conn.Close()
	}()
	context.AfterFunc(ctx, func() { _ = conn.Close() })

	log.Info("Connected", "relay", config.RelayAddress)

	// Stdin is forwarded in the background; closing it half-closes the socket.
	go func() {
		if err := forward(conn, os.Stdin); err != nil {
			log.Debug("Stdin forwarding stopped", "error", err)
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.CloseWrite()
		}
	}()

	if err := receive(os.Stdout, conn); err != nil && ctx.Err() == nil {
		return exitRuntime, fmt.Errorf("connection error: %w", err)
	}
	log.Info("Disconnected")
	return exitOK, nil
}

// forward copies src to the relay line by line.
func forward(dst io.Writer, src io.Reader) error {
	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		if _, err := fmt.Fprintln(dst, scanner.Text()); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// receive prints relay lines until the relay closes the connection.
func receive(dst io.Writer, src io.Reader) error {
	reader := bufio.NewReader(src)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			if _, werr := io.WriteString(dst, line); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
