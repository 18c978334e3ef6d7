// main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

type CLIFlags struct {
	Host       string
	Port       int
	ConfigPath string
}

func ParseCLIFlags(args []string) (CLIFlags, error) {
	fs := flag.NewFlagSet("llm-gateway", flag.ContinueOnError)

	var flags CLIFlags
	fs.StringVar(&flags.Host, "host", "", "Host to bind")
	fs.IntVar(&flags.Port, "port", 0, "Port to listen on")
	fs.StringVar(&flags.ConfigPath, "config", "", "Path to config file")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, err
	}
	return flags, nil
}

func MergeConfig(cfg AppConfig, flags CLIFlags) AppConfig {
	if flags.Host != "" {
		cfg.Host = flags.Host
	}
	if flags.Port != 0 {
		cfg.Port = flags.Port
	}
	return cfg
}

func main() {
	flags, err := ParseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error parsing flags: %v\n", err)
		os.Exit(1)
	}

	cfg, err := LoadConfig(flags.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg = MergeConfig(cfg, flags)

	initGlobalLogger()
	defer globalSugar().Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := NewServer(cfg)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		globalSugar().Errorw("failed to bind", "addr", addr, "error", err)
		os.Exit(1)
	}
	listener = newLimitListener(listener, cfg.MaxConnections)

	httpServer := &http.Server{
		Handler:      srv,
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: 0, // the proxy bounds each upstream exchange with response_timeout via the request context
		IdleTimeout:  cfg.KeepAlive,
	}

	go func() {
		<-ctx.Done()
		globalSugar().Infow("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	globalSugar().Infow("starting llm-gateway", "addr", addr, "workers", cfg.Workers, "max_connections", cfg.MaxConnections)

	if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		globalSugar().Errorw("server error", "error", err)
		os.Exit(1)
	}
}
