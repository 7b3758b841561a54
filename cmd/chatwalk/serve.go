package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/chatwalk/chatwalk"
	"github.com/chatwalk/chatwalk/internal/logging"
	httpAdapter "github.com/chatwalk/chatwalk/pkg/adapters/http"
	"github.com/chatwalk/chatwalk/pkg/adapters/memory"
	redisAdapter "github.com/chatwalk/chatwalk/pkg/adapters/redis"
	"github.com/chatwalk/chatwalk/pkg/observability"
	"github.com/chatwalk/chatwalk/pkg/persistence/middleware"
	"github.com/chatwalk/chatwalk/pkg/ports"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat HTTP server",
	Long: `Starts the engine in server mode, exposing the start/continue chat API over HTTP.

Set CHATWALK_SESSION_KEY (32 bytes) to encrypt session state at rest.`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetString("port")
		botsDir, _ := cmd.Flags().GetString("bots")
		redisAddr, _ := cmd.Flags().GetString("redis")
		sessionTTL, _ := cmd.Flags().GetDuration("session-ttl")
		metricsOn, _ := cmd.Flags().GetBool("metrics")
		maskPII, _ := cmd.Flags().GetStringSlice("mask-pii")

		// Server deployments log JSON; the interactive commands keep the
		// text handler.
		logger := logging.NewJSON(logLevel(cmd))

		registry, err := loadBots(botsDir)
		if err != nil {
			fmt.Printf("Error loading bots: %v\n", err)
			os.Exit(1)
		}

		var store ports.SessionStore
		var locker ports.DistributedLocker
		if redisAddr != "" {
			client := backend.NewClient(&backend.Options{Addr: redisAddr})
			if err := client.Ping(cmd.Context()).Err(); err != nil {
				fmt.Printf("Error connecting to redis at %s: %v\n", redisAddr, err)
				os.Exit(1)
			}
			store = redisAdapter.NewFromClient(client, redisAdapter.WithTTL(sessionTTL))
			locker = redisAdapter.NewLocker(client, "chatwalk:lock")
		}

		var mws []middleware.Middleware
		if key := os.Getenv("CHATWALK_SESSION_KEY"); key != "" {
			if len(key) != 32 {
				fmt.Println("Error: CHATWALK_SESSION_KEY must be exactly 32 bytes")
				os.Exit(1)
			}
			mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
				ActiveKey: []byte(key),
			}))
		}
		if len(maskPII) > 0 {
			mws = append(mws, middleware.NewPIIMiddleware(maskPII))
		}
		if len(mws) > 0 {
			if store == nil {
				store = memory.NewStore()
			}
			store = middleware.Chain(store, mws...)
		}

		engineOpts := []chatwalk.Option{
			chatwalk.WithBotLoader(registry),
			chatwalk.WithLogger(logger),
		}
		if store != nil {
			engineOpts = append(engineOpts, chatwalk.WithSessionStore(store))
		}
		if locker != nil {
			engineOpts = append(engineOpts, chatwalk.WithDistributedLocker(locker))
		}

		handlerOpts := []httpAdapter.HandlerOption{httpAdapter.WithLogger(logger)}
		if metricsOn {
			reg := prometheus.NewRegistry()
			engineOpts = append(engineOpts, chatwalk.WithMetrics(observability.NewMetrics(reg)))
			handlerOpts = append(handlerOpts, httpAdapter.WithMetricsEndpoint(reg))
		}

		engine := chatwalk.New(engineOpts...)
		handler := httpAdapter.NewHandler(engine, handlerOpts...)

		srv := &http.Server{
			Addr:    ":" + port,
			Handler: handler,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			fmt.Printf("Starting Chatwalk Server on %s\n", srv.Addr)
			if botsDir != "" {
				fmt.Printf("Serving bots from: %s\n", botsDir)
			}
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			fmt.Println("Chatwalk Server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().String("bots", "", "Directory of bot graph files (.json, .yaml) to publish")
	serveCmd.Flags().String("redis", "", "Redis address for session persistence (empty = in-memory)")
	serveCmd.Flags().Duration("session-ttl", 4*time.Hour, "Idle session expiry when using Redis")
	serveCmd.Flags().Bool("metrics", false, "Expose Prometheus metrics on /metrics")
	serveCmd.Flags().StringSlice("mask-pii", nil, "Variable name patterns (regex) to mask at rest, e.g. 'email,phone.*'")
}
