package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/simplegpt/backend/internal/client"
	"github.com/simplegpt/backend/pkg/logx"
)

var (
	serverURL string
	timeout   time.Duration
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:          "simplegpt",
	Short:        "Terminal client for the SimpleGPT backend",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logx.Init(logx.Options{Level: logLevel})
	},
}

func init() {
	defaultServer := os.Getenv("SIMPLEGPT_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:3000"
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "backend base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "timeout for non-streaming calls")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
}

func newClient() *client.Client {
	return client.New(client.Config{BaseURL: serverURL, Timeout: timeout})
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
