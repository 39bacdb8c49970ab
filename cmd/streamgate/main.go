package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const rootLongDesc string = `streamgate is a streaming gateway for LLM APIs.

It proxies HTTP requests to an upstream provider, re-frames Server-Sent Event
responses event by event, and bridges WebSocket sessions message by message.

  streamgate serve           Run the gateway
  streamgate parse [file]    Parse an SSE capture and print its events`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "streamgate",
		Short:         "Streaming gateway for SSE and WebSocket APIs",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("log-level", "", "Log level (overrides LOG_LEVEL)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newParseCmd())
	return cmd
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
