package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/namikmesic/streamgate/internal/codec"
	"github.com/namikmesic/streamgate/internal/stream"
	"github.com/namikmesic/streamgate/internal/streamerr"
	"github.com/spf13/cobra"
)

func newParseCmd() *cobra.Command {
	var path string
	var chunkSize int

	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse an SSE capture and print one JSON line per event",
		Long: `Parse a captured text/event-stream body, from a file or stdin, and print
one JSON object per event.

With --jsonpath the data of every event is decoded as JSON and only the
selected node is printed. Events whose data is "[DONE]" end the output.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lvl, _ := cmd.Flags().GetString("log-level")
			setupLogging(lvl)

			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			if chunkSize > 0 {
				in = &chunkedReader{r: in, size: chunkSize}
			}
			src := stream.ReaderSource(in)

			if path == "" {
				return printEvents(cmd, src)
			}
			return printPath(cmd, src, path)
		},
	}

	cmd.Flags().StringVar(&path, "jsonpath", "", "Print only this JSONPath of each event's data")
	cmd.Flags().IntVar(&chunkSize, "chunk", 0, "Feed the parser at most this many bytes at a time")
	return cmd
}

func printEvents(cmd *cobra.Command, src stream.Source) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	for ev, err := range stream.Events(src).All(cmd.Context()) {
		if err != nil {
			return err
		}
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}

func printPath(cmd *cobra.Command, src stream.Source, path string) error {
	conv := codec.UntilDone[any]{Inner: codec.JSONPath[any]{Path: path}}
	enc := json.NewEncoder(cmd.OutOrStdout())
	for v, err := range stream.NewStream[any](src, conv).All(cmd.Context()) {
		switch {
		case errors.Is(err, codec.ErrDone):
			return nil
		case errors.Is(err, streamerr.ErrConversion):
			fmt.Fprintf(cmd.ErrOrStderr(), "skipping event: %v\n", err)
			continue
		case err != nil:
			return err
		}
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
	return nil
}

// chunkedReader caps every Read at size bytes.
type chunkedReader struct {
	r    io.Reader
	size int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(p) > c.size {
		p = p[:c.size]
	}
	return c.r.Read(p)
}
