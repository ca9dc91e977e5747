package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/meridianhq/meridian-go/internal/api"
)

func newCallCmd() *cobra.Command {
	var (
		body     string
		cacheKey string
		cacheTTL time.Duration
		noAuth   bool
		noQueue  bool
		wait     bool
	)

	cmd := &cobra.Command{
		Use:   "call METHOD PATH",
		Short: "Send an ad-hoc request through the full pipeline",
		Long: `Issue a single request with cache read-through, auth injection,
refresh-and-replay, and offline queueing.

The body comes from --body: a literal string, @file to read a file,
or - to read stdin. A request parked in the offline queue reports its
queue ID and returns; pass --wait to block until the network returns
and the replay resolves.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readBodyArg(body)
			if err != nil {
				return err
			}

			d := api.Descriptor{
				Method:   strings.ToUpper(args[0]),
				Path:     args[1],
				Body:     payload,
				SkipAuth: noAuth,
				NoQueue:  noQueue,
				CacheKey: cacheKey,
				CacheTTL: cacheTTL,
			}

			return runCall(cmd, d, wait)
		},
	}

	cmd.Flags().StringVar(&body, "body", "", "request body: literal, @file, or - for stdin")
	cmd.Flags().StringVar(&cacheKey, "cache-key", "", "serve and store this request under a cache key")
	cmd.Flags().DurationVar(&cacheTTL, "ttl", 0, "cache lifetime for --cache-key (e.g. 5m)")
	cmd.Flags().BoolVar(&noAuth, "no-auth", false, "skip the Authorization header")
	cmd.Flags().BoolVar(&noQueue, "no-queue", false, "fail instead of queueing when offline")
	cmd.Flags().BoolVar(&wait, "wait", false, "if queued, wait for the replay outcome")

	return cmd
}

// readBodyArg resolves the --body flag value into request bytes.
func readBodyArg(arg string) ([]byte, error) {
	switch {
	case arg == "":
		return nil, nil
	case arg == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading body from stdin: %w", err)
		}

		return data, nil
	case strings.HasPrefix(arg, "@"):
		data, err := os.ReadFile(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("reading body file: %w", err)
		}

		return data, nil
	default:
		return []byte(arg), nil
	}
}

func runCall(cmd *cobra.Command, d api.Descriptor, wait bool) error {
	ctx := shutdownContext(cmd.Context(), logger)

	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	resp, err := s.client.Do(ctx, d)

	var queued *api.QueuedError
	if errors.As(err, &queued) {
		if !wait {
			statusf(flagQuiet, "Request queued (id %s); replay happens when the network returns\n", queued.ID)
			return nil
		}

		statusf(flagQuiet, "Request queued (id %s), waiting for network...\n", queued.ID)

		select {
		case outcome := <-queued.Outcome:
			if outcome.Err != nil {
				return fmt.Errorf("queued replay failed: %w", outcome.Err)
			}

			resp = outcome.Response
		case <-ctx.Done():
			return fmt.Errorf("interrupted while waiting; request %s stays queued", queued.ID)
		}
	} else if err != nil {
		return err
	}

	if len(resp.Body) > 0 {
		os.Stdout.Write(resp.Body)

		if resp.Body[len(resp.Body)-1] != '\n' {
			fmt.Println()
		}
	}

	return nil
}
