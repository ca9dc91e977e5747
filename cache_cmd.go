package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintain the response cache",
	}

	cmd.AddCommand(newCacheInvalidateCmd())
	cmd.AddCommand(newCacheClearCmd())

	return cmd
}

func newCacheInvalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <key>",
		Short: "Remove one cached entry",
		Args:  cobra.ExactArgs(1),
		RunE:  runCacheInvalidate,
	}
}

func runCacheInvalidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.client.Cache().Invalidate(ctx, args[0]); err != nil {
		return fmt.Errorf("invalidating %q: %w", args[0], err)
	}

	statusf(flagQuiet, "Invalidated %q\n", args[0])

	return nil
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached entry",
		RunE:  runCacheClear,
	}
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.client.Cache().Clear(ctx); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	statusf(flagQuiet, "Cache cleared\n")

	return nil
}
