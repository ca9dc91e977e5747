package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and operate the offline request queue",
	}

	cmd.AddCommand(newQueueListCmd())
	cmd.AddCommand(newQueueDrainCmd())
	cmd.AddCommand(newQueueClearCmd())

	return cmd
}

func newQueueListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queued requests in replay order",
		RunE:  runQueueList,
	}
}

func runQueueList(cmd *cobra.Command, _ []string) error {
	s, err := newSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	items := s.client.Queue().Items()

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(items)
	}

	if len(items) == 0 {
		fmt.Println("Queue is empty.")
		return nil
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			item.Descriptor.Method,
			item.Descriptor.Path,
			formatSize(int64(len(item.Descriptor.Body))),
			strconv.Itoa(item.Attempts),
			formatTime(item.EnqueuedAt),
		})
	}

	printTable(os.Stdout, []string{"ID", "METHOD", "PATH", "BODY", "ATTEMPTS", "ENQUEUED"}, rows)

	return nil
}

func newQueueDrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Replay queued requests now",
		RunE:  runQueueDrain,
	}
}

func runQueueDrain(cmd *cobra.Command, _ []string) error {
	ctx := shutdownContext(cmd.Context(), logger)

	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	before := s.client.Queue().Len()
	if before == 0 {
		statusf(flagQuiet, "Queue is empty.\n")
		return nil
	}

	if err := s.client.Drain(ctx); err != nil {
		return fmt.Errorf("drain failed: %w", err)
	}

	remaining := s.client.Queue().Len()
	statusf(flagQuiet, "Replayed %d of %d queued requests, %d remaining\n",
		before-remaining, before, remaining)

	return nil
}

func newQueueClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Discard every queued request",
		RunE:  runQueueClear,
	}
}

func runQueueClear(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	dropped := s.client.Queue().Len()

	if err := s.client.Queue().Clear(ctx); err != nil {
		return fmt.Errorf("clearing queue: %w", err)
	}

	statusf(flagQuiet, "Dropped %d queued requests\n", dropped)

	return nil
}
