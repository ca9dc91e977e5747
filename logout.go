package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear stored credentials",
		Long:  "Abort in-flight calls and remove the credential pair from the durable store.",
		RunE:  runLogout,
	}
}

func runLogout(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.client.Logout(ctx); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}

	statusf(flagQuiet, "Logged out\n")

	return nil
}
