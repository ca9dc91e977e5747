package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against the backend",
		Long: `Exchange email and password for a credential pair.

The password is read from stdin. Login always goes straight to the
network: if the backend is unreachable the command fails instead of
queueing credentials.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd, email)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email (prompted if omitted)")

	return cmd
}

func runLogin(cmd *cobra.Command, email string) error {
	reader := bufio.NewReader(os.Stdin)

	if email == "" {
		statusf(flagQuiet, "Email: ")

		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading email: %w", err)
		}

		email = strings.TrimSpace(line)
	}

	if email == "" {
		return fmt.Errorf("email is required")
	}

	statusf(flagQuiet, "Password: ")

	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return fmt.Errorf("password is required")
	}

	ctx := shutdownContext(cmd.Context(), logger)

	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.client.Login(ctx, email, password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	statusf(flagQuiet, "Logged in as %s\n", email)

	return nil
}
