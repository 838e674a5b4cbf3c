package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-tracker/internal/secrets"
	"github.com/jonathan/job-tracker/internal/types"
)

var (
	connectUser     string
	connectHost     string
	connectPort     int
	connectUsername string
	connectEmail    string
	connectVerify   bool
)

var connectIMAPCmd = &cobra.Command{
	Use:   "connect-imap",
	Short: "Connect an IMAP mailbox for a user",
	Long: `Store IMAP settings for a user. The password is read from stdin and saved in the
OS keychain, never in the database.

Example:
  echo "$APP_PASSWORD" | job_tracker connect-imap --user <id> --host imap.fastmail.com --username me@example.com`,
	RunE: runConnectIMAP,
}

func init() {
	connectIMAPCmd.Flags().StringVar(&connectUser, "user", "", "User ID (required)")
	connectIMAPCmd.Flags().StringVar(&connectHost, "host", "", "IMAP server host (required)")
	connectIMAPCmd.Flags().IntVar(&connectPort, "port", 993, "IMAP server TLS port")
	connectIMAPCmd.Flags().StringVar(&connectUsername, "username", "", "IMAP login (required)")
	connectIMAPCmd.Flags().StringVar(&connectEmail, "email", "", "Account email address (defaults to --username)")
	connectIMAPCmd.Flags().BoolVar(&connectVerify, "verify", true, "Log in once to check the credentials")
	rootCmd.AddCommand(connectIMAPCmd)
}

func runConnectIMAP(cmd *cobra.Command, _ []string) error {
	userID, err := parseUserFlag(connectUser)
	if err != nil {
		return err
	}
	if connectHost == "" || connectUsername == "" {
		return fmt.Errorf("--host and --username are required")
	}

	password, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && password == "" {
		return fmt.Errorf("failed to read password from stdin: %w", err)
	}
	password = strings.TrimRight(password, "\r\n")
	if password == "" {
		return fmt.Errorf("empty password on stdin")
	}

	ctx := context.Background()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := secrets.SetIMAPPassword(secrets.IMAPKeyringAccount(userID, connectUsername), password); err != nil {
		return err
	}

	email := connectEmail
	if email == "" {
		email = connectUsername
	}
	conn := &types.MailConnection{
		UserID:            userID,
		Provider:          types.ProviderIMAP,
		AccountEmail:      email,
		IMAPHost:          connectHost,
		IMAPPort:          connectPort,
		IMAPUsername:      connectUsername,
		IsAuthorized:      true,
		SyncEnabled:       true,
		AutoUpdateEnabled: true,
	}
	if err := a.store.UpsertMailConnection(ctx, conn); err != nil {
		return err
	}

	if connectVerify {
		checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := a.imap.CheckConnection(checkCtx, userID); err != nil {
			if setErr := a.store.SetConnectionAuthorized(ctx, userID, false); setErr != nil {
				return fmt.Errorf("connection check failed (%v) and could not be recorded: %w", err, setErr)
			}
			return fmt.Errorf("connection saved but login failed: %w", err)
		}
	}

	_, _ = fmt.Fprintf(os.Stdout, "Connected %s for user %s\n", email, userID)
	return nil
}
