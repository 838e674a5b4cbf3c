package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/job-tracker/internal/observability"
	"github.com/jonathan/job-tracker/internal/types"
)

var (
	classifySubject  string
	classifyBody     string
	classifyBodyFile string
	classifyFrom     string
	classifyUser     string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a single email without saving it",
	Long: `Run the keyword filter and, when an API key is configured, the model classifier
against one email and print the result.

With --user, also print the applications the email would match. Nothing is written.`,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVar(&classifySubject, "subject", "", "Email subject")
	classifyCmd.Flags().StringVar(&classifyBody, "body", "", "Email body text")
	classifyCmd.Flags().StringVar(&classifyBodyFile, "body-file", "", "Read the email body from a file ('-' for stdin)")
	classifyCmd.Flags().StringVar(&classifyFrom, "from", "", "Sender email address")
	classifyCmd.Flags().StringVar(&classifyUser, "user", "", "User ID whose applications to match against")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, _ []string) error {
	body := classifyBody
	if classifyBodyFile != "" {
		if body != "" {
			return fmt.Errorf("--body and --body-file are mutually exclusive")
		}
		data, err := readInput(classifyBodyFile)
		if err != nil {
			return fmt.Errorf("failed to read body: %w", err)
		}
		body = string(data)
	}
	if classifySubject == "" && body == "" {
		return fmt.Errorf("--subject or a body is required")
	}

	userID := uuid.Nil
	if classifyUser != "" {
		id, err := parseUserFlag(classifyUser)
		if err != nil {
			return err
		}
		userID = id
	}

	ctx := context.Background()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	raw := types.RawEmail{
		SenderEmail: classifyFrom,
		Subject:     classifySubject,
		Body:        body,
		ReceivedAt:  time.Now().UTC(),
	}
	event := a.service.ClassifyEmail(ctx, userID, raw)

	printer := observability.NewPrinter(os.Stdout)
	printer.PrintClassification(event)

	if userID == uuid.Nil {
		return nil
	}
	results, err := a.service.PreviewMatch(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to match: %w", err)
	}
	printer.PrintMatchCandidates(results)
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
