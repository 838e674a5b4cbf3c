package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-tracker/internal/observability"
	"github.com/jonathan/job-tracker/internal/types"
)

var (
	appsUser      string
	appsCompany   string
	appsTitle     string
	appsLocation  string
	appsStatus    string
	appsFilter    string
	appsAppliedOn string
)

var applicationsCmd = &cobra.Command{
	Use:     "applications",
	Aliases: []string{"apps"},
	Short:   "Manage tracked job applications",
}

var applicationsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Track a new application",
	RunE:  runApplicationsAdd,
}

var applicationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's applications",
	RunE:  runApplicationsList,
}

func init() {
	applicationsCmd.PersistentFlags().StringVar(&appsUser, "user", "", "User ID (required)")

	applicationsAddCmd.Flags().StringVar(&appsCompany, "company", "", "Company name (required)")
	applicationsAddCmd.Flags().StringVar(&appsTitle, "title", "", "Job title")
	applicationsAddCmd.Flags().StringVar(&appsLocation, "location", "", "Job location")
	applicationsAddCmd.Flags().StringVar(&appsStatus, "status", "applied", "Initial status")
	applicationsAddCmd.Flags().StringVar(&appsAppliedOn, "applied-on", "", "Application date as YYYY-MM-DD (defaults to today)")

	applicationsListCmd.Flags().StringVar(&appsFilter, "status", "", "Only show applications in this status")

	applicationsCmd.AddCommand(applicationsAddCmd, applicationsListCmd)
	rootCmd.AddCommand(applicationsCmd)
}

func runApplicationsAdd(cmd *cobra.Command, _ []string) error {
	userID, err := parseUserFlag(appsUser)
	if err != nil {
		return err
	}
	if appsCompany == "" {
		return fmt.Errorf("--company is required")
	}
	status, err := types.ParseStatus(appsStatus)
	if err != nil {
		return err
	}
	app := &types.JobApplication{
		UserID:   userID,
		Company:  appsCompany,
		Title:    appsTitle,
		Location: appsLocation,
		Status:   status,
	}
	if appsAppliedOn != "" {
		applied, err := time.Parse(time.DateOnly, appsAppliedOn)
		if err != nil {
			return fmt.Errorf("invalid --applied-on: %w", err)
		}
		app.AppliedAt = applied.UTC()
	}

	ctx := context.Background()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.CreateApplication(ctx, app); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(os.Stdout, "Created application %s (%s, %s)\n", app.ID, app.Company, app.Status)
	return nil
}

func runApplicationsList(cmd *cobra.Command, _ []string) error {
	userID, err := parseUserFlag(appsUser)
	if err != nil {
		return err
	}
	filter := types.ApplicationFilter{UserID: userID, Limit: types.MaxListLimit}
	if appsFilter != "" {
		st, err := types.ParseStatus(appsFilter)
		if err != nil {
			return err
		}
		filter.Status = st
	}

	ctx := context.Background()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	apps, err := a.store.ListApplications(ctx, filter)
	if err != nil {
		return err
	}
	observability.NewPrinter(os.Stdout).PrintApplications(apps)
	return nil
}
