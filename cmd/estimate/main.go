package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"autocloud.com/car-insurance-estimator/internal/app"
	"autocloud.com/car-insurance-estimator/internal/config"
	"autocloud.com/car-insurance-estimator/internal/logger"
)

var (
	description string
	imagePath   string

	rootCmd = &cobra.Command{
		Use:   "estimate",
		Short: "Estimate car repair costs from a description and a photo",
		Long: "Sends the damage description and an optional photo to Gemini, enriched with reference repair costs, " +
			"and prints the insurance damage report as it is generated.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runEstimate,
	}
)

func init() {
	rootCmd.Flags().StringVarP(&description, "description", "d", "", "description of the incident and visible/internal damage")
	rootCmd.Flags().StringVarP(&imagePath, "image", "i", "", "path to a photo of the damaged car")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runEstimate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// Keep stdout for the report.
	logr, err := logger.New("WARN")
	if err != nil {
		return err
	}
	defer logr.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer application.Close()

	out := cmd.OutOrStdout()
	printed := ""
	for report, err := range application.Estimator.Estimate(ctx, description, imagePath) {
		if err != nil {
			fmt.Fprintln(out)
			return err
		}
		// Snapshots only grow, so only the unseen tail needs printing.
		if strings.HasPrefix(report, printed) {
			fmt.Fprint(out, report[len(printed):])
		} else {
			fmt.Fprint(out, "\n"+report)
		}
		printed = report
	}
	fmt.Fprintln(out)
	return nil
}
