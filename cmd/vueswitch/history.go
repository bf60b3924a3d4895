package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tejusbharadwaj/vueswitch/internal/database"
	"github.com/tejusbharadwaj/vueswitch/internal/models"
	"github.com/tejusbharadwaj/vueswitch/internal/monitor"
)

var historyLimit int

var errDatabaseDisabled = errors.New("reading store is disabled, set database.enabled in the config")

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored readings",
	Long:  `Displays the most recent readings recorded by the daemon, newest first.`,
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of readings to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}
	if !cfg.Database.Enabled {
		return errDatabaseDisabled
	}

	repo, err := database.NewSQLRepo(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer repo.Close()

	readings, err := repo.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("listing readings: %w", err)
	}

	printReadings(cmd.OutOrStdout(), readings)
	return nil
}

func printReadings(w io.Writer, readings []models.Reading) {
	if len(readings) == 0 {
		fmt.Fprintln(w, "No readings found")
		return
	}

	fmt.Fprintln(w, "------------------------------------------------------------")
	fmt.Fprintf(w, "%-20s  %-20s  %10s  %5s\n", "Time", "Channel", "Watts", "State")
	fmt.Fprintln(w, "------------------------------------------------------------")
	for _, r := range readings {
		fmt.Fprintf(w, "%-20s  %-20s  %10.2f  %5s\n",
			r.Time.Local().Format("2006-01-02 15:04:05"), r.Channel, r.Watts, monitor.StateName(r.On))
	}
	fmt.Fprintln(w, "------------------------------------------------------------")
	fmt.Fprintf(w, "%d readings\n", len(readings))
}
