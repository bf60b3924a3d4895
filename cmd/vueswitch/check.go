package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tejusbharadwaj/vueswitch/internal/monitor"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate the channel once",
	Long:  `Logs in, reads the configured channel's current draw and prints the switch state it maps to.`,
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	mon := monitor.New(newAPIClient(cfg, logger), monitorSettings(cfg), logger)
	reading, err := mon.Fetch(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Channel:   %s (device %d, channel %s)\n", reading.Channel, reading.DeviceGid, reading.ChannelNum)
	fmt.Fprintf(out, "Usage:     %.2f W\n", reading.Watts)
	fmt.Fprintf(out, "Threshold: %v W\n", reading.ThresholdWatts)
	fmt.Fprintf(out, "State:     %s\n", monitor.StateName(reading.On))
	return nil
}
