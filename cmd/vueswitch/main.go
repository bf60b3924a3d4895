// Command vueswitch exposes an Emporia Vue channel as a read-only virtual
// switch.
//
// The switch is on while the channel draws at least the configured number
// of watts. State is refreshed on a cron schedule and published to HomeKit
// and/or Home Assistant over MQTT.
//
// Usage:
//
//	vueswitch [command] [flags]
//
// The commands are:
//
//	run      start the switch daemon
//	check    evaluate the channel once and print the result
//	login    authenticate with Emporia and store tokens
//	history  list stored readings
package main

import (
	"context"
	"os"
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
