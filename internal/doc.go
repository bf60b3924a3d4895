// Package vueswitch exposes an Emporia Vue energy-monitor channel as a
// read-only virtual switch for home-automation hosts.
//
// # Architecture
//
// The service is structured into several key packages:
//   - api: Emporia cloud client (Cognito login, devices, usage)
//   - monitor: channel lookup, unit conversion and threshold evaluation
//   - accessory: cached switch state and host notification
//   - host: HomeKit and Home Assistant MQTT platforms
//   - scheduler: cron-driven state refresh in a fixed timezone
//   - history, database, metrics, grpc: observers of every evaluation
//   - status: HTTP metrics, status and liveness endpoints
//   - config, models: configuration and shared data structures
//
// Key Features
//
//   - Threshold switch:
//     The switch is on while the channel's one-second usage, converted to
//     watts, is at or above the configured threshold. Any failure along the
//     way turns it off until the next successful poll.
//
//   - Read-only:
//     Host writes are accepted and discarded. Reads return the cached
//     state and never block on the cloud API.
//
//   - Token reuse:
//     Cognito tokens are stored on disk and refreshed instead of logging in
//     with the password on every poll.
//
// Example Usage
//
//	vueswitch --config config.yaml check
//	vueswitch --config config.yaml run
//
// For more information about specific packages, see their respective
// documentation.
package vueswitch
