// Package spec contains constants shared by the speedtest status page server
// and its clients.
package spec

import "time"

const (
	// SpeedPath is the URL path serving the latest measurement.
	SpeedPath = "/speed"

	// NotReadyMessage is the body returned by SpeedPath before the first
	// successful measurement.
	NotReadyMessage = "Speedtest result not available yet."

	// DefaultBinary is the measurement tool invoked when none is configured.
	DefaultBinary = "speedtest-cli"

	// JSONFlag asks the measurement tool for machine-readable output.
	JSONFlag = "--json"

	// DefaultInterval is the default time between two measurements.
	DefaultInterval = 10 * time.Minute

	// MinInterval is the shortest accepted time between two measurements.
	// Shorter intervals are raised to this value.
	MinInterval = time.Minute

	// DefaultTimeout bounds a single run of the measurement tool.
	DefaultTimeout = 3 * time.Minute
)
