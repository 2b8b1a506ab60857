// Package otel bridges goCtrl metrics onto an OpenTelemetry meter as
// observable counters, read on each collection cycle from the client's
// counter snapshot.
package otel
