// Package telemetry provides OpenTelemetry initialization and helpers
// for tracing, metrics and log export across the chefai service and worker.
//
// The package configures OTLP HTTP export for traces, metrics and logs.
package telemetry
