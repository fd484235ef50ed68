// Package observe provides ready-made callback handlers for the runnable
// dispatcher: zap structured logging, Prometheus metrics, and OpenTelemetry
// tracing. All handlers obey the dispatcher contract: they observe calls
// and never affect their outcome.
package observe
