// Package otel provides an OpenTelemetry observer for the scope library.
// It records scope and task lifecycle (spawn, cancel, join, error, panic) as
// span events.
package otel
