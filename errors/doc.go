// Package errors provides the structured error type used across wirekit.
// Every failure that leaves the process, whether printed by the CLI or
// returned by the inspection server, is an AppError with a machine-readable
// code, a human message, and optional details. Resolution failures map to
// HTTP 422 since the request was well formed but the graph cannot satisfy it.
package errors
