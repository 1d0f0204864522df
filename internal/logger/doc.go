// Package logger wraps zap with a global sugared logger and context helpers.
//
// Services receive a context and pull their logger from it, so names and
// key-value pairs attached upstream (ToContext/WithName/WithKV) follow every
// log line of a publish run. Output goes to stderr to keep stdout for command
// results.
package logger
