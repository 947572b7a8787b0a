// Package config loads the YAML configuration consumed by the chatpilot
// facade daemons.
//
// Configuration covers the file-backed state directory (defaulting under the
// user's home directory), the HTTP control API bind address (loopback-only by
// default) and JWT secret, the billing collaborator endpoint with its request
// timeout, and logging. ${VAR_NAME} patterns are expanded from the
// environment before parsing, so secrets can stay out of the file itself.
package config
