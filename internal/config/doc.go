// Package config loads master and worker configuration from defaults, a YAML
// file, environment variables and command-line overrides, in that order.
package config
