package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks every section and reports all invalid fields at once.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	if c.Master.Address == "" {
		add("master.address", "address is required")
	} else if !isValidAddress(c.Master.Address) {
		add("master.address", "invalid address format, expected host:port or :port")
	}
	if c.Master.HeartbeatTTL < 0 {
		add("master.heartbeat_ttl", "must not be negative")
	}
	if c.Master.HeartbeatTTL > 0 && c.Master.SweepInterval <= 0 {
		add("master.sweep_interval", "must be positive when heartbeat_ttl is set")
	}

	if c.Worker.BaseURL == "" {
		add("worker.base_url", "base url is required")
	}
	if c.Worker.Port <= 0 || c.Worker.Port > 65535 {
		add("worker.port", "must be between 1 and 65535")
	}
	if c.Worker.Register && !isValidURL(c.Worker.MasterURL) {
		add("worker.master_url", "must be an absolute http(s) url")
	}
	if c.Worker.Register && c.Worker.HeartbeatInterval <= 0 {
		add("worker.heartbeat_interval", "must be positive")
	}
	if c.Worker.MaxConnections < 0 {
		add("worker.max_connections", "must not be negative")
	}
	if c.Worker.WorkStep <= 0 || c.Worker.WorkStep > 100 {
		add("worker.work_step", "must be between 1 and 100")
	}
	if c.Worker.WorkStepDelay < 0 {
		add("worker.work_step_delay", "must not be negative")
	}

	if c.Scheduler.Enabled {
		if c.Scheduler.TargetURL != "" && !isValidURL(c.Scheduler.TargetURL) {
			add("scheduler.target_url", "must be an absolute http(s) url")
		}
		if c.Scheduler.InitialDelay < 0 {
			add("scheduler.initial_delay", "must not be negative")
		}
		if c.Scheduler.TickInterval <= 0 {
			add("scheduler.tick_interval", "must be positive")
		}
		if c.Scheduler.RequestTimeout <= 0 {
			add("scheduler.request_timeout", "must be positive")
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("logging.level", "must be one of debug, info, warn, error")
	}
	switch c.Logging.Output {
	case "", "stdout":
	case "file", "both":
		if c.Logging.FilePath == "" {
			add("logging.file_path", "required when output is file or both")
		}
	default:
		add("logging.output", "must be one of stdout, file, both")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func isValidAddress(addr string) bool {
	_, port, err := net.SplitHostPort(addr)
	return err == nil && port != ""
}

func isValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
