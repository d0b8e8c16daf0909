package config

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

var supportedDrivers = map[string]bool{
	"sqlite":   true,
	"postgres": true,
}

// Validate validates the configuration. A missing Gemini API key is not an
// error here; the orchestrator rejects each message instead.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if !supportedDrivers[c.Database.Driver] {
		result = multierror.Append(result, fmt.Errorf("database.driver %q is not supported (use sqlite or postgres)", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		result = multierror.Append(result, fmt.Errorf("database.dsn is required"))
	}

	if c.Gemini.Model == "" {
		result = multierror.Append(result, fmt.Errorf("gemini.model is required"))
	}
	if c.Gemini.BaseURL == "" {
		result = multierror.Append(result, fmt.Errorf("gemini.base_url is required"))
	}
	if t := c.Gemini.Temperature; t != nil && (*t < 0 || *t > 2) {
		result = multierror.Append(result, fmt.Errorf("gemini.temperature must be within [0, 2], got %v", *t))
	}
	if c.Gemini.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("gemini.timeout must be positive"))
	}

	if c.Tools.ExecutionTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("tools.execution_timeout must be positive"))
	}

	if budget := c.RequestBudget(); c.Server.WriteTimeout > 0 && c.Server.WriteTimeout <= budget {
		result = multierror.Append(result, fmt.Errorf("server.write_timeout (%s) must exceed two gemini.timeout plus tools.execution_timeout (%s)", c.Server.WriteTimeout, budget))
	}

	return result.ErrorOrNil()
}
