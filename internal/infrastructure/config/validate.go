package config

import (
	"errors"
	"fmt"
)

// minJWTSecretLength is the shortest HS256 signing secret accepted.
const minJWTSecretLength = 32

// FieldError names the YAML key that failed validation.
type FieldError struct {
	Field   string
	Problem string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Problem }

// Validate reports every problem at once, each as a *FieldError.
func (c *Config) Validate() error {
	var errs []error
	bad := func(field, problem string) {
		errs = append(errs, &FieldError{Field: field, Problem: problem})
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			bad("database.path", "required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			bad("database.dsn", "required for the postgres driver")
		}
	default:
		bad("database.driver", fmt.Sprintf("must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver))
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			bad("mqtt.qos", "must be 0, 1 or 2")
		}
		if c.MQTT.Broker.Host == "" {
			bad("mqtt.broker.host", "required when mqtt is enabled")
		}
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		bad("api.port", "must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled {
		for _, f := range [...]struct{ field, value string }{
			{"influxdb.url", c.InfluxDB.URL},
			{"influxdb.token", c.InfluxDB.Token},
			{"influxdb.org", c.InfluxDB.Org},
			{"influxdb.bucket", c.InfluxDB.Bucket},
		} {
			if f.value == "" {
				bad(f.field, "required when influxdb is enabled")
			}
		}
	}

	switch secret := c.Security.JWT.Secret; {
	case secret == "":
		bad("security.jwt.secret", "required (set GADGETD_JWT_SECRET)")
	case len(secret) < minJWTSecretLength:
		bad("security.jwt.secret", fmt.Sprintf("must be at least %d characters", minJWTSecretLength))
	}
	if c.Security.JWT.AccessTokenTTL <= 0 {
		bad("security.jwt.access_token_ttl", "must be positive")
	}

	if c.Gadgets.SelfDestructDelay <= 0 {
		bad("gadgets.self_destruct_delay", "must be positive")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
}
