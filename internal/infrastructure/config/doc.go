// Package config loads configs/config.yaml into a Config.
//
// Values come from three layers, later ones winning: built-in defaults,
// the YAML file, then environment variables (the envVars table). Secrets
// such as the JWT signing key, the Postgres DSN and broker or InfluxDB
// credentials belong in the environment rather than the file.
//
//	cfg, err := config.Load(os.Getenv("GADGETD_CONFIG"))
//	if err != nil {
//	    return err
//	}
//
// Validate collects every problem before failing; each is a *FieldError
// naming the offending key.
package config
