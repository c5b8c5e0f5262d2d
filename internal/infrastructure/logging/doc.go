// Package logging configures gadgetd's structured logger on log/slog.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Every entry carries service=gadgetd and the build version. Attributes
// named password, token, secret, authorization or ticket are replaced with
// [REDACTED] before they are written.
//
//	log := logging.New(cfg.Logging, version)
//	lifecycle.SetLogger(log.Component("lifecycle"))
package logging
