// Package config provides configuration loading for Ecolink Core.
//
// Configuration is read from a YAML file, merged over hardcoded defaults
// and finally overridden by ECOLINK_* environment variables. Secrets
// (account password hash, telemetry token) should be supplied through the
// environment rather than the file.
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
package config
