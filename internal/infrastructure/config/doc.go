// Package config handles loading and validating ACM runtime configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (ACM_*)
//   - Validation of required fields
//   - Default value handling
//
// Sensitive values (MQTT password, InfluxDB token, Redis password) should be
// set via environment variables rather than committed to the config file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Runtime.Name)
package config
