// Package config provides configuration management for the rich history CLI.
//
// Configuration is loaded from a YAML file, completed with defaults,
// overridden by environment variables and finally validated:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("richhistory.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention RICHHISTORY_SECTION_FIELD.
// For example:
//
//   - RICHHISTORY_STORAGE_BACKEND overrides storage.backend
//   - RICHHISTORY_STORAGE_DYNAMODB_TABLE overrides storage.dynamodb.table
//   - RICHHISTORY_HISTORY_MAX_ENTRIES overrides history.max_entries
//   - RICHHISTORY_LOGGING_LEVEL overrides logging.level
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Validation
//
// Validate collects every problem into a ValidationError, so a broken
// file is reported in one pass:
//
//	if err := config.Validate(cfg); err != nil {
//	    var verr config.ValidationError
//	    if errors.As(err, &verr) {
//	        for _, fe := range verr.Errors {
//	            fmt.Println(fe.Field, fe.Message)
//	        }
//	    }
//	}
package config
