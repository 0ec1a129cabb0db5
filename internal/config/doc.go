// Package config provides configuration management for the restroom map
// API client.
//
// Configuration is read from a YAML file on top of DefaultConfig, so a file
// only needs to name the values it changes. Environment variables can be
// referenced with ${VAR} and ${VAR:-default}:
//
//	api:
//	  baseURL: ${RESTROOMMAP_API_URL:-http://localhost:8000/api}
//	retry:
//	  read:
//	    maxRetries: 5
//	    initialDelay: 1s
//
// Durations use Go's time.ParseDuration syntax ("300ms", "30s", "5m").
package config
