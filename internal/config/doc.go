// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable
// interpolation, so secrets like the feed token and database password can
// stay in the environment (or a .env file loaded by the commands).
package config
