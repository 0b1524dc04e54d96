// Package config loads library settings from a YAML file with environment
// variable expansion, so hosting services can tune cache behavior without
// recompiling.
package config
