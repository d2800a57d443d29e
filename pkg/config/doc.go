// Package config defines the YAML configuration schema for quaestor and
// the machinery around it: loading, defaults, validation, environment
// overrides and change watching.
//
// Loading follows a fixed sequence: parse YAML, apply defaults, apply
// QUAESTOR_* environment overrides, validate. Validation collects every
// problem into a single ValidationError rather than failing on the first.
package config
