// Package config defines the gateway's YAML configuration: structure,
// defaults, environment overrides, and validation.
//
// Loading follows a fixed sequence: parse the YAML file, apply defaults
// to unset fields, apply MEKONG_* environment overrides, then validate.
// Environment variables always win over file values, which lets
// deployments inject secrets (notably MEKONG_AUTH_TOKEN_SECRET) without
// writing them to disk.
package config
