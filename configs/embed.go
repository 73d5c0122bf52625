// Package configs provides the embedded configuration template for
// websearch.
//
// The template is embedded at build time with go:embed so it ships in
// every distribution. `websearch config init` writes it to
// <data-dir>/config.yaml as a commented starting point; the effective
// configuration is defaults, then the YAML file, then WEBSEARCH_*
// environment variables (see internal/config).
package configs

import _ "embed"

// ConfigTemplate is the commented example configuration written by
// `websearch config init`.
//
//go:embed config.example.yaml
var ConfigTemplate string
