// Package configs embeds the configuration template written by
// `docrag config init`, so every build ships with it.
package configs

import _ "embed"

// ProjectConfigTemplate is the commented .docrag.yaml template. Its values
// match config.NewConfig.
//
//go:embed config.example.yaml
var ProjectConfigTemplate string
