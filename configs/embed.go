// Package configs provides embedded configuration templates for ragcore.
//
// Templates are embedded at build time using Go's //go:embed directive, so
// they are available in all distributions (source builds and binary
// releases).
//
// Configuration hierarchy (see internal/config.Load):
//  1. Hardcoded defaults (internal/config.NewConfig)
//  2. User config (~/.config/ragcore/config.yaml)
//  3. Project config (.ragcore.yaml)
//  4. Environment variables (RAGCORE_*)
package configs

import _ "embed"

// UserConfigTemplate is the template for user/machine-level configuration.
// Created by `ragcore config init` at ~/.config/ragcore/config.yaml.
// Contains machine-specific settings: Ollama host, LLM provider, Redis.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is the template for project-level configuration.
// Created at .ragcore.yaml in the knowledge-base root. Contains the RSE
// profile and search tuning that travel with the corpus.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
