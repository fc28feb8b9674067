// Package configs provides embedded configuration templates for Parallax.
//
// Templates are embedded at build time with //go:embed so they ship in
// every distribution, source builds included. They are written out by
// `parallax config init`.
//
// Configuration precedence (see internal/config Load):
//  1. Hardcoded defaults (internal/config NewConfig)
//  2. User config (~/.config/parallax/config.yaml)
//  3. Project config (.parallax.yaml)
//  4. Environment variables (PARALLAX_*)
package configs

import _ "embed"

// UserConfigTemplate is the template for user/machine-level configuration.
// Created by `parallax config init` at ~/.config/parallax/config.yaml.
// Holds machine-specific settings: catalog connection, embeddings host,
// cloud-search credentials.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is the template for project-level configuration.
// Written as .parallax.yaml next to the data being ingested. Holds
// settings worth version-controlling: search weights, ingestion mode,
// tenant limits.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
