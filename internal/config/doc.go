// SPDX-License-Identifier: MPL-2.0

// Package config loads and persists upmwrap configuration.
//
// Configuration lives in a single directory holding two YAML files:
//
//   - packages.yaml: the list of wrapped packages (git sources and NuGet
//     registry packages)
//   - settings.yaml: global settings (directories, publish defaults, build
//     toggles)
//
// Settings are read through viper so defaults, file values, and future
// overrides merge predictably. The package list is read and written with
// yaml.v3 directly because 'add' and 'remove' must round-trip the document
// back to disk.
package config
