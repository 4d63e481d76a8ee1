// SPDX-License-Identifier: MPL-2.0

// Package upm generates the Unity Package Manager file surface of a wrapped
// package: the package.json manifest, the optional .asmdef assembly
// definition, and the .meta sidecar beside every file and directory.
//
// Manifests and assembly definitions are typed structs with an explicit Extra
// map: known fields are strongly typed, unrecognized keys survive a
// parse/serialize round trip, and Extra entries are merged last so they can
// override any generated field.
package upm
