// Package cladecall exposes release metadata shared by the CLI and the
// provenance records written into output artifacts.
package cladecall

// Version is the release version reported by the CLI and recorded in
// provenance.
const Version = "0.1.0"
