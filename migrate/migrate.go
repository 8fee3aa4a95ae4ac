// Package migrate holds the domain types shared by the schemaver migration
// engine: version identifiers, tracking records, token maps and the error
// taxonomy every layer reports with.
package migrate

import (
	"time"
)

// Tool is the name recorded in the tracking table when no caller overrides it.
const Tool = "schemaver"

// TrackingRecord is one row of the in-database ledger of applied versions.
type TrackingRecord struct {
	Version              string
	AppliedAtUTC         time.Time
	AppliedBy            string
	AppliedByTool        string
	AppliedByToolVersion string
}

// ParsedVersion returns the record's version as a Version.
func (r TrackingRecord) ParsedVersion() (Version, error) {
	return ParseVersion(r.Version)
}
