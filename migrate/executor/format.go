package executor

import (
	"strings"
	"time"

	"github.com/satishbabariya/schemaver/migrate"
)

// FormatVersions renders tracking records as tab-separated lines with a
// Version, Created, CreatedBy header. Times are UTC RFC 3339.
func FormatVersions(records []migrate.TrackingRecord) string {
	var b strings.Builder
	b.WriteString("Version\tCreated\tCreatedBy\n")
	for _, rec := range records {
		b.WriteString(rec.Version)
		b.WriteByte('\t')
		b.WriteString(rec.AppliedAtUTC.UTC().Format(time.RFC3339Nano))
		b.WriteByte('\t')
		b.WriteString(rec.AppliedBy)
		b.WriteByte('\n')
	}
	return b.String()
}
