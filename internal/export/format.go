package export

import (
	"fmt"
	"strings"
)

// Format selects how an export run materializes query results.
type Format string

const (
	// FormatRaw returns rows to the caller, never writing files. Rejected
	// by the batch driver, which has nothing to upload for it.
	FormatRaw Format = "raw"

	// FormatCSV writes one .csv file per script.
	FormatCSV Format = "csv"

	// FormatCSVGzip writes one gzip-compressed .csv.gz file per script.
	FormatCSVGzip Format = "csv.gz"

	// FormatBoth writes the .csv and .csv.gz variants side by side.
	FormatBoth Format = "both"
)

// ParseFormat normalizes and validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatRaw, FormatCSV, FormatCSVGzip, FormatBoth:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", ErrInvalidConfiguration, s)
	}
}
