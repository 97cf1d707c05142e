package config

import "fmt"

// OutputFormat selects how commands render results
type OutputFormat string

const (
	OutputTable OutputFormat = "table"
	OutputJSON  OutputFormat = "json"
)

// ValidateOutput checks if the given string is a supported output format.
// An empty value defaults to table.
func ValidateOutput(format string) (OutputFormat, error) {
	switch OutputFormat(format) {
	case "", OutputTable:
		return OutputTable, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format %q: must be 'table' or 'json'", format)
	}
}
