// Package literal parses argument tokens into ir.ArgumentSpec values.
//
// The token grammar is tried in a fixed order, first match wins:
//
//	$<digits>     positional reference to an event parameter
//	<decimal>m    decimal literal (*apd.Decimal)
//	`text`        string literal, content between the back-ticks
//	<n>.<n>       float64 literal (must contain a '.')
//	<integer>     int literal
//
// Anything else is a PARSE_ERROR. Values that are not strings are already
// typed and pass through unparsed.
package literal
