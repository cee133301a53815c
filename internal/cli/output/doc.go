// Package output renders filelink-cli results as a table, JSON or YAML.
//
// Field names follow the json tags of the rendered value in every format,
// so scripts can switch between json and yaml without renaming keys.
package output
