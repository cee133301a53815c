// Package config defines the filelink-cli configuration file.
//
// The file lives at ~/.filelink/cli.yaml and supplies defaults for the
// global flags. Flags and FILELINK_* environment variables win over it.
package config
