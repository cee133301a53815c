// Package confloader loads layered configuration with koanf.
//
// Layers, lowest priority first:
//
//  1. Defaults taken from the koanf-tagged target struct
//  2. A YAML file
//  3. Environment variables (FILELINK_ prefix)
//  4. Explicit overrides, usually command-line flags
//
// Environment names map onto the keys known from the lower layers, so
// FILELINK_STORAGE_DATA_DIR sets storage.data_dir rather than
// storage.data.dir. Unknown names fall back to one level per underscore.
//
// Watcher reports changes to the config file so callers can re-apply the
// settings that are safe to change at runtime.
package confloader
