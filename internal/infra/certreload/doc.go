// Package certreload keeps a server certificate in sync with its PEM files.
//
// A Reloader loads the key pair once at construction and again whenever
// fsnotify reports a write to either file, so certificates renewed on
// disk take effect without a restart. A failed reload keeps serving the
// previous pair.
package certreload
