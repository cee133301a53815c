// Package buildinfo exposes version information injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/filelink-go/internal/infra/buildinfo.Version=v1.0.0 \
//	  -X github.com/yndnr/filelink-go/internal/infra/buildinfo.Commit=abc123"
//
// When a value is not injected, the VCS data embedded by the Go toolchain
// is used where available.
package buildinfo
