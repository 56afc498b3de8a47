//go:build tools
// +build tools

// Package tools documents development tool dependencies.
// These tools are installed globally via `go install` and are not tracked in go.mod
// since they are development tools, not runtime dependencies.
package tools

// Development tools (install via `go install`):
//
// mockgen - Regenerates the gomock doubles in internal/mocks
//   Install: go install go.uber.org/mock/mockgen@v0.6.0
//   Version: v0.6.0 (matches go.uber.org/mock in go.mod)
//   Usage: go generate ./internal/mocks
//
// golangci-lint - Linting (forbidigo, ireturn and recvcheck directives appear in the source)
//   Install: go install github.com/golangci/golangci-lint/v2/cmd/golangci-lint@latest
//   Docs: https://golangci-lint.run
//
// ncgen - Not a Go tool; ships with netCDF. Compiles `ivt-admin level-bounds` output:
//   ncgen -3 -o level_bounds.nc level_bounds.cdl
