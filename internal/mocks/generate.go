// Package mocks provides mock implementations of the ivt-chain ports for testing.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the interfaces in internal/core.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	sub := mocks.NewMockSubmitter(ctrl)
//	sub.EXPECT().Submit(gomock.Any(), gomock.Any(), nil).Return("1001", nil)
package mocks

// Generate mock for Submitter interface from internal/core package.
// This creates MockSubmitter with methods for all Submitter interface methods:
// Submit
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=submitter_mock.go github.com/target/ivt-chain/internal/core Submitter

// Generate mock for QueueInspector interface from internal/core package.
// This creates MockQueueInspector with methods for all QueueInspector interface methods:
// State
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=queue_inspector_mock.go github.com/target/ivt-chain/internal/core QueueInspector

// Generate mock for ChainRepository interface from internal/core package.
// This creates MockChainRepository with methods for all ChainRepository interface methods:
// CreateRun, RecordJob, FinishRun, GetRun, ListRuns, ListJobs
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=chain_repository_mock.go github.com/target/ivt-chain/internal/core ChainRepository

// Generate mock for Locker interface from internal/core package.
// This creates MockLocker with methods for all Locker interface methods:
// Acquire, Release
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=locker_mock.go github.com/target/ivt-chain/internal/core Locker
