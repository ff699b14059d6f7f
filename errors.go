package sqldoctest

import "errors"

// Common errors used throughout the sqldoctest packages
var (
	// ErrConfigValidation is returned when configuration validation fails.
	ErrConfigValidation = errors.New("configuration validation failed")
	// ErrConfigFileNotFound indicates a configuration file could not be located.
	ErrConfigFileNotFound = errors.New("configuration file not found")
	// ErrEnvironmentNotFound indicates the requested database environment is not configured.
	ErrEnvironmentNotFound = errors.New("database environment not found")
	// ErrUnsupportedDialect indicates a dialect without a registered adapter.
	ErrUnsupportedDialect = errors.New("unsupported dialect")

	// Test runner errors

	// ErrNoTestFiles indicates discovery found nothing to run.
	ErrNoTestFiles = errors.New("no test files found")
	// ErrProvisioningFailed indicates a per-file database could not be prepared.
	ErrProvisioningFailed = errors.New("database provisioning failed")
	// ErrTestsFailed is returned by the CLI when at least one test failed.
	ErrTestsFailed = errors.New("some tests failed")
)
