// Package exitcodes defines the standard exit codes used by pbtc-acceptor.
package exitcodes

// Exit code constants used by pbtc-acceptor
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when every component's test suite passes
// * TestFailure (1): Used when one or more components fail, error or are skipped
// * RuntimeErr (2): Used for configuration errors, a missing runner binary, or other runtime failures
const (
	Success     = 0 // All component suites pass
	TestFailure = 1 // Component failures
	RuntimeErr  = 2 // Runtime or configuration errors
)
