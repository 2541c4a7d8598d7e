package runner

// Runner invocation constants
const (
	// DefaultRunnerBinary is the external test runner invoked per component
	DefaultRunnerBinary = "cargo"

	// Runner command arguments
	TestCommand = "test"
	PackageFlag = "-p"

	// MaxReasonableConcurrency caps configured concurrency to avoid resource exhaustion
	MaxReasonableConcurrency = 32

	// defaultOutputTailBytes bounds the captured runner output kept per component
	defaultOutputTailBytes = 256 * 1024
)
