// Quaestor is a budget and throttling admission control engine for
// autonomous agent workloads.
//
// It tracks operation costs against budget policies over calendar and
// episode periods, decides whether each operation may proceed, and
// translates budget pressure into graduated throttling (delays and quality
// degradation) instead of hard failures.
//
// Usage:
//
//	# Start the engine with default configuration
//	quaestor run
//
//	# Start with a custom configuration file
//	quaestor run --config /path/to/quaestor.yaml
//
//	# Evaluate a single operation against the configured policies
//	quaestor check --operation llm_call --cost 0.05
//
//	# Show version information
//	quaestor version
package main

func main() {
	Execute()
}
