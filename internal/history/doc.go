// Package history provides the bounded transformation log.
//
// Each applied request contributes one row per evaluated rule, recording
// the text before and after the rule and whether it took effect. Rows are
// kept in insertion order; once the log holds more than its capacity the
// oldest rows are evicted.
//
// # Database Configuration
//
//   - WAL mode for file databases
//   - busy_timeout=5000
//   - one connection, which also keeps ":memory:" databases alive
package history
