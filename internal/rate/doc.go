// Package rate throttles failed logins with Redis fixed-window counters.
//
// # Keys
//
//   - rl:login:user:<username>  failures for a (lower-cased) username
//   - rl:login:ip:<ip>          failures from a client address
//
// Each counter expires one window after its first failure.
//
// # What this package must NOT do
//
//   - Decide whether credentials are valid.
//   - Be imported outside the goTodo module.
package rate
