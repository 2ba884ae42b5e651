/*
Package resilience holds the circuit breaker that sits in front of the
fragment endpoint. When the breaker is open, navigation skips the request
and falls back to a full document load.

	Closed --[N consecutive failures]--> Open --[cooldown]--> Half-Open
	Half-Open --[probe ok]--> Closed
	Half-Open --[probe fails]--> Open
*/
package resilience
