/*
Package resilience provides the circuit breaker that guards sandbox boots.

When the host cannot run sandboxes (no PTY support, workspace root not
writable) every boot fails the same way. The breaker opens after a run of
consecutive failures so later sessions fall back to the simulated shell
at once instead of retrying a doomed boot.

	Closed --[MaxFailures]-> Open --[Cooldown]-> Half-Open --[success]-> Closed
	                                               |
	                                           [failure]
	                                               v
	                                             Open

Context cancellation counts as neither success nor failure.
*/
package resilience
