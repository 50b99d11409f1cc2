// Package provider resolves a user message to a reply.
//
// # Overview
//
// A Responder evaluates the configured mode on every call and delegates to
// exactly one of two providers:
//
//   - Live: POSTs an OutboundMessage to the inference backend under a
//     per-attempt timeout, retrying failures with exponential backoff.
//   - Simulated: waits a random 1.2-2.0s and answers from an ordered keyword
//     trigger table. It never fails.
//
// Both return the same InboundReply shape, so callers cannot tell the modes
// apart.
//
// # Retry Protocol
//
// With MaxRetries = n the live provider makes at most n+1 attempts. After a
// failed attempt with r retries remaining it waits Backoff(n, r):
//
//	attempt 1 fails -> wait 1s
//	attempt 2 fails -> wait 2s
//	attempt 3 fails -> wait 4s
//	attempt 4 fails -> *ExhaustedRetriesError
//
// A timeout aborts the in-flight request and counts as a failed attempt. A
// non-2xx status also counts as a failed attempt; its body is never returned.
//
// # Errors
//
//   - *TimeoutError: one attempt exceeded the configured timeout
//   - *TransportError: non-2xx status, network failure, or undecodable body
//   - *ExhaustedRetriesError: terminal; unwraps to the last attempt's error
//
// # Time
//
// All waiting goes through a clock.Clock so tests can drive timeouts,
// backoff, and simulated latency without sleeping.
package provider
