/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ratelimit provides approximate, non-blocking rate limiting algorithms
// behind a common Limiter interface and a Waiter that turns any Limiter into a blocking admitter.
//
// Algorithms:
//   - sliding window counter (github.com/RussellLuo/slidingwindow): weighs the previous fixed window
//     by its overlap with the sliding one, so short bursts at window edges may exceed the rate slightly;
//   - leaky bucket (GCRA, github.com/throttled/throttled/v2): spreads requests evenly with a configurable burst.
//
// Neither of them keeps per-request timestamps, so both are cheaper than an exact sliding log
// but give no hard "N per any window" guarantee.
package ratelimit
