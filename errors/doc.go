// Package errors provides the unified error type used across viewkit.
//
// Every failure that crosses a package boundary is an *AppError carrying a
// machine-readable code, an HTTP status hint, and a retryable flag. The
// view-state taxonomy is small:
//
//   - LOAD_FAILURE: a cache loader rejected; surfaced from fetchcache Get.
//   - INVALID_DESCRIPTOR: malformed query state; recovered by defaulting.
//   - STALE_BOUNDARY: a boundary bound for a closed overlay; a no-op.
package errors
