package errkind

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"syscall"
)

// IsTransient classifies a raised Go error as retryable, ported from
// the teacher's network/syscall/HTTP-status heuristic
// (internal/errors/types.go: IsTransient). Network errors, common
// connection syscalls, and 429/5xx responses are transient; everything
// else — including explicit 4xx client errors such as an auth failure
// — is permanent, so RetryingExecutor fails fast instead of burning
// its retry budget on an error that will never succeed.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if isNetworkError(err) {
		return true
	}
	if code := extractHTTPStatusCode(err); code > 0 {
		return transientHTTPStatus[code]
	}
	return isSyscallError(err)
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}

	lower := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused", "connection reset", "timeout",
		"deadline exceeded", "broken pipe", "network is unreachable",
		"no such host",
	} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func isSyscallError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EPIPE,
			syscall.ETIMEDOUT, syscall.ENETUNREACH, syscall.EHOSTUNREACH:
			return true
		}
	}
	return false
}

var transientHTTPStatus = map[int]bool{
	429: true, // Too Many Requests
	500: true, // Internal Server Error
	502: true, // Bad Gateway
	503: true, // Service Unavailable
	504: true, // Gateway Timeout
}

// extractHTTPStatusCode looks for a well-known status code mentioned in
// the error text, the way engine/SDK errors typically surface them
// (e.g. "API error 429: rate limited").
func extractHTTPStatusCode(err error) int {
	lower := strings.ToLower(err.Error())
	for _, code := range []int{400, 401, 403, 404, 409, 422, 429, 500, 502, 503, 504} {
		if strings.Contains(lower, strconv.Itoa(code)) {
			return code
		}
	}
	return 0
}
