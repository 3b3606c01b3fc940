package gcra

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// NoRetry is the RetryAfter value of a granted request. It is the store's
// "-1" seconds sentinel.
const NoRetry = -time.Second

// Result captures the limiter decision and relevant metadata for a key.
// All durations are relative to the time the store ran the check.
type Result struct {
	// Spec is the rate configuration the key was checked against.
	Spec RateSpec

	// Allowed is the number of tokens granted. It equals Spec.Cost unless
	// the bucket held fewer tokens, and is 0 when the request was denied.
	Allowed int64

	// Remaining is the number of whole tokens left after this request.
	Remaining int64

	// RetryAfter is how long to wait before one token is available again.
	// It is NoRetry when the request was granted.
	RetryAfter time.Duration

	// ResetAfter is the time until the bucket is full again.
	ResetAfter time.Duration
}

// OK reports whether any token was granted.
func (r *Result) OK() bool {
	return r.Allowed > 0
}

// Partial reports whether fewer tokens than requested were granted.
func (r *Result) Partial() bool {
	return r.Allowed > 0 && r.Allowed < r.Spec.Cost
}

// RetryAfterSeconds returns RetryAfter in seconds, or -1 when the request
// was granted.
func (r *Result) RetryAfterSeconds() float64 {
	if r.RetryAfter == NoRetry {
		return -1
	}
	return r.RetryAfter.Seconds()
}

// ResetAfterSeconds returns ResetAfter in seconds.
func (r *Result) ResetAfterSeconds() float64 {
	return r.ResetAfter.Seconds()
}

func (r *Result) String() string {
	retry := "none"
	if r.RetryAfter != NoRetry {
		retry = r.RetryAfter.String()
	}
	return fmt.Sprintf("allowed=%d remaining=%d retry_after=%s reset_after=%s",
		r.Allowed, r.Remaining, retry, r.ResetAfter)
}

// parseReply maps the 4-element script reply onto a Result.
func parseReply(spec RateSpec, reply []interface{}) (*Result, error) {
	if len(reply) != 4 {
		return nil, fmt.Errorf("%w: got %d items, want 4", ErrUnexpectedReply, len(reply))
	}

	allowed, err := parseWhole(reply[0])
	if err != nil {
		return nil, fmt.Errorf("%w: parse allowed: %w", ErrUnexpectedReply, err)
	}
	remaining, err := parseWhole(reply[1])
	if err != nil {
		return nil, fmt.Errorf("%w: parse remaining: %w", ErrUnexpectedReply, err)
	}
	retryAfter, err := parseRetryAfter(reply[2])
	if err != nil {
		return nil, fmt.Errorf("%w: parse retry_after: %w", ErrUnexpectedReply, err)
	}
	resetAfter, err := parseSeconds(reply[3])
	if err != nil {
		return nil, fmt.Errorf("%w: parse reset_after: %w", ErrUnexpectedReply, err)
	}

	return &Result{
		Spec:       spec,
		Allowed:    allowed,
		Remaining:  remaining,
		RetryAfter: retryAfter,
		ResetAfter: resetAfter,
	}, nil
}

// parseWhole accepts an integer reply or its text form. Fractional text is
// truncated the way Redis truncates Lua numbers.
func parseWhole(raw interface{}) (int64, error) {
	switch t := raw.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case float64:
		return int64(t), nil
	}
	s, err := normalizeString(raw)
	if err != nil {
		return 0, err
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Trunc(f)), nil
}

func parseRetryAfter(raw interface{}) (time.Duration, error) {
	s, err := normalizeString(raw)
	if err != nil {
		return 0, err
	}
	if s == "-1" {
		return NoRetry, nil
	}
	return secondsToDuration(s)
}

func parseSeconds(raw interface{}) (time.Duration, error) {
	s, err := normalizeString(raw)
	if err != nil {
		return 0, err
	}
	return secondsToDuration(s)
}

func secondsToDuration(s string) (time.Duration, error) {
	seconds, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func normalizeString(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	default:
		return "", fmt.Errorf("unexpected type %T", v)
	}
}
