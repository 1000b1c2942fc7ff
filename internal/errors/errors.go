// Package errors provides error classification and retry handling for the
// market-data utilities. Errors are tagged with a type that mirrors how the
// caller is expected to react: parse and lookup errors surface immediately,
// network errors degrade a fetch to a partial result, configuration errors
// abort before any request is made.
package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/johnayoung/go-crypto-datautil/internal/config"
)

// ErrorType represents the classification of an error
type ErrorType string

const (
	// Retryable error types
	ErrorTypeNetwork     ErrorType = "network"      // Network connectivity issues
	ErrorTypeTimeout     ErrorType = "timeout"      // Request timeout
	ErrorTypeRateLimit   ErrorType = "rate_limit"   // HTTP 429 from an exchange
	ErrorTypeServerError ErrorType = "server_error" // HTTP 5xx errors

	// Non-retryable error types
	ErrorTypeAuthentication ErrorType = "authentication" // Signature or key rejected
	ErrorTypeBadRequest     ErrorType = "bad_request"    // HTTP 4xx errors (except rate limit)
	ErrorTypeParse          ErrorType = "parse"          // Malformed dates, numbers or payloads
	ErrorTypeLookup         ErrorType = "lookup"         // Missing column or key
	ErrorTypeValidation     ErrorType = "validation"     // Bad arguments
	ErrorTypeConfiguration  ErrorType = "configuration"  // Unsupported period, fill strategy, format
	ErrorTypeIO             ErrorType = "io"             // File system failures

	ErrorTypeUnknown ErrorType = "unknown"
)

// Sentinel errors shared by the domain packages. They are wrapped with
// fmt.Errorf("%w") or a ClassifiedError, so match them with errors.Is.
var (
	ErrColumnNotFound    = errors.New("column not found")
	ErrSchemaMismatch    = errors.New("column sets differ")
	ErrTooFewInputs      = errors.New("too few inputs")
	ErrInvalidPeriod     = errors.New("invalid period")
	ErrUpsample          = errors.New("period is finer than the input granularity")
	ErrUnsupportedFill   = errors.New("unsupported fill strategy")
	ErrParse             = errors.New("unable to parse value")
	ErrOutOfRange        = errors.New("value out of range")
	ErrInvalidBase       = errors.New("round base must be >= 1")
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrMissingPartition  = errors.New("partition does not exist")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// ClassifiedError represents an error with metadata for handling decisions
type ClassifiedError struct {
	Err       error                  `json:"error"`
	Type      ErrorType              `json:"type"`
	Retryable bool                   `json:"retryable"`
	Component string                 `json:"component"`
	Operation string                 `json:"operation"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Attempts  int                    `json:"attempts"`
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Component == "" {
		return fmt.Sprintf("[%s] %s: %v", ce.Type, ce.Operation, ce.Err)
	}
	return fmt.Sprintf("[%s/%s] %s: %v", ce.Component, ce.Type, ce.Operation, ce.Err)
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// Is matches another ClassifiedError by type, otherwise defers to the wrapped error.
func (ce *ClassifiedError) Is(target error) bool {
	if t, ok := target.(*ClassifiedError); ok {
		return ce.Type == t.Type
	}
	return errors.Is(ce.Err, target)
}

// WithContext attaches a key/value pair and returns the same error.
func (ce *ClassifiedError) WithContext(key string, value interface{}) *ClassifiedError {
	if ce.Context == nil {
		ce.Context = make(map[string]interface{})
	}
	ce.Context[key] = value
	return ce
}

// New builds a ClassifiedError with the default retry flag for errType.
func New(errType ErrorType, component, operation string, err error) *ClassifiedError {
	return &ClassifiedError{
		Err:       err,
		Type:      errType,
		Retryable: retryableByDefault(errType),
		Component: component,
		Operation: operation,
		Timestamp: time.Now(),
	}
}

// Newf is New with a formatted message.
func Newf(errType ErrorType, component, operation, format string, args ...interface{}) *ClassifiedError {
	return New(errType, component, operation, fmt.Errorf(format, args...))
}

// HTTPStatusError carries a non-2xx response from an exchange.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPStatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("http %d from %s: %s", e.StatusCode, e.URL, body)
}

// ErrorClassifier turns arbitrary errors into ClassifiedErrors.
type ErrorClassifier struct {
	retryable map[ErrorType]bool
	logger    *slog.Logger
}

// NewErrorClassifier creates a classifier. Error types listed in
// policy.RetryableErrors are treated as retryable in addition to the defaults.
func NewErrorClassifier(policy config.RetryPolicyConfig, logger *slog.Logger) *ErrorClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	retryable := make(map[ErrorType]bool, len(policy.RetryableErrors))
	for _, t := range policy.RetryableErrors {
		retryable[ErrorType(t)] = true
	}
	return &ErrorClassifier{retryable: retryable, logger: logger}
}

// Classify analyzes an error and returns a ClassifiedError with retry metadata
func (ec *ErrorClassifier) Classify(err error, component, operation string) *ClassifiedError {
	if err == nil {
		return nil
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}

	errorType := classifyErrorType(err)
	classified := New(errorType, component, operation, err)
	if ec.retryable[errorType] {
		classified.Retryable = true
	}

	ec.logger.Debug("error classified",
		"type", errorType,
		"retryable", classified.Retryable,
		"component", component,
		"operation", operation,
		"error", err.Error())

	return classified
}

// classifyErrorType determines the error type based on the error content
func classifyErrorType(err error) ErrorType {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return typeForStatus(statusErr.StatusCode)
	}

	switch {
	case errors.Is(err, ErrColumnNotFound), errors.Is(err, ErrMissingPartition):
		return ErrorTypeLookup
	case errors.Is(err, ErrParse):
		return ErrorTypeParse
	case errors.Is(err, ErrInvalidPeriod), errors.Is(err, ErrUnsupportedFill),
		errors.Is(err, ErrUnsupportedFormat), errors.Is(err, ErrUpsample):
		return ErrorTypeConfiguration
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrInvalidBase),
		errors.Is(err, ErrOutOfRange), errors.Is(err, ErrTooFewInputs), errors.Is(err, ErrSchemaMismatch):
		return ErrorTypeValidation
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	}

	if isTimeoutError(err) {
		return ErrorTypeTimeout
	}
	if isNetworkError(err) {
		return ErrorTypeNetwork
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "rate limit"), strings.Contains(errStr, "too many requests"):
		return ErrorTypeRateLimit
	case strings.Contains(errStr, "unauthorized"), strings.Contains(errStr, "invalid api key"),
		strings.Contains(errStr, "signature"):
		return ErrorTypeAuthentication
	case strings.Contains(errStr, "no such file"), strings.Contains(errStr, "permission denied"):
		return ErrorTypeIO
	}

	return ErrorTypeUnknown
}

func typeForStatus(code int) ErrorType {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrorTypeAuthentication
	case code >= 500:
		return ErrorTypeServerError
	case code >= 400:
		return ErrorTypeBadRequest
	default:
		return ErrorTypeUnknown
	}
}

// isNetworkError checks if the error is network-related
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	networkPatterns := []string{
		"connection refused",
		"connection reset",
		"no route to host",
		"network unreachable",
		"no such host",
		"eof",
	}
	for _, pattern := range networkPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// isTimeoutError checks if the error is timeout-related
func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}

func retryableByDefault(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// Retry runs fn under the given policy. MaxAttempts counts retries after the
// first call, so a zero policy calls fn exactly once. Non-retryable errors
// stop immediately.
func (ec *ErrorClassifier) Retry(ctx context.Context, policy config.RetryPolicyConfig, component, operation string, fn func() error) error {
	var lastErr error
	attempts := 0

	op := func() error {
		attempts++
		err := fn()
		if err == nil {
			return nil
		}
		classified := ec.Classify(err, component, operation)
		classified.Attempts = attempts
		lastErr = classified
		if !classified.Retryable {
			return backoff.Permanent(classified)
		}
		return classified
	}

	notify := func(err error, next time.Duration) {
		ec.logger.Warn("operation failed, retrying",
			"component", component,
			"operation", operation,
			"attempt", attempts,
			"max_retries", policy.MaxAttempts,
			"next_retry", next,
			"error", err.Error())
	}

	strategy := createBackoffStrategy(policy, &lastErr)
	err := backoff.RetryNotify(op, backoff.WithContext(strategy, ctx), notify)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && lastErr == nil {
		return ctx.Err()
	}
	if attempts > 1 {
		return fmt.Errorf("operation failed after %d attempts: %w", attempts, err)
	}
	return err
}

// createBackoffStrategy creates a backoff strategy based on configuration
func createBackoffStrategy(policy config.RetryPolicyConfig, lastErr *error) backoff.BackOff {
	initialDelay, err := time.ParseDuration(policy.InitialDelay)
	if err != nil || initialDelay <= 0 {
		initialDelay = 2 * time.Second
	}
	maxDelay, err := time.ParseDuration(policy.MaxDelay)
	if err != nil || maxDelay < initialDelay {
		maxDelay = initialDelay
	}

	var strategy backoff.BackOff
	switch policy.BackoffStrategy {
	case "fixed", "constant":
		strategy = backoff.NewConstantBackOff(initialDelay)
	case "linear":
		strategy = &LinearBackoff{interval: initialDelay, max: maxDelay}
	default:
		exponential := backoff.NewExponentialBackOff()
		exponential.InitialInterval = initialDelay
		exponential.MaxInterval = maxDelay
		exponential.MaxElapsedTime = 0
		if !policy.Jitter {
			exponential.RandomizationFactor = 0
		}
		strategy = exponential
	}

	retries := policy.MaxAttempts
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(&retryAfterBackOff{BackOff: strategy, lastErr: lastErr}, uint64(retries))
}

// retryAfterBackOff honours an exchange's Retry-After header when it asks
// for a longer pause than the configured strategy.
type retryAfterBackOff struct {
	backoff.BackOff
	lastErr *error
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop || b.lastErr == nil || *b.lastErr == nil {
		return next
	}
	var statusErr *HTTPStatusError
	if errors.As(*b.lastErr, &statusErr) && statusErr.RetryAfter > next {
		return statusErr.RetryAfter
	}
	return next
}

// LinearBackoff implements a simple linear backoff strategy
type LinearBackoff struct {
	interval time.Duration
	max      time.Duration
	current  time.Duration
}

// NextBackOff returns the next backoff interval
func (lb *LinearBackoff) NextBackOff() time.Duration {
	lb.current += lb.interval
	if lb.current > lb.max {
		lb.current = lb.max
	}
	return lb.current
}

// Reset resets the backoff to its initial state
func (lb *LinearBackoff) Reset() {
	lb.current = 0
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// GetErrorType extracts the error type from a classified error
func GetErrorType(err error) ErrorType {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err is classified as errType.
func IsType(err error, errType ErrorType) bool {
	return GetErrorType(err) == errType
}
