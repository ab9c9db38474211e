package domain

import (
	"errors"
	"fmt"
	"strconv"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// FetchError represents a failed upstream or store request.
type FetchError struct {
	Exchange  Exchange
	Category  Category
	Op        string // Operation that failed (e.g., "instruments", "tickers", "store.get")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *FetchError) Error() string {
	prefix := e.Op
	if e.Exchange != "" {
		prefix = SlotKey(e.Exchange, e.Category) + " " + prefix
	}
	return prefix + ": " + e.Err.Error()
}

func (e *FetchError) IsRetriable() bool {
	return e.Retriable
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new retriable fetch error
func NewFetchError(op string, err error) *FetchError {
	return &FetchError{Op: op, Err: err, Retriable: true}
}

// NewFatalFetchError creates a non-retriable fetch error
func NewFatalFetchError(op string, err error) *FetchError {
	return &FetchError{Op: op, Err: err, Retriable: false}
}

// CodecError reports a malformed cache payload. Callers treat it as a miss.
type CodecError struct {
	Record int    // index of the offending record, -1 for the payload as a whole
	Input  string // offending text
	Reason string
}

func (e *CodecError) Error() string {
	if e.Record < 0 {
		return "codec error: " + e.Reason
	}
	return "codec error [record " + strconv.Itoa(e.Record) + "]: " + e.Reason + " in " + strconv.Quote(e.Input)
}

func (e *CodecError) IsRetriable() bool {
	return false
}

// QuotaError reports a store write rejected for size or capacity.
type QuotaError struct {
	Key   string
	Size  int
	Limit int
	Err   error
}

func (e *QuotaError) Error() string {
	msg := fmt.Sprintf("quota exceeded for %s: %d bytes", e.Key, e.Size)
	if e.Limit > 0 {
		msg += fmt.Sprintf(" (limit %d)", e.Limit)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *QuotaError) IsRetriable() bool {
	return false
}

func (e *QuotaError) Unwrap() error {
	return e.Err
}

// ParseError describes a raw symbol that did not match its exchange's
// pattern. The normalizer never returns it; it degrades to a fallback
// record instead. Fetchers use it for logging.
type ParseError struct {
	Exchange  Exchange
	RawSymbol string
}

func (e *ParseError) Error() string {
	return "unparsed " + string(e.Exchange) + " symbol " + strconv.Quote(e.RawSymbol)
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrEmptyResponse is returned when an upstream answers with no records.
	ErrEmptyResponse = errors.New("empty response")

	// ErrUnsupportedCategory is returned when an exchange has no such category. Not retriable.
	ErrUnsupportedCategory = errors.New("unsupported category")

	// ErrUnknownExchange is returned for exchange names outside the supported set.
	ErrUnknownExchange = errors.New("unknown exchange")

	// ErrNoData is returned when neither a live fetch nor the cache can serve a slot.
	ErrNoData = errors.New("no data available")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
