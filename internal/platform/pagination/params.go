package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize defines the fallback number of items returned when the client omits limit.
	DefaultPageSize = 50
	// DefaultMaxPageSize caps the supported limit to prevent unbounded queries.
	DefaultMaxPageSize = 100
)

// ErrInvalidLimit reports a limit value that is not a positive integer.
var ErrInvalidLimit = errors.New("pagination: invalid limit")

// Params bundles the listing values extracted from a request. A Limit of zero
// means the client omitted it and the caller should apply its own default.
// PageToken is carried verbatim; the service layer decodes it.
type Params struct {
	Limit     int
	PageToken string
}

// Options control how Parse bounds the limit for a given handler.
type Options struct {
	DefaultLimit int
	MaxLimit     int
}

// FromRequest parses the supported query parameters from the supplied request.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse consumes the provided query values and returns the normalised Params.
func Parse(values url.Values, opts Options) (Params, error) {
	if values == nil {
		values = url.Values{}
	}

	limit, err := parseLimit(values.Get("limit"), opts)
	if err != nil {
		return Params{}, err
	}

	return Params{
		Limit:     limit,
		PageToken: strings.TrimSpace(values.Get("pageToken")),
	}, nil
}

func parseLimit(raw string, opts Options) (int, error) {
	maxLimit := opts.MaxLimit
	if maxLimit <= 0 {
		maxLimit = DefaultMaxPageSize
	}

	defaultLimit := opts.DefaultLimit
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultLimit, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: must be an integer", ErrInvalidLimit)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidLimit)
	}
	if value > maxLimit {
		value = maxLimit
	}
	return value, nil
}
