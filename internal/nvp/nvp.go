// Package nvp implements the name/value grammar shared by inbound download URLs and
// Express Checkout API responses: an optional path whose last segment names the resource,
// then '&'-separated key=value pairs.
package nvp

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// KeyName holds the resource identifier taken from the last path segment.
	KeyName = "NAME"
	// KeyAmount is reserved for the catalog price and never accepted from a query string.
	KeyAmount = "AMOUNT"
)

// ParseError reports malformed input. Offset is the byte position of the offending pair.
type ParseError struct {
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("nvp: %s at offset %d", e.Reason, e.Offset)
}

// Params is an ordered mapping of parameter names to values.
// Keys are case-sensitive; use Is for case-insensitive value checks.
type Params struct {
	keys   []string
	values map[string]string
}

func New() *Params {
	return &Params{values: make(map[string]string)}
}

// Get returns the value for key and whether it was present.
func (p *Params) Get(key string) (string, bool) {
	value, ok := p.values[key]
	return value, ok
}

// Value returns the value for key, or an empty string.
func (p *Params) Value(key string) string {
	return p.values[key]
}

func (p *Params) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// Is reports whether key is present and its value equals want, ignoring case.
func (p *Params) Is(key, want string) bool {
	value, ok := p.values[key]
	return ok && strings.EqualFold(value, want)
}

// Set stores value under key. An existing key keeps its position and has its value replaced.
func (p *Params) Set(key, value string) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Keys returns the keys in insertion order.
func (p *Params) Keys() []string {
	keys := make([]string, len(p.keys))
	copy(keys, p.keys)
	return keys
}

func (p *Params) Len() int {
	return len(p.keys)
}

// Encode renders the pairs in insertion order with percent-escaped values, the form
// expected by the NVP API. Spaces become %20 so that '+' is never ambiguous.
func (p *Params) Encode() string {
	var b strings.Builder
	for i, key := range p.keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escape(key))
		b.WriteByte('=')
		b.WriteString(escape(p.values[key]))
	}
	return b.String()
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func (p *Params) add(key, value string, offset int) error {
	if _, ok := p.values[key]; ok {
		return &ParseError{Offset: offset, Reason: fmt.Sprintf("duplicate key %q", key)}
	}
	p.Set(key, value)
	return nil
}

// ParseRequest parses an inbound request URI of the form /.../<name>?k1=v1&k2=v2.
// NAME is the text between the last '/' before the first '?' and that '?'; without a '?'
// the whole trailing segment is the name. Values are kept exactly as received and a query
// key AMOUNT is dropped.
func ParseRequest(uri string) (*Params, error) {
	p := New()
	path, query, hasQuery := strings.Cut(uri, "?")
	name := path[strings.LastIndexByte(path, '/')+1:]
	p.Set(KeyName, name)
	if !hasQuery {
		return p, nil
	}
	if err := parsePairs(p, query, len(path)+1, false); err != nil {
		return nil, err
	}
	return p, nil
}

// ParseResponse parses an NVP response body. Values are percent-decoded; a literal '+' is kept.
func ParseResponse(body string) (*Params, error) {
	p := New()
	if err := parsePairs(p, strings.TrimSpace(body), 0, true); err != nil {
		return nil, err
	}
	return p, nil
}

func parsePairs(p *Params, input string, base int, decode bool) error {
	offset := base
	for _, pair := range strings.Split(input, "&") {
		start := offset
		offset += len(pair) + 1
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return &ParseError{Offset: start, Reason: fmt.Sprintf("missing '=' in %q", pair)}
		}
		if key == "" {
			return &ParseError{Offset: start, Reason: "empty key"}
		}
		if decode {
			decoded, err := url.PathUnescape(value)
			if err != nil {
				return &ParseError{Offset: start, Reason: fmt.Sprintf("decode value of %q: %v", key, err)}
			}
			value = decoded
		} else if key == KeyAmount {
			continue
		}
		if err := p.add(key, value, start); err != nil {
			return err
		}
	}
	return nil
}
