package mining

import (
	"strings"
	"unicode"

	"github.com/rohankatakam/changeminer/internal/errors"
)

// DefaultSeparator splits the owning scope from the signature in a long name
const DefaultSeparator = "::"

var (
	// ErrMalformedName matches errors for long names without a scope separator
	ErrMalformedName = errors.Sentinel(errors.ErrorTypeMalformedName)
	// ErrAmbiguousMatch matches errors for lookups with several live candidates
	ErrAmbiguousMatch = errors.Sentinel(errors.ErrorTypeAmbiguousMatch)
	// ErrMissingBeforeMethod matches errors for updated methods without a unique before descriptor
	ErrMissingBeforeMethod = errors.Sentinel(errors.ErrorTypeMissingBeforeMethod)
	// ErrReplaceNotFound matches errors for relabels that found zero or several registry matches
	ErrReplaceNotFound = errors.Sentinel(errors.ErrorTypeReplaceNotFound)
)

// NameCodec converts between long names and (scope, signature) pairs.
// The scope keeps its trailing separator, so Join is plain concatenation:
//
//	"NS::Foo::bar(int)" -> scope "NS::Foo::", signature "bar(int)"
type NameCodec struct {
	Separator string
}

// NewNameCodec returns a codec for sep, or DefaultSeparator when sep is empty
func NewNameCodec(sep string) NameCodec {
	if sep == "" {
		sep = DefaultSeparator
	}
	return NameCodec{Separator: sep}
}

// Split cuts longName after the last separator
func (c NameCodec) Split(longName string) (signature, scope string, err error) {
	idx := strings.LastIndex(longName, c.Separator)
	if idx < 0 {
		return "", "", errors.MalformedNamef("method name %q has no scope separator %q", longName, c.Separator).
			WithContext("method", longName)
	}
	cut := idx + len(c.Separator)
	return longName[cut:], longName[:cut], nil
}

// Join is the inverse of Split for well-formed names
func (c NameCodec) Join(scope, signature string) string {
	return scope + signature
}

// bareName drops the parameter list from a signature
func bareName(signature string) string {
	if idx := strings.LastIndex(signature, "("); idx >= 0 {
		return signature[:idx]
	}
	return signature
}

// normalizeName removes all whitespace
func normalizeName(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
