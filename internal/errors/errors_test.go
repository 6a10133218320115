package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByType(t *testing.T) {
	err := MalformedNamef("no separator in %q", "Foo()")

	assert.True(t, stderrors.Is(err, Sentinel(ErrorTypeMalformedName)))
	assert.False(t, stderrors.Is(err, Sentinel(ErrorTypeReplaceNotFound)))

	wrapped := fmt.Errorf("modification Foo.cs: %w", err)
	assert.True(t, stderrors.Is(wrapped, Sentinel(ErrorTypeMalformedName)))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := FileSystemError(cause, "write commits.csv")

	assert.Equal(t, "write commits.csv: disk full", err.Error())
	assert.Equal(t, cause, stderrors.Unwrap(err))
	assert.Nil(t, Wrap(nil, ErrorTypeDatabase, SeverityHigh, "ignored"))
}

func TestSeverityAndKind(t *testing.T) {
	tests := []struct {
		err   *Error
		kind  string
		fatal bool
	}{
		{MalformedNamef("x"), "malformed_name", false},
		{AmbiguousMatchf("x"), "ambiguous_match", false},
		{MissingBeforeMethodf("x"), "missing_before_method", false},
		{ReplaceNotFoundf("x"), "replace_not_found", false},
		{ConfigErrorf("x"), "config", true},
		{InternalErrorf("x"), "internal", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.kind, tt.err.Kind())
		assert.Equal(t, tt.fatal, IsFatal(tt.err), "kind %s", tt.kind)
	}
}

func TestDetailedStringSortsContext(t *testing.T) {
	err := ReplaceNotFoundf("rename target missing").
		WithContext("method", "NS::A::foo()").
		WithContext("commit", "abc123")
	err.StackTrace = ""

	out := err.DetailedString()
	assert.Contains(t, out, "[LOW] [REPLACE_NOT_FOUND] rename target missing")
	assert.Less(t, indexOf(out, "commit:"), indexOf(out, "method:"))
}

func TestGetTypeAndSeverityForForeignErrors(t *testing.T) {
	plain := stderrors.New("plain")
	assert.Equal(t, ErrorTypeInternal, GetType(plain))
	assert.Equal(t, SeverityMedium, GetSeverity(plain))
	assert.Equal(t, SeverityLow, GetSeverity(nil))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
