package mining

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameCodecSplit(t *testing.T) {
	codec := NewNameCodec("")

	tests := []struct {
		longName string
		sig      string
		scope    string
	}{
		{"NS::Foo::bar(int)", "bar(int)", "NS::Foo::"},
		{"Foo::bar()", "bar()", "Foo::"},
		{"A::B::C::Run(string, int)", "Run(string, int)", "A::B::C::"},
		{"::bare()", "bare()", "::"},
	}

	for _, tt := range tests {
		sig, scope, err := codec.Split(tt.longName)
		require.NoError(t, err, tt.longName)
		assert.Equal(t, tt.sig, sig, tt.longName)
		assert.Equal(t, tt.scope, scope, tt.longName)
		assert.Equal(t, tt.longName, codec.Join(scope, sig), "join must invert split")
	}
}

func TestNameCodecMalformed(t *testing.T) {
	codec := NewNameCodec("::")

	_, _, err := codec.Split("bar(int)")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrMalformedName))
	assert.False(t, stderrors.Is(err, ErrReplaceNotFound))
}

func TestNameCodecCustomSeparator(t *testing.T) {
	codec := NewNameCodec(".")

	sig, scope, err := codec.Split("pkg.Type.method(int)")
	require.NoError(t, err)
	assert.Equal(t, "method(int)", sig)
	assert.Equal(t, "pkg.Type.", scope)
}

func TestBareName(t *testing.T) {
	assert.Equal(t, "bar", bareName("bar(int)"))
	assert.Equal(t, "bar", bareName("bar()"))
	assert.Equal(t, "op", bareName("op"))
	assert.Equal(t, "Get<T>", bareName("Get<T>(Func<int>)"))
}
