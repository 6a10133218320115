//go:build cgo

package treesitter

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/changeminer/internal/models"
)

func TestExtractCSharp(t *testing.T) {
	source := strings.Join([]string{
		"namespace Shop",
		"{",
		"    public class Cart",
		"    {",
		"        public Cart() { }",
		"",
		"        public void Add(int qty,",
		"                        string sku)",
		"        {",
		"            total += qty;",
		"        }",
		"",
		"        class Line",
		"        {",
		"            string Describe() { return \"\"; }",
		"        }",
		"    }",
		"}",
	}, "\n")

	methods, err := NewExtractor().Extract(context.Background(), "src/Cart.cs", []byte(source))
	require.NoError(t, err)

	assert.Equal(t, []models.MethodDescriptor{
		{LongName: "Shop::Cart::Cart()", StartLine: 5, EndLine: 5, NestingLevel: 2},
		{LongName: "Shop::Cart::Add(int qty, string sku)", StartLine: 7, EndLine: 11, NestingLevel: 2},
		{LongName: "Shop::Cart::Line::Describe()", StartLine: 15, EndLine: 15, NestingLevel: 3},
	}, methods)
}

func TestExtractJava(t *testing.T) {
	source := strings.Join([]string{
		"package shop;",
		"",
		"public class Cart {",
		"    public Cart() {}",
		"",
		"    int total(int base) {",
		"        return base;",
		"    }",
		"}",
	}, "\n")

	methods, err := NewExtractor().Extract(context.Background(), "Cart.java", []byte(source))
	require.NoError(t, err)

	require.Len(t, methods, 2)
	assert.Equal(t, "Cart::Cart()", methods[0].LongName)
	assert.Equal(t, "Cart::total(int base)", methods[1].LongName)
	assert.Equal(t, 6, methods[1].StartLine)
	assert.Equal(t, 8, methods[1].EndLine)
}

func TestExtractUnsupportedExtension(t *testing.T) {
	methods, err := NewExtractor().Extract(context.Background(), "README.md", []byte("# hi"))
	require.NoError(t, err)
	assert.Empty(t, methods)
}
