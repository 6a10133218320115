package treesitter

import (
	"path/filepath"
	"strings"
)

// Language identifies a supported grammar
type Language string

const (
	LangCSharp Language = "csharp"
	LangJava   Language = "java"
)

// ScopeSeparator joins enclosing scopes in extracted long names
const ScopeSeparator = "::"

// DetectLanguage returns the grammar for a file path, or false when the
// extension is not supported
func DetectLanguage(filePath string) (Language, bool) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".cs":
		return LangCSharp, true
	case ".java":
		return LangJava, true
	}
	return "", false
}

// grammarNodes lists the node kinds that open a scope or declare a method
type grammarNodes struct {
	scopes  map[string]bool
	methods map[string]bool
}

var nodesByLanguage = map[Language]grammarNodes{
	LangCSharp: {
		scopes: set("namespace_declaration", "file_scoped_namespace_declaration",
			"class_declaration", "struct_declaration", "interface_declaration", "record_declaration"),
		methods: set("method_declaration", "constructor_declaration", "destructor_declaration"),
	},
	LangJava: {
		scopes: set("class_declaration", "interface_declaration", "enum_declaration", "record_declaration"),
		methods: set("method_declaration", "constructor_declaration"),
	},
}

func set(kinds ...string) map[string]bool {
	m := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}

// collapseSpace joins whitespace runs into single spaces
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
