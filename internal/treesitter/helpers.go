//go:build cgo

package treesitter

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// getNodeText extracts text from a node using byte offsets
func getNodeText(node *sitter.Node, code []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if int(end) > len(code) {
		end = uint32(len(code))
	}
	return string(code[start:end])
}

// fieldText returns the text of a named field child, or ""
func fieldText(node *sitter.Node, field string, code []byte) string {
	return getNodeText(node.ChildByFieldName(field), code)
}
