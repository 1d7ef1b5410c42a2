package domain

import (
	"fmt"
	"strings"
)

// Document is the Atlassian Document Format tree Jira Cloud stores
// descriptions and comment bodies in. Only plain paragraphs are written;
// anything richer the remote sends back is flattened on read.
type Document struct {
	Type    string         `json:"type"`
	Version int            `json:"version,omitempty"`
	Content []DocumentNode `json:"content"`
}

// DocumentNode is a single node in a document tree.
type DocumentNode struct {
	Type    string         `json:"type"`
	Text    string         `json:"text,omitempty"`
	Content []DocumentNode `json:"content,omitempty"`
}

// TextToDocument converts plain multi-line text into a document of
// one-run paragraphs. Empty lines become empty paragraphs. An entirely
// empty input still produces a single empty paragraph because the remote
// rejects documents with an empty content list.
func TextToDocument(text string) *Document {
	lines := strings.Split(text, "\n")
	content := make([]DocumentNode, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			content = append(content, DocumentNode{Type: "paragraph"})
			continue
		}
		content = append(content, DocumentNode{
			Type:    "paragraph",
			Content: []DocumentNode{{Type: "text", Text: line}},
		})
	}
	return &Document{Type: "doc", Version: 1, Content: content}
}

// DocumentToText flattens a document value from a decoded API response
// back into plain text. Paragraphs are joined with single newlines and
// nested runs are concatenated in order, so plain-paragraph documents
// round-trip exactly. Returns nil for a nil input and for documents with
// no paragraph nodes at all, distinguishing "no description" from an
// empty description. Values that are not document-shaped are coerced to
// their string form.
func DocumentToText(v any) *string {
	if v == nil {
		return nil
	}

	doc, ok := v.(map[string]any)
	if !ok {
		s := fmt.Sprintf("%v", v)
		return &s
	}

	content, ok := doc["content"].([]any)
	if !ok {
		s := fmt.Sprintf("%v", v)
		return &s
	}

	var paragraphs []string
	for _, node := range content {
		nodeMap, ok := node.(map[string]any)
		if !ok {
			continue
		}
		// Non-paragraph nodes contribute only the text they carry;
		// textless ones (media, rules) are not paragraphs and must not
		// add blank lines or make an otherwise empty document non-nil.
		text := flattenText(nodeMap)
		if nodeMap["type"] != "paragraph" && text == "" {
			continue
		}
		paragraphs = append(paragraphs, text)
	}

	if paragraphs == nil {
		return nil
	}
	joined := strings.Join(paragraphs, "\n")
	return &joined
}

// flattenText concatenates every text run under a node, depth first.
func flattenText(node map[string]any) string {
	var b strings.Builder
	if text, ok := node["text"].(string); ok {
		b.WriteString(text)
	}
	if children, ok := node["content"].([]any); ok {
		for _, child := range children {
			if childMap, ok := child.(map[string]any); ok {
				b.WriteString(flattenText(childMap))
			}
		}
	}
	return b.String()
}
