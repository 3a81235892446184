package jira

import (
	"encoding/json"
	"strings"
)

// adfNode is the subset of the Atlassian Document Format the pipeline reads
// and writes: documents of paragraphs of text runs.
type adfNode struct {
	Type    string    `json:"type"`
	Version int       `json:"version,omitempty"`
	Text    string    `json:"text,omitempty"`
	Content []adfNode `json:"content,omitempty"`
}

// toADF wraps plain text in a single-paragraph document.
func toADF(text string) adfNode {
	para := adfNode{Type: "paragraph"}
	if text != "" {
		para.Content = []adfNode{{Type: "text", Text: text}}
	}
	return adfNode{Type: "doc", Version: 1, Content: []adfNode{para}}
}

// fromADF flattens a document to plain text, one line per block.
// Older instances return descriptions as plain strings, which pass through.
func fromADF(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	var doc adfNode
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}

	var b strings.Builder
	for _, block := range doc.Content {
		collectText(&b, block)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

func collectText(b *strings.Builder, n adfNode) {
	if n.Type == "text" {
		b.WriteString(n.Text)
	}
	for _, c := range n.Content {
		collectText(b, c)
	}
}
