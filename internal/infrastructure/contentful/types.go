package contentful

import (
	"encoding/json"
	"strings"
)

// Content type ids of the product model.
const (
	typeProduct            = "product"
	typeProductOption      = "productOption"
	typeProductOptionValue = "productOptionValue"
	typeProductVariant     = "productVariant"
)

type sys struct {
	ID               string `json:"id"`
	Type             string `json:"type,omitempty"`
	Version          int    `json:"version,omitempty"`
	PublishedVersion int    `json:"publishedVersion,omitempty"`
}

// link is a reference to another entry.
type link struct {
	Sys struct {
		Type     string `json:"type"`
		LinkType string `json:"linkType"`
		ID       string `json:"id"`
	} `json:"sys"`
}

func entryLink(id string) link {
	var l link
	l.Sys.Type = "Link"
	l.Sys.LinkType = "Entry"
	l.Sys.ID = id
	return l
}

func entryLinks(ids []string) []link {
	out := make([]link, 0, len(ids))
	for _, id := range ids {
		out = append(out, entryLink(id))
	}
	return out
}

// fields maps a field id to its per-locale values.
type fields map[string]map[string]any

func (f fields) set(locale, name string, value any) {
	f[name] = map[string]any{locale: value}
}

type entry struct {
	Sys    sys                                   `json:"sys"`
	Fields map[string]map[string]json.RawMessage `json:"fields"`
}

// links decodes the entry links stored in field for locale.
func (e *entry) links(field, locale string) []string {
	raw, ok := e.Fields[field][locale]
	if !ok {
		return nil
	}
	var ls []link
	if json.Unmarshal(raw, &ls) != nil {
		return nil
	}
	ids := make([]string, 0, len(ls))
	for _, l := range ls {
		ids = append(ids, l.Sys.ID)
	}
	return ids
}

type entryRequest struct {
	Fields fields `json:"fields"`
}

type localeList struct {
	Items []struct {
		Code    string `json:"code"`
		Name    string `json:"name"`
		Default bool   `json:"default"`
	} `json:"items"`
}

// deliveryEntry is an entry as served by the delivery API for one locale.
type deliveryEntry struct {
	Sys    sys `json:"sys"`
	Fields struct {
		MedusaID    string    `json:"medusaId"`
		Title       string    `json:"title"`
		Handle      string    `json:"handle"`
		Description *richNode `json:"description"`
	} `json:"fields"`
}

type errorResponse struct {
	Sys     sys    `json:"sys"`
	Message string `json:"message"`
}

// ---------------------------------------------------------------------------
// Rich text
// ---------------------------------------------------------------------------

// richNode is a rich text document node.
type richNode struct {
	NodeType string         `json:"nodeType"`
	Value    string         `json:"value,omitempty"`
	Marks    []any          `json:"marks,omitempty"`
	Data     map[string]any `json:"data"`
	Content  []richNode     `json:"content,omitempty"`
}

// richTextDocument wraps plain text into a document with one paragraph
// per blank-line separated block.
func richTextDocument(text string) richNode {
	doc := richNode{NodeType: "document", Data: map[string]any{}}
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		doc.Content = append(doc.Content, richNode{
			NodeType: "paragraph",
			Data:     map[string]any{},
			Content: []richNode{{
				NodeType: "text",
				Value:    block,
				Marks:    []any{},
				Data:     map[string]any{},
			}},
		})
	}
	return doc
}

// PlainText renders a document as text, one blank line between blocks.
func (n *richNode) PlainText() string {
	if n == nil {
		return ""
	}
	var blocks []string
	for i := range n.Content {
		if s := strings.TrimSpace(n.Content[i].text()); s != "" {
			blocks = append(blocks, s)
		}
	}
	return strings.Join(blocks, "\n\n")
}

func (n *richNode) text() string {
	if n.NodeType == "text" {
		return n.Value
	}
	var b strings.Builder
	for i := range n.Content {
		b.WriteString(n.Content[i].text())
	}
	return b.String()
}
