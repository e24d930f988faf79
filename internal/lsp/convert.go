package lsp

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/driftwood-editor/driftwood/internal/editor"
)

// Conversion between the wire protocol and the host editor. The protocol is
// zero-based; the host is one-based. All conversions clamp out-of-range
// input instead of failing: a malformed position from a server must never
// take a feature down.

// ToProtocolPosition converts a host position to a wire position.
func ToProtocolPosition(pos editor.Position) Position {
	return Position{
		Line:      clampMin(pos.Row-1, 0),
		Character: clampMin(pos.Column-1, 0),
	}
}

// FromProtocolPosition converts a wire position to a host position.
func FromProtocolPosition(pos Position) editor.Position {
	return editor.Position{
		Row:    clampMin(pos.Line+1, 1),
		Column: clampMin(pos.Character+1, 1),
	}
}

// ToProtocolRange converts a host range to a wire range.
func ToProtocolRange(r editor.Range) Range {
	return Range{Start: ToProtocolPosition(r.Start), End: ToProtocolPosition(r.End)}
}

// FromProtocolRange converts a wire range to a host range.
func FromProtocolRange(r Range) editor.Range {
	return editor.Range{Start: FromProtocolPosition(r.Start), End: FromProtocolPosition(r.End)}
}

// FromProtocolLocation converts a wire location to a host location.
func FromProtocolLocation(loc Location) editor.Location {
	return editor.Location{URI: string(loc.URI), Range: FromProtocolRange(loc.Range)}
}

func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}

// --- Severity, kinds, tags ---

// MarkerSeverity maps a diagnostic severity to the host's marker severity.
// An absent or unknown severity degrades to info rather than being dropped.
func MarkerSeverity(s DiagnosticSeverity) editor.MarkerSeverity {
	switch s {
	case DiagnosticSeverityError:
		return editor.MarkerSeverityError
	case DiagnosticSeverityWarning:
		return editor.MarkerSeverityWarning
	case DiagnosticSeverityHint:
		return editor.MarkerSeverityHint
	default:
		return editor.MarkerSeverityInfo
	}
}

var completionKindLabels = map[CompletionItemKind]string{
	CompletionItemKindText:          "text",
	CompletionItemKindMethod:        "method",
	CompletionItemKindFunction:      "function",
	CompletionItemKindConstructor:   "constructor",
	CompletionItemKindField:         "field",
	CompletionItemKindVariable:      "variable",
	CompletionItemKindClass:         "class",
	CompletionItemKindInterface:     "interface",
	CompletionItemKindModule:        "module",
	CompletionItemKindProperty:      "property",
	CompletionItemKindUnit:          "unit",
	CompletionItemKindValue:         "value",
	CompletionItemKindEnum:          "enum",
	CompletionItemKindKeyword:       "keyword",
	CompletionItemKindSnippet:       "snippet",
	CompletionItemKindColor:         "color",
	CompletionItemKindFile:          "file",
	CompletionItemKindReference:     "reference",
	CompletionItemKindFolder:        "folder",
	CompletionItemKindEnumMember:    "enum-member",
	CompletionItemKindConstant:      "constant",
	CompletionItemKindStruct:        "struct",
	CompletionItemKindEvent:         "event",
	CompletionItemKindOperator:      "operator",
	CompletionItemKindTypeParameter: "type-parameter",
}

// CompletionKindLabel maps a completion item kind to the host's string
// category. Unknown kinds degrade to "text".
func CompletionKindLabel(k CompletionItemKind) string {
	if label, ok := completionKindLabels[k]; ok {
		return label
	}
	return "text"
}

var symbolKindLabels = map[SymbolKind]string{
	SymbolKindFile:          "file",
	SymbolKindModule:        "module",
	SymbolKindNamespace:     "namespace",
	SymbolKindPackage:       "package",
	SymbolKindClass:         "class",
	SymbolKindMethod:        "method",
	SymbolKindProperty:      "property",
	SymbolKindField:         "field",
	SymbolKindConstructor:   "constructor",
	SymbolKindEnum:          "enum",
	SymbolKindInterface:     "interface",
	SymbolKindFunction:      "function",
	SymbolKindVariable:      "variable",
	SymbolKindConstant:      "constant",
	SymbolKindString:        "string",
	SymbolKindNumber:        "number",
	SymbolKindBoolean:       "boolean",
	SymbolKindArray:         "array",
	SymbolKindObject:        "object",
	SymbolKindKey:           "key",
	SymbolKindNull:          "null",
	SymbolKindEnumMember:    "enum-member",
	SymbolKindStruct:        "struct",
	SymbolKindEvent:         "event",
	SymbolKindOperator:      "operator",
	SymbolKindTypeParameter: "type-parameter",
}

// SymbolKindLabel maps a symbol kind to the host's outline category.
func SymbolKindLabel(k SymbolKind) string {
	if label, ok := symbolKindLabels[k]; ok {
		return label
	}
	return "variable"
}

var markerTags = map[DiagnosticTag]editor.MarkerTag{
	DiagnosticTagUnnecessary: editor.MarkerTagUnnecessary,
	DiagnosticTagDeprecated:  editor.MarkerTagDeprecated,
}

// --- Diagnostics ---

// DiagnosticsToMarkers converts a published diagnostic set into host markers.
// Always returns a non-nil slice so an empty publish clears markers.
func DiagnosticsToMarkers(diags []Diagnostic) []editor.Marker {
	markers := make([]editor.Marker, 0, len(diags))
	for _, d := range diags {
		m := editor.Marker{
			Range:    FromProtocolRange(d.Range),
			Severity: MarkerSeverity(d.Severity),
			Code:     rawCodeString(d.Code),
			Source:   d.Source,
			Message:  d.Message,
		}
		for _, tag := range d.Tags {
			if t, ok := markerTags[tag]; ok {
				m.Tags = append(m.Tags, t)
			}
		}
		for _, rel := range d.RelatedInformation {
			m.Related = append(m.Related, editor.MarkerRelated{
				Location: FromProtocolLocation(rel.Location),
				Message:  rel.Message,
			})
		}
		markers = append(markers, m)
	}
	return markers
}

// rawCodeString renders a string-or-number code field as a string.
func rawCodeString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	return gjson.ParseBytes(raw).String()
}

// --- Completion ---

// CompletionToHost converts a wire completion item to the host item. Insert
// text falls back from insertText through textEdit.newText to the label.
func CompletionToHost(item CompletionItem) editor.CompletionItem {
	insert := item.InsertText
	if insert == "" && item.TextEdit != nil {
		insert = item.TextEdit.NewText
	}
	if insert == "" {
		insert = item.Label
	}

	doc, _ := documentationString(item.Documentation)

	return editor.CompletionItem{
		Label:         item.Label,
		Kind:          CompletionKindLabel(item.Kind),
		Detail:        item.Detail,
		Documentation: doc,
		InsertText:    insert,
		IsSnippet:     item.InsertTextFormat == InsertTextFormatSnippet,
		SortText:      item.SortText,
		FilterText:    item.FilterText,
	}
}

// ParseCompletionResult parses the completion answer, which is either a
// CompletionList, a bare item array, or null.
func ParseCompletionResult(raw json.RawMessage) (editor.CompletionList, error) {
	if isNullResult(raw) {
		return editor.CompletionList{Items: []editor.CompletionItem{}}, nil
	}

	var items []CompletionItem
	incomplete := false
	if gjson.ParseBytes(raw).IsArray() {
		if err := json.Unmarshal(raw, &items); err != nil {
			return editor.CompletionList{}, err
		}
	} else {
		var list CompletionList
		if err := json.Unmarshal(raw, &list); err != nil {
			return editor.CompletionList{}, err
		}
		items = list.Items
		incomplete = list.IsIncomplete
	}

	out := editor.CompletionList{
		Items:        make([]editor.CompletionItem, 0, len(items)),
		IsIncomplete: incomplete,
	}
	for _, item := range items {
		out.Items = append(out.Items, CompletionToHost(item))
	}
	return out, nil
}

// documentationString flattens a string-or-MarkupContent documentation field.
// The bool reports whether the content is markdown.
func documentationString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	v := gjson.ParseBytes(raw)
	if v.Type == gjson.String {
		return v.String(), false
	}
	return v.Get("value").String(), v.Get("kind").String() == string(MarkupKindMarkdown)
}

// --- Hover ---

// ParseHoverResult parses the hover answer. Contents is the widest union in
// the protocol: MarkupContent, a MarkedString (string or language/value
// pair), or a list of MarkedStrings. A nil result means no hover.
func ParseHoverResult(raw json.RawMessage) (*editor.HoverResult, error) {
	if isNullResult(raw) {
		return nil, nil
	}

	var hover Hover
	if err := json.Unmarshal(raw, &hover); err != nil {
		return nil, err
	}
	if len(hover.Contents) == 0 {
		return nil, nil
	}

	contents, markdown := hoverContents(gjson.ParseBytes(hover.Contents))
	if contents == "" {
		return nil, nil
	}

	result := &editor.HoverResult{Contents: contents, Markdown: markdown}
	if hover.Range != nil {
		r := FromProtocolRange(*hover.Range)
		result.Range = &r
	}
	return result, nil
}

func hoverContents(v gjson.Result) (string, bool) {
	switch {
	case v.Type == gjson.String:
		return v.String(), false
	case v.IsArray():
		var parts []string
		markdown := false
		for _, elem := range v.Array() {
			s, md := hoverContents(elem)
			if s != "" {
				parts = append(parts, s)
			}
			markdown = markdown || md
		}
		return strings.Join(parts, "\n\n"), markdown
	case v.Get("kind").Exists():
		return v.Get("value").String(), v.Get("kind").String() == string(MarkupKindMarkdown)
	case v.Get("language").Exists():
		// MarkedString pair renders as a fenced code block.
		lang := v.Get("language").String()
		return "```" + lang + "\n" + v.Get("value").String() + "\n```", true
	default:
		return "", false
	}
}

// --- Signature help ---

// ParseSignatureHelpResult parses the signature help answer.
func ParseSignatureHelpResult(raw json.RawMessage) (*editor.SignatureHelpResult, error) {
	if isNullResult(raw) {
		return nil, nil
	}

	var help SignatureHelp
	if err := json.Unmarshal(raw, &help); err != nil {
		return nil, err
	}
	if len(help.Signatures) == 0 {
		return nil, nil
	}

	result := &editor.SignatureHelpResult{
		ActiveSignature: help.ActiveSignature,
		ActiveParameter: help.ActiveParameter,
	}
	for _, sig := range help.Signatures {
		entry := editor.SignatureEntry{Label: sig.Label}
		entry.Documentation, _ = documentationString(sig.Documentation)
		for _, param := range sig.Parameters {
			p := editor.ParameterEntry{Label: parameterLabel(param.Label, sig.Label)}
			p.Documentation, _ = documentationString(param.Documentation)
			entry.Parameters = append(entry.Parameters, p)
		}
		result.Signatures = append(result.Signatures, entry)
	}
	return result, nil
}

// parameterLabel resolves a string-or-offset-pair parameter label. Offset
// pairs index into the signature label and are clamped to its bounds.
func parameterLabel(raw json.RawMessage, sigLabel string) string {
	if len(raw) == 0 {
		return ""
	}
	v := gjson.ParseBytes(raw)
	if v.Type == gjson.String {
		return v.String()
	}
	if v.IsArray() {
		pair := v.Array()
		if len(pair) == 2 {
			start := clampMin(int(pair[0].Int()), 0)
			end := int(pair[1].Int())
			if end > len(sigLabel) {
				end = len(sigLabel)
			}
			if start <= end {
				return sigLabel[start:end]
			}
		}
	}
	return ""
}

// --- Definition and references ---

// ParseLocationResult parses a definition or references answer: Location,
// []Location, []LocationLink, or null. Links collapse to their target
// selection range.
func ParseLocationResult(raw json.RawMessage) ([]editor.Location, error) {
	if isNullResult(raw) {
		return []editor.Location{}, nil
	}

	v := gjson.ParseBytes(raw)
	if !v.IsArray() {
		var loc Location
		if err := json.Unmarshal(raw, &loc); err != nil {
			return nil, err
		}
		return []editor.Location{FromProtocolLocation(loc)}, nil
	}

	elems := v.Array()
	if len(elems) == 0 {
		return []editor.Location{}, nil
	}

	// LocationLink carries targetUri; plain Location carries uri.
	if elems[0].Get("targetUri").Exists() {
		var links []LocationLink
		if err := json.Unmarshal(raw, &links); err != nil {
			return nil, err
		}
		out := make([]editor.Location, 0, len(links))
		for _, link := range links {
			out = append(out, editor.Location{
				URI:   string(link.TargetURI),
				Range: FromProtocolRange(link.TargetSelectionRange),
			})
		}
		return out, nil
	}

	var locs []Location
	if err := json.Unmarshal(raw, &locs); err != nil {
		return nil, err
	}
	out := make([]editor.Location, 0, len(locs))
	for _, loc := range locs {
		out = append(out, FromProtocolLocation(loc))
	}
	return out, nil
}

// --- Document symbols ---

// ParseSymbolResult parses the document symbol answer: []DocumentSymbol
// (hierarchical), []SymbolInformation (flat), or null.
func ParseSymbolResult(raw json.RawMessage) ([]editor.SymbolEntry, error) {
	if isNullResult(raw) {
		return []editor.SymbolEntry{}, nil
	}

	v := gjson.ParseBytes(raw)
	if !v.IsArray() {
		return []editor.SymbolEntry{}, nil
	}
	elems := v.Array()
	if len(elems) == 0 {
		return []editor.SymbolEntry{}, nil
	}

	// DocumentSymbol nodes carry selectionRange; SymbolInformation does not.
	if elems[0].Get("selectionRange").Exists() {
		var symbols []DocumentSymbol
		if err := json.Unmarshal(raw, &symbols); err != nil {
			return nil, err
		}
		return documentSymbolsToHost(symbols), nil
	}

	var infos []SymbolInformation
	if err := json.Unmarshal(raw, &infos); err != nil {
		return nil, err
	}
	out := make([]editor.SymbolEntry, 0, len(infos))
	for _, info := range infos {
		out = append(out, editor.SymbolEntry{
			Name:           info.Name,
			Kind:           SymbolKindLabel(info.Kind),
			ContainerName:  info.ContainerName,
			Range:          FromProtocolRange(info.Location.Range),
			SelectionRange: FromProtocolRange(info.Location.Range),
		})
	}
	return out, nil
}

func documentSymbolsToHost(symbols []DocumentSymbol) []editor.SymbolEntry {
	out := make([]editor.SymbolEntry, 0, len(symbols))
	for _, sym := range symbols {
		entry := editor.SymbolEntry{
			Name:           sym.Name,
			Detail:         sym.Detail,
			Kind:           SymbolKindLabel(sym.Kind),
			Range:          FromProtocolRange(sym.Range),
			SelectionRange: FromProtocolRange(sym.SelectionRange),
		}
		if len(sym.Children) > 0 {
			entry.Children = documentSymbolsToHost(sym.Children)
		}
		out = append(out, entry)
	}
	return out
}

// --- Edits ---

// TextEditsToHost converts wire edits to host edits.
func TextEditsToHost(edits []TextEdit) []editor.TextEdit {
	out := make([]editor.TextEdit, 0, len(edits))
	for _, e := range edits {
		out = append(out, editor.TextEdit{Range: FromProtocolRange(e.Range), Text: e.NewText})
	}
	return out
}

// WorkspaceEditToHost flattens a workspace edit into per-resource edits.
// Both encodings (the changes map and the documentChanges list) flatten to
// the same host shape.
func WorkspaceEditToHost(we WorkspaceEdit) *editor.WorkspaceEdit {
	out := &editor.WorkspaceEdit{}
	for uri, edits := range we.Changes {
		for _, e := range edits {
			out.Edits = append(out.Edits, editor.ResourceEdit{
				URI:  string(uri),
				Edit: editor.TextEdit{Range: FromProtocolRange(e.Range), Text: e.NewText},
			})
		}
	}
	for _, dc := range we.DocumentChanges {
		for _, e := range dc.Edits {
			out.Edits = append(out.Edits, editor.ResourceEdit{
				URI:  string(dc.TextDocument.URI),
				Edit: editor.TextEdit{Range: FromProtocolRange(e.Range), Text: e.NewText},
			})
		}
	}
	return out
}

func isNullResult(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
