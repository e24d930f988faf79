package lsp

import (
	"encoding/json"
	"testing"

	"github.com/driftwood-editor/driftwood/internal/editor"
)

func TestPositionConversionRoundTrip(t *testing.T) {
	host := editor.Position{Row: 10, Column: 3}
	wire := ToProtocolPosition(host)
	if wire.Line != 9 || wire.Character != 2 {
		t.Errorf("wire position = %+v, want line 9 char 2", wire)
	}
	if back := FromProtocolPosition(wire); back != host {
		t.Errorf("round trip = %+v, want %+v", back, host)
	}
}

func TestPositionConversionClamps(t *testing.T) {
	// A bogus zero host position must not go negative on the wire.
	wire := ToProtocolPosition(editor.Position{Row: 0, Column: 0})
	if wire.Line != 0 || wire.Character != 0 {
		t.Errorf("wire position = %+v, want 0,0", wire)
	}

	// A bogus negative wire position must land on 1,1 in the host.
	host := FromProtocolPosition(Position{Line: -5, Character: -1})
	if host.Row != 1 || host.Column != 1 {
		t.Errorf("host position = %+v, want 1,1", host)
	}
}

func TestMarkerSeverityMapping(t *testing.T) {
	cases := []struct {
		in   DiagnosticSeverity
		want editor.MarkerSeverity
	}{
		{DiagnosticSeverityError, editor.MarkerSeverityError},
		{DiagnosticSeverityWarning, editor.MarkerSeverityWarning},
		{DiagnosticSeverityInformation, editor.MarkerSeverityInfo},
		{DiagnosticSeverityHint, editor.MarkerSeverityHint},
		{0, editor.MarkerSeverityInfo}, // absent severity degrades to info
	}
	for _, tc := range cases {
		if got := MarkerSeverity(tc.in); got != tc.want {
			t.Errorf("MarkerSeverity(%d) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestDiagnosticsToMarkers(t *testing.T) {
	diags := []Diagnostic{
		{
			Range:    Range{Start: Position{Line: 2, Character: 4}, End: Position{Line: 2, Character: 9}},
			Severity: DiagnosticSeverityError,
			Code:     json.RawMessage(`"E001"`),
			Source:   "compiler",
			Message:  "undefined name",
			Tags:     []DiagnosticTag{DiagnosticTagUnnecessary},
			RelatedInformation: []DiagnosticRelatedInformation{{
				Location: Location{URI: "file:///other.go", Range: Range{}},
				Message:  "declared here",
			}},
		},
		{
			Range:   Range{},
			Code:    json.RawMessage(`404`),
			Message: "numeric code",
		},
	}

	markers := DiagnosticsToMarkers(diags)
	if len(markers) != 2 {
		t.Fatalf("markers = %d, want 2", len(markers))
	}

	m := markers[0]
	if m.Range.Start.Row != 3 || m.Range.Start.Column != 5 {
		t.Errorf("marker start = %+v, want row 3 col 5", m.Range.Start)
	}
	if m.Severity != editor.MarkerSeverityError || m.Code != "E001" || m.Source != "compiler" {
		t.Errorf("marker = %+v", m)
	}
	if len(m.Tags) != 1 || m.Tags[0] != editor.MarkerTagUnnecessary {
		t.Errorf("tags = %v, want [unnecessary]", m.Tags)
	}
	if len(m.Related) != 1 || m.Related[0].Location.URI != "file:///other.go" {
		t.Errorf("related = %+v", m.Related)
	}

	if markers[1].Code != "404" {
		t.Errorf("numeric code = %q, want 404", markers[1].Code)
	}

	if got := DiagnosticsToMarkers(nil); got == nil {
		t.Error("empty diagnostics must convert to an empty non-nil slice")
	}
}

func TestParseCompletionResult(t *testing.T) {
	// CompletionList shape with a snippet item.
	raw := json.RawMessage(`{
		"isIncomplete": true,
		"items": [
			{"label":"printf","kind":3,"insertText":"printf(${1:format})","insertTextFormat":2,"documentation":{"kind":"markdown","value":"Prints."}},
			{"label":"plain","kind":6}
		]
	}`)
	list, err := ParseCompletionResult(raw)
	if err != nil {
		t.Fatalf("ParseCompletionResult: %v", err)
	}
	if !list.IsIncomplete || len(list.Items) != 2 {
		t.Fatalf("list = %+v", list)
	}

	first := list.Items[0]
	if !first.IsSnippet || first.InsertText != "printf(${1:format})" {
		t.Errorf("snippet item = %+v", first)
	}
	if first.Kind != "function" || first.Documentation != "Prints." {
		t.Errorf("snippet item = %+v", first)
	}

	second := list.Items[1]
	if second.IsSnippet {
		t.Error("plain item flagged as snippet")
	}
	if second.InsertText != "plain" {
		t.Errorf("insert text fallback = %q, want label", second.InsertText)
	}
	if second.Kind != "variable" {
		t.Errorf("kind = %q, want variable", second.Kind)
	}

	// Bare array shape.
	list, err = ParseCompletionResult(json.RawMessage(`[{"label":"x"}]`))
	if err != nil || len(list.Items) != 1 {
		t.Fatalf("bare array: list = %+v, err = %v", list, err)
	}

	// Null result is an empty list, not an error.
	list, err = ParseCompletionResult(json.RawMessage(`null`))
	if err != nil || list.Items == nil || len(list.Items) != 0 {
		t.Fatalf("null: list = %+v, err = %v", list, err)
	}
}

func TestParseHoverResult(t *testing.T) {
	// MarkupContent.
	h, err := ParseHoverResult(json.RawMessage(`{"contents":{"kind":"markdown","value":"**doc**"},"range":{"start":{"line":0,"character":0},"end":{"line":0,"character":3}}}`))
	if err != nil {
		t.Fatalf("ParseHoverResult: %v", err)
	}
	if h == nil || h.Contents != "**doc**" || !h.Markdown {
		t.Fatalf("hover = %+v", h)
	}
	if h.Range == nil || h.Range.Start.Row != 1 {
		t.Errorf("hover range = %+v, want host coordinates", h.Range)
	}

	// Language/value MarkedString becomes a fenced code block.
	h, err = ParseHoverResult(json.RawMessage(`{"contents":{"language":"go","value":"func F()"}}`))
	if err != nil || h == nil {
		t.Fatalf("hover = %+v, err = %v", h, err)
	}
	if h.Contents != "```go\nfunc F()\n```" || !h.Markdown {
		t.Errorf("marked string hover = %+v", h)
	}

	// Array of marked strings joins with blank lines.
	h, err = ParseHoverResult(json.RawMessage(`{"contents":["first","second"]}`))
	if err != nil || h == nil || h.Contents != "first\n\nsecond" {
		t.Fatalf("array hover = %+v, err = %v", h, err)
	}

	// Null and empty answers mean no hover.
	if h, err = ParseHoverResult(json.RawMessage(`null`)); err != nil || h != nil {
		t.Errorf("null hover = %+v, err = %v", h, err)
	}
	if h, err = ParseHoverResult(json.RawMessage(`{"contents":""}`)); err != nil || h != nil {
		t.Errorf("empty hover = %+v, err = %v", h, err)
	}
}

func TestParseSignatureHelpResult(t *testing.T) {
	raw := json.RawMessage(`{
		"signatures": [{
			"label": "F(a int, b string)",
			"documentation": "does F",
			"parameters": [
				{"label": "a int"},
				{"label": [9, 17]}
			]
		}],
		"activeSignature": 0,
		"activeParameter": 1
	}`)

	help, err := ParseSignatureHelpResult(raw)
	if err != nil {
		t.Fatalf("ParseSignatureHelpResult: %v", err)
	}
	if help == nil || len(help.Signatures) != 1 {
		t.Fatalf("help = %+v", help)
	}
	sig := help.Signatures[0]
	if sig.Documentation != "does F" {
		t.Errorf("documentation = %q", sig.Documentation)
	}
	if sig.Parameters[0].Label != "a int" {
		t.Errorf("string label = %q", sig.Parameters[0].Label)
	}
	// [9,17) slices "b string" out of the signature label.
	if sig.Parameters[1].Label != "b string" {
		t.Errorf("offset label = %q, want %q", sig.Parameters[1].Label, "b string")
	}
	if help.ActiveParameter != 1 {
		t.Errorf("active parameter = %d, want 1", help.ActiveParameter)
	}

	if help, err = ParseSignatureHelpResult(json.RawMessage(`null`)); err != nil || help != nil {
		t.Errorf("null = %+v, err = %v", help, err)
	}
	if help, err = ParseSignatureHelpResult(json.RawMessage(`{"signatures":[]}`)); err != nil || help != nil {
		t.Errorf("no signatures = %+v, err = %v", help, err)
	}
}

func TestParseLocationResult(t *testing.T) {
	// Single bare location.
	locs, err := ParseLocationResult(json.RawMessage(`{"uri":"file:///a.go","range":{"start":{"line":4,"character":0},"end":{"line":4,"character":5}}}`))
	if err != nil || len(locs) != 1 {
		t.Fatalf("single: locs = %+v, err = %v", locs, err)
	}
	if locs[0].URI != "file:///a.go" || locs[0].Range.Start.Row != 5 {
		t.Errorf("single location = %+v", locs[0])
	}

	// Array of locations.
	locs, err = ParseLocationResult(json.RawMessage(`[{"uri":"file:///a.go","range":{"start":{"line":0,"character":0},"end":{"line":0,"character":0}}}]`))
	if err != nil || len(locs) != 1 {
		t.Fatalf("array: locs = %+v, err = %v", locs, err)
	}

	// Location links collapse to their target selection range.
	locs, err = ParseLocationResult(json.RawMessage(`[{
		"targetUri": "file:///b.go",
		"targetRange": {"start":{"line":0,"character":0},"end":{"line":20,"character":0}},
		"targetSelectionRange": {"start":{"line":2,"character":5},"end":{"line":2,"character":9}}
	}]`))
	if err != nil || len(locs) != 1 {
		t.Fatalf("links: locs = %+v, err = %v", locs, err)
	}
	if locs[0].URI != "file:///b.go" || locs[0].Range.Start.Row != 3 || locs[0].Range.Start.Column != 6 {
		t.Errorf("link location = %+v", locs[0])
	}

	// Null and empty answers are empty, never nil.
	for _, raw := range []string{`null`, `[]`} {
		locs, err = ParseLocationResult(json.RawMessage(raw))
		if err != nil || locs == nil || len(locs) != 0 {
			t.Errorf("%s: locs = %+v, err = %v", raw, locs, err)
		}
	}
}

func TestParseSymbolResult(t *testing.T) {
	// Hierarchical answer keeps its tree shape.
	raw := json.RawMessage(`[{
		"name": "Server", "kind": 23,
		"range": {"start":{"line":0,"character":0},"end":{"line":10,"character":0}},
		"selectionRange": {"start":{"line":0,"character":5},"end":{"line":0,"character":11}},
		"children": [{
			"name": "Start", "kind": 6,
			"range": {"start":{"line":2,"character":0},"end":{"line":4,"character":0}},
			"selectionRange": {"start":{"line":2,"character":5},"end":{"line":2,"character":10}}
		}]
	}]`)
	symbols, err := ParseSymbolResult(raw)
	if err != nil || len(symbols) != 1 {
		t.Fatalf("hierarchical: symbols = %+v, err = %v", symbols, err)
	}
	if symbols[0].Kind != "struct" || len(symbols[0].Children) != 1 {
		t.Errorf("root symbol = %+v", symbols[0])
	}
	if symbols[0].Children[0].Kind != "method" || symbols[0].Children[0].SelectionRange.Start.Row != 3 {
		t.Errorf("child symbol = %+v", symbols[0].Children[0])
	}

	// Flat answer maps container names and ranges.
	symbols, err = ParseSymbolResult(json.RawMessage(`[{
		"name": "Start", "kind": 12, "containerName": "Server",
		"location": {"uri":"file:///a.go","range":{"start":{"line":2,"character":0},"end":{"line":4,"character":0}}}
	}]`))
	if err != nil || len(symbols) != 1 {
		t.Fatalf("flat: symbols = %+v, err = %v", symbols, err)
	}
	if symbols[0].Kind != "function" || symbols[0].ContainerName != "Server" {
		t.Errorf("flat symbol = %+v", symbols[0])
	}

	if symbols, err = ParseSymbolResult(json.RawMessage(`null`)); err != nil || symbols == nil || len(symbols) != 0 {
		t.Errorf("null: symbols = %+v, err = %v", symbols, err)
	}
}

func TestWorkspaceEditToHost(t *testing.T) {
	// Changes map shape.
	we := WorkspaceEdit{
		Changes: map[DocumentURI][]TextEdit{
			"file:///a.go": {
				{Range: Range{Start: Position{Line: 1, Character: 2}}, NewText: "newName"},
				{Range: Range{Start: Position{Line: 5, Character: 0}}, NewText: "newName"},
			},
		},
	}
	host := WorkspaceEditToHost(we)
	if len(host.Edits) != 2 {
		t.Fatalf("edits = %d, want 2", len(host.Edits))
	}
	for _, e := range host.Edits {
		if e.URI != "file:///a.go" || e.Edit.Text != "newName" {
			t.Errorf("edit = %+v", e)
		}
	}

	// documentChanges shape flattens to the same host form.
	we = WorkspaceEdit{
		DocumentChanges: []TextDocumentEdit{{
			TextDocument: VersionedTextDocumentIdentifier{
				TextDocumentIdentifier: TextDocumentIdentifier{URI: "file:///b.go"},
				Version:                7,
			},
			Edits: []TextEdit{{NewText: "x"}},
		}},
	}
	host = WorkspaceEditToHost(we)
	if len(host.Edits) != 1 || host.Edits[0].URI != "file:///b.go" {
		t.Fatalf("documentChanges edits = %+v", host.Edits)
	}
}

func TestKindLabelsDegrade(t *testing.T) {
	if got := CompletionKindLabel(99); got != "text" {
		t.Errorf("unknown completion kind = %q, want text", got)
	}
	if got := SymbolKindLabel(99); got != "variable" {
		t.Errorf("unknown symbol kind = %q, want variable", got)
	}
	if got := CompletionKindLabel(CompletionItemKindStruct); got != "struct" {
		t.Errorf("struct kind = %q", got)
	}
}
