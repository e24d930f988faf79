package lsp

import "encoding/json"

// DocumentURI identifies a text document, typically a file:// or inmemory://
// URI.
type DocumentURI string

// Position in a text document, zero-based line and character offset.
// Character offsets are UTF-16 code units per the LSP specification.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range in a text document, start inclusive and end exclusive.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location is a range inside a resource.
type Location struct {
	URI   DocumentURI `json:"uri"`
	Range Range       `json:"range"`
}

// LocationLink is the richer definition result some servers return instead
// of a plain Location.
type LocationLink struct {
	OriginSelectionRange *Range      `json:"originSelectionRange,omitempty"`
	TargetURI            DocumentURI `json:"targetUri"`
	TargetRange          Range       `json:"targetRange"`
	TargetSelectionRange Range       `json:"targetSelectionRange"`
}

// TextDocumentIdentifier names a text document.
type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

// VersionedTextDocumentIdentifier names a specific version of a document.
type VersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier
	Version int `json:"version"`
}

// TextDocumentItem transfers a document from client to server.
type TextDocumentItem struct {
	URI        DocumentURI `json:"uri"`
	LanguageID string      `json:"languageId"`
	Version    int         `json:"version"`
	Text       string      `json:"text"`
}

// TextDocumentPositionParams carries a document and a position in it.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// TextEdit is a textual change applicable to a document.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// TextDocumentContentChangeEvent describes one content change. With a nil
// Range the event replaces the whole document (full sync).
type TextDocumentContentChangeEvent struct {
	Range *Range `json:"range,omitempty"`
	Text  string `json:"text"`
}

// TextDocumentEdit groups edits to one versioned document, as carried in
// WorkspaceEdit.documentChanges.
type TextDocumentEdit struct {
	TextDocument VersionedTextDocumentIdentifier `json:"textDocument"`
	Edits        []TextEdit                      `json:"edits"`
}

// WorkspaceEdit is a change spanning multiple documents. Servers use either
// the Changes map or the DocumentChanges list.
type WorkspaceEdit struct {
	Changes         map[DocumentURI][]TextEdit `json:"changes,omitempty"`
	DocumentChanges []TextDocumentEdit         `json:"documentChanges,omitempty"`
}

// MarkupKind describes how markup content is encoded.
type MarkupKind string

const (
	MarkupKindPlainText MarkupKind = "plaintext"
	MarkupKindMarkdown  MarkupKind = "markdown"
)

// MarkupContent is human-readable text with an encoding kind.
type MarkupContent struct {
	Kind  MarkupKind `json:"kind"`
	Value string     `json:"value"`
}

// --- Initialize ---

// InitializeParams are the parameters of the initialize request.
type InitializeParams struct {
	ProcessID    *int               `json:"processId"`
	RootURI      DocumentURI        `json:"rootUri,omitempty"`
	Capabilities ClientCapabilities `json:"capabilities"`
}

// InitializeResult is the server's answer to initialize.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

// ServerInfo names the language server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializedParams is the (empty) payload of the initialized notification.
type InitializedParams struct{}

// --- Client capabilities ---

// ClientCapabilities declares what this client supports.
type ClientCapabilities struct {
	TextDocument *TextDocumentClientCapabilities `json:"textDocument,omitempty"`
}

// TextDocumentClientCapabilities declares per-feature document capabilities.
type TextDocumentClientCapabilities struct {
	Synchronization    *SyncClientCapabilities               `json:"synchronization,omitempty"`
	Completion         *CompletionClientCapabilities         `json:"completion,omitempty"`
	Hover              *HoverClientCapabilities              `json:"hover,omitempty"`
	SignatureHelp      *SignatureHelpClientCapabilities      `json:"signatureHelp,omitempty"`
	Definition         *DefinitionClientCapabilities         `json:"definition,omitempty"`
	References         *ReferenceClientCapabilities          `json:"references,omitempty"`
	DocumentSymbol     *DocumentSymbolClientCapabilities     `json:"documentSymbol,omitempty"`
	Formatting         *FormattingClientCapabilities         `json:"formatting,omitempty"`
	Rename             *RenameClientCapabilities             `json:"rename,omitempty"`
	PublishDiagnostics *PublishDiagnosticsClientCapabilities `json:"publishDiagnostics,omitempty"`
}

// SyncClientCapabilities covers text document synchronization.
type SyncClientCapabilities struct {
	DynamicRegistration bool `json:"dynamicRegistration,omitempty"`
}

// CompletionClientCapabilities covers completion support.
type CompletionClientCapabilities struct {
	CompletionItem *CompletionItemCapabilities `json:"completionItem,omitempty"`
	ContextSupport bool                        `json:"contextSupport,omitempty"`
}

// CompletionItemCapabilities covers per-item completion support.
type CompletionItemCapabilities struct {
	SnippetSupport      bool         `json:"snippetSupport,omitempty"`
	DocumentationFormat []MarkupKind `json:"documentationFormat,omitempty"`
}

// HoverClientCapabilities covers hover support.
type HoverClientCapabilities struct {
	ContentFormat []MarkupKind `json:"contentFormat,omitempty"`
}

// SignatureHelpClientCapabilities covers signature help support.
type SignatureHelpClientCapabilities struct {
	SignatureInformation *SignatureInformationCapabilities `json:"signatureInformation,omitempty"`
}

// SignatureInformationCapabilities covers signature formatting support.
type SignatureInformationCapabilities struct {
	DocumentationFormat []MarkupKind `json:"documentationFormat,omitempty"`
}

// DefinitionClientCapabilities covers definition support.
type DefinitionClientCapabilities struct {
	LinkSupport bool `json:"linkSupport,omitempty"`
}

// ReferenceClientCapabilities covers reference support.
type ReferenceClientCapabilities struct{}

// DocumentSymbolClientCapabilities covers document symbol support.
type DocumentSymbolClientCapabilities struct {
	HierarchicalDocumentSymbolSupport bool `json:"hierarchicalDocumentSymbolSupport,omitempty"`
}

// FormattingClientCapabilities covers document formatting support.
type FormattingClientCapabilities struct{}

// RenameClientCapabilities covers rename support.
type RenameClientCapabilities struct {
	PrepareSupport bool `json:"prepareSupport,omitempty"`
}

// PublishDiagnosticsClientCapabilities covers diagnostics support.
type PublishDiagnosticsClientCapabilities struct {
	RelatedInformation bool                  `json:"relatedInformation,omitempty"`
	TagSupport         *DiagnosticTagSupport `json:"tagSupport,omitempty"`
}

// DiagnosticTagSupport lists the diagnostic tags the client understands.
type DiagnosticTagSupport struct {
	ValueSet []DiagnosticTag `json:"valueSet,omitempty"`
}

// DefaultClientCapabilities builds the capability set this bridge declares:
// full-document sync, snippet completions with markdown or plaintext
// documentation, hover, signature help, definitions with link support,
// references, hierarchical document symbols, formatting, rename with prepare
// support, and diagnostics with related information and tags.
func DefaultClientCapabilities() ClientCapabilities {
	formats := []MarkupKind{MarkupKindMarkdown, MarkupKindPlainText}
	return ClientCapabilities{
		TextDocument: &TextDocumentClientCapabilities{
			Synchronization: &SyncClientCapabilities{},
			Completion: &CompletionClientCapabilities{
				CompletionItem: &CompletionItemCapabilities{
					SnippetSupport:      true,
					DocumentationFormat: formats,
				},
				ContextSupport: true,
			},
			Hover: &HoverClientCapabilities{ContentFormat: formats},
			SignatureHelp: &SignatureHelpClientCapabilities{
				SignatureInformation: &SignatureInformationCapabilities{
					DocumentationFormat: formats,
				},
			},
			Definition: &DefinitionClientCapabilities{LinkSupport: true},
			References: &ReferenceClientCapabilities{},
			DocumentSymbol: &DocumentSymbolClientCapabilities{
				HierarchicalDocumentSymbolSupport: true,
			},
			Formatting: &FormattingClientCapabilities{},
			Rename:     &RenameClientCapabilities{PrepareSupport: true},
			PublishDiagnostics: &PublishDiagnosticsClientCapabilities{
				RelatedInformation: true,
				TagSupport: &DiagnosticTagSupport{
					ValueSet: []DiagnosticTag{DiagnosticTagUnnecessary, DiagnosticTagDeprecated},
				},
			},
		},
	}
}

// ServerCapabilities is the subset of the server's capability answer this
// client inspects. Several fields are bool-or-object in the protocol and are
// kept raw.
type ServerCapabilities struct {
	TextDocumentSync           json.RawMessage       `json:"textDocumentSync,omitempty"`
	CompletionProvider         *CompletionOptions    `json:"completionProvider,omitempty"`
	HoverProvider              json.RawMessage       `json:"hoverProvider,omitempty"`
	SignatureHelpProvider      *SignatureHelpOptions `json:"signatureHelpProvider,omitempty"`
	DefinitionProvider         json.RawMessage       `json:"definitionProvider,omitempty"`
	ReferencesProvider         json.RawMessage       `json:"referencesProvider,omitempty"`
	DocumentSymbolProvider     json.RawMessage       `json:"documentSymbolProvider,omitempty"`
	DocumentFormattingProvider json.RawMessage       `json:"documentFormattingProvider,omitempty"`
	RenameProvider             json.RawMessage       `json:"renameProvider,omitempty"`
}

// CompletionOptions are the server's completion settings.
type CompletionOptions struct {
	TriggerCharacters []string `json:"triggerCharacters,omitempty"`
	ResolveProvider   bool     `json:"resolveProvider,omitempty"`
}

// SignatureHelpOptions are the server's signature help settings.
type SignatureHelpOptions struct {
	TriggerCharacters []string `json:"triggerCharacters,omitempty"`
}

// --- Document sync ---

// DidOpenTextDocumentParams are parameters of textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidChangeTextDocumentParams are parameters of textDocument/didChange.
type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

// DidCloseTextDocumentParams are parameters of textDocument/didClose.
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// --- Completion ---

// CompletionParams are parameters of textDocument/completion.
type CompletionParams struct {
	TextDocumentPositionParams
	Context *CompletionContext `json:"context,omitempty"`
}

// CompletionContext describes how completion was triggered.
type CompletionContext struct {
	TriggerKind      CompletionTriggerKind `json:"triggerKind"`
	TriggerCharacter string                `json:"triggerCharacter,omitempty"`
}

// CompletionTriggerKind enumerates completion trigger causes.
type CompletionTriggerKind int

const (
	CompletionTriggerKindInvoked          CompletionTriggerKind = 1
	CompletionTriggerKindTriggerCharacter CompletionTriggerKind = 2
)

// CompletionList is a collection of completion items.
type CompletionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []CompletionItem `json:"items"`
}

// CompletionItem is one completion suggestion.
type CompletionItem struct {
	Label            string             `json:"label"`
	Kind             CompletionItemKind `json:"kind,omitempty"`
	Detail           string             `json:"detail,omitempty"`
	Documentation    json.RawMessage    `json:"documentation,omitempty"` // string or MarkupContent
	SortText         string             `json:"sortText,omitempty"`
	FilterText       string             `json:"filterText,omitempty"`
	InsertText       string             `json:"insertText,omitempty"`
	InsertTextFormat InsertTextFormat   `json:"insertTextFormat,omitempty"`
	TextEdit         *TextEdit          `json:"textEdit,omitempty"`
}

// CompletionItemKind enumerates completion item categories.
type CompletionItemKind int

const (
	CompletionItemKindText          CompletionItemKind = 1
	CompletionItemKindMethod        CompletionItemKind = 2
	CompletionItemKindFunction      CompletionItemKind = 3
	CompletionItemKindConstructor   CompletionItemKind = 4
	CompletionItemKindField         CompletionItemKind = 5
	CompletionItemKindVariable      CompletionItemKind = 6
	CompletionItemKindClass         CompletionItemKind = 7
	CompletionItemKindInterface     CompletionItemKind = 8
	CompletionItemKindModule        CompletionItemKind = 9
	CompletionItemKindProperty      CompletionItemKind = 10
	CompletionItemKindUnit          CompletionItemKind = 11
	CompletionItemKindValue         CompletionItemKind = 12
	CompletionItemKindEnum          CompletionItemKind = 13
	CompletionItemKindKeyword       CompletionItemKind = 14
	CompletionItemKindSnippet       CompletionItemKind = 15
	CompletionItemKindColor         CompletionItemKind = 16
	CompletionItemKindFile          CompletionItemKind = 17
	CompletionItemKindReference     CompletionItemKind = 18
	CompletionItemKindFolder        CompletionItemKind = 19
	CompletionItemKindEnumMember    CompletionItemKind = 20
	CompletionItemKindConstant      CompletionItemKind = 21
	CompletionItemKindStruct        CompletionItemKind = 22
	CompletionItemKindEvent         CompletionItemKind = 23
	CompletionItemKindOperator      CompletionItemKind = 24
	CompletionItemKindTypeParameter CompletionItemKind = 25
)

// InsertTextFormat marks insert text as plain text or snippet syntax.
type InsertTextFormat int

const (
	InsertTextFormatPlainText InsertTextFormat = 1
	InsertTextFormatSnippet   InsertTextFormat = 2
)

// --- Hover ---

// Hover is the hover answer. Contents is a union (MarkupContent,
// MarkedString, or a list of MarkedString) and stays raw until conversion.
type Hover struct {
	Contents json.RawMessage `json:"contents"`
	Range    *Range          `json:"range,omitempty"`
}

// --- Signature help ---

// SignatureHelp is the signature help answer.
type SignatureHelp struct {
	Signatures      []SignatureInformation `json:"signatures"`
	ActiveSignature int                    `json:"activeSignature,omitempty"`
	ActiveParameter int                    `json:"activeParameter,omitempty"`
}

// SignatureInformation describes one callable signature.
type SignatureInformation struct {
	Label         string                 `json:"label"`
	Documentation json.RawMessage        `json:"documentation,omitempty"`
	Parameters    []ParameterInformation `json:"parameters,omitempty"`
}

// ParameterInformation describes one parameter. Label is a string or a
// [start, end) offset pair into the signature label.
type ParameterInformation struct {
	Label         json.RawMessage `json:"label"`
	Documentation json.RawMessage `json:"documentation,omitempty"`
}

// --- References ---

// ReferenceParams are parameters of textDocument/references.
type ReferenceParams struct {
	TextDocumentPositionParams
	Context ReferenceContext `json:"context"`
}

// ReferenceContext controls reference search behavior.
type ReferenceContext struct {
	IncludeDeclaration bool `json:"includeDeclaration"`
}

// --- Document symbols ---

// DocumentSymbolParams are parameters of textDocument/documentSymbol.
type DocumentSymbolParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DocumentSymbol is a node in the hierarchical symbol answer.
type DocumentSymbol struct {
	Name           string           `json:"name"`
	Detail         string           `json:"detail,omitempty"`
	Kind           SymbolKind       `json:"kind"`
	Range          Range            `json:"range"`
	SelectionRange Range            `json:"selectionRange"`
	Children       []DocumentSymbol `json:"children,omitempty"`
}

// SymbolInformation is the flat symbol answer older servers return.
type SymbolInformation struct {
	Name          string     `json:"name"`
	Kind          SymbolKind `json:"kind"`
	Location      Location   `json:"location"`
	ContainerName string     `json:"containerName,omitempty"`
}

// SymbolKind enumerates symbol categories.
type SymbolKind int

const (
	SymbolKindFile          SymbolKind = 1
	SymbolKindModule        SymbolKind = 2
	SymbolKindNamespace     SymbolKind = 3
	SymbolKindPackage       SymbolKind = 4
	SymbolKindClass         SymbolKind = 5
	SymbolKindMethod        SymbolKind = 6
	SymbolKindProperty      SymbolKind = 7
	SymbolKindField         SymbolKind = 8
	SymbolKindConstructor   SymbolKind = 9
	SymbolKindEnum          SymbolKind = 10
	SymbolKindInterface     SymbolKind = 11
	SymbolKindFunction      SymbolKind = 12
	SymbolKindVariable      SymbolKind = 13
	SymbolKindConstant      SymbolKind = 14
	SymbolKindString        SymbolKind = 15
	SymbolKindNumber        SymbolKind = 16
	SymbolKindBoolean       SymbolKind = 17
	SymbolKindArray         SymbolKind = 18
	SymbolKindObject        SymbolKind = 19
	SymbolKindKey           SymbolKind = 20
	SymbolKindNull          SymbolKind = 21
	SymbolKindEnumMember    SymbolKind = 22
	SymbolKindStruct        SymbolKind = 23
	SymbolKindEvent         SymbolKind = 24
	SymbolKindOperator      SymbolKind = 25
	SymbolKindTypeParameter SymbolKind = 26
)

// --- Formatting ---

// DocumentFormattingParams are parameters of textDocument/formatting.
type DocumentFormattingParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Options      FormattingOptions      `json:"options"`
}

// FormattingOptions carry formatting preferences.
type FormattingOptions struct {
	TabSize      int  `json:"tabSize"`
	InsertSpaces bool `json:"insertSpaces"`
}

// --- Rename ---

// RenameParams are parameters of textDocument/rename.
type RenameParams struct {
	TextDocumentPositionParams
	NewName string `json:"newName"`
}

// --- Diagnostics ---

// PublishDiagnosticsParams is the payload of the server's
// textDocument/publishDiagnostics notification. Each notification carries
// the full current diagnostic set for the URI.
type PublishDiagnosticsParams struct {
	URI         DocumentURI  `json:"uri"`
	Version     int          `json:"version,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Diagnostic is one reported issue anchored to a document range.
type Diagnostic struct {
	Range              Range                          `json:"range"`
	Severity           DiagnosticSeverity             `json:"severity,omitempty"`
	Code               json.RawMessage                `json:"code,omitempty"` // string or number
	Source             string                         `json:"source,omitempty"`
	Message            string                         `json:"message"`
	Tags               []DiagnosticTag                `json:"tags,omitempty"`
	RelatedInformation []DiagnosticRelatedInformation `json:"relatedInformation,omitempty"`
}

// DiagnosticSeverity enumerates diagnostic severities.
type DiagnosticSeverity int

const (
	DiagnosticSeverityError       DiagnosticSeverity = 1
	DiagnosticSeverityWarning     DiagnosticSeverity = 2
	DiagnosticSeverityInformation DiagnosticSeverity = 3
	DiagnosticSeverityHint        DiagnosticSeverity = 4
)

// DiagnosticTag enumerates extra diagnostic metadata.
type DiagnosticTag int

const (
	DiagnosticTagUnnecessary DiagnosticTag = 1
	DiagnosticTagDeprecated  DiagnosticTag = 2
)

// DiagnosticRelatedInformation points at a related location.
type DiagnosticRelatedInformation struct {
	Location Location `json:"location"`
	Message  string   `json:"message"`
}

// --- Window ---

// MessageType enumerates server message severities.
type MessageType int

const (
	MessageTypeError   MessageType = 1
	MessageTypeWarning MessageType = 2
	MessageTypeInfo    MessageType = 3
	MessageTypeLog     MessageType = 4
)

// ShowMessageParams is the payload of window/showMessage and
// window/logMessage.
type ShowMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// ShowMessageRequestParams is the payload of window/showMessageRequest.
type ShowMessageRequestParams struct {
	Type    MessageType         `json:"type"`
	Message string              `json:"message"`
	Actions []MessageActionItem `json:"actions,omitempty"`
}

// MessageActionItem is one action offered by a showMessageRequest.
type MessageActionItem struct {
	Title string `json:"title"`
}
