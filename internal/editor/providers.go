package editor

import (
	"context"
	"sync"
)

// CompletionItem is one suggestion in the host's completion popup.
// Kind is the widget's string category (used for the item icon). IsSnippet
// marks InsertText as snippet syntax the host must expand; plain-text items
// are inserted verbatim.
type CompletionItem struct {
	Label         string
	Kind          string
	Detail        string
	Documentation string
	InsertText    string
	IsSnippet     bool
	SortText      string
	FilterText    string
}

// CompletionList is the result of a completion request.
type CompletionList struct {
	Items        []CompletionItem
	IsIncomplete bool
}

// HoverResult is the content shown in the host's hover tooltip.
type HoverResult struct {
	Contents string
	Markdown bool
	Range    *Range
}

// ParameterEntry describes one parameter inside a signature.
type ParameterEntry struct {
	Label         string
	Documentation string
}

// SignatureEntry describes one callable signature.
type SignatureEntry struct {
	Label         string
	Documentation string
	Parameters    []ParameterEntry
}

// SignatureHelpResult is the host representation of signature help.
type SignatureHelpResult struct {
	Signatures      []SignatureEntry
	ActiveSignature int
	ActiveParameter int
}

// SymbolEntry is one node in the host's document outline.
type SymbolEntry struct {
	Name           string
	Detail         string
	Kind           string
	ContainerName  string
	Range          Range
	SelectionRange Range
	Children       []SymbolEntry
}

// TextEdit replaces a host-coordinate range with new text.
type TextEdit struct {
	Range Range
	Text  string
}

// ResourceEdit is one text edit applied to one document. A multi-file
// operation such as rename produces one ResourceEdit per text edit per
// affected URI.
type ResourceEdit struct {
	URI  string
	Edit TextEdit
}

// WorkspaceEdit is a flat list of edits across documents.
type WorkspaceEdit struct {
	Edits []ResourceEdit
}

// FormattingOptions are the host's formatting preferences.
type FormattingOptions struct {
	TabSize      int
	InsertSpaces bool
}

// CompletionProvider answers completion requests at a position.
type CompletionProvider interface {
	// TriggerCharacters are keystrokes that invoke the provider in addition
	// to explicit invocation.
	TriggerCharacters() []string
	Complete(ctx context.Context, pos Position) (CompletionList, error)
}

// HoverProvider answers hover requests. A nil result means no hover.
type HoverProvider interface {
	Hover(ctx context.Context, pos Position) (*HoverResult, error)
}

// SignatureHelpProvider answers signature help requests.
type SignatureHelpProvider interface {
	TriggerCharacters() []string
	SignatureHelp(ctx context.Context, pos Position) (*SignatureHelpResult, error)
}

// DefinitionProvider resolves the definition of the symbol at a position.
// An empty result is a valid "no definition" answer.
type DefinitionProvider interface {
	Definition(ctx context.Context, pos Position) ([]Location, error)
}

// ReferenceProvider finds references to the symbol at a position.
type ReferenceProvider interface {
	References(ctx context.Context, pos Position, includeDeclaration bool) ([]Location, error)
}

// SymbolProvider returns the document outline.
type SymbolProvider interface {
	Symbols(ctx context.Context) ([]SymbolEntry, error)
}

// FormattingProvider formats the whole document.
type FormattingProvider interface {
	Format(ctx context.Context, opts FormattingOptions) ([]TextEdit, error)
}

// RenameProvider renames the symbol at a position across the workspace.
type RenameProvider interface {
	Rename(ctx context.Context, pos Position, newName string) (*WorkspaceEdit, error)
}

// Registry holds the feature providers installed for each language id. The
// host editor looks providers up when the user triggers a feature; the
// bridge registers them and disposes the registrations on teardown.
//
// Registry is an explicitly constructed object, not a package-level
// singleton, so multiple editor instances in one process never share state.
type Registry struct {
	mu         sync.RWMutex
	nextID     int
	completion map[string]map[int]CompletionProvider
	hover      map[string]map[int]HoverProvider
	signature  map[string]map[int]SignatureHelpProvider
	definition map[string]map[int]DefinitionProvider
	references map[string]map[int]ReferenceProvider
	symbols    map[string]map[int]SymbolProvider
	formatting map[string]map[int]FormattingProvider
	rename     map[string]map[int]RenameProvider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		completion: make(map[string]map[int]CompletionProvider),
		hover:      make(map[string]map[int]HoverProvider),
		signature:  make(map[string]map[int]SignatureHelpProvider),
		definition: make(map[string]map[int]DefinitionProvider),
		references: make(map[string]map[int]ReferenceProvider),
		symbols:    make(map[string]map[int]SymbolProvider),
		formatting: make(map[string]map[int]FormattingProvider),
		rename:     make(map[string]map[int]RenameProvider),
	}
}

func register[P any](r *Registry, table map[string]map[int]P, language string, p P) Disposable {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	if table[language] == nil {
		table[language] = make(map[int]P)
	}
	table[language][id] = p
	r.mu.Unlock()

	var once sync.Once
	return DisposeFunc(func() {
		once.Do(func() {
			r.mu.Lock()
			delete(table[language], id)
			r.mu.Unlock()
		})
	})
}

func lookup[P any](r *Registry, table map[string]map[int]P, language string) []P {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]P, 0, len(table[language]))
	for _, p := range table[language] {
		out = append(out, p)
	}
	return out
}

// RegisterCompletionProvider installs a completion provider for a language.
func (r *Registry) RegisterCompletionProvider(language string, p CompletionProvider) Disposable {
	return register(r, r.completion, language, p)
}

// RegisterHoverProvider installs a hover provider for a language.
func (r *Registry) RegisterHoverProvider(language string, p HoverProvider) Disposable {
	return register(r, r.hover, language, p)
}

// RegisterSignatureHelpProvider installs a signature help provider.
func (r *Registry) RegisterSignatureHelpProvider(language string, p SignatureHelpProvider) Disposable {
	return register(r, r.signature, language, p)
}

// RegisterDefinitionProvider installs a definition provider.
func (r *Registry) RegisterDefinitionProvider(language string, p DefinitionProvider) Disposable {
	return register(r, r.definition, language, p)
}

// RegisterReferenceProvider installs a reference provider.
func (r *Registry) RegisterReferenceProvider(language string, p ReferenceProvider) Disposable {
	return register(r, r.references, language, p)
}

// RegisterSymbolProvider installs a document symbol provider.
func (r *Registry) RegisterSymbolProvider(language string, p SymbolProvider) Disposable {
	return register(r, r.symbols, language, p)
}

// RegisterFormattingProvider installs a formatting provider.
func (r *Registry) RegisterFormattingProvider(language string, p FormattingProvider) Disposable {
	return register(r, r.formatting, language, p)
}

// RegisterRenameProvider installs a rename provider.
func (r *Registry) RegisterRenameProvider(language string, p RenameProvider) Disposable {
	return register(r, r.rename, language, p)
}

// CompletionProviders returns the completion providers for a language.
func (r *Registry) CompletionProviders(language string) []CompletionProvider {
	return lookup(r, r.completion, language)
}

// HoverProviders returns the hover providers for a language.
func (r *Registry) HoverProviders(language string) []HoverProvider {
	return lookup(r, r.hover, language)
}

// SignatureHelpProviders returns the signature help providers for a language.
func (r *Registry) SignatureHelpProviders(language string) []SignatureHelpProvider {
	return lookup(r, r.signature, language)
}

// DefinitionProviders returns the definition providers for a language.
func (r *Registry) DefinitionProviders(language string) []DefinitionProvider {
	return lookup(r, r.definition, language)
}

// ReferenceProviders returns the reference providers for a language.
func (r *Registry) ReferenceProviders(language string) []ReferenceProvider {
	return lookup(r, r.references, language)
}

// SymbolProviders returns the symbol providers for a language.
func (r *Registry) SymbolProviders(language string) []SymbolProvider {
	return lookup(r, r.symbols, language)
}

// FormattingProviders returns the formatting providers for a language.
func (r *Registry) FormattingProviders(language string) []FormattingProvider {
	return lookup(r, r.formatting, language)
}

// RenameProviders returns the rename providers for a language.
func (r *Registry) RenameProviders(language string) []RenameProvider {
	return lookup(r, r.rename, language)
}

// ProviderCount returns the total number of live registrations for a
// language across all features.
func (r *Registry) ProviderCount(language string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.completion[language]) +
		len(r.hover[language]) +
		len(r.signature[language]) +
		len(r.definition[language]) +
		len(r.references[language]) +
		len(r.symbols[language]) +
		len(r.formatting[language]) +
		len(r.rename[language])
}
