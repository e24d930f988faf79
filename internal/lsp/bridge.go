package lsp

import (
	"context"
	"encoding/json"

	"github.com/driftwood-editor/driftwood/internal/editor"

	"github.com/tidwall/gjson"
)

// The bridge installs one provider per advertised server capability into the
// editor's registry. Each adapter translates host coordinates to wire
// coordinates on the way out and back on the way in; the client underneath
// already degrades failures to empty answers, so adapters never surface
// transport errors to the editor.

// RegistrationSet collects the provider registrations of one connection so
// they can be disposed together on teardown.
type RegistrationSet struct {
	disposables []editor.Disposable
}

func (s *RegistrationSet) add(d editor.Disposable) {
	s.disposables = append(s.disposables, d)
}

// Len returns the number of live registrations.
func (s *RegistrationSet) Len() int {
	return len(s.disposables)
}

// Dispose removes every registration. Safe to call more than once.
func (s *RegistrationSet) Dispose() {
	for _, d := range s.disposables {
		d.Dispose()
	}
	s.disposables = nil
}

// RegisterProviders installs adapters into the registry for every feature
// the server advertises. Features the server does not advertise get no
// provider at all.
func RegisterProviders(reg *editor.Registry, client *Client, language string, uri DocumentURI) *RegistrationSet {
	set := &RegistrationSet{}
	caps := client.Capabilities()

	if caps.CompletionProvider != nil {
		set.add(reg.RegisterCompletionProvider(language, &completionAdapter{
			client:   client,
			uri:      uri,
			triggers: caps.CompletionProvider.TriggerCharacters,
		}))
	}
	if capEnabled(caps.HoverProvider) {
		set.add(reg.RegisterHoverProvider(language, &hoverAdapter{client: client, uri: uri}))
	}
	if caps.SignatureHelpProvider != nil {
		set.add(reg.RegisterSignatureHelpProvider(language, &signatureAdapter{
			client:   client,
			uri:      uri,
			triggers: caps.SignatureHelpProvider.TriggerCharacters,
		}))
	}
	if capEnabled(caps.DefinitionProvider) {
		set.add(reg.RegisterDefinitionProvider(language, &definitionAdapter{client: client, uri: uri}))
	}
	if capEnabled(caps.ReferencesProvider) {
		set.add(reg.RegisterReferenceProvider(language, &referenceAdapter{client: client, uri: uri}))
	}
	if capEnabled(caps.DocumentSymbolProvider) {
		set.add(reg.RegisterSymbolProvider(language, &symbolAdapter{client: client, uri: uri}))
	}
	if capEnabled(caps.DocumentFormattingProvider) {
		set.add(reg.RegisterFormattingProvider(language, &formattingAdapter{client: client, uri: uri}))
	}
	if capEnabled(caps.RenameProvider) {
		set.add(reg.RegisterRenameProvider(language, &renameAdapter{client: client, uri: uri}))
	}
	return set
}

// capEnabled interprets a bool-or-object capability field. Any object counts
// as enabled; only absence or literal false disables.
func capEnabled(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	v := gjson.ParseBytes(raw)
	if v.Type == gjson.False || v.Type == gjson.Null {
		return false
	}
	return true
}

type completionAdapter struct {
	client   *Client
	uri      DocumentURI
	triggers []string
}

func (a *completionAdapter) TriggerCharacters() []string { return a.triggers }

func (a *completionAdapter) Complete(ctx context.Context, pos editor.Position) (editor.CompletionList, error) {
	return a.client.Completion(ctx, a.uri, ToProtocolPosition(pos)), nil
}

type hoverAdapter struct {
	client *Client
	uri    DocumentURI
}

func (a *hoverAdapter) Hover(ctx context.Context, pos editor.Position) (*editor.HoverResult, error) {
	return a.client.Hover(ctx, a.uri, ToProtocolPosition(pos)), nil
}

type signatureAdapter struct {
	client   *Client
	uri      DocumentURI
	triggers []string
}

func (a *signatureAdapter) TriggerCharacters() []string { return a.triggers }

func (a *signatureAdapter) SignatureHelp(ctx context.Context, pos editor.Position) (*editor.SignatureHelpResult, error) {
	return a.client.SignatureHelp(ctx, a.uri, ToProtocolPosition(pos)), nil
}

type definitionAdapter struct {
	client *Client
	uri    DocumentURI
}

func (a *definitionAdapter) Definition(ctx context.Context, pos editor.Position) ([]editor.Location, error) {
	return a.client.Definition(ctx, a.uri, ToProtocolPosition(pos)), nil
}

type referenceAdapter struct {
	client *Client
	uri    DocumentURI
}

func (a *referenceAdapter) References(ctx context.Context, pos editor.Position, includeDeclaration bool) ([]editor.Location, error) {
	return a.client.References(ctx, a.uri, ToProtocolPosition(pos), includeDeclaration), nil
}

type symbolAdapter struct {
	client *Client
	uri    DocumentURI
}

func (a *symbolAdapter) Symbols(ctx context.Context) ([]editor.SymbolEntry, error) {
	return a.client.DocumentSymbols(ctx, a.uri), nil
}

type formattingAdapter struct {
	client *Client
	uri    DocumentURI
}

func (a *formattingAdapter) Format(ctx context.Context, opts editor.FormattingOptions) ([]editor.TextEdit, error) {
	return a.client.Formatting(ctx, a.uri, FormattingOptions{
		TabSize:      opts.TabSize,
		InsertSpaces: opts.InsertSpaces,
	}), nil
}

type renameAdapter struct {
	client *Client
	uri    DocumentURI
}

func (a *renameAdapter) Rename(ctx context.Context, pos editor.Position, newName string) (*editor.WorkspaceEdit, error) {
	return a.client.Rename(ctx, a.uri, ToProtocolPosition(pos), newName), nil
}
