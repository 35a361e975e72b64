// Package server provides a language server for style programs.
package server

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/bibtex/bst"
	"github.com/chazu/bibtex/history"
	"github.com/chazu/bibtex/pool"
)

const lspName = "bibtex-lsp"

// analysisHashSize is the hash table size used to compile one document.
const analysisHashSize = 35307

var log = commonlog.GetLogger("bibtex.lsp")

var commandNames = []string{
	"ENTRY", "EXECUTE", "FUNCTION", "INTEGERS", "ITERATE",
	"MACRO", "READ", "REVERSE", "SORT", "STRINGS",
}

// document is an open style file and the result of compiling it.
type document struct {
	text  string
	prog  *bst.Program // nil if compilation could not finish
	diags []bst.Diagnostic
}

// LspServer serves editor features for style programs.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]*document // URI → analysed document

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a language server.
func NewLSP() *LspServer {
	s := &LspServer{
		docs:    make(map[string]*document),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{".", "'"},
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	doc := s.update(uri, params.TextDocument.Text)
	s.publishDiagnostics(ctx, uri, doc)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			doc := s.update(uri, whole.Text)
			s.publishDiagnostics(ctx, uri, doc)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) update(uri protocol.DocumentUri, text string) *document {
	doc := analyze(path.Base(string(uri)), text)
	s.mu.Lock()
	s.docs[string(uri)] = doc
	s.mu.Unlock()
	return doc
}

func (s *LspServer) document(uri protocol.DocumentUri) *document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[string(uri)]
}

// analyze compiles text in a private string pool.
func analyze(name, text string) *document {
	doc := &document{text: text}
	tab := pool.NewTable(pool.NewPool(0, 0), analysisHashSize)
	prog, diags, err := bst.Compile(name, text, tab, history.New(), bst.Options{})
	doc.prog = prog
	doc.diags = diags
	if err != nil {
		doc.diags = append(doc.diags, bst.Diagnostic{Pos: bst.Position{Line: 1, Column: 1}, Message: err.Error()})
	}
	log.Debugf("analysed %s: %d diagnostics", name, len(doc.diags))
	return doc
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	prefix := extractPrefix(doc.text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return complete(doc, prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	return hover(doc, word), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	doc := s.document(uri)
	if doc == nil || doc.prog == nil {
		return nil, nil
	}
	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	f, ok := doc.prog.Lookup(word)
	if !ok || f.Pos.Line == 0 {
		return nil, nil
	}
	return []protocol.Location{{URI: uri, Range: nameRange(f.Pos, f.Name)}}, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := params.TextDocument.URI
	doc := s.document(uri)
	if doc == nil {
		return nil, nil
	}
	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	var locations []protocol.Location
	for _, r := range references(doc.text, word) {
		locations = append(locations, protocol.Location{URI: uri, Range: r})
	}
	return locations, nil
}

// --- Analysis-backed logic ---

func complete(doc *document, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	lowerPrefix := strings.ToLower(prefix)
	add := func(label, detail string, kind protocol.CompletionItemKind) {
		if !strings.HasPrefix(strings.ToLower(label), lowerPrefix) {
			return
		}
		labelCopy := label
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &labelCopy,
		})
	}

	for _, name := range commandNames {
		add(name, "command", protocol.CompletionItemKindKeyword)
	}
	for _, name := range bst.BuiltinNames() {
		usage, _ := bst.BuiltinUsage(name)
		add(name, usage, protocol.CompletionItemKindFunction)
	}
	if doc.prog != nil {
		for _, f := range doc.prog.Functions {
			if f.Kind == bst.KindBuiltin {
				continue
			}
			kind := protocol.CompletionItemKindVariable
			switch f.Kind {
			case bst.KindWizard:
				kind = protocol.CompletionItemKindFunction
			case bst.KindField:
				kind = protocol.CompletionItemKindField
			}
			add(f.Name, f.Kind.String(), kind)
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Label < items[j].Label })

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

func hover(doc *document, word string) *protocol.Hover {
	var b strings.Builder
	if usage, ok := bst.BuiltinUsage(strings.ToLower(word)); ok {
		fmt.Fprintf(&b, "**%s** (built-in)\n\n`%s`", strings.ToLower(word), usage)
	} else if doc.prog != nil {
		f, ok := doc.prog.Lookup(word)
		if !ok {
			return nil
		}
		fmt.Fprintf(&b, "**%s**: %s", f.Name, f.Kind)
		if f.Pos.Line > 0 {
			fmt.Fprintf(&b, "\n\nDefined at line %d", f.Pos.Line)
		} else {
			b.WriteString("\n\nPre-declared")
		}
		if f.Kind == bst.KindWizard {
			fmt.Fprintf(&b, ", %d operations", len(f.Body))
		}
	} else {
		return nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

// references finds every use of name, quoted or not.
func references(text, name string) []protocol.Range {
	want := strings.ToLower(name)
	var ranges []protocol.Range
	for _, t := range bst.NewLexer(text).All() {
		switch t.Type {
		case bst.TokenIdentifier:
			if strings.ToLower(t.Literal) == want {
				ranges = append(ranges, nameRange(t.Pos, t.Literal))
			}
		case bst.TokenQuote:
			if strings.ToLower(t.Literal) == want {
				pos := t.Pos
				pos.Column++
				ranges = append(ranges, nameRange(pos, t.Literal))
			}
		}
	}
	return ranges
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, doc *document) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics(doc),
	})
}

func diagnostics(doc *document) []protocol.Diagnostic {
	lines := strings.Split(doc.text, "\n")
	source := lspName
	diags := []protocol.Diagnostic{}
	for _, d := range doc.diags {
		severity := protocol.DiagnosticSeverityError
		if d.Warning {
			severity = protocol.DiagnosticSeverityWarning
		}
		r := nameRange(d.Pos, "")
		if line := d.Pos.Line - 1; line >= 0 && line < len(lines) {
			r.End.Character = protocol.UInteger(wordEnd(lines[line], d.Pos.Column-1))
		}
		diags = append(diags, protocol.Diagnostic{
			Range:    r,
			Severity: &severity,
			Source:   &source,
			Message:  d.Message,
		})
	}
	return diags
}

// --- Text extraction helpers ---

// nameRange converts a 1-based position and the name found there.
func nameRange(pos bst.Position, name string) protocol.Range {
	line := protocol.UInteger(max(pos.Line-1, 0))
	col := protocol.UInteger(max(pos.Column-1, 0))
	return protocol.Range{
		Start: protocol.Position{Line: line, Character: col},
		End:   protocol.Position{Line: line, Character: col + protocol.UInteger(len(name))},
	}
}

// wordEnd returns the column just past the name starting at col, or col+1
// when no name starts there.
func wordEnd(line string, col int) int {
	if col < 0 || col >= len(line) {
		return max(col, 0)
	}
	end := col
	for end < len(line) && bst.IsNameChar(line[end]) {
		end++
	}
	if end == col {
		end++
	}
	return end
}

// extractPrefix returns the name fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := min(int(pos.Character), len(line))

	start := col
	for start > 0 && bst.IsNameChar(line[start-1]) {
		start--
	}
	return line[start:col]
}

// extractWord returns the full name under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := min(int(pos.Character), len(line))

	start := col
	for start > 0 && bst.IsNameChar(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && bst.IsNameChar(line[end]) {
		end++
	}
	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
