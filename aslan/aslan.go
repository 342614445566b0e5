// Package aslan provides the public entry point for parsing ASLAN
// documents: a streaming Parser plus one-shot Parse/ParseMulti
// convenience functions. The character-by-character recognizer itself
// lives in internal/engine; this package wires it to a real ID generator
// and picks the single-vs-multi-document result shape.
package aslan

import (
	"errors"

	"github.com/jayfoss/go-aslan/idgen"
	"github.com/jayfoss/go-aslan/internal/engine"
)

// Node is the parsed tree value: a mapping, sequence, string, void, or
// absent node.
type Node = engine.Node

// Settings configures a Parser. Pass the Option functions below to New,
// which applies them over the defaults, rather than building one by hand.
type Settings = engine.Settings

// WritePolicy and the event payload shapes are re-exported so callers
// never need to import internal/engine directly.
type (
	WritePolicy     = engine.WritePolicy
	EmittableEvents = engine.EmittableEvents
	ContentEvent    = engine.Event
	EndDataEvent    = engine.EndDataEvent
	InstructionInfo = engine.InstructionInfo
	ContentPart     = engine.ContentPart
)

const (
	PolicyDefault   = engine.PolicyDefault
	PolicyAppend    = engine.PolicyAppend
	PolicyKeepFirst = engine.PolicyKeepFirst
	PolicyKeepLast  = engine.PolicyKeepLast
)

// ContentListener receives content/end events.
type ContentListener = engine.ContentListener

// EndDataListener receives end_data events.
type EndDataListener = engine.EndDataListener

// Option customizes Settings before a Parser is built.
type Option func(*Settings)

func WithPrefix(prefix string) Option {
	return func(s *Settings) { s.Prefix = prefix }
}

func WithDefaultFieldName(name string) Option {
	return func(s *Settings) { s.DefaultFieldName = name }
}

func WithStrictStart(strict bool) Option {
	return func(s *Settings) { s.StrictStart = strict }
}

func WithStrictEnd(strict bool) Option {
	return func(s *Settings) { s.StrictEnd = strict }
}

func WithMultiDocumentOutput(enabled bool) Option {
	return func(s *Settings) { s.MultiDocumentOutput = enabled }
}

func WithCollapseObjectStartWhitespace(enabled bool) Option {
	return func(s *Settings) { s.CollapseObjectStartWhitespace = enabled }
}

func WithAppendSeparator(sep string) Option {
	return func(s *Settings) { s.AppendSeparator = sep }
}

func WithMaxObjectDepth(depth int) Option {
	return func(s *Settings) { s.MaxObjectDepth = depth }
}

func WithEmittableEvents(e EmittableEvents) Option {
	return func(s *Settings) { s.Emittable = e }
}

// Parser wraps the character-recognizer engine with a real ID generator
// and exposes the same Feed/Close/Result/Reset/listener surface.
type Parser struct {
	engine *engine.Engine
}

// New builds a Parser from DefaultSettings with the given Options applied.
func New(opts ...Option) (*Parser, error) {
	settings := engine.DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.Prefix == "" {
		return nil, errors.New("aslan: prefix must not be empty")
	}
	if settings.DefaultFieldName == "" {
		return nil, errors.New("aslan: default field name must not be empty")
	}
	return &Parser{engine: engine.New(settings, idgen.NewUUIDGenerator())}, nil
}

// Feed processes a chunk of input; it may be called repeatedly as input
// streams in.
func (p *Parser) Feed(input string) { p.engine.Feed(input) }

// Close finalizes the current document, flushing any pending content and
// firing outstanding end/end_data events.
func (p *Parser) Close() { p.engine.Close() }

// Result returns the current document's tree.
func (p *Parser) Result() Node { return p.engine.Result() }

// Results returns every document produced so far via Go/Stop framing; the
// in-progress document is always the last element.
func (p *Parser) Results() []Node { return p.engine.Results() }

// Reset rebuilds the frame stack to a fresh root, starting a new document
// in place without touching recognition state or accumulated listeners.
func (p *Parser) Reset() { p.engine.Reset() }

func (p *Parser) AddContentListener(l ContentListener) string { return p.engine.AddContentListener(l) }
func (p *Parser) AddContentListenerWithKey(key string, l ContentListener) {
	p.engine.AddContentListenerWithKey(key, l)
}
func (p *Parser) RemoveContentListener(key string) { p.engine.RemoveContentListener(key) }

func (p *Parser) AddEndListener(l ContentListener) string { return p.engine.AddEndListener(l) }
func (p *Parser) AddEndListenerWithKey(key string, l ContentListener) {
	p.engine.AddEndListenerWithKey(key, l)
}
func (p *Parser) RemoveEndListener(key string) { p.engine.RemoveEndListener(key) }

func (p *Parser) AddEndDataListener(l EndDataListener) string {
	return p.engine.AddEndDataListener(l)
}
func (p *Parser) AddEndDataListenerWithKey(key string, l EndDataListener) {
	p.engine.AddEndDataListenerWithKey(key, l)
}
func (p *Parser) RemoveEndDataListener(key string) { p.engine.RemoveEndDataListener(key) }

func (p *Parser) ClearEventListeners() { p.engine.ClearEventListeners() }

// Parse feeds input through a fresh single-document Parser and returns
// its closed result tree.
func Parse(input string, opts ...Option) (Node, error) {
	p, err := New(opts...)
	if err != nil {
		return Node{}, err
	}
	p.Feed(input)
	p.Close()
	return p.Result(), nil
}

// ParseMulti feeds input through a fresh Parser configured for
// multi-document output and returns every document produced, including
// the final (possibly empty) trailing one.
func ParseMulti(input string, opts ...Option) ([]Node, error) {
	opts = append(opts, WithMultiDocumentOutput(true))
	p, err := New(opts...)
	if err != nil {
		return nil, err
	}
	p.Feed(input)
	p.Close()
	return p.Results(), nil
}
