// Package plugin defines optional hooks around feature extraction.
//
// A plugin declares its capabilities by implementing Fitter, Transformer, or
// both. A capability a plugin does not implement is skipped.
package plugin

import (
	"context"
	"fmt"
	"sort"

	"github.com/cognicore/textscore/pkg/textscore/internalerr"
)

// Plugin is anything the pipeline can carry around its processing loop.
type Plugin interface {
	Name() string
}

// Fitter plugins see every row text once before scoring starts.
type Fitter interface {
	Plugin
	Fit(ctx context.Context, texts []string) error
}

// Transformer plugins rewrite each row text before feature extraction.
type Transformer interface {
	Plugin
	Transform(text string) string
}

// Chain applies plugins in registration order.
type Chain []Plugin

// Fit runs every Fitter in the chain.
func (c Chain) Fit(ctx context.Context, texts []string) error {
	for _, p := range c {
		f, ok := p.(Fitter)
		if !ok {
			continue
		}
		if err := f.Fit(ctx, texts); err != nil {
			return fmt.Errorf("plugin %s: fit: %w", p.Name(), err)
		}
	}
	return nil
}

// Transform passes text through every Transformer in the chain.
func (c Chain) Transform(text string) string {
	for _, p := range c {
		if t, ok := p.(Transformer); ok {
			text = t.Transform(text)
		}
	}
	return text
}

// Names returns the plugin names in order.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, p := range c {
		names[i] = p.Name()
	}
	return names
}

// NoOp implements both capabilities and changes nothing.
type NoOp struct{}

func (NoOp) Name() string { return "noop" }

func (NoOp) Fit(context.Context, []string) error { return nil }

func (NoOp) Transform(text string) string { return text }

var builtins = map[string]func() Plugin{
	"noop":     func() Plugin { return NoOp{} },
	"htmltext": func() Plugin { return HTMLText{} },
}

// Lookup returns a fresh instance of the built-in plugin called name.
func Lookup(name string) (Plugin, error) {
	ctor, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("plugin %q: %w", name, internalerr.ErrNotFound)
	}
	return ctor(), nil
}

// Resolve looks up every name and returns them as a chain.
func Resolve(names []string) (Chain, error) {
	chain := make(Chain, 0, len(names))
	for _, name := range names {
		p, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		chain = append(chain, p)
	}
	return chain, nil
}

// Available lists the built-in plugin names.
func Available() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
