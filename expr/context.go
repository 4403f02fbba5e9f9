// Package expr implements the attribute-expression and predicate trees used
// by patterns and queries, their evaluation contexts, the built-in function
// set and a parser for the inline textual form.
package expr

import (
	"github.com/c360/srgresolver/attribute"
	"github.com/c360/srgresolver/sourceset"
)

// Hook evaluates functions the resolver does not know about. It receives the
// function name and the already-evaluated arguments.
type Hook func(name string, args []attribute.Value) (attribute.Value, error)

// Context carries everything needed to evaluate predicates and attribute
// expressions. A local context binds unqualified attribute references to a
// single node or edge; a global context resolves qualified references via
// the input-object table of a complete pattern match.
type Context struct {
	global bool

	// local mode
	attrs        *attribute.Map
	localSources sourceset.Set

	// global mode
	objects map[string]*attribute.Map
	sources sourceset.Set

	hook Hook
}

// Local creates an evaluation context for a single node or edge. The source
// set may be nil for objects without provenance (pattern-side objects).
func Local(attrs *attribute.Map, sources sourceset.Set) Context {
	return Context{attrs: attrs, localSources: sources}
}

// Global creates an evaluation context for a complete pattern match. The
// object table maps pattern-local names to the attributes of the bound SRG
// objects; the source set is the union over the match's input edges.
func Global(objects map[string]*attribute.Map, sources sourceset.Set) Context {
	return Context{global: true, objects: objects, sources: sources}
}

// WithHook returns a copy of the context with a fallback for unknown
// functions installed.
func (c Context) WithHook(h Hook) Context {
	c.hook = h
	return c
}

// IsGlobal reports whether the context spans a full match rather than a
// single object.
func (c Context) IsGlobal() bool {
	return c.global
}

// Attributes returns the attribute map of the enclosing object in local
// mode, or nil in global mode.
func (c Context) Attributes() *attribute.Map {
	return c.attrs
}

// ObjectAttributes resolves an object qualifier against the match's input
// table. Returns nil if the object is unknown.
func (c Context) ObjectAttributes(name string) *attribute.Map {
	return c.objects[name]
}

// Sources returns the source set visible in this context: the enclosing
// object's sources in local mode, the match union in global mode.
func (c Context) Sources() sourceset.Set {
	if c.global {
		return c.sources
	}
	return c.localSources
}
