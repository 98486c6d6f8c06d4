// Package template implements the narrow variable-interpolation grammar
// used to materialize task and chain configurations: string leaves
// containing "var.*", "item.*", "env.*", or "task.*" references are
// resolved against a chain's variable scope, the current iteration item,
// process configuration, or the chain's own state, respectively.
//
// This intentionally does not implement a general templating engine (the
// original source's Jinja2-backed template_object); spec.md narrows the
// core requirement to this reference-walk grammar, and a full engine is
// left as an opt-in filter plugin behind the same Context.
package template

import (
	"fmt"
	"regexp"
	"strings"
)

// Environment resolves "env.<path>" references against process
// configuration (see internal/config.Environment).
type Environment interface {
	Walk(path string) (any, bool)
}

// Context supplies the root objects each reference prefix resolves
// against. Task is a point-in-time snapshot of chain state (id, name,
// status, position, total, ...) built by the chain package; it is passed
// in rather than a live back-reference to avoid a package cycle between
// internal/chain and internal/template.
type Context struct {
	Variables map[string]any
	Item      any
	Env       Environment
	Task      map[string]any
}

// refPattern matches a reference token: one of the four recognized
// prefixes followed by any non-whitespace run, mirroring the original
// source's `(item|var|env|task)\.[^\s]*` regex.
var refPattern = regexp.MustCompile(`(item|var|env|task)\.[^\s]*`)

// ErrUnresolved is the error ResolveStrict returns when a reference cannot
// be resolved against ctx.
type ErrUnresolved struct {
	Reference string
}

func (e *ErrUnresolved) Error() string {
	return fmt.Sprintf("template: unresolved reference %q", e.Reference)
}

// Resolve scans s for reference tokens and substitutes their resolved
// values. If s is itself a single whole reference, the retrieved value is
// returned with its original type preserved (e.g. a map or list); otherwise
// each match is stringified and spliced back into the text. References
// that fail to resolve are left untouched, per spec.md's default (lenient)
// policy — templates are materialized repeatedly before a task actually
// runs, so a variable that is not yet assigned should not be fatal.
func Resolve(s string, ctx Context) any {
	v, _ := resolve(s, ctx, false)
	return v
}

// ResolveStrict behaves like Resolve but returns an *ErrUnresolved the
// first time a reference fails to resolve, for callers (e.g. a task's
// `when` predicate) that must fail loudly rather than silently continue.
func ResolveStrict(s string, ctx Context) (any, error) {
	v, err := resolve(s, ctx, true)
	return v, err
}

func resolve(s string, ctx Context, strict bool) (any, error) {
	matches := refPattern.FindAllString(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	wholeMatch := len(matches) == 1 && matches[0] == s

	seen := map[string]bool{}
	replacements := map[string]any{}

	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true

		val, ok := resolveReference(m, ctx)
		if !ok {
			if strict {
				return nil, &ErrUnresolved{Reference: m}
			}
			continue
		}
		replacements[m] = val
	}

	if wholeMatch {
		if v, ok := replacements[s]; ok {
			return v, nil
		}
		return s, nil
	}

	result := s
	for k, v := range replacements {
		result = strings.ReplaceAll(result, k, fmt.Sprint(v))
	}
	return result, nil
}

// resolveReference resolves a single "prefix.tail" token against ctx.
func resolveReference(ref string, ctx Context) (any, bool) {
	dot := strings.IndexByte(ref, '.')
	if dot == -1 {
		return nil, false
	}
	prefix, tail := ref[:dot], ref[dot+1:]

	switch prefix {
	case "item":
		return walkGeneric(ctx.Item, parseSegments(tail))

	case "task":
		if ctx.Task == nil {
			return nil, false
		}
		return walkGeneric(ctx.Task, parseSegments(tail))

	case "env":
		if ctx.Env == nil {
			return nil, false
		}
		return ctx.Env.Walk(tail)

	case "var":
		if ctx.Variables == nil {
			return nil, false
		}
		// The first segment of tail names the variable itself; the
		// remainder is the path walked into its value.
		nameEnd := strings.IndexAny(tail, ".[")
		name := tail
		rest := ""
		if nameEnd != -1 {
			name = tail[:nameEnd]
			rest = strings.TrimPrefix(tail[nameEnd:], ".")
		}

		root, ok := ctx.Variables[name]
		if !ok {
			return nil, false
		}
		if rest == "" && nameEnd == -1 {
			return root, true
		}
		return walkGeneric(root, parseSegments(rest))

	default:
		return nil, false
	}
}

// WalkAndReplace recursively descends obj (maps, slices, and string
// leaves), resolving every string leaf through Resolve. Non-string scalars
// pass through unchanged.
func WalkAndReplace(obj any, ctx Context) any {
	switch v := obj.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = WalkAndReplace(val, ctx)
		}
		return out

	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = WalkAndReplace(val, ctx)
		}
		return out

	case string:
		return Resolve(v, ctx)

	default:
		return obj
	}
}
