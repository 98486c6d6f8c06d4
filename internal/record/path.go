package record

import (
	"strconv"
	"strings"
)

// pathToken is either a map key (isIndex == false) or a list index.
type pathToken struct {
	key     string
	index   int
	isIndex bool
}

// parsePath splits a dotted/indexed path such as "a.b[0].c" into tokens.
// An empty path yields zero tokens (referring to the root value itself).
func parsePath(path string) []pathToken {
	if path == "" {
		return nil
	}

	var tokens []pathToken
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			continue
		}
		tokens = append(tokens, splitIndices(segment)...)
	}
	return tokens
}

// splitIndices turns "b[0][1]" into a key token "b" followed by index
// tokens 0 and 1. A bare "[0]" segment yields just the index token.
func splitIndices(segment string) []pathToken {
	var tokens []pathToken

	for len(segment) > 0 {
		bracket := strings.IndexByte(segment, '[')
		if bracket == -1 {
			tokens = append(tokens, pathToken{key: segment})
			return tokens
		}

		if bracket > 0 {
			tokens = append(tokens, pathToken{key: segment[:bracket]})
		}

		end := strings.IndexByte(segment[bracket:], ']')
		if end == -1 {
			// Malformed; treat the remainder as a literal key.
			tokens = append(tokens, pathToken{key: segment[bracket:]})
			return tokens
		}
		end += bracket

		idxStr := segment[bracket+1 : end]
		if n, err := strconv.Atoi(idxStr); err == nil {
			tokens = append(tokens, pathToken{index: n, isIndex: true})
		} else {
			tokens = append(tokens, pathToken{key: idxStr})
		}

		segment = segment[end+1:]
	}

	return tokens
}

func joinPath(tokens []pathToken) string {
	var b strings.Builder
	for i, t := range tokens {
		if t.isIndex {
			b.WriteString("[" + strconv.Itoa(t.index) + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(t.key)
	}
	return b.String()
}
