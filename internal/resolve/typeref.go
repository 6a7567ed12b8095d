package resolve

import "strings"

// modifiers that can appear inside a type token but never name a type.
var typeKeywords = map[string]bool{
	"in":          true,
	"out":         true,
	"suspend":     true,
	"reified":     true,
	"dynamic":     true,
	"crossinline": true,
	"noinline":    true,
}

// TypeNames splits a raw type token into the type names it mentions, in
// first-seen order without duplicates.
//
//	TypeNames("Map<String, List<User>>?") == [Map String List User]
//	TypeNames("(Order) -> Unit")          == [Order Unit]
//	TypeNames("Array<out T>")             == [Array T]
//
// Star projections, nullability markers, variance keywords, annotations and
// function arrows are dropped. Dotted names are kept whole.
func TypeNames(rawType string) []string {
	var out []string
	var cur strings.Builder
	annotation := false

	flush := func() {
		tok := strings.Trim(cur.String(), ".")
		cur.Reset()
		if annotation {
			annotation = false
			return
		}
		if tok == "" || typeKeywords[tok] || !isIdentStart(tok[0]) {
			return
		}
		if !contains(out, tok) {
			out = append(out, tok)
		}
	}

	for i := 0; i < len(rawType); i++ {
		c := rawType[i]
		switch {
		case isIdentPart(c) || c == '.':
			cur.WriteByte(c)
		case c == '@':
			flush()
			annotation = true
		case c == '`':
			// backticked identifiers: take the quoted text verbatim
			end := strings.IndexByte(rawType[i+1:], '`')
			if end < 0 {
				i = len(rawType)
				break
			}
			cur.WriteString(rawType[i+1 : i+1+end])
			i += end + 1
		default:
			flush()
		}
	}
	flush()
	return out
}

// StripGenerics removes generic arguments and nullability from a type
// token: "Repository<User>?" becomes "Repository".
func StripGenerics(rawType string) string {
	s := strings.TrimSpace(rawType)
	var b strings.Builder
	depth := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteByte(c)
			}
		}
	}
	return strings.TrimSpace(strings.TrimRight(b.String(), "?! "))
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
