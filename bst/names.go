package bst

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/chazu/bibtex/scan"
)

// ---------------------------------------------------------------------------
// Name lists
// ---------------------------------------------------------------------------

// splitNames splits a name list at each "and" surrounded by whitespace at
// brace level 0.
func splitNames(s []byte) [][]byte {
	s = bytes.TrimSpace(s)
	if len(s) == 0 {
		return nil
	}
	var out [][]byte
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '{':
			depth++
		case c == '}':
			if depth > 0 {
				depth--
			}
		case depth == 0 && scan.IsWhite(c) && i+4 < len(s) && scan.IsWhite(s[i+4]) &&
			bytes.EqualFold(s[i+1:i+4], []byte("and")):
			out = append(out, bytes.TrimSpace(s[start:i]))
			start = i + 4
			i += 3
		}
	}
	return append(out, bytes.TrimSpace(s[start:]))
}

func biNumNames(in *Interp) error {
	s, err := in.popStr("num.names$")
	if err != nil {
		return err
	}
	return in.pushInt(len(splitNames(s)))
}

// ---------------------------------------------------------------------------
// Name parts
// ---------------------------------------------------------------------------

type nameToken struct {
	text []byte
	sep  byte // what separated it from the next token: ' ', '~' or '-'
}

type span struct{ from, to int }

func (s span) empty() bool { return s.from >= s.to }

// name is one parsed personal name.
type name struct {
	tokens               []nameToken
	first, von, last, jr span
}

func (n *name) part(letter byte) span {
	switch letter {
	case 'f':
		return n.first
	case 'v':
		return n.von
	case 'l':
		return n.last
	}
	return n.jr
}

// parseName splits a name into First, von, Last and Jr parts. It also
// returns how many commas were found at brace level 0.
func parseName(s []byte) (*name, int) {
	n := &name{}
	var commas []int
	depth, start := 0, -1
	flush := func(end int) {
		if start >= 0 {
			n.tokens = append(n.tokens, nameToken{text: s[start:end], sep: ' '})
			start = -1
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if depth == 0 && (scan.IsWhite(c) || c == '~' || c == '-' || c == ',') {
			flush(i)
			switch {
			case c == ',':
				commas = append(commas, len(n.tokens))
			case (c == '~' || c == '-') && len(n.tokens) > 0:
				n.tokens[len(n.tokens)-1].sep = c
			}
			continue
		}
		if start < 0 {
			start = i
		}
		switch c {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		}
	}
	flush(len(s))

	total := len(n.tokens)
	vonLastEnd := func(end int) int {
		for j := end - 2; j >= 0; j-- {
			if isVon(n.tokens[j].text) {
				return j + 1
			}
		}
		return 0
	}
	switch {
	case len(commas) == 0:
		if total == 0 {
			break
		}
		vonStart := -1
		for i := 0; i < total-1; i++ {
			if isVon(n.tokens[i].text) {
				vonStart = i
				break
			}
		}
		if vonStart < 0 {
			n.first = span{0, total - 1}
			n.last = span{total - 1, total}
			break
		}
		vonEnd := vonStart + 1
		for j := total - 2; j > vonStart; j-- {
			if isVon(n.tokens[j].text) {
				vonEnd = j + 1
				break
			}
		}
		n.first = span{0, vonStart}
		n.von = span{vonStart, vonEnd}
		n.last = span{vonEnd, total}
	case len(commas) == 1:
		c1 := commas[0]
		v := vonLastEnd(c1)
		n.von = span{0, v}
		n.last = span{v, c1}
		n.first = span{c1, total}
	default:
		c1, c2 := commas[0], commas[1]
		v := vonLastEnd(c1)
		n.von = span{0, v}
		n.last = span{v, c1}
		n.jr = span{c1, c2}
		n.first = span{c2, total}
	}
	return n, len(commas)
}

// isVon reports whether a token starts with a lower-case letter at brace
// level 0, looking inside special characters.
func isVon(t []byte) bool {
	depth := 0
	for i := 0; i < len(t); i++ {
		c := t[i]
		switch {
		case c == '{' && depth == 0 && isSpecialStart(t, i):
			cs, k := controlSeq(t, i+1)
			switch string(cs) {
			case "OE", "AE", "AA", "O", "L":
				return false
			case "i", "j", "oe", "ae", "aa", "o", "l", "ss":
				return true
			}
			for ; k < len(t) && t[k] != '}'; k++ {
				if scan.IsAlpha(t[k]) {
					return 'a' <= t[k] && t[k] <= 'z'
				}
			}
			return false
		case c == '{':
			depth++
		case c == '}':
			if depth > 0 {
				depth--
			}
		case depth == 0 && scan.IsAlpha(c):
			return 'a' <= c && c <= 'z'
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Formatting
// ---------------------------------------------------------------------------

// formatName renders n according to a format such as "{ff~}{vv~}{ll}{, jj}".
// Each brace group names one part; a doubled letter prints full tokens and
// a single letter abbreviates them. A group whose part is empty prints
// nothing.
func formatName(format []byte, n *name) ([]byte, error) {
	var out []byte
	for i := 0; i < len(format); i++ {
		c := format[i]
		switch c {
		case '{':
			j := matchBrace(format, i)
			if format[j] != '}' {
				return nil, fmt.Errorf("unbalanced braces in format %q", format)
			}
			var err error
			if out, err = formatGroup(out, format[i+1:j], n); err != nil {
				return nil, err
			}
			i = j
		case '}':
			return nil, fmt.Errorf("unbalanced braces in format %q", format)
		default:
			out = append(out, c)
		}
	}
	return out, nil
}

// partLetter returns the index of the first letter at the group's own
// brace level, or -1.
func partLetter(g []byte) int {
	depth := 0
	for k := 0; k < len(g); k++ {
		switch {
		case g[k] == '{':
			depth++
		case g[k] == '}':
			depth--
		case depth == 0 && scan.IsAlpha(g[k]):
			return k
		}
	}
	return -1
}

func formatGroup(out, g []byte, n *name) ([]byte, error) {
	k := partLetter(g)
	if k < 0 {
		return append(out, g...), nil
	}
	letter := g[k]
	switch letter {
	case 'f', 'v', 'l', 'j':
	default:
		return nil, fmt.Errorf("the format has an illegal brace-level-1 letter %q", letter)
	}
	pre := g[:k]
	k++
	full := k < len(g) && g[k] == letter
	if full {
		k++
	}
	var sep []byte
	explicit := false
	if k < len(g) && g[k] == '{' {
		e := matchBrace(g, k)
		sep = g[k+1 : e]
		explicit = true
		k = e + 1
	}
	post := g[k:]

	part := n.part(letter)
	if part.empty() {
		return out, nil
	}
	start := len(out)
	out = append(out, pre...)
	for t := part.from; t < part.to; t++ {
		tok := n.tokens[t]
		if full {
			out = append(out, tok.text...)
		} else {
			out = append(out, abbreviate(tok.text)...)
		}
		if t+1 >= part.to {
			break
		}
		if explicit {
			out = append(out, sep...)
			continue
		}
		if !full {
			out = append(out, '.')
		}
		switch {
		case tok.sep == '-' || tok.sep == '~':
			out = append(out, tok.sep)
		case t+1 == part.to-1 || !enoughTextChars(out[start:], 3):
			out = append(out, '~')
		default:
			out = append(out, ' ')
		}
	}
	out = append(out, post...)

	// A single trailing tie is discretionary: it becomes a space unless
	// the part is short. A doubled one is kept as one tie.
	if m := len(out); bytes.HasSuffix(post, []byte("~")) {
		if bytes.HasSuffix(post, []byte("~~")) {
			out = out[:m-1]
		} else if enoughTextChars(out[start:m-1], 3) {
			out[m-1] = ' '
		}
	}
	return out, nil
}

// abbreviate returns the first letter of a token, or its leading brace
// group.
func abbreviate(t []byte) []byte {
	for i := 0; i < len(t); i++ {
		c := t[i]
		if c == '{' {
			return t[i : matchBrace(t, i)+1]
		}
		if c >= utf8.RuneSelf {
			_, size := utf8.DecodeRune(t[i:])
			return t[i : i+size]
		}
		if scan.IsAlpha(c) {
			return t[i : i+1]
		}
	}
	return nil
}

// enoughTextChars reports whether s holds at least n characters, counting
// a special character as one.
func enoughTextChars(s []byte, n int) bool {
	count := 0
	for i := 0; i < len(s) && count < n; i++ {
		if isSpecialStart(s, i) {
			i = matchBrace(s, i)
		}
		count++
	}
	return count >= n
}

func biFormatName(in *Interp) error {
	format, err := in.popStr("format.name$")
	if err != nil {
		return err
	}
	idx, err := in.popInt("format.name$")
	if err != nil {
		return err
	}
	s, err := in.popStr("format.name$")
	if err != nil {
		return err
	}
	names := splitNames(s)
	if idx < 1 || idx > len(names) {
		return in.fault("format.name$", fmt.Sprintf("there aren't %d names in %q", idx, s))
	}
	n, commas := parseName(names[idx-1])
	if commas > 2 {
		in.hist.Warn("too many commas in name %d of %q%s", idx, s, in.forEntry())
	}
	out, err := formatName(format, n)
	if err != nil {
		return in.fault("format.name$", err.Error())
	}
	return in.pushBytes(out)
}
