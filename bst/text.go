package bst

import (
	"github.com/chazu/bibtex/scan"
)

// Text built-ins treat "{\...}" at brace level 0 as one special character.

// matchBrace returns the index of the brace closing the one at s[i], or
// len(s)-1 if it is never closed.
func matchBrace(s []byte, i int) int {
	depth := 0
	for j := i; j < len(s); j++ {
		switch s[j] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return len(s) - 1
}

func isSpecialStart(s []byte, i int) bool {
	return s[i] == '{' && i+1 < len(s) && s[i+1] == '\\'
}

// controlSeq returns the control sequence name starting after the
// backslash at s[i], and the index just past it. A backslash followed by a
// non-letter is a one-character control symbol.
func controlSeq(s []byte, i int) ([]byte, int) {
	j := i + 1
	for j < len(s) && scan.IsAlpha(s[j]) && s[j] < 0x80 {
		j++
	}
	if j == i+1 && j < len(s) {
		j++
	}
	return s[i+1 : j], j
}

func lowerByte(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}

func upperByte(c byte) byte {
	if 'a' <= c && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// ---------------------------------------------------------------------------
// add.period$
// ---------------------------------------------------------------------------

func addPeriod(s []byte) []byte {
	i := len(s) - 1
	for i >= 0 && s[i] == '}' {
		i--
	}
	if i < 0 {
		return s
	}
	switch s[i] {
	case '.', '?', '!':
		return s
	}
	out := append([]byte(nil), s...)
	return append(out, '.')
}

func biAddPeriod(in *Interp) error {
	s, err := in.popStr("add.period$")
	if err != nil {
		return err
	}
	return in.pushBytes(addPeriod(s))
}

// ---------------------------------------------------------------------------
// change.case$
// ---------------------------------------------------------------------------

// changeCase converts s for mode 't' (title: lower except the first
// character and the first after a colon and whitespace), 'l' or 'u'.
// Text inside braces is left alone except in special characters.
func changeCase(s []byte, mode byte) []byte {
	out := make([]byte, 0, len(s))
	depth := 0
	prevColon := false
	keep := func(i int) bool {
		return mode == 't' && (i == 0 || (prevColon && scan.IsWhite(s[i-1])))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '{' && depth == 0 && isSpecialStart(s, i):
			j := matchBrace(s, i)
			m := mode
			if keep(i) {
				m = 0
			} else if m == 't' {
				m = 'l'
			}
			out = convertSpecial(out, s[i:j+1], m)
			i = j
			prevColon = false
		case c == '{':
			depth++
			out = append(out, c)
			prevColon = false
		case c == '}':
			if depth > 0 {
				depth--
			}
			out = append(out, c)
			prevColon = false
		case depth > 0:
			out = append(out, c)
		default:
			switch {
			case mode == 'u':
				c = upperByte(c)
			case mode == 'l':
				c = lowerByte(c)
			case mode == 't' && !keep(i):
				c = lowerByte(c)
			}
			out = append(out, c)
			if s[i] == ':' {
				prevColon = true
			} else if !scan.IsWhite(s[i]) {
				prevColon = false
			}
		}
	}
	return out
}

// convertSpecial appends the special character g, converted for mode
// 'l' or 'u' (zero copies it unchanged).
func convertSpecial(out, g []byte, mode byte) []byte {
	if mode == 0 {
		return append(out, g...)
	}
	for i := 0; i < len(g); {
		c := g[i]
		if c == '\\' {
			name, next := controlSeq(g, i)
			out = appendControlSeq(out, name, mode)
			i = next
			continue
		}
		if mode == 'u' {
			c = upperByte(c)
		} else {
			c = lowerByte(c)
		}
		out = append(out, c)
		i++
	}
	return out
}

func appendControlSeq(out, name []byte, mode byte) []byte {
	n := string(name)
	if mode == 'u' {
		switch n {
		case "l", "o", "oe", "ae", "aa":
			out = append(out, '\\')
			for _, c := range name {
				out = append(out, upperByte(c))
			}
			return out
		case "i":
			return append(out, 'I')
		case "j":
			return append(out, 'J')
		case "ss":
			return append(out, 'S', 'S')
		}
	} else {
		switch n {
		case "L", "O", "OE", "AE", "AA":
			out = append(out, '\\')
			for _, c := range name {
				out = append(out, lowerByte(c))
			}
			return out
		}
	}
	out = append(out, '\\')
	return append(out, name...)
}

func biChangeCase(in *Interp) error {
	conv, err := in.popStr("change.case$")
	if err != nil {
		return err
	}
	s, err := in.popStr("change.case$")
	if err != nil {
		return err
	}
	if len(conv) != 1 {
		in.hist.Warn("%q is an illegal case-conversion string%s", conv, in.forEntry())
		return in.pushBytes(s)
	}
	mode := lowerByte(conv[0])
	switch mode {
	case 't', 'l', 'u':
		return in.pushBytes(changeCase(s, mode))
	}
	in.hist.Warn("%q is an illegal case-conversion string%s", conv, in.forEntry())
	return in.pushBytes(s)
}

// ---------------------------------------------------------------------------
// purify$
// ---------------------------------------------------------------------------

// purify keeps letters, digits and whitespace, turning '-' and '~' into
// spaces. In special characters control sequences are dropped, except
// that foreign letters such as \ss or \AE keep their letters.
func purify(s []byte) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isSpecialStart(s, i):
			j := matchBrace(s, i)
			for k := i + 1; k < j; {
				if s[k] == '\\' {
					name, next := controlSeq(s, k)
					switch string(name) {
					case "i", "j", "oe", "OE", "ae", "AE", "aa", "AA", "o", "O", "l", "L", "ss":
						out = append(out, name...)
					}
					k = next
					continue
				}
				if scan.IsAlpha(s[k]) || scan.IsNumeric(s[k]) {
					out = append(out, s[k])
				}
				k++
			}
			i = j
		case scan.IsWhite(c) || scan.Lex[c] == scan.SepChar:
			out = append(out, ' ')
		case scan.IsAlpha(c) || scan.IsNumeric(c):
			out = append(out, c)
		}
	}
	return out
}

func biPurify(in *Interp) error {
	s, err := in.popStr("purify$")
	if err != nil {
		return err
	}
	return in.pushBytes(purify(s))
}

// ---------------------------------------------------------------------------
// substring$, text.length$, text.prefix$
// ---------------------------------------------------------------------------

// substring returns length bytes of s starting at the 1-based position
// start. A negative start counts from the end, and the result then ends
// at that position.
func substring(s []byte, start, length int) []byte {
	n := len(s)
	if length <= 0 || start == 0 || start > n || start < -n {
		return nil
	}
	// Clamp first so that from+length and end-length cannot overflow.
	length = min(length, n)
	if start > 0 {
		from := start - 1
		return s[from:min(from+length, n)]
	}
	end := n + start + 1
	return s[max(end-length, 0):end]
}

func biSubstring(in *Interp) error {
	length, err := in.popInt("substring$")
	if err != nil {
		return err
	}
	start, err := in.popInt("substring$")
	if err != nil {
		return err
	}
	s, err := in.popStr("substring$")
	if err != nil {
		return err
	}
	return in.pushBytes(substring(s, start, length))
}

// textLength counts text characters: braces do not count and a special
// character counts as one.
func textLength(s []byte) int {
	n := 0
	for i := 0; i < len(s); i++ {
		switch {
		case isSpecialStart(s, i):
			i = matchBrace(s, i)
			n++
		case s[i] == '{' || s[i] == '}':
		default:
			n++
		}
	}
	return n
}

func biTextLength(in *Interp) error {
	s, err := in.popStr("text.length$")
	if err != nil {
		return err
	}
	return in.pushInt(textLength(s))
}

// textPrefix returns the first n text characters of s, closing any brace
// left open.
func textPrefix(s []byte, n int) []byte {
	if n <= 0 {
		return nil
	}
	count, depth, i := 0, 0, 0
	for i < len(s) && count < n {
		switch {
		case depth == 0 && isSpecialStart(s, i):
			i = matchBrace(s, i) + 1
			count++
		case s[i] == '{':
			depth++
			i++
		case s[i] == '}':
			if depth > 0 {
				depth--
			}
			i++
		default:
			count++
			i++
		}
	}
	out := append([]byte(nil), s[:i]...)
	for ; depth > 0; depth-- {
		out = append(out, '}')
	}
	return out
}

func biTextPrefix(in *Interp) error {
	n, err := in.popInt("text.prefix$")
	if err != nil {
		return err
	}
	s, err := in.popStr("text.prefix$")
	if err != nil {
		return err
	}
	return in.pushBytes(textPrefix(s, n))
}

// ---------------------------------------------------------------------------
// width$
// ---------------------------------------------------------------------------

// width estimates the typeset width of s using the cmr10 table.
func width(s []byte) int {
	w := 0
	for i := 0; i < len(s); i++ {
		if !isSpecialStart(s, i) {
			w += scan.CharWidth[s[i]]
			continue
		}
		j := matchBrace(s, i)
		name, k := controlSeq(s, i+1)
		if cw, ok := scan.ControlSeqWidth(name); ok {
			w += cw
		}
		for ; k < j; k++ {
			if s[k] != '{' && s[k] != '}' {
				w += scan.CharWidth[s[k]]
			}
		}
		i = j
	}
	return w
}

func biWidth(in *Interp) error {
	s, err := in.popStr("width$")
	if err != nil {
		return err
	}
	return in.pushInt(width(s))
}
