package scan

// LexClass is the scanner's view of a byte.
type LexClass uint8

const (
	Illegal LexClass = iota
	WhiteSpace
	Alpha
	Numeric
	SepChar
	Other
)

// Lex classifies every byte value.
var Lex [256]LexClass

// idLegal reports whether a byte may appear in an identifier.
var idLegal [256]bool

// CharWidth holds widths (in hundredths of a point for cmr10, scaled by
// ten) used to estimate typeset text width.
var CharWidth [256]int

func init() {
	for i := 0; i < 128; i++ {
		Lex[i] = Other
	}
	for i := 128; i < 256; i++ {
		Lex[i] = Alpha
	}
	for i := 0; i < 0o40; i++ {
		Lex[i] = Illegal
	}
	Lex[0x7f] = Illegal
	Lex['\t'] = WhiteSpace
	Lex[' '] = WhiteSpace
	Lex['\n'] = WhiteSpace
	Lex['\r'] = WhiteSpace
	Lex['~'] = SepChar
	Lex['-'] = SepChar
	for c := '0'; c <= '9'; c++ {
		Lex[c] = Numeric
	}
	for c := 'A'; c <= 'Z'; c++ {
		Lex[c] = Alpha
		Lex[c+'a'-'A'] = Alpha
	}

	for i := range idLegal {
		idLegal[i] = Lex[i] != Illegal && Lex[i] != WhiteSpace
	}
	for _, c := range []byte{'"', '#', '%', '\'', '(', ')', ',', '=', '{', '}'} {
		idLegal[c] = false
	}

	widths := map[byte]int{
		' ': 278, '!': 278, '"': 500, '#': 833, '$': 500, '%': 833, '&': 778,
		'\'': 278, '(': 389, ')': 389, '*': 500, '+': 778, ',': 278, '-': 333,
		'.': 278, '/': 500, ':': 278, ';': 278, '<': 278, '=': 778, '>': 472,
		'?': 472, '@': 778,
		'A': 750, 'B': 708, 'C': 722, 'D': 764, 'E': 681, 'F': 653, 'G': 785,
		'H': 750, 'I': 361, 'J': 514, 'K': 778, 'L': 625, 'M': 917, 'N': 750,
		'O': 778, 'P': 681, 'Q': 778, 'R': 736, 'S': 556, 'T': 722, 'U': 750,
		'V': 750, 'W': 1028, 'X': 750, 'Y': 750, 'Z': 611,
		'[': 278, '\\': 500, ']': 278, '^': 500, '_': 278, '`': 278,
		'a': 500, 'b': 556, 'c': 444, 'd': 556, 'e': 444, 'f': 306, 'g': 500,
		'h': 556, 'i': 278, 'j': 306, 'k': 528, 'l': 278, 'm': 833, 'n': 556,
		'o': 500, 'p': 556, 'q': 528, 'r': 392, 's': 394, 't': 389, 'u': 556,
		'v': 528, 'w': 722, 'x': 528, 'y': 528, 'z': 444,
		'{': 500, '|': 1000, '}': 500, '~': 500,
	}
	for c := byte('0'); c <= '9'; c++ {
		widths[c] = 500
	}
	for c, w := range widths {
		CharWidth[c] = w
	}
}

// ControlSeqWidth returns the width of the special characters spelled as
// control sequences, and false for any other sequence.
func ControlSeqWidth(name []byte) (int, bool) {
	switch string(name) {
	case "ss":
		return 500, true
	case "ae":
		return 722, true
	case "oe":
		return 778, true
	case "AE":
		return 903, true
	case "OE":
		return 1014, true
	}
	return 0, false
}

// IsWhite reports whether c is whitespace to the scanner.
func IsWhite(c byte) bool { return Lex[c] == WhiteSpace }

// IsAlpha reports whether c is alphabetic to the scanner.
func IsAlpha(c byte) bool { return Lex[c] == Alpha }

// IsNumeric reports whether c is a decimal digit.
func IsNumeric(c byte) bool { return Lex[c] == Numeric }

// IsIDChar reports whether c may appear in an identifier.
func IsIDChar(c byte) bool { return idLegal[c] }

// LowerASCII lower-cases ASCII letters of b in place.
func LowerASCII(b []byte) {
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
}

// UpperASCII upper-cases ASCII letters of b in place.
func UpperASCII(b []byte) {
	for i, c := range b {
		if 'a' <= c && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
}

// Lowered returns a lower-cased copy of b.
func Lowered(b []byte) []byte {
	out := append([]byte(nil), b...)
	LowerASCII(out)
	return out
}
