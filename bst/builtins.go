package bst

import (
	"strconv"

	"github.com/chazu/bibtex/scan"
)

// builtinFn implements a built-in. It works on the interpreter's stack.
type builtinFn func(in *Interp) error

// builtins are registered before any user definition, in this order.
var builtins = []struct {
	name  string
	fn    builtinFn
	usage string
}{
	{"=", biEquals, "a b = -> 1 if a and b are equal integers or equal strings"},
	{">", biGreater, "a b > -> 1 if integer a is greater than b"},
	{"<", biLess, "a b < -> 1 if integer a is less than b"},
	{"+", biPlus, "a b + -> a plus b"},
	{"-", biMinus, "a b - -> a minus b"},
	{"*", biConcat, "s t * -> s followed by t"},
	{":=", biAssign, "v 'name := -> assigns v to the variable name"},
	{"add.period$", biAddPeriod, "s add.period$ -> s ending in a period unless it already ends in . ? or !"},
	{"call.type$", biCallType, "call.type$ -> runs the function named after the entry type, or default.type"},
	{"change.case$", biChangeCase, "s conv change.case$ -> s in title (t), lower (l) or upper (u) case"},
	{"chr.to.int$", biChrToInt, "c chr.to.int$ -> the code of the single character c"},
	{"cite$", biCite, "cite$ -> the cite key of the current entry"},
	{"duplicate$", biDuplicate, "x duplicate$ -> x x"},
	{"empty$", biEmpty, "s empty$ -> 1 if s is missing or holds only whitespace"},
	{"format.name$", biFormatName, "names i fmt format.name$ -> the i-th name of names, formatted by fmt"},
	{"if$", biIf, "b then else if$ -> runs then when b is positive, else otherwise"},
	{"int.to.chr$", biIntToChr, "i int.to.chr$ -> the character with code i"},
	{"int.to.str$", biIntToStr, "i int.to.str$ -> i in decimal"},
	{"missing$", biMissing, "x missing$ -> 1 if x is a missing field"},
	{"newline$", biNewline, "newline$ -> ends the current output line"},
	{"num.names$", biNumNames, "s num.names$ -> the number of names in s separated by \"and\""},
	{"pop$", biPop, "x pop$ -> discards x"},
	{"preamble$", biPreamble, "preamble$ -> the concatenated @preamble text of the databases"},
	{"purify$", biPurify, "s purify$ -> s without special characters and non-alphanumerics"},
	{"quote$", biQuote, "quote$ -> a double-quote character"},
	{"skip$", biSkip, "skip$ -> does nothing"},
	{"stack$", biStack, "stack$ -> pops and logs the whole stack"},
	{"substring$", biSubstring, "s start len substring$ -> len characters of s from start; negative start counts from the end"},
	{"swap$", biSwap, "a b swap$ -> b a"},
	{"text.length$", biTextLength, "s text.length$ -> the number of text characters in s"},
	{"text.prefix$", biTextPrefix, "s n text.prefix$ -> the first n text characters of s"},
	{"top$", biTop, "x top$ -> pops and logs x"},
	{"type$", biType, "type$ -> the entry type of the current entry"},
	{"warning$", biWarning, "s warning$ -> records s as a warning"},
	{"while$", biWhile, "cond body while$ -> runs body while cond yields a positive integer"},
	{"width$", biWidth, "s width$ -> the typeset width of s"},
	{"write$", biWrite, "s write$ -> appends s to the output"},
}

// BuiltinNames lists the built-in function names in registration order.
func BuiltinNames() []string {
	names := make([]string, len(builtins))
	for i, b := range builtins {
		names[i] = b.name
	}
	return names
}

// BuiltinUsage describes the stack effect of a built-in.
func BuiltinUsage(name string) (string, bool) {
	for _, b := range builtins {
		if b.name == name {
			return b.usage, true
		}
	}
	return "", false
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ---------------------------------------------------------------------------
// Comparison and arithmetic
// ---------------------------------------------------------------------------

func biEquals(in *Interp) error {
	b, err := in.pop("=")
	if err != nil {
		return err
	}
	a, err := in.pop("=")
	if err != nil {
		return err
	}
	switch {
	case a.Kind == ValInt && b.Kind == ValInt:
		return in.pushInt(boolInt(a.Int == b.Int))
	case a.Kind == ValStr && b.Kind == ValStr:
		return in.pushInt(boolInt(string(in.pool.Bytes(a.Str)) == string(in.pool.Bytes(b.Str))))
	}
	return in.fault("=", in.describe(a)+" and "+in.describe(b)+": type mismatch")
}

func compareInts(in *Interp, name string, cmp func(a, b int) bool) error {
	b, err := in.popInt(name)
	if err != nil {
		return err
	}
	a, err := in.popInt(name)
	if err != nil {
		return err
	}
	return in.pushInt(boolInt(cmp(a, b)))
}

func biGreater(in *Interp) error {
	return compareInts(in, ">", func(a, b int) bool { return a > b })
}

func biLess(in *Interp) error {
	return compareInts(in, "<", func(a, b int) bool { return a < b })
}

func biPlus(in *Interp) error {
	b, err := in.popInt("+")
	if err != nil {
		return err
	}
	a, err := in.popInt("+")
	if err != nil {
		return err
	}
	return in.pushInt(a + b)
}

func biMinus(in *Interp) error {
	b, err := in.popInt("-")
	if err != nil {
		return err
	}
	a, err := in.popInt("-")
	if err != nil {
		return err
	}
	return in.pushInt(a - b)
}

func biConcat(in *Interp) error {
	b, err := in.popStr("*")
	if err != nil {
		return err
	}
	a, err := in.popStr("*")
	if err != nil {
		return err
	}
	if err := in.ex.SetBytes(a); err != nil {
		return err
	}
	if err := in.ex.Append(b); err != nil {
		return err
	}
	return in.pushEx()
}

// ---------------------------------------------------------------------------
// Assignment and stack manipulation
// ---------------------------------------------------------------------------

func biAssign(in *Interp) error {
	f, err := in.popFunc(":=")
	if err != nil {
		return err
	}
	v, err := in.pop(":=")
	if err != nil {
		return err
	}
	if !f.IsVariable() {
		return in.fault(":=", "you can't assign to type "+f.Kind.String()+", a nonvariable function class")
	}
	switch f.Kind {
	case KindIntEntryVar, KindIntGlobal:
		if v.Kind != ValInt {
			return in.fault(":=", in.describe(v)+", not an integer")
		}
		if f.Kind == KindIntGlobal {
			in.globalInts[f.Index] = v.Int
			return nil
		}
		r, err := in.entry(f.Name)
		if err != nil {
			return err
		}
		r.ints[f.Index] = v.Int
		return nil
	}

	s, err := in.str(":=", v)
	if err != nil {
		return err
	}
	if f.Kind == KindStrGlobal {
		limit := in.globalInts[in.prog.GlobalMax.Index]
		if len(s) > limit {
			in.hist.Warn("you've exceeded %d, the global-string-size, for %s", limit, f.Name)
			s = s[:limit]
		}
		in.globalStrs[f.Index] = append([]byte(nil), s...)
		return nil
	}
	r, err := in.entry(f.Name)
	if err != nil {
		return err
	}
	limit := in.globalInts[in.prog.EntryMax.Index]
	if len(s) > limit {
		in.hist.Warn("you've exceeded %d, the entry-string-size, for entry %s", limit, in.pool.String(r.cite))
		s = s[:limit]
	}
	r.strs[f.Index] = append([]byte(nil), s...)
	return nil
}

func biDuplicate(in *Interp) error {
	v, err := in.pop("duplicate$")
	if err != nil {
		return err
	}
	if err := in.push(v); err != nil {
		return err
	}
	return in.push(v)
}

func biPop(in *Interp) error {
	_, err := in.pop("pop$")
	return err
}

func biSwap(in *Interp) error {
	b, err := in.pop("swap$")
	if err != nil {
		return err
	}
	a, err := in.pop("swap$")
	if err != nil {
		return err
	}
	if err := in.push(b); err != nil {
		return err
	}
	return in.push(a)
}

func biStack(in *Interp) error {
	for len(in.stack) > 0 {
		v, _ := in.pop("stack$")
		in.hist.Info("%s", in.format(v))
	}
	return nil
}

func biTop(in *Interp) error {
	v, err := in.pop("top$")
	if err != nil {
		return err
	}
	in.hist.Info("%s", in.format(v))
	return nil
}

func biSkip(in *Interp) error {
	return nil
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

func biIf(in *Interp) error {
	elseFn, err := in.popFunc("if$")
	if err != nil {
		return err
	}
	thenFn, err := in.popFunc("if$")
	if err != nil {
		return err
	}
	cond, err := in.popInt("if$")
	if err != nil {
		return err
	}
	if cond > 0 {
		return in.execute(thenFn)
	}
	return in.execute(elseFn)
}

func biWhile(in *Interp) error {
	body, err := in.popFunc("while$")
	if err != nil {
		return err
	}
	cond, err := in.popFunc("while$")
	if err != nil {
		return err
	}
	for {
		if err := in.execute(cond); err != nil {
			return err
		}
		c, err := in.popInt("while$")
		if err != nil {
			return err
		}
		if c <= 0 {
			return nil
		}
		if err := in.execute(body); err != nil {
			return err
		}
	}
}

func biCallType(in *Interp) error {
	r, err := in.entry("call.type$")
	if err != nil {
		return err
	}
	if r.typeFn != nil {
		return in.execute(r.typeFn)
	}
	if in.defaultType == nil {
		return in.fault("call.type$", "default.type is not defined")
	}
	return in.execute(in.defaultType)
}

// ---------------------------------------------------------------------------
// Entry access
// ---------------------------------------------------------------------------

func biCite(in *Interp) error {
	r, err := in.entry("cite$")
	if err != nil {
		return err
	}
	return in.push(strValue(r.cite))
}

func biType(in *Interp) error {
	r, err := in.entry("type$")
	if err != nil {
		return err
	}
	if r.typeFn == nil {
		return in.pushBytes(nil)
	}
	return in.push(strValue(in.table.Str(r.entry.Type)))
}

func biMissing(in *Interp) error {
	v, err := in.pop("missing$")
	if err != nil {
		return err
	}
	switch v.Kind {
	case ValMissing:
		return in.pushInt(1)
	case ValStr:
		return in.pushInt(0)
	}
	return in.fault("missing$", in.describe(v)+", not a string or missing field")
}

func biEmpty(in *Interp) error {
	v, err := in.pop("empty$")
	if err != nil {
		return err
	}
	switch v.Kind {
	case ValMissing:
		return in.pushInt(1)
	case ValStr:
		for _, c := range in.pool.Bytes(v.Str) {
			if !scan.IsWhite(c) {
				return in.pushInt(0)
			}
		}
		return in.pushInt(1)
	}
	return in.fault("empty$", in.describe(v)+", not a string or missing field")
}

func biPreamble(in *Interp) error {
	in.ex.Reset()
	for _, p := range in.preambles {
		if err := in.ex.Append(in.pool.Bytes(p)); err != nil {
			return err
		}
	}
	return in.pushEx()
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

func biChrToInt(in *Interp) error {
	s, err := in.popStr("chr.to.int$")
	if err != nil {
		return err
	}
	if len(s) != 1 {
		in.hist.Warn("%q isn't a single character%s", s, in.forEntry())
		return in.pushInt(0)
	}
	return in.pushInt(int(s[0]))
}

func biIntToChr(in *Interp) error {
	n, err := in.popInt("int.to.chr$")
	if err != nil {
		return err
	}
	if n < 0 || n > 127 {
		in.hist.Warn("%d isn't valid ASCII%s", n, in.forEntry())
		return in.pushBytes(nil)
	}
	return in.pushBytes([]byte{byte(n)})
}

func biIntToStr(in *Interp) error {
	n, err := in.popInt("int.to.str$")
	if err != nil {
		return err
	}
	return in.pushBytes(strconv.AppendInt(nil, int64(n), 10))
}

func biQuote(in *Interp) error {
	return in.pushBytes([]byte{'"'})
}

// ---------------------------------------------------------------------------
// Output and diagnostics
// ---------------------------------------------------------------------------

func biWrite(in *Interp) error {
	s, err := in.popStr("write$")
	if err != nil {
		return err
	}
	return in.out.Write(s)
}

func biNewline(in *Interp) error {
	return in.out.Newline()
}

func biWarning(in *Interp) error {
	s, err := in.popStr("warning$")
	if err != nil {
		return err
	}
	in.hist.Warn("%s", s)
	return nil
}
