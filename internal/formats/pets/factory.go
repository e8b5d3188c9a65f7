// Package pets assembles PETS2 input files. Keywords are checked against
// the PETS2 keyword table so that each one appears at most once; later
// duplicates are rejected with a warning and the first occurrence wins.
package pets

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/cred.convert/internal/formats"
	"github.com/banshee-data/cred.convert/internal/monitoring"
	"github.com/banshee-data/cred.convert/internal/timeutil"
)

// Element is one entry of a PETS input: either a single keyword with
// values or a verbatim block of text.
type Element struct {
	Keywords []string
	Values   []any
	Text     *string
}

// NewElement classifies keywordOrText. A single recognised keyword with at
// least one value becomes a keyword element; anything else is text whose
// line-leading keywords are tracked for duplicate detection.
func NewElement(keywordOrText string, values ...any) Element {
	if len(values) > 0 {
		if kw := lineKeyword(keywordOrText); kw != "" && len(strings.Fields(keywordOrText)) == 1 {
			return Element{Keywords: []string{kw}, Values: values}
		}
	}
	text := strings.TrimSuffix(keywordOrText, "\n")
	return Element{Keywords: findKeywords(text), Text: &text}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return formats.ShortFloat(x)
	case float32:
		return formats.ShortFloat(float64(x))
	default:
		return fmt.Sprint(v)
	}
}

func (e Element) String() string {
	if e.Text != nil {
		return *e.Text
	}
	kw := e.Keywords[0]
	parts := make([]string, 0, len(e.Values)+2)
	parts = append(parts, kw)
	for _, v := range e.Values {
		parts = append(parts, formatValue(v))
	}
	tag, _ := Lookup(kw)
	if !tag.Block() {
		return strings.Join(parts, " ")
	}
	return strings.Join(append(parts, "end"+kw), "\n")
}

// Warning records a rejected duplicate keyword.
type Warning struct {
	Keyword string
}

func (w Warning) String() string { return "duplicate keyword rejected: " + w.Keyword }

// Factory accumulates PETS input elements.
type Factory struct {
	// Title, Prefix and Suffix frame the elements in Compile. Prefix and
	// Suffix may contain {field} placeholders; empty ones are skipped.
	Title  string
	Prefix string
	Suffix string

	elements []Element
	used     map[string]bool
	keywords []string
	warnings []Warning
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{used: map[string]bool{}}
}

func (f *Factory) reject(kw string) {
	f.warnings = append(f.warnings, Warning{Keyword: kw})
	monitoring.Warnf("pets: duplicate keyword rejected: %s", kw)
}

func (f *Factory) claim(kws []string) {
	for _, kw := range kws {
		if f.used == nil {
			f.used = map[string]bool{}
		}
		f.used[kw] = true
		f.keywords = append(f.keywords, kw)
	}
}

// Add appends an element built from keywordOrText and values. It reports
// whether anything was added.
func (f *Factory) Add(keywordOrText string, values ...any) bool {
	return f.AddElement(NewElement(keywordOrText, values...))
}

// AddElement appends e unless it repeats a keyword. A keyword element with
// a used keyword is dropped whole. Text elements lose only the lines of
// used keywords (whole blocks for block keywords) and are dropped when
// nothing remains.
func (f *Factory) AddElement(e Element) bool {
	if e.Text == nil {
		if len(e.Keywords) != 1 {
			return false
		}
		kw := e.Keywords[0]
		if f.used[kw] {
			f.reject(kw)
			return false
		}
		f.claim(e.Keywords)
		f.elements = append(f.elements, e)
		return true
	}

	var dups []string
	for _, kw := range e.Keywords {
		if f.used[kw] {
			dups = append(dups, kw)
		}
	}
	if len(dups) == 0 {
		f.claim(e.Keywords)
		f.elements = append(f.elements, e)
		return true
	}

	for _, kw := range dups {
		f.reject(kw)
	}
	text := dropKeywordLines(*e.Text, f.used)
	if strings.TrimSpace(text) == "" {
		return false
	}
	kept := findKeywords(text)
	f.claim(kept)
	f.elements = append(f.elements, Element{Keywords: kept, Text: &text})
	return true
}

// dropKeywordLines removes lines starting with a used keyword. For block
// keywords everything through the matching end<keyword> line goes too.
func dropKeywordLines(text string, used map[string]bool) string {
	var out []string
	closing := ""
	for _, line := range strings.Split(text, "\n") {
		if closing != "" {
			if strings.EqualFold(strings.Trim(firstWord(line), punctuation), closing) {
				closing = ""
			}
			continue
		}
		kw := lineKeyword(line)
		if kw == "" || !used[kw] {
			out = append(out, line)
			continue
		}
		if tag, _ := Lookup(kw); tag.Block() && !blockClosedOnLine(line, kw) {
			closing = "end" + kw
		}
	}
	return strings.Join(out, "\n")
}

func firstWord(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// blockClosedOnLine reports whether a block keyword carries its values on
// the same line, e.g. "beamstop no", which PETS accepts for optional blocks.
func blockClosedOnLine(line, kw string) bool {
	tag, _ := Lookup(kw)
	return tag == OptionalEnd && len(strings.Fields(line)) > 1
}

// Elements returns the accepted elements in insertion order.
func (f *Factory) Elements() []Element { return append([]Element(nil), f.elements...) }

// Keywords returns the keywords claimed so far in insertion order.
func (f *Factory) Keywords() []string { return append([]string(nil), f.keywords...) }

// Warnings returns the duplicates rejected so far.
func (f *Factory) Warnings() []Warning { return append([]Warning(nil), f.warnings...) }

// String joins the elements with newlines.
func (f *Factory) String() string {
	parts := make([]string, len(f.elements))
	for i, e := range f.elements {
		parts[i] = e.String()
	}
	return strings.Join(parts, "\n")
}

// Compile builds a new factory holding title, prefix, the accumulated
// elements and suffix, in that order. Placeholders in prefix and suffix are
// filled from ctx; unknown ones stay as written. Because the prefix is
// added before the elements, its keywords take precedence.
func (f *Factory) Compile(ctx map[string]any) *Factory {
	out := NewFactory()
	if f.Title != "" {
		out.Add(f.Title)
	}
	if f.Prefix != "" {
		out.Add(PartialFormat(f.Prefix, ctx))
	}
	for _, e := range f.elements {
		out.AddElement(e)
	}
	if f.Suffix != "" {
		out.Add(PartialFormat(f.Suffix, ctx))
	}
	return out
}

// NewTitle is the comment header of a generated input file.
func NewTitle(t time.Time) string {
	return "# PETS input file for Electron Diffraction generated by `cred-convert`\n" +
		"# " + timeutil.CTime(t) + "\n" +
		"# For definitions of input parameters, see: https://pets.fzu.cz/"
}

var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)(?::([^{}]*))?\}`)

// PartialFormat replaces {name} and {name:spec} placeholders with values
// from ctx and leaves the ones ctx does not define intact. spec follows the
// printf-like field specs of the PETS prefix templates: "d", "f", "e" or "g"
// with an optional ".N" precision. Unsupported specs also stay intact.
func PartialFormat(s string, ctx map[string]any) string {
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		sub := placeholder.FindStringSubmatch(m)
		v, ok := ctx[sub[1]]
		if !ok {
			return m
		}
		if sub[2] == "" {
			return formatValue(v)
		}
		if out, ok := formatSpec(v, sub[2]); ok {
			return out
		}
		return m
	})
}

func formatSpec(v any, spec string) (string, bool) {
	verb := spec[len(spec)-1]
	prec := -1
	if p := spec[:len(spec)-1]; p != "" {
		if p[0] != '.' {
			return "", false
		}
		n, err := strconv.Atoi(p[1:])
		if err != nil || n < 0 {
			return "", false
		}
		prec = n
	}
	x, ok := number(v)
	if !ok {
		return "", false
	}
	switch verb {
	case 'd':
		if prec >= 0 || x != math.Trunc(x) {
			return "", false
		}
		return strconv.FormatInt(int64(x), 10), true
	case 'f', 'e':
		if prec < 0 {
			prec = 6
		}
		return strconv.FormatFloat(x, verb, prec, 64), true
	case 'g':
		return strconv.FormatFloat(x, 'g', prec, 64), true
	}
	return "", false
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}
