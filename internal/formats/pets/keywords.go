package pets

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"strings"
)

// EndTag classifies how a PETS keyword block is closed.
type EndTag int

const (
	// NoEnd keywords take their values on one line.
	NoEnd EndTag = iota
	// OptionalEnd keywords may be closed by end<keyword>; they are always
	// written as a closed block.
	OptionalEnd
	// RequiredEnd keywords open a block that must be closed by end<keyword>.
	RequiredEnd
)

func (e EndTag) String() string {
	switch e {
	case NoEnd:
		return "false"
	case OptionalEnd:
		return "optional"
	case RequiredEnd:
		return "true"
	}
	return fmt.Sprintf("EndTag(%d)", int(e))
}

// Block reports whether elements of this keyword are written as a
// multi-line block.
func (e EndTag) Block() bool { return e != NoEnd }

//go:embed keywords.csv
var keywordsCSV []byte

// keywordTable maps every keyword from the PETS2 manual to its end tag.
// It is built once and never modified.
var keywordTable = mustParseKeywords(keywordsCSV)

func parseEndTag(s string) (EndTag, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "false":
		return NoEnd, nil
	case "true":
		return RequiredEnd, nil
	case "optional", "":
		return OptionalEnd, nil
	}
	return 0, fmt.Errorf("unknown end tag %q", s)
}

func parseKeywords(data []byte) (map[string]EndTag, error) {
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read keyword table: %w", err)
	}
	if len(records) == 0 || len(records[0]) != 2 || records[0][0] != "field" || records[0][1] != "end" {
		return nil, fmt.Errorf("keyword table header must be field,end")
	}
	table := make(map[string]EndTag, len(records)-1)
	for _, r := range records[1:] {
		tag, err := parseEndTag(r[1])
		if err != nil {
			return nil, fmt.Errorf("keyword %s: %w", r[0], err)
		}
		table[strings.ToLower(r[0])] = tag
	}
	return table, nil
}

func mustParseKeywords(data []byte) map[string]EndTag {
	table, err := parseKeywords(data)
	if err != nil {
		panic(err)
	}
	return table
}

// Lookup returns the end tag of keyword (case-insensitive).
func Lookup(keyword string) (EndTag, bool) {
	tag, ok := keywordTable[strings.ToLower(keyword)]
	return tag, ok
}

// punctuation is the ASCII punctuation set trimmed from candidate keywords.
const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// lineKeyword returns the recognised keyword a line starts with, or "".
// The first word is lower-cased and stripped of surrounding punctuation.
func lineKeyword(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	w := strings.ToLower(strings.Trim(fields[0], punctuation))
	if _, ok := keywordTable[w]; !ok {
		return ""
	}
	return w
}

// findKeywords lists the distinct recognised keywords that start a line of
// text, in order of first appearance.
func findKeywords(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, line := range strings.Split(text, "\n") {
		if kw := lineKeyword(line); kw != "" && !seen[kw] {
			seen[kw] = true
			out = append(out, kw)
		}
	}
	return out
}
