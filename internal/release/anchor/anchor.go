// Package anchor locates and rewrites one scalar inside YAML-like text
// without parsing and re-serializing the document, so comments, quoting and
// formatting of everything else survive byte for byte.
//
// A Path is anchored at a root mapping key, descends through nested mapping
// keys by indentation, selects the list item whose first key is Item and
// ends at Field inside that item:
//
//	environments:          # Keys[0]
//	  staging:             # Keys[1]
//	    values:            # Keys[2]
//	      - fooBar:        # Item
//	          version: 1.2.0   # Field
//	          installed: true
//
// Keys are compared exactly, so "foo" never matches "fooBar".
package anchor

import (
	"fmt"
	"regexp"
	"strings"
)

// Path addresses a scalar field inside a list item of a nested mapping.
type Path struct {
	Keys  []string
	Item  string
	Field string
}

func (p Path) String() string {
	return fmt.Sprintf("%s[%s].%s", strings.Join(p.Keys, "."), p.Item, p.Field)
}

// Segment identifies which part of a Path could not be matched.
type Segment int

const (
	SegmentKey Segment = iota
	SegmentItem
	SegmentField
)

// MissingError is returned when part of a Path is not present.
type MissingError struct {
	Path    Path
	Segment Segment
	Name    string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("anchor: %q not found while resolving %s", e.Name, e.Path)
}

// Span is the byte range of a scalar value token within the content.
type Span struct {
	Start int
	End   int
}

// Find returns the span of the value token addressed by p.
func Find(content string, p Path) (Span, error) {
	lines := splitLines(content)

	start, end := 0, len(lines)
	for _, key := range p.Keys {
		i := findKey(lines, start, end, key)
		if i < 0 {
			return Span{}, &MissingError{Path: p, Segment: SegmentKey, Name: key}
		}
		start, end = i+1, blockEnd(lines, i, end)
	}

	i, col := findItem(lines, start, end, p.Item)
	if i < 0 {
		return Span{}, &MissingError{Path: p, Segment: SegmentItem, Name: p.Item}
	}
	start, end = i+1, childrenEnd(lines, i+1, end, col)

	f := findKey(lines, start, end, p.Field)
	if f < 0 {
		return Span{}, &MissingError{Path: p, Segment: SegmentField, Name: p.Field}
	}

	l := lines[f]
	_, valueAt, _ := mappingKey(l.text[l.indent:])
	from, to := valueToken(l.text, l.indent+valueAt)
	if from == to {
		return Span{}, &MissingError{Path: p, Segment: SegmentField, Name: p.Field}
	}
	return Span{Start: l.offset + from, End: l.offset + to}, nil
}

// Replace returns content with the value addressed by p set to value. A
// quoted value keeps its quote style.
func Replace(content string, p Path, value string) (string, error) {
	span, err := Find(content, p)
	if err != nil {
		return "", err
	}
	if q := quoteOf(content[span.Start:span.End]); q != 0 {
		value = string(q) + value + string(q)
	}
	return content[:span.Start] + value + content[span.End:], nil
}

type line struct {
	text   string // without the line terminator
	offset int
	indent int
}

func (l line) significant() bool {
	t := strings.TrimSpace(l.text)
	return t != "" && !strings.HasPrefix(t, "#") && t != "---" && t != "..."
}

func (l line) sequenceItem() bool {
	t := l.text[l.indent:]
	return t == "-" || strings.HasPrefix(t, "- ")
}

func splitLines(content string) []line {
	var lines []line
	for off := 0; off < len(content); {
		n := strings.IndexByte(content[off:], '\n')
		raw := content[off:]
		if n >= 0 {
			raw = content[off : off+n]
		}
		text := strings.TrimSuffix(raw, "\r")
		lines = append(lines, line{
			text:   text,
			offset: off,
			indent: len(text) - len(strings.TrimLeft(text, " ")),
		})
		if n < 0 {
			break
		}
		off += n + 1
	}
	return lines
}

var keyPattern = regexp.MustCompile(`^("[^"]*"|'[^']*'|[^\s#'"\-][^:#]*?|-[^\s:#][^:#]*?)[ \t]*:`)

// mappingKey parses "key: value" and returns the unquoted key and the index
// just past the colon.
func mappingKey(text string) (string, int, bool) {
	m := keyPattern.FindStringSubmatchIndex(text)
	if m == nil {
		return "", 0, false
	}
	end := m[1]
	if end < len(text) && text[end] != ' ' && text[end] != '\t' {
		return "", 0, false
	}
	key := text[m[2]:m[3]]
	if quoteOf(key) != 0 {
		key = key[1 : len(key)-1]
	}
	return key, end, true
}

// findKey returns the index of the line holding key among the direct
// children of lines[start:end], or -1.
func findKey(lines []line, start, end int, key string) int {
	depth := -1
	for i := start; i < end; i++ {
		l := lines[i]
		if !l.significant() {
			continue
		}
		if depth < 0 {
			depth = l.indent
		}
		if l.indent < depth {
			break
		}
		if l.indent > depth || l.sequenceItem() {
			continue
		}
		if k, _, ok := mappingKey(l.text[l.indent:]); ok && k == key {
			return i
		}
	}
	return -1
}

// findItem returns the index of the sequence item whose first key is item,
// and the column at which that key starts.
func findItem(lines []line, start, end int, item string) (int, int) {
	depth := -1
	for i := start; i < end; i++ {
		l := lines[i]
		if !l.significant() {
			continue
		}
		if depth < 0 {
			depth = l.indent
		}
		if l.indent < depth {
			break
		}
		if l.indent > depth || !l.sequenceItem() {
			continue
		}
		rest := l.text[l.indent+1:]
		col := l.indent + 1 + len(rest) - len(strings.TrimLeft(rest, " "))
		if k, _, ok := mappingKey(l.text[col:]); ok && k == item {
			return i, col
		}
	}
	return -1, 0
}

// blockEnd returns one past the last line that belongs to the mapping entry
// at lines[i]. A sequence written at the same indentation as its key
// ("values:\n- a") belongs to the entry.
func blockEnd(lines []line, i, limit int) int {
	k := lines[i].indent
	first := true
	indentless := false
	j := i + 1
	for ; j < limit; j++ {
		l := lines[j]
		if !l.significant() {
			continue
		}
		if first {
			first = false
			indentless = l.indent == k && l.sequenceItem()
		}
		if l.indent > k || (indentless && l.indent == k && l.sequenceItem()) {
			continue
		}
		break
	}
	return j
}

// childrenEnd returns the first line at or after start that is indented at
// or left of col.
func childrenEnd(lines []line, start, limit, col int) int {
	for j := start; j < limit; j++ {
		if lines[j].significant() && lines[j].indent <= col {
			return j
		}
	}
	return limit
}

// valueToken returns the bounds of the scalar starting at or after from.
func valueToken(text string, from int) (int, int) {
	for from < len(text) && (text[from] == ' ' || text[from] == '\t') {
		from++
	}
	if from >= len(text) || text[from] == '#' {
		return from, from
	}
	if q := text[from]; q == '"' || q == '\'' {
		if n := strings.IndexByte(text[from+1:], q); n >= 0 {
			return from, from + n + 2
		}
	}
	to := from
	for to < len(text) && text[to] != ' ' && text[to] != '\t' {
		to++
	}
	return from, to
}

func quoteOf(s string) byte {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[0]
	}
	return 0
}
