// Package envfile reads and rewrites line-oriented KEY=value credential files
// while leaving every unrelated line untouched.
package envfile

import (
	"strings"

	"github.com/joho/godotenv"
)

// LineKind classifies a line of a credential file.
type LineKind int

// Line kinds.
const (
	LineBlank LineKind = iota
	LineComment
	LinePair
	LineInvalid
)

// Line is one physical line. Raw is kept verbatim so untouched lines are
// written back exactly as read. Lead is the part of Raw up to and including
// the '=' of a pair, export prefix and indentation included.
type Line struct {
	Raw      string
	Kind     LineKind
	Key      string
	Lead     string
	RawValue string
}

// Value decodes the right-hand side. Double-quoted values use backslash
// escapes (\n and \r are line breaks, any other escaped character stands for
// itself); bare and single-quoted values follow dotenv rules.
func (l Line) Value() string {
	if l.Kind != LinePair {
		return ""
	}
	if strings.HasPrefix(l.RawValue, `"`) {
		return unquote(l.RawValue[1:])
	}
	parsed, err := godotenv.Unmarshal(l.Key + "=" + l.RawValue)
	if err != nil {
		return strings.TrimSpace(l.RawValue)
	}
	return parsed[l.Key]
}

// unquote decodes a double-quoted body up to the closing quote; anything
// after it, such as a trailing comment, is ignored.
func unquote(body string) string {
	var b strings.Builder
	escaped := false
	for _, r := range body {
		switch {
		case escaped:
			switch r {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteRune(r)
			}
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			return b.String()
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// File is a parsed credential file.
type File struct {
	lines []Line
}

// Parse splits content into lines. CRLF endings are normalized to LF.
func Parse(content string) *File {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	raw := strings.Split(content, "\n")
	lines := make([]Line, 0, len(raw))
	for _, text := range raw {
		lines = append(lines, parseLine(text))
	}
	return &File{lines: lines}
}

func parseLine(text string) Line {
	trimmed := strings.TrimSpace(text)
	switch {
	case trimmed == "":
		return Line{Raw: text, Kind: LineBlank}
	case strings.HasPrefix(trimmed, "#"):
		return Line{Raw: text, Kind: LineComment}
	}
	body := trimmed
	if rest, ok := strings.CutPrefix(body, "export "); ok {
		body = strings.TrimSpace(rest)
	}
	key, value, ok := strings.Cut(body, "=")
	key = strings.TrimSpace(key)
	if !ok || !validKey(key) {
		return Line{Raw: text, Kind: LineInvalid}
	}
	lead := text[:strings.Index(text, "=")+1]
	return Line{Raw: text, Kind: LinePair, Key: key, Lead: lead, RawValue: strings.TrimSpace(value)}
}

func validKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

// Lines returns a copy of the parsed lines.
func (f *File) Lines() []Line {
	return append([]Line(nil), f.lines...)
}

// Lookup returns the value of the first line using key.
func (f *File) Lookup(key string) (string, bool) {
	if i := f.index(key); i >= 0 {
		return f.lines[i].Value(), true
	}
	return "", false
}

// Values returns every key with the value of its first occurrence.
func (f *File) Values() map[string]string {
	values := make(map[string]string)
	for _, line := range f.lines {
		if line.Kind != LinePair {
			continue
		}
		if _, seen := values[line.Key]; !seen {
			values[line.Key] = line.Value()
		}
	}
	return values
}

// Upsert replaces the value of the first line using one of keys (tried in
// order), keeping everything left of its '='; with no match it appends a line
// using keys[0].
func (f *File) Upsert(value string, keys ...string) {
	encoded := encodeValue(value)
	for _, key := range keys {
		if i := f.index(key); i >= 0 {
			line := f.lines[i]
			line.Raw = line.Lead + encoded
			line.RawValue = encoded
			f.lines[i] = line
			return
		}
	}
	line := Line{Raw: keys[0] + "=" + encoded, Kind: LinePair, Key: keys[0], Lead: keys[0] + "=", RawValue: encoded}
	if n := len(f.lines); n > 0 && f.lines[n-1].Kind == LineBlank && f.lines[n-1].Raw == "" {
		f.lines = append(f.lines[:n-1], line, f.lines[n-1])
		return
	}
	f.lines = append(f.lines, line)
}

// Retain keeps only the lines for which keep returns true.
func (f *File) Retain(keep func(Line) bool) {
	out := f.lines[:0]
	for _, line := range f.lines {
		if keep(line) {
			out = append(out, line)
		}
	}
	f.lines = out
}

// String joins the lines with LF.
func (f *File) String() string {
	raw := make([]string, len(f.lines))
	for i, line := range f.lines {
		raw[i] = line.Raw
	}
	return strings.Join(raw, "\n")
}

func (f *File) index(key string) int {
	for i, line := range f.lines {
		if line.Kind == LinePair && line.Key == key {
			return i
		}
	}
	return -1
}
