package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fastjson"
)

// Shape records whether log content was stored as a single object or as an
// array of entries.
type Shape uint8

const (
	ShapeSingle Shape = iota
	ShapeSequence
)

func (s Shape) String() string {
	if s == ShapeSingle {
		return "single"
	}
	return "sequence"
}

// Content is the canonical form of a log file body. Every component past the
// storage boundary works on Entries and ignores how the file was shaped.
type Content struct {
	Shape   Shape
	Entries []LogEntry
}

// Single wraps one entry.
func Single(e LogEntry) Content {
	return Content{Shape: ShapeSingle, Entries: []LogEntry{e}}
}

// Sequence wraps an ordered list of entries.
func Sequence(entries []LogEntry) Content {
	return Content{Shape: ShapeSequence, Entries: entries}
}

// Len returns the number of entries.
func (c Content) Len() int { return len(c.Entries) }

// Oldest returns the earliest parseable timestamp. Entries whose timestamp
// cannot be parsed are ignored; ok is false if none parse.
func (c Content) Oldest() (oldest time.Time, ok bool) {
	for _, e := range c.Entries {
		t, valid := e.Time()
		if !valid {
			continue
		}
		if !ok || t.Before(oldest) {
			oldest = t
			ok = true
		}
	}
	return oldest, ok
}

// MarshalJSON writes the content in the shape it was decoded from.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.Shape == ShapeSingle && len(c.Entries) == 1 {
		return json.Marshal(c.Entries[0])
	}
	entries := c.Entries
	if entries == nil {
		entries = []LogEntry{}
	}
	return json.Marshal(entries)
}

var parserPool fastjson.ParserPool

// ParseContent decodes a log file body: either one JSON object or an array
// of objects.
func ParseContent(data []byte) (Content, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return Content{}, &ParseError{Err: err}
	}
	return ContentFromValue(v)
}

// ContentFromValue converts an already parsed JSON value. Strings are copied
// out, so the value's parser may be reused afterwards.
func ContentFromValue(v *fastjson.Value) (Content, error) {
	switch v.Type() {
	case fastjson.TypeObject:
		return Single(entryFromValue(v)), nil
	case fastjson.TypeArray:
		items, _ := v.Array()
		entries := make([]LogEntry, 0, len(items))
		for i, item := range items {
			if item.Type() != fastjson.TypeObject {
				return Content{}, &ParseError{Err: fmt.Errorf("element %d is %s, want object", i, item.Type())}
			}
			entries = append(entries, entryFromValue(item))
		}
		return Sequence(entries), nil
	default:
		return Content{}, &ParseError{Err: fmt.Errorf("content is %s, want object or array", v.Type())}
	}
}

func entryFromValue(v *fastjson.Value) LogEntry {
	e := LogEntry{
		UserName:  stringField(v, "userName"),
		CompanyID: stringField(v, "companyId"),
		Event:     stringField(v, "event"),
		Details:   stringField(v, "details"),
		Level:     Level(stringField(v, "level")),
	}
	if ts := v.Get("timestamp"); ts != nil {
		switch ts.Type() {
		case fastjson.TypeString:
			e.Timestamp = string(ts.GetStringBytes())
		case fastjson.TypeNumber:
			// epoch milliseconds, as produced by Date.now()
			e.Timestamp = FormatTimestamp(time.UnixMilli(int64(ts.GetFloat64())))
		}
	}
	return e
}

func stringField(v *fastjson.Value, key string) string {
	f := v.Get(key)
	if f == nil {
		return ""
	}
	switch f.Type() {
	case fastjson.TypeString:
		return string(f.GetStringBytes())
	case fastjson.TypeNull:
		return ""
	default:
		return f.String()
	}
}
