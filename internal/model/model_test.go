package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseContent_Shapes(t *testing.T) {
	single := `{"timestamp":"2025-01-15T10:00:00Z","userName":"u","companyId":"c","event":"e","details":"d","level":"info"}`
	c, err := ParseContent([]byte(single))
	if err != nil {
		t.Fatalf("parse single: %v", err)
	}
	if c.Shape != ShapeSingle || c.Len() != 1 {
		t.Fatalf("Expected single entry, got shape=%v len=%d", c.Shape, c.Len())
	}
	if c.Entries[0].UserName != "u" || c.Entries[0].Level != LevelInfo {
		t.Errorf("unexpected entry: %+v", c.Entries[0])
	}

	seq := `[` + single + `,{"timestamp":"2025-01-14T10:00:00Z","userName":"v","companyId":"c","event":"e","details":"d","level":"error"}]`
	c, err = ParseContent([]byte(seq))
	if err != nil {
		t.Fatalf("parse array: %v", err)
	}
	if c.Shape != ShapeSequence || c.Len() != 2 {
		t.Fatalf("Expected 2 entries, got shape=%v len=%d", c.Shape, c.Len())
	}
	if c.Entries[1].UserName != "v" {
		t.Errorf("order not preserved: %+v", c.Entries)
	}
}

func TestParseContent_Invalid(t *testing.T) {
	tests := []string{
		`not json`,
		`"a string"`,
		`42`,
		`[{"userName":"u"}, 3]`,
	}
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := ParseContent([]byte(input))
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Errorf("Expected ParseError, got %v", err)
			}
		})
	}
}

func TestParseContent_NumericTimestamp(t *testing.T) {
	c, err := ParseContent([]byte(`{"timestamp":1736899200000,"userName":"u"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := c.Entries[0].Timestamp; got != "2025-01-15T00:00:00.000Z" {
		t.Errorf("Expected epoch millis converted, got %q", got)
	}
}

func TestContent_MarshalKeepsShape(t *testing.T) {
	e := LogEntry{Timestamp: "2025-01-15T10:00:00Z", UserName: "u", CompanyID: "c", Event: "e", Details: "d", Level: LevelInfo}

	b, err := json.Marshal(Single(e))
	if err != nil {
		t.Fatal(err)
	}
	if b[0] != '{' {
		t.Errorf("Expected object, got %s", b)
	}

	b, err = json.Marshal(Sequence([]LogEntry{e}))
	if err != nil {
		t.Fatal(err)
	}
	if b[0] != '[' {
		t.Errorf("Expected array, got %s", b)
	}

	b, _ = json.Marshal(Sequence(nil))
	if string(b) != "[]" {
		t.Errorf("Expected [], got %s", b)
	}
}

func TestPrepare(t *testing.T) {
	now := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	valid := LogEntry{UserName: "u", CompanyID: "c", Event: "click", Details: "button"}

	e := valid
	if err := e.Prepare(now); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if e.Timestamp != "2025-01-15T00:00:00.000Z" {
		t.Errorf("Expected timestamp filled, got %q", e.Timestamp)
	}
	if e.Level != LevelInfo {
		t.Errorf("Expected default level info, got %q", e.Level)
	}

	e = valid
	e.Level = "WARN"
	if err := e.Prepare(now); err != nil || e.Level != LevelWarning {
		t.Errorf("Expected WARN normalised to warning, got %q (%v)", e.Level, err)
	}

	cases := map[string]func(*LogEntry){
		"userName":  func(e *LogEntry) { e.UserName = "" },
		"companyId": func(e *LogEntry) { e.CompanyID = "  " },
		"event":     func(e *LogEntry) { e.Event = "" },
		"details":   func(e *LogEntry) { e.Details = "" },
		"level":     func(e *LogEntry) { e.Level = "fatal" },
		"timestamp": func(e *LogEntry) { e.Timestamp = "yesterday" },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			e := valid
			mutate(&e)
			err := e.Prepare(now)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if ve.Field != field {
				t.Errorf("Expected field %s, got %s", field, ve.Field)
			}
		})
	}
}

func TestPrepareAll_ReportsIndex(t *testing.T) {
	entries := []LogEntry{
		{UserName: "u", CompanyID: "c", Event: "e", Details: "d"},
		{UserName: "", CompanyID: "c", Event: "e", Details: "d"},
	}
	err := PrepareAll(entries, time.Now())
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "[1].userName" {
		t.Errorf("Expected [1].userName failure, got %v", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	ok := []string{
		"2025-01-15T10:00:00Z",
		"2025-01-15T10:00:00.123Z",
		"2025-01-15T10:00:00+02:00",
		"2025-01-15",
	}
	for _, s := range ok {
		if _, valid := ParseTimestamp(s); !valid {
			t.Errorf("Expected %q to parse", s)
		}
	}
	for _, s := range []string{"", "nope", "15/01/2025"} {
		if _, valid := ParseTimestamp(s); valid {
			t.Errorf("Expected %q to be rejected", s)
		}
	}
}
