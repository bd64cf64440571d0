package main

import "testing"

func TestDecodeEntries(t *testing.T) {
	single, err := decodeEntries([]byte(`{"userName":"u","companyId":"c","event":"e","details":"d"}`))
	if err != nil || len(single) != 1 || single[0].UserName != "u" {
		t.Errorf("unexpected single decode: %v %v", single, err)
	}

	many, err := decodeEntries([]byte("  [{\"event\":\"a\"},{\"event\":\"b\"}]"))
	if err != nil || len(many) != 2 || many[1].Event != "b" {
		t.Errorf("unexpected array decode: %v %v", many, err)
	}

	if _, err := decodeEntries([]byte("nope")); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}
