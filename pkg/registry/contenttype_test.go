package registry

import "testing"

func TestParseContentTypeSplitsTypeAndParams(t *testing.T) {
	got, err := parseContentType(`application/json; charset="utf-8" ; schema=widget`)
	if err != nil {
		t.Fatalf("parseContentType: %v", err)
	}
	if got.typeSubtype != "application/json" {
		t.Errorf("typeSubtype = %q", got.typeSubtype)
	}
	want := []contentTypeParam{{key: "charset", value: "utf-8"}, {key: "schema", value: "widget"}}
	if len(got.params) != len(want) || got.params[0] != want[0] || got.params[1] != want[1] {
		t.Errorf("params = %+v, want %+v", got.params, want)
	}
}

func TestParseContentTypeLowercasesTypeSubtype(t *testing.T) {
	got, err := parseContentType("Application/JSON")
	if err != nil {
		t.Fatalf("parseContentType: %v", err)
	}
	if got.typeSubtype != "application/json" {
		t.Errorf("typeSubtype = %q, want lowercased", got.typeSubtype)
	}
}

func TestParseContentTypeRejectsEmptyAndMalformed(t *testing.T) {
	for _, s := range []string{"", "   ", "noslash"} {
		if _, err := parseContentType(s); err == nil {
			t.Errorf("parseContentType(%q) = nil error, want error", s)
		}
	}
}

func TestParsedContentTypeEqualIsOrderSignificant(t *testing.T) {
	a, err := parseContentType("application/json;a=1;b=2")
	if err != nil {
		t.Fatalf("parseContentType: %v", err)
	}
	b, err := parseContentType("application/json;b=2;a=1")
	if err != nil {
		t.Fatalf("parseContentType: %v", err)
	}
	if a.equal(b) {
		t.Fatal("equal() treated differently-ordered params as equal")
	}

	c, err := parseContentType("application/json;a=1;b=2")
	if err != nil {
		t.Fatalf("parseContentType: %v", err)
	}
	if !a.equal(c) {
		t.Fatal("equal() treated identical parsed content types as different")
	}
}

func TestParsedContentTypeEqualRejectsDifferentParamCounts(t *testing.T) {
	a, err := parseContentType("application/json;a=1")
	if err != nil {
		t.Fatalf("parseContentType: %v", err)
	}
	b, err := parseContentType("application/json;a=1;b=2")
	if err != nil {
		t.Fatalf("parseContentType: %v", err)
	}
	if a.equal(b) {
		t.Fatal("equal() treated different param counts as equal")
	}
}
