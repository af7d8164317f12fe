package codec

import (
	"errors"
	"testing"

	"github.com/marmos91/strata/pkg/storeerr"
)

func TestValidateNameAcceptsVersionedIdentifier(t *testing.T) {
	cases := []string{"json@v1", "ndjson.stream@v2", "my_codec-x@v10.beta"}
	for _, name := range cases {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", name, err)
		}
	}
}

func TestValidateNameRejectsMalformed(t *testing.T) {
	cases := []string{"json", "json@1", "@v1", "JSON@v1", ""}
	for _, name := range cases {
		err := ValidateName(name)
		if err == nil {
			t.Errorf("ValidateName(%q) = nil, want error", name)
			continue
		}
		var se *storeerr.Error
		if !errors.As(err, &se) {
			t.Errorf("ValidateName(%q) error not a storeerr.Error: %v", name, err)
			continue
		}
		if se.Kind != storeerr.BadComponentName {
			t.Errorf("ValidateName(%q) kind = %v, want BadComponentName", name, se.Kind)
		}
	}
}

func seqOf(pairs ...any) ValueSeq {
	return func(yield func(any, error) bool) {
		for _, v := range pairs {
			if !yield(v, nil) {
				return
			}
		}
	}
}

func TestPeekFirstReturnsFirstAndContinuesSequence(t *testing.T) {
	seq := seqOf("a", "b", "c")

	first, err, ok, rest := PeekFirst(seq)
	if !ok || err != nil || first != "a" {
		t.Fatalf("PeekFirst = (%v, %v, %v)", first, err, ok)
	}

	var got []any
	for v, err := range rest {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, v)
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("rest sequence = %v, want [a b c]", got)
	}
}

func TestPeekFirstEmptySequence(t *testing.T) {
	empty := func(yield func(any, error) bool) {}

	_, _, ok, rest := PeekFirst(empty)
	if ok {
		t.Fatal("PeekFirst on empty sequence returned ok=true")
	}

	count := 0
	for range rest {
		count++
	}
	if count != 0 {
		t.Fatalf("rest yielded %d items, want 0", count)
	}
}
