package jsonschema

import (
	"reflect"
	"testing"
)

type profile struct {
	Email string `json:"email" validate:"required,email"`
	Age   int    `json:"age" validate:"gte=0"`
}

func TestSerializeEmbedsSchemaAndValidates(t *testing.T) {
	c, err := New("profile@v1", reflect.TypeOf(profile{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	env, err := c.Serialize(profile{Email: "a@b.com", Age: 30}, nil)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if env.ContentType != ContentType {
		t.Fatalf("ContentType = %q", env.ContentType)
	}
	if len(env.Config) == 0 {
		t.Fatal("expected a non-empty reflected schema in Config")
	}

	got, err := c.Deserialize(env)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	p := got.(profile)
	if p.Email != "a@b.com" || p.Age != 30 {
		t.Fatalf("got %+v", p)
	}
}

func TestSerializeRejectsInvalidValue(t *testing.T) {
	c, err := New("profile@v1", reflect.TypeOf(profile{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Serialize(profile{Email: "not-an-email", Age: -1}, nil); err == nil {
		t.Fatal("expected validation error for malformed profile")
	}
}

func TestNewRejectsNonStructType(t *testing.T) {
	if _, err := New("bad@v1", reflect.TypeOf("")); err == nil {
		t.Fatal("expected error binding a non-struct type")
	}
}
