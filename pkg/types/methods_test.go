package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMethod_String(t *testing.T) {
	cases := map[Method]string{
		MethodGet:     "GET",
		MethodHead:    "HEAD",
		MethodDefine:  "DEFINE",
		MethodPut:     "PUT",
		MethodDelete:  "DELETE",
		MethodConnect: "CONNECT",
		MethodOptions: "OPTIONS",
		MethodLocate:  "LOCATE",
		MethodPatch:   "PATCH",
	}
	for m, want := range cases {
		assert.Equal(t, want, m.String())
	}
}

func TestParseMethod_RoundTrip(t *testing.T) {
	for m := Method(0); m < MethodCount; m++ {
		parsed, err := ParseMethod(m.String())
		if err != nil {
			t.Fatalf("ParseMethod(%s): %v", m, err)
		}
		if parsed != m {
			t.Errorf("ParseMethod(%s) = %v, want %v", m, parsed, m)
		}
	}

	if _, err := ParseMethod("BREW"); err == nil {
		t.Error("expected error for unknown method")
	}
}

func TestParseMethod_CaseInsensitive(t *testing.T) {
	m, err := ParseMethod("define")
	assert.NoError(t, err)
	assert.Equal(t, MethodDefine, m)
}

func TestMethodSet_Bits(t *testing.T) {
	var s MethodSet
	s = s.With(MethodGet).With(MethodPut)

	assert.True(t, s.Has(MethodGet))
	assert.True(t, s.Has(MethodPut))
	assert.False(t, s.Has(MethodDelete))

	s = s.Without(MethodPut)
	assert.False(t, s.Has(MethodPut))

	assert.Equal(t, []Method{MethodGet}, s.Methods())
}

func TestDefaultMethods_ExcludesConnect(t *testing.T) {
	s := DefaultMethods()
	for m := Method(0); m < MethodCount; m++ {
		if m == MethodConnect {
			assert.False(t, s.Has(m), "CONNECT must not be in the default set")
			continue
		}
		assert.True(t, s.Has(m), "method %s missing from default set", m)
	}
}

func TestMethod_Mutates(t *testing.T) {
	mutating := map[Method]bool{
		MethodDefine: true,
		MethodPut:    true,
		MethodDelete: true,
		MethodPatch:  true,
	}
	for m := Method(0); m < MethodCount; m++ {
		assert.Equal(t, mutating[m], m.Mutates(), "method %s", m)
	}
}
