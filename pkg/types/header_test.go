package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderInfo_RefDeterministic(t *testing.T) {
	h1 := HeaderInfo{
		Cache: CachePolicy{Immutable: true, Preset: CachePresetPublic},
		CORS:  CORSPolicy{Methods: DefaultMethods()},
	}
	h2 := HeaderInfo{
		Cache: CachePolicy{Immutable: true, Preset: CachePresetPublic},
		CORS:  CORSPolicy{Methods: DefaultMethods()},
	}

	assert.Equal(t, h1.Ref(), h2.Ref(), "field-for-field equal headers must share a ref")
}

func TestHeaderInfo_RefDistinguishes(t *testing.T) {
	base := DefaultHeader()

	immutable := base
	immutable.Cache.Immutable = true

	redirected := base
	redirected.Redirect = RedirectPolicy{Code: 301, Location: "/elsewhere"}

	assert.NotEqual(t, base.Ref(), immutable.Ref())
	assert.NotEqual(t, base.Ref(), redirected.Ref())
	assert.NotEqual(t, immutable.Ref(), redirected.Ref())
}

func TestHeaderInfo_ValidateOrigins(t *testing.T) {
	h := DefaultHeader()
	assert.NoError(t, h.Validate())

	h.CORS.Origins = make([]RoleId, MethodCount)
	assert.NoError(t, h.Validate())

	h.CORS.Origins = []RoleId{"reader", "writer"}
	assert.Error(t, h.Validate())
}

func TestHash_TextRoundTrip(t *testing.T) {
	h := HashBytes([]byte("janus"))

	text, err := h.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	parsed, err := ParseHash(string(text))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != h {
		t.Errorf("round trip mismatch: %s != %s", parsed, h)
	}
}

func TestAddressOf_DependsOnFormatVersion(t *testing.T) {
	data := []byte("same bytes")
	assert.NotEqual(t, HashBytes(data), AddressOf(data),
		"address must include the storage format version")
	assert.Equal(t, AddressOf(data), AddressOf([]byte("same bytes")))
}

func TestResourceMetadata_States(t *testing.T) {
	var m ResourceMetadata
	assert.False(t, m.Exists())
	assert.False(t, m.Gone())

	m.Version = 1
	m.Size = 70 * 1024
	assert.True(t, m.Exists())
	assert.True(t, m.Live())
	assert.False(t, m.Gone())

	m.Size = 0
	assert.True(t, m.Exists())
	assert.True(t, m.Gone())
	assert.False(t, m.Live())
}
