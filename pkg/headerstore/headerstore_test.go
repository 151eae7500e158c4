package headerstore

import (
	"testing"

	"github.com/janus-web/janus-db/internal/keyValStore"
	"github.com/janus-web/janus-db/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	kv, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{
		Paths: []string{t.TempDir()},
	})
	if err != nil {
		t.Fatalf("NewKeyValStore: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return New(kv)
}

func TestCreateOrGet_Idempotent(t *testing.T) {
	store := newTestStore(t)

	h := types.DefaultHeader()
	h.Cache.Immutable = true

	ref1, err := store.CreateOrGet(h)
	if err != nil {
		t.Fatalf("CreateOrGet: %v", err)
	}

	equal := types.DefaultHeader()
	equal.Cache.Immutable = true
	ref2, err := store.CreateOrGet(equal)
	if err != nil {
		t.Fatalf("CreateOrGet: %v", err)
	}

	if ref1 != ref2 {
		t.Errorf("equal headers got distinct refs: %s vs %s", ref1, ref2)
	}
}

func TestCreateOrGet_RejectsBadOrigins(t *testing.T) {
	store := newTestStore(t)

	h := types.DefaultHeader()
	h.CORS.Origins = []types.RoleId{"just-one"}

	if _, err := store.CreateOrGet(h); err == nil {
		t.Error("expected validation error for origins length 1")
	}
}

func TestReadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	h := types.HeaderInfo{
		Cache:    types.CachePolicy{Preset: types.CachePresetPublic},
		CORS:     types.CORSPolicy{Methods: types.DefaultMethods().Without(types.MethodDelete)},
		Redirect: types.RedirectPolicy{Code: 302, Location: "/moved"},
	}

	ref, err := store.CreateOrGet(h)
	if err != nil {
		t.Fatalf("CreateOrGet: %v", err)
	}

	got, err := store.Read(ref)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Redirect != h.Redirect || got.CORS.Methods != h.CORS.Methods || got.Cache != h.Cache {
		t.Errorf("round trip mismatch: %+v != %+v", got, h)
	}
}

func TestRead_Missing(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Read(types.HashBytes([]byte("nothing here"))); err == nil {
		t.Error("expected error for unknown ref")
	}
}
