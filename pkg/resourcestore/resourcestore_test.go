package resourcestore

import (
	"testing"
	"time"

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

func TestRead_AbsentPathIsZero(t *testing.T) {
	store := newTestStore(t)

	md, err := store.Read("/never-written")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if md.Exists() {
		t.Errorf("absent path reports history: %+v", md)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	want := types.ResourceMetadata{
		Properties:   types.ContentProperties{MimeType: "text/plain", Charset: "utf-8"},
		Size:         70 * 1024,
		Version:      3,
		LastModified: time.Now().UTC().Truncate(time.Millisecond),
		Header:       types.DefaultHeader().Ref(),
	}

	if err := store.Write("/a.txt", want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := store.Read("/a.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Size != want.Size || got.Version != want.Version || got.Header != want.Header {
		t.Errorf("round trip mismatch: %+v != %+v", got, want)
	}
	if !got.LastModified.Equal(want.LastModified) {
		t.Errorf("lastModified mismatch: %v != %v", got.LastModified, want.LastModified)
	}
	if got.Properties != want.Properties {
		t.Errorf("properties mismatch: %+v != %+v", got.Properties, want.Properties)
	}
}

func TestWrite_PathsAreIndependent(t *testing.T) {
	store := newTestStore(t)

	if err := store.Write("/a", types.ResourceMetadata{Version: 1, Size: 10}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := store.Write("/b", types.ResourceMetadata{Version: 7, Size: 20}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	a, _ := store.Read("/a")
	b, _ := store.Read("/b")
	if a.Version != 1 || b.Version != 7 {
		t.Errorf("paths bleed into each other: a=%+v b=%+v", a, b)
	}
}
