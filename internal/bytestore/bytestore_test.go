package bytestore

import (
	"bytes"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/janus-web/janus-db/internal/keyValStore"
	"github.com/janus-web/janus-db/pkg/types"
	workerpool "github.com/janus-web/janus-db/pkg/workerPool"
)

func newTestStore(t *testing.T, secret string) *Store {
	t.Helper()

	kv, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{
		Paths: []string{t.TempDir()},
	})
	if err != nil {
		t.Fatalf("NewKeyValStore: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	store, err := New(kv, secret, workerpool.NewWorkerPool(workerpool.Config{WorkerCount: 4}), slog.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStoreLoadRoundTrip(t *testing.T) {
	store := newTestStore(t, "test-secret")

	chunk := make([]byte, 48*1024)
	rand.New(rand.NewSource(7)).Read(chunk)

	addr, err := store.Store(chunk)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if addr != types.AddressOf(chunk) {
		t.Errorf("address mismatch: %s", addr)
	}

	loaded, err := store.Load(addr)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(loaded, chunk) {
		t.Error("loaded bytes differ from stored bytes")
	}
}

func TestStoreBatch_OrderAndDedup(t *testing.T) {
	store := newTestStore(t, "test-secret")

	chunks := [][]byte{
		[]byte("alpha"),
		[]byte("beta"),
		[]byte("alpha"), // duplicate content
		[]byte("gamma"),
	}

	addrs, err := store.StoreBatch(chunks)
	if err != nil {
		t.Fatalf("StoreBatch: %v", err)
	}
	if len(addrs) != len(chunks) {
		t.Fatalf("got %d addresses, want %d", len(addrs), len(chunks))
	}

	for i, chunk := range chunks {
		if addrs[i] != types.AddressOf(chunk) {
			t.Errorf("chunk %d address out of order", i)
		}
	}
	if addrs[0] != addrs[2] {
		t.Error("identical content must share one address")
	}

	// storing again is a no-op and yields the same addresses
	again, err := store.StoreBatch(chunks)
	if err != nil {
		t.Fatalf("StoreBatch again: %v", err)
	}
	for i := range addrs {
		if addrs[i] != again[i] {
			t.Errorf("address %d changed on re-store", i)
		}
	}
}

func TestLoad_WrongSecretFails(t *testing.T) {
	dir := t.TempDir()

	kv, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{Paths: []string{dir}})
	if err != nil {
		t.Fatalf("NewKeyValStore: %v", err)
	}
	wp := workerpool.NewWorkerPool(workerpool.Config{WorkerCount: 2})

	store, err := New(kv, "secret-one", wp, slog.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addr, err := store.Store([]byte("sealed payload"))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	other, err := New(kv, "secret-two", wp, slog.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := other.Load(addr); err == nil {
		t.Error("expected unseal failure with a different secret")
	}
	kv.Close()
}
