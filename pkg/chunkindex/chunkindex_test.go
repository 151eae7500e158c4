package chunkindex

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/janus-web/janus-db/internal/bytestore"
	"github.com/janus-web/janus-db/internal/keyValStore"
	workerpool "github.com/janus-web/janus-db/pkg/workerPool"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()

	kv, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{
		Paths: []string{t.TempDir()},
	})
	if err != nil {
		t.Fatalf("NewKeyValStore: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	bs, err := bytestore.New(kv, "test-secret", workerpool.NewWorkerPool(workerpool.Config{WorkerCount: 4}), slog.Default())
	if err != nil {
		t.Fatalf("bytestore.New: %v", err)
	}

	return New(kv, bs)
}

func TestSequence_EmptyForUnknownPath(t *testing.T) {
	x := newTestIndex(t)

	seq, err := x.Sequence("/nothing")
	if err != nil {
		t.Fatalf("Sequence: %v", err)
	}
	if len(seq) != 0 {
		t.Errorf("expected empty sequence, got %d refs", len(seq))
	}
}

func TestCommit_AppendsAndOverwrites(t *testing.T) {
	x := newTestIndex(t)

	if _, err := x.Commit("/f", [][]byte{[]byte("one"), []byte("two"), []byte("three")}, 0); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	seq, err := x.Sequence("/f")
	if err != nil {
		t.Fatalf("Sequence: %v", err)
	}
	if len(seq) != 3 {
		t.Fatalf("sequence length = %d, want 3", len(seq))
	}
	if TotalSize(seq) != uint64(len("one")+len("two")+len("three")) {
		t.Errorf("TotalSize = %d", TotalSize(seq))
	}

	// overwrite slot 1, extending nothing
	if _, err := x.Commit("/f", [][]byte{[]byte("TWO!")}, 1); err != nil {
		t.Fatalf("Commit overwrite: %v", err)
	}

	seq, _ = x.Sequence("/f")
	if len(seq) != 3 {
		t.Fatalf("overwrite changed length to %d", len(seq))
	}
	got, err := x.Load(seq[1])
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, []byte("TWO!")) {
		t.Errorf("slot 1 = %q", got)
	}

	// append at the end via negative offset 0 == len
	if _, err := x.Commit("/f", [][]byte{[]byte("four")}, 3); err != nil {
		t.Fatalf("Commit append: %v", err)
	}
	seq, _ = x.Sequence("/f")
	if len(seq) != 4 {
		t.Errorf("append gave length %d, want 4", len(seq))
	}
}

func TestCommit_RejectsGaps(t *testing.T) {
	x := newTestIndex(t)

	if _, err := x.Commit("/g", [][]byte{[]byte("a")}, 0); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := x.Commit("/g", [][]byte{[]byte("b")}, 5); err == nil {
		t.Error("expected error committing past the end of the sequence")
	}
}

func TestCommit_NegativeOffset(t *testing.T) {
	x := newTestIndex(t)

	if _, err := x.Commit("/n", [][]byte{[]byte("a"), []byte("b"), []byte("c")}, 0); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	// -1 addresses the last slot
	if _, err := x.Commit("/n", [][]byte{[]byte("C")}, -1); err != nil {
		t.Fatalf("Commit at -1: %v", err)
	}

	seq, _ := x.Sequence("/n")
	got, _ := x.Load(seq[2])
	if !bytes.Equal(got, []byte("C")) {
		t.Errorf("last slot = %q, want C", got)
	}
}

func TestRangeRead_Semantics(t *testing.T) {
	x := newTestIndex(t)

	chunks := [][]byte{[]byte("c0"), []byte("c1"), []byte("c2"), []byte("c3")}
	if _, err := x.Commit("/r", chunks, 0); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	cases := []struct {
		name       string
		start, end int
		want       []string
	}{
		{"whole sequence", 0, 0, []string{"c0", "c1", "c2", "c3"}},
		{"prefix", 0, 2, []string{"c0", "c1"}},
		{"middle", 1, 3, []string{"c1", "c2"}},
		{"through last", 2, 0, []string{"c2", "c3"}},
		{"negative start", -2, 0, []string{"c2", "c3"}},
		{"negative end", 0, -1, []string{"c0", "c1", "c2"}},
		{"clamped", 2, 99, []string{"c2", "c3"}},
		{"inverted", 3, 1, nil},
	}

	for _, tc := range cases {
		refs, err := x.RangeRead("/r", tc.start, tc.end)
		if err != nil {
			t.Fatalf("%s: RangeRead: %v", tc.name, err)
		}
		if len(refs) != len(tc.want) {
			t.Errorf("%s: got %d refs, want %d", tc.name, len(refs), len(tc.want))
			continue
		}
		for i, ref := range refs {
			got, err := x.Load(ref)
			if err != nil {
				t.Fatalf("%s: Load: %v", tc.name, err)
			}
			if string(got) != tc.want[i] {
				t.Errorf("%s: ref %d = %q, want %q", tc.name, i, got, tc.want[i])
			}
		}
	}
}

func TestRangeRead_EmptyPath(t *testing.T) {
	x := newTestIndex(t)

	refs, err := x.RangeRead("/empty", 0, 0)
	if err != nil {
		t.Fatalf("RangeRead: %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("expected empty result, got %d refs", len(refs))
	}
}

func TestDedup_AcrossPaths(t *testing.T) {
	x := newTestIndex(t)

	payload := []byte("shared bytes")
	refsA, err := x.Commit("/a", [][]byte{payload}, 0)
	if err != nil {
		t.Fatalf("Commit /a: %v", err)
	}
	refsB, err := x.Commit("/b", [][]byte{payload}, 0)
	if err != nil {
		t.Fatalf("Commit /b: %v", err)
	}

	if refsA[0].Address != refsB[0].Address {
		t.Error("identical chunk bytes must share one address across paths")
	}
}

func TestStagedApply_CommitsCompanionRecords(t *testing.T) {
	kv, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{
		Paths: []string{t.TempDir()},
	})
	if err != nil {
		t.Fatalf("NewKeyValStore: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	bs, err := bytestore.New(kv, "test-secret", workerpool.NewWorkerPool(workerpool.Config{WorkerCount: 4}), slog.Default())
	if err != nil {
		t.Fatalf("bytestore.New: %v", err)
	}
	x := New(kv, bs)

	st, err := x.StageReplace("/s", [][]byte{[]byte("body")})
	if err != nil {
		t.Fatalf("StageReplace: %v", err)
	}

	// Nothing is visible until Apply.
	seq, err := x.Sequence("/s")
	if err != nil {
		t.Fatalf("Sequence before apply: %v", err)
	}
	if len(seq) != 0 {
		t.Fatalf("staged sequence already visible: %d refs", len(seq))
	}

	record := keyValStore.Entry{Key: []byte("res:meta:/s"), Value: []byte(`{"version":1}`)}
	if err := st.Apply(record); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	seq, err = x.Sequence("/s")
	if err != nil {
		t.Fatalf("Sequence after apply: %v", err)
	}
	if len(seq) != 1 {
		t.Fatalf("sequence length = %d, want 1", len(seq))
	}
	if st.Size() != uint64(len("body")) {
		t.Errorf("Size = %d, want %d", st.Size(), len("body"))
	}

	got, err := kv.Read(record.Key)
	if err != nil {
		t.Fatalf("Read companion record: %v", err)
	}
	if !bytes.Equal(got, record.Value) {
		t.Errorf("companion record = %q, want %q", got, record.Value)
	}
}

func TestTruncate_LeavesSharedChunks(t *testing.T) {
	x := newTestIndex(t)

	payload := []byte("still reachable")
	if _, err := x.Commit("/one", [][]byte{payload}, 0); err != nil {
		t.Fatalf("Commit /one: %v", err)
	}
	refs, err := x.Commit("/two", [][]byte{payload}, 0)
	if err != nil {
		t.Fatalf("Commit /two: %v", err)
	}

	if err := x.Truncate("/one"); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	seq, _ := x.Sequence("/one")
	if len(seq) != 0 {
		t.Errorf("truncated path still has %d refs", len(seq))
	}

	got, err := x.Load(refs[0])
	if err != nil {
		t.Fatalf("Load after truncate of sibling: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("shared chunk bytes were damaged by truncate")
	}
}
