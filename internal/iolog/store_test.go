package iolog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/relaysink/logsrvd/internal/timeacct"
	"github.com/relaysink/logsrvd/internal/wire"
)

func TestCreateBuildsDirectoryAndTimingFile(t *testing.T) {
	root := t.TempDir()
	store, err := Create(root, "alice/host/20260806T000000.000000", false, 0600)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(filepath.Join(root, store.SessionPath, "timing")); err != nil {
		t.Fatalf("timing file missing: %v", err)
	}
}

func TestWriteIOBufProducesStreamAndTimingContent(t *testing.T) {
	root := t.TempDir()
	store, err := Create(root, "sess", false, 0600)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer store.Close()

	var elapsed timeacct.Elapsed
	if err := store.WriteIOBuf(&elapsed, 0, wire.StreamTTYOut, timeacct.Delay{Nsec: 500000000}, []byte("hello\n")); err != nil {
		t.Fatalf("WriteIOBuf: %v", err)
	}
	if err := store.WriteIOBuf(&elapsed, 0, wire.StreamTTYOut, timeacct.Delay{Sec: 1}, []byte("world\n")); err != nil {
		t.Fatalf("WriteIOBuf: %v", err)
	}

	if !elapsed.Equal(timeacct.Elapsed{Sec: 1, Nsec: 500000000}) {
		t.Fatalf("elapsed = %+v, want {Sec:1, Nsec:500000000}", elapsed)
	}

	ttyout, err := os.ReadFile(filepath.Join(root, "sess", "ttyout"))
	if err != nil {
		t.Fatalf("ReadFile ttyout: %v", err)
	}
	if string(ttyout) != "hello\nworld\n" {
		t.Fatalf("ttyout = %q, want %q", ttyout, "hello\nworld\n")
	}

	timing, err := os.ReadFile(filepath.Join(root, "sess", "timing"))
	if err != nil {
		t.Fatalf("ReadFile timing: %v", err)
	}
	want := "1 0.500000000 6\n1 1.000000000 6\n"
	if string(timing) != want {
		t.Fatalf("timing = %q, want %q", timing, want)
	}
}

func TestWriteWinsizeAndSuspendAreTimingOnly(t *testing.T) {
	root := t.TempDir()
	store, err := Create(root, "sess", false, 0600)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer store.Close()

	var elapsed timeacct.Elapsed
	if err := store.WriteWinsize(&elapsed, timeacct.Delay{Sec: 1}, 24, 80); err != nil {
		t.Fatalf("WriteWinsize: %v", err)
	}
	if err := store.WriteSuspend(&elapsed, timeacct.Delay{Sec: 1}, "SIGTSTP"); err != nil {
		t.Fatalf("WriteSuspend: %v", err)
	}

	if !elapsed.Equal(timeacct.Elapsed{Sec: 2}) {
		t.Fatalf("elapsed = %+v, want {Sec:2}", elapsed)
	}

	entries, err := os.ReadDir(filepath.Join(root, "sess"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("directory has %d entries, want 1 (timing only): %v", len(entries), entries)
	}
}

func TestSealClearsWriteBits(t *testing.T) {
	root := t.TempDir()
	store, err := Create(root, "sess", false, 0600)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	var elapsed timeacct.Elapsed
	if err := store.WriteWinsize(&elapsed, timeacct.Delay{}, 24, 80); err != nil {
		t.Fatalf("WriteWinsize: %v", err)
	}

	info, err := os.Stat(filepath.Join(root, "sess", "timing"))
	if err != nil {
		t.Fatalf("Stat before seal: %v", err)
	}
	if info.Mode().Perm()&0200 == 0 {
		t.Fatal("timing file has no owner-write bit before sealing")
	}

	if err := store.Seal(); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	store.Close()

	info, err = os.Stat(filepath.Join(root, "sess", "timing"))
	if err != nil {
		t.Fatalf("Stat after seal: %v", err)
	}
	if info.Mode().Perm()&0222 != 0 {
		t.Fatalf("timing file mode %v still has write bits after Seal", info.Mode())
	}
}

func TestWriteIOBufWithRandomDropAlwaysFails(t *testing.T) {
	root := t.TempDir()
	store, err := Create(root, "sess", false, 0600)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer store.Close()

	var elapsed timeacct.Elapsed
	err = store.WriteIOBuf(&elapsed, 1.0, wire.StreamStdout, timeacct.Delay{Sec: 1}, []byte("x"))
	if err == nil {
		t.Fatal("WriteIOBuf with drop probability 1.0 should fail")
	}

	// The payload and timing record must still have been written, and
	// elapsed still advanced, before the drop is simulated (spec.md
	// §4.5: drop happens "after step 5").
	if !elapsed.Equal(timeacct.Elapsed{Sec: 1}) {
		t.Fatalf("elapsed = %+v, want {Sec:1} even on a dropped write", elapsed)
	}
}
