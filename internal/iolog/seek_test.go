package iolog

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/relaysink/logsrvd/internal/timeacct"
	"github.com/relaysink/logsrvd/internal/wire"
)

func buildUncompressedSession(t *testing.T) (root, sessionPath string) {
	t.Helper()
	root = t.TempDir()
	sessionPath = "sess"

	store, err := Create(root, sessionPath, false, 0600)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	var elapsed timeacct.Elapsed
	if err := store.WriteIOBuf(&elapsed, 0, wire.StreamTTYOut, timeacct.Delay{Sec: 1}, []byte("hello\n")); err != nil {
		t.Fatalf("WriteIOBuf: %v", err)
	}
	if err := store.WriteIOBuf(&elapsed, 0, wire.StreamTTYOut, timeacct.Delay{Sec: 2}, []byte("world\n")); err != nil {
		t.Fatalf("WriteIOBuf: %v", err)
	}
	store.Close()
	return root, sessionPath
}

func TestRestartSeekModeExactMatch(t *testing.T) {
	root, sessionPath := buildUncompressedSession(t)

	store, err := Open(root, sessionPath, false, 0600)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	var elapsed timeacct.Elapsed
	ok, err := store.Restart(&elapsed, timeacct.Elapsed{Sec: 3})
	if err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if !ok {
		t.Fatal("Restart() ok = false, want true")
	}

	// Further writes after a restart should append right where the
	// prior session left off rather than duplicating or corrupting the
	// timing file.
	if err := store.WriteIOBuf(&elapsed, 0, wire.StreamTTYOut, timeacct.Delay{Sec: 1}, []byte("!\n")); err != nil {
		t.Fatalf("WriteIOBuf after restart: %v", err)
	}

	timing, err := os.ReadFile(filepath.Join(root, sessionPath, "timing"))
	if err != nil {
		t.Fatalf("ReadFile timing: %v", err)
	}
	want := "1 1.000000000 6\n1 2.000000000 6\n1 1.000000000 2\n"
	if string(timing) != want {
		t.Fatalf("timing = %q, want %q", timing, want)
	}
}

func TestRestartSeekModeOvershootIsCorruption(t *testing.T) {
	root, sessionPath := buildUncompressedSession(t)

	store, err := Open(root, sessionPath, false, 0600)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	var elapsed timeacct.Elapsed
	_, err = store.Restart(&elapsed, timeacct.Elapsed{Sec: 2})
	if !errors.Is(err, ErrRestartOvershoot) {
		t.Fatalf("Restart() error = %v, want ErrRestartOvershoot", err)
	}
}

func TestRestartRejectsAlreadyCompleteSession(t *testing.T) {
	root, sessionPath := buildUncompressedSession(t)

	sealed, err := Open(root, sessionPath, false, 0600)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := sealed.Seal(); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	sealed.Close()

	store, err := Open(root, sessionPath, false, 0600)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	var elapsed timeacct.Elapsed
	_, err = store.Restart(&elapsed, timeacct.Elapsed{Sec: 3})
	if !errors.Is(err, ErrAlreadyComplete) {
		t.Fatalf("Restart() error = %v, want ErrAlreadyComplete", err)
	}
}

func TestRestartRewriteModeForCompressedStreams(t *testing.T) {
	root := t.TempDir()
	sessionPath := "sess"

	store, err := Create(root, sessionPath, true, 0600)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	var elapsed timeacct.Elapsed
	if err := store.WriteIOBuf(&elapsed, 0, wire.StreamStdout, timeacct.Delay{Sec: 1}, []byte("one\n")); err != nil {
		t.Fatalf("WriteIOBuf: %v", err)
	}
	if err := store.WriteIOBuf(&elapsed, 0, wire.StreamStdout, timeacct.Delay{Sec: 1}, []byte("two\n")); err != nil {
		t.Fatalf("WriteIOBuf: %v", err)
	}
	store.Close()

	restarted, err := Open(root, sessionPath, true, 0600)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer restarted.Close()

	var restartElapsed timeacct.Elapsed
	ok, err := restarted.Restart(&restartElapsed, timeacct.Elapsed{Sec: 1})
	if err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if !ok {
		t.Fatal("Restart() ok = false, want true")
	}
	if !restartElapsed.Equal(timeacct.Elapsed{Sec: 1}) {
		t.Fatalf("elapsed = %+v, want {Sec:1}", restartElapsed)
	}

	timing, err := os.ReadFile(filepath.Join(root, sessionPath, "timing"))
	if err != nil {
		t.Fatalf("ReadFile timing: %v", err)
	}
	want := "3 1.000000000 4\n"
	if string(timing) != want {
		t.Fatalf("rewritten timing = %q, want %q (only the first record, up to target)", timing, want)
	}
}

// TestRestartRewriteModeClearsStreamsOnlyReferencedAfterTarget exercises
// a crash where one stream's only record falls entirely after the
// restart target: stdout gets acked before the crash, stderr only
// receives data after it. A correct restart must still replace
// stderr's file with an empty one, so the client's re-transmission
// after restart doesn't get concatenated onto stale, unacked
// zstd-compressed data.
func TestRestartRewriteModeClearsStreamsOnlyReferencedAfterTarget(t *testing.T) {
	root := t.TempDir()
	sessionPath := "sess"

	store, err := Create(root, sessionPath, true, 0600)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	var elapsed timeacct.Elapsed
	if err := store.WriteIOBuf(&elapsed, 0, wire.StreamStdout, timeacct.Delay{Sec: 1}, []byte("stdout-data\n")); err != nil {
		t.Fatalf("WriteIOBuf stdout: %v", err)
	}
	if err := store.WriteIOBuf(&elapsed, 0, wire.StreamStderr, timeacct.Delay{Sec: 1}, []byte("stale-stderr\n")); err != nil {
		t.Fatalf("WriteIOBuf stderr: %v", err)
	}
	store.Close()

	restarted, err := Open(root, sessionPath, true, 0600)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer restarted.Close()

	var restartElapsed timeacct.Elapsed
	ok, err := restarted.Restart(&restartElapsed, timeacct.Elapsed{Sec: 1})
	if err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if !ok {
		t.Fatal("Restart() ok = false, want true")
	}

	stderrPath := filepath.Join(root, sessionPath, wire.StreamStderr.Name())
	info, err := os.Stat(stderrPath)
	if err != nil {
		t.Fatalf("stat stderr stream: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("stderr stream size after restart = %d, want 0 (stale post-target data must be cleared)", info.Size())
	}

	if err := restarted.WriteIOBuf(&restartElapsed, 0, wire.StreamStderr, timeacct.Delay{Sec: 1}, []byte("fresh-stderr\n")); err != nil {
		t.Fatalf("WriteIOBuf after restart: %v", err)
	}
	restarted.Close()

	f, err := os.Open(stderrPath)
	if err != nil {
		t.Fatalf("open stderr stream: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd.NewReader: %v", err)
	}
	defer dec.Close()
	data, err := io.ReadAll(dec)
	if err != nil {
		t.Fatalf("decode stderr stream: %v", err)
	}
	if string(data) != "fresh-stderr\n" {
		t.Fatalf("stderr stream content = %q, want %q (no concatenated stale data)", data, "fresh-stderr\n")
	}
}
