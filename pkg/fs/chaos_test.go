package fs

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func writeTestFile(t *testing.T, data string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data.bin")

	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("setup WriteFile(%q): %v", path, err)
	}

	return path
}

func Test_Chaos_Passes_Through_When_Mode_Is_NoOp(t *testing.T) {
	t.Parallel()

	chaosFS := NewChaos(NewReal(), 12345, ChaosConfig{
		OpenFailRate:     1.0,
		ReadFailRate:     1.0,
		SyncFailRate:     1.0,
		TruncateFailRate: 1.0,
		CloseFailRate:    1.0,
	})
	chaosFS.SetMode(ChaosModeNoOp)

	path := writeTestFile(t, "hello")

	got, err := chaosFS.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if got, want := string(got), "hello"; got != want {
		t.Fatalf("ReadFile=%q, want %q", got, want)
	}

	f, err := chaosFS.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	if err := f.Truncate(2); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	if err := f.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got, want := chaosFS.Stats().Total(), int64(0); got != want {
		t.Fatalf("faults=%d, want=%d", got, want)
	}
}

func Test_Chaos_Open_Returns_Marked_PathError_When_Rate_Is_One(t *testing.T) {
	t.Parallel()

	chaosFS := NewChaos(NewReal(), 1, ChaosConfig{OpenFailRate: 1.0})
	path := writeTestFile(t, "x")

	f, err := chaosFS.Open(path)
	if err == nil {
		_ = f.Close()
		t.Fatalf("Open: expected injected error")
	}

	if !IsChaosErr(err) {
		t.Fatalf("IsChaosErr(%v)=false, want=true", err)
	}

	var pathErr *os.PathError
	if !errors.As(err, &pathErr) {
		t.Fatalf("err=%T, want *fs.PathError in chain", err)
	}

	if got, want := pathErr.Path, path; got != want {
		t.Fatalf("path=%q, want=%q", got, want)
	}

	if errors.Is(err, os.ErrNotExist) {
		t.Fatalf("injected error must not look like ENOENT: %v", err)
	}

	if got, want := chaosFS.Stats().OpenFails, int64(1); got != want {
		t.Fatalf("OpenFails=%d, want=%d", got, want)
	}
}

func Test_Chaos_Truncate_Leaves_Size_Unchanged_When_Injected(t *testing.T) {
	t.Parallel()

	chaosFS := NewChaos(NewReal(), 7, ChaosConfig{TruncateFailRate: 1.0})
	path := writeTestFile(t, "0123456789")

	f, err := chaosFS.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	err = f.Truncate(3)
	if !IsChaosErr(err) {
		t.Fatalf("Truncate err=%v, want injected", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}

	if got, want := info.Size(), int64(10); got != want {
		t.Fatalf("size=%d, want=%d", got, want)
	}
}

func Test_Chaos_Close_Still_Closes_Descriptor_When_Injected(t *testing.T) {
	t.Parallel()

	chaosFS := NewChaos(NewReal(), 3, ChaosConfig{CloseFailRate: 1.0})
	path := writeTestFile(t, "x")

	f, err := chaosFS.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	err = f.Close()
	if !errors.Is(err, syscall.EIO) || !IsChaosErr(err) {
		t.Fatalf("Close err=%v, want injected EIO", err)
	}

	osf, _ := OSFile(f)

	_, err = osf.Stat()
	if !errors.Is(err, os.ErrClosed) {
		t.Fatalf("Stat after Close err=%v, want %v", err, os.ErrClosed)
	}
}

func Test_Chaos_Sync_Fails_Roughly_At_Configured_Rate(t *testing.T) {
	t.Parallel()

	chaosFS := NewChaos(NewReal(), 42, ChaosConfig{SyncFailRate: 0.5})
	path := writeTestFile(t, "x")

	f, err := chaosFS.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	const n = 400

	failed := 0

	for range n {
		if err := f.Sync(); err != nil {
			if !IsChaosErr(err) {
				t.Fatalf("Sync: real error %v", err)
			}

			failed++
		}
	}

	if failed < n/4 || failed > 3*n/4 {
		t.Fatalf("failed=%d of %d, want roughly half", failed, n)
	}

	if got, want := chaosFS.Stats().SyncFails, int64(failed); got != want {
		t.Fatalf("SyncFails=%d, want=%d", got, want)
	}
}

func Test_IsChaosErr_Returns_False_When_Error_Is_Real(t *testing.T) {
	t.Parallel()

	_, err := NewChaos(NewReal(), 1, ChaosConfig{}).Open(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v, want ErrNotExist", err)
	}

	if IsChaosErr(err) {
		t.Fatalf("IsChaosErr(%v)=true, want=false", err)
	}

	if IsChaosErr(nil) {
		t.Fatalf("IsChaosErr(nil)=true, want=false")
	}
}
