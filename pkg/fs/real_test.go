package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func Test_RealFS_Exists_Returns_False_When_Path_Does_Not_Exist(t *testing.T) {
	t.Parallel()

	fs := NewReal()
	dir := t.TempDir()

	exists, err := fs.Exists(filepath.Join(dir, "does-not-exist.bin"))

	if got, want := err, error(nil); !errors.Is(got, want) {
		t.Fatalf("err=%v, want=%v", got, want)
	}

	if got, want := exists, false; got != want {
		t.Fatalf("exists=%v, want=%v", got, want)
	}
}

func Test_RealFS_Exists_Returns_True_When_Path_Is_A_File(t *testing.T) {
	t.Parallel()

	fs := NewReal()
	path := filepath.Join(t.TempDir(), "exists.bin")

	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	exists, err := fs.Exists(path)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}

	if got, want := exists, true; got != want {
		t.Fatalf("exists=%v, want=%v", got, want)
	}
}

func Test_RealFS_Truncate_Changes_File_Size_When_Opened_ReadWrite(t *testing.T) {
	t.Parallel()

	fs := NewReal()
	path := filepath.Join(t.TempDir(), "data.bin")

	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	f, err := fs.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	if err := f.Truncate(4); err != nil {
		t.Fatalf("Truncate(4): %v", err)
	}

	info, err := f.Stat()
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}

	if got, want := info.Size(), int64(4); got != want {
		t.Fatalf("size=%d, want=%d", got, want)
	}

	if err := f.Truncate(100); err != nil {
		t.Fatalf("Truncate(100): %v", err)
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if got, want := len(data), 100; got != want {
		t.Fatalf("len=%d, want=%d", got, want)
	}

	if got, want := string(data[:4]), "0123"; got != want {
		t.Fatalf("prefix=%q, want=%q", got, want)
	}
}

func Test_OSFile_Returns_Underlying_File_When_Wrapped_Or_Plain(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.bin")

	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	plain, err := NewReal().Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer plain.Close()

	osf, ok := OSFile(plain)
	if !ok || osf == nil {
		t.Fatalf("OSFile(plain) ok=%v, want=true", ok)
	}

	wrapped, err := NewChaos(NewReal(), 1, ChaosConfig{}).Open(path)
	if err != nil {
		t.Fatalf("Chaos.Open: %v", err)
	}
	defer wrapped.Close()

	osf, ok = OSFile(wrapped)
	if !ok || osf == nil {
		t.Fatalf("OSFile(chaos) ok=%v, want=true", ok)
	}

	if got, want := osf.Name(), path; got != want {
		t.Fatalf("name=%q, want=%q", got, want)
	}
}
