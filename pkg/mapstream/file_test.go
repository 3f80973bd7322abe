package mapstream

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/mapstream/pkg/fs"
)

func writeFile(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data.bin")

	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("setup WriteFile(%q): %v", path, err)
	}

	return path
}

func Test_Open_Reads_File_Content_When_Chunks_Are_Smaller_Than_A_Page(t *testing.T) {
	t.Parallel()

	// 5000 bytes over 16-byte chunks exercises unaligned chunk offsets.
	path := writeFile(t, pattern(0, 5000))

	st, err := Open(path, FileOptions{Options: Options{ChunkShift: 4}})
	require.NoError(t, err)

	defer func() { require.NoError(t, st.Close()) }()

	data, err := io.ReadAll(st)
	require.NoError(t, err)
	assert.Equal(t, pattern(0, 5000), data)

	require.NoError(t, st.SetPosition(4099))

	b, err := st.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(4099%256), b)
}

func Test_Open_Releases_With_Munmap_When_HardEvict_Is_Selected(t *testing.T) {
	t.Parallel()

	path := writeFile(t, pattern(0, 3*4096))

	st, err := Open(path, FileOptions{Options: Options{ChunkShift: 12, CacheMode: CacheHardEvict}})
	require.NoError(t, err)

	_, err = io.Copy(io.Discard, st)
	require.NoError(t, err)

	assert.Equal(t, CacheHardEvict, st.CacheMode())
	assert.Equal(t, uint64(2), st.Stats().Releases)
	require.NoError(t, st.Close())
}

func Test_Open_Maps_Empty_File_When_Size_Is_Zero(t *testing.T) {
	t.Parallel()

	path := writeFile(t, nil)

	st, err := Open(path, FileOptions{})
	require.NoError(t, err)

	_, err = st.ReadByte()
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, st.Close())
}

func Test_Open_Grows_File_When_OutputView_Writes_Past_End(t *testing.T) {
	t.Parallel()

	path := writeFile(t, []byte("0123456789"))

	st, err := Open(path, FileOptions{
		Options:   Options{ChunkShift: 4, MapMode: MapReadWrite},
		Resizable: true,
	})
	require.NoError(t, err)

	v, err := st.OutputView(nil)
	require.NoError(t, err)

	require.NoError(t, v.SetPosition(8))

	_, err = v.Write([]byte("abcdefghijklmnop"))
	require.NoError(t, err)

	require.NoError(t, v.Flush())
	require.NoError(t, v.Close())
	require.NoError(t, st.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("01234567abcdefghijklmnop"), got)
}

func Test_Open_Shrinks_File_When_SetLength_Is_Smaller(t *testing.T) {
	t.Parallel()

	path := writeFile(t, pattern(0, 100))

	st, err := Open(path, FileOptions{
		Options:   Options{ChunkShift: 5, MapMode: MapReadWrite},
		Resizable: true,
	})
	require.NoError(t, err)

	require.NoError(t, st.SetPosition(90))
	require.NoError(t, st.SetLength(40))
	assert.Equal(t, int64(40), mustPosition(t, st))

	require.NoError(t, st.SetPosition(0))

	data, err := io.ReadAll(st)
	require.NoError(t, err)
	assert.Equal(t, pattern(0, 40), data)
	require.NoError(t, st.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(40), info.Size())
}

func Test_Open_Leaves_File_Untouched_When_Mapped_Private(t *testing.T) {
	t.Parallel()

	path := writeFile(t, []byte("original"))

	st, err := Open(path, FileOptions{Options: Options{MapMode: MapPrivate}})
	require.NoError(t, err)

	v, err := st.OutputView(nil)
	require.NoError(t, err)

	_, err = v.Write([]byte("modified"))
	require.NoError(t, err)
	require.NoError(t, v.Close())

	require.NoError(t, st.SetPosition(0))

	var buf bytes.Buffer
	_, err = st.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, "modified", buf.String())
	require.NoError(t, st.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))
}

func Test_Open_Returns_ErrInvalidArgument_When_Resizable_And_ReadOnly(t *testing.T) {
	t.Parallel()

	path := writeFile(t, []byte("x"))

	_, err := Open(path, FileOptions{Resizable: true})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func Test_Open_Returns_ErrWouldBlock_When_Writer_Holds_Lock(t *testing.T) {
	t.Parallel()

	path := writeFile(t, pattern(0, 64))

	w, err := Open(path, FileOptions{Options: Options{MapMode: MapReadWrite}, Lock: true})
	require.NoError(t, err)

	_, err = Open(path, FileOptions{Lock: true})
	assert.ErrorIs(t, err, fs.ErrWouldBlock)

	require.NoError(t, w.Close())

	r1, err := Open(path, FileOptions{Lock: true})
	require.NoError(t, err)

	r2, err := Open(path, FileOptions{Lock: true})
	require.NoError(t, err)

	require.NoError(t, r1.Close())
	require.NoError(t, r2.Close())
}

func Test_Open_Returns_Error_When_File_Is_Missing(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "missing.bin"), FileOptions{Lock: true})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func Test_SetLength_Surfaces_Injected_Truncate_Failure_When_Using_Chaos_FS(t *testing.T) {
	t.Parallel()

	path := writeFile(t, pattern(0, 64))
	chaos := fs.NewChaos(fs.NewReal(), 1, fs.ChaosConfig{TruncateFailRate: 1.0})

	st, err := Open(path, FileOptions{
		Options:   Options{ChunkShift: 4, MapMode: MapReadWrite},
		FS:        chaos,
		Resizable: true,
	})
	require.NoError(t, err)

	err = st.SetLength(128)
	assert.ErrorIs(t, err, ErrMapping)
	assert.True(t, fs.IsChaosErr(err), "err=%v", err)
	assert.Equal(t, int64(64), st.Length())

	chaos.SetMode(fs.ChaosModeNoOp)
	require.NoError(t, st.SetLength(128))
	require.NoError(t, st.Close())
}

func Test_Close_Surfaces_Injected_Sync_Failure_When_Using_Chaos_FS(t *testing.T) {
	t.Parallel()

	path := writeFile(t, pattern(0, 64))
	chaos := fs.NewChaos(fs.NewReal(), 1, fs.ChaosConfig{SyncFailRate: 1.0})

	st, err := Open(path, FileOptions{Options: Options{MapMode: MapReadWrite}, FS: chaos})
	require.NoError(t, err)

	err = st.Close()
	assert.ErrorIs(t, err, ErrMapping)
	assert.True(t, fs.IsChaosErr(err))

	// The handle is closed even though teardown failed.
	require.NoError(t, st.Close())
	assert.True(t, st.Stats().Closed)
}
