package mapstream

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_OutputView_Write_Crosses_Chunks_When_Within_Length(t *testing.T) {
	t.Parallel()

	st, store := newTestStream(t, 40, Options{MapMode: MapReadWrite})

	v, err := st.OutputView(nil)
	require.NoError(t, err)

	require.NoError(t, v.SetPosition(10))

	n, err := v.Write(bytes.Repeat([]byte{'x'}, 10))
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	assert.Equal(t, bytes.Repeat([]byte{'x'}, 10), store.data[10:20])
	assert.Equal(t, pattern(0, 10), store.data[:10])
	assert.Equal(t, pattern(20, 40), store.data[20:40])

	// The stream shares the cursor.
	assert.Equal(t, int64(20), mustPosition(t, st))

	require.NoError(t, st.SetPosition(8))

	buf := make([]byte, 4)
	_, err = io.ReadFull(st, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{8, 9, 'x', 'x'}, buf)
}

func Test_OutputView_Write_Grows_Stream_When_Writing_Past_End(t *testing.T) {
	t.Parallel()

	st, store := newTestStream(t, 40, Options{MapMode: MapReadWrite})

	v, err := st.OutputView(store)
	require.NoError(t, err)

	require.NoError(t, v.SetPosition(36))

	n, err := v.Write([]byte("abcdefgh"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	assert.Equal(t, int64(44), st.Length())
	assert.Equal(t, int64(44), v.Length())
	assert.Equal(t, []byte("abcdefgh"), store.data[36:44])

	pos, err := v.Position()
	require.NoError(t, err)
	assert.Equal(t, int64(44), pos)

	require.NoError(t, v.WriteByte('!'))
	assert.Equal(t, int64(45), st.Length())
	assert.Equal(t, byte('!'), store.data[44])
}

func Test_OutputView_Write_Returns_ErrUnsupportedResize_When_No_Resizer(t *testing.T) {
	t.Parallel()

	st, store := newTestStream(t, 40, Options{MapMode: MapReadWrite})

	v, err := st.OutputView(nil)
	require.NoError(t, err)

	require.NoError(t, v.SetPosition(38))

	n, err := v.Write([]byte("abcd"))
	assert.ErrorIs(t, err, ErrUnsupportedResize)
	assert.Equal(t, 0, n)

	assert.Equal(t, pattern(36, 40), store.data[36:40])

	pos, err := v.Position()
	require.NoError(t, err)
	assert.Equal(t, int64(38), pos)
}

func Test_OutputView_Write_Stays_In_Memory_When_Mapped_Private(t *testing.T) {
	t.Parallel()

	store := newMemStore(40)

	// memStore regions alias the backing slice, so use zeroMapper to stand in
	// for a copy-on-write mapping.
	st, err := New(store, 40, Options{ChunkShift: 4, MapMode: MapPrivate, Mapper: zeroMapper{}})
	require.NoError(t, err)

	v, err := st.OutputView(nil)
	require.NoError(t, err)

	_, err = v.Write([]byte("hello"))
	require.NoError(t, err)

	require.NoError(t, st.SetPosition(0))

	buf := make([]byte, 5)
	_, err = io.ReadFull(st, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), buf)
	assert.Equal(t, pattern(0, 5), store.data[:5])

	require.NoError(t, v.Close())
	require.NoError(t, st.Close())
	assert.Equal(t, 0, store.syncs)
}
