package ring

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnpublishedFrameIsInvisible(t *testing.T) {
	r, err := New(32)
	require.NoError(t, err)

	payload := []byte{1, 2, 3, 4, 5, 6}
	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))

	// Lay down the raw bytes exactly as Enqueue does, but hold back the cursor.
	w := r.write.Load()
	r.copyIn(w, hdr[:])
	r.copyIn(w+HeaderSize, payload[:3])

	dst := make([]byte, 16)
	n, ok, err := r.Dequeue(dst)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, n)
	assert.Zero(t, r.ReadSpace())
	_, ok, err = r.Peek()
	require.NoError(t, err)
	assert.False(t, ok)

	r.copyIn(w+HeaderSize+3, payload[3:])
	r.write.Store(w + HeaderSize + uint64(len(payload)))

	n, ok, err = r.Dequeue(dst)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload, dst[:n])
}

func TestCorruptHeaderIsReportedAndDiscarded(t *testing.T) {
	r, err := New(32)
	require.NoError(t, err)

	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[:], 100)
	r.copyIn(0, hdr[:])
	r.copyIn(HeaderSize, []byte{9, 9})
	r.write.Store(HeaderSize + 2)

	_, ok, err := r.Peek()
	require.ErrorIs(t, err, ErrCorruptFrame, "corruption is not mistaken for an empty ring")
	assert.False(t, ok)

	dst := make([]byte, 32)
	_, ok, err = r.Dequeue(dst)
	require.ErrorIs(t, err, ErrCorruptFrame)
	assert.True(t, IsProtocolError(err))
	assert.False(t, ok)

	// Discard resynchronises by dropping everything committed
	assert.True(t, r.Discard())
	assert.Zero(t, r.ReadSpace())

	require.NoError(t, r.Enqueue([]byte{7}))
	n, ok, err := r.Dequeue(dst)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{7}, dst[:n])
}

func TestTruncatedHeaderIsCorrupt(t *testing.T) {
	r, err := New(16)
	require.NoError(t, err)

	r.write.Store(2)
	_, _, err = r.Peek()
	require.ErrorIs(t, err, ErrCorruptFrame)
	_, _, err = r.Dequeue(make([]byte, 16))
	require.ErrorIs(t, err, ErrCorruptFrame)
}
