// ABOUTME: Tests for the line reader over scripted byte sources
// ABOUTME: Partial reads, multiple lines per read, compaction and close handling

package framing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptSource plays back a fixed sequence of reads. A nil step reports
// would-block; after the script runs out every read would block.
type scriptSource struct {
	steps [][]byte
	i     int
}

func (s *scriptSource) Read(p []byte) (int, error) {
	if s.i >= len(s.steps) {
		return 0, ErrWouldBlock
	}
	step := s.steps[s.i]
	s.i++
	if step == nil {
		return 0, ErrWouldBlock
	}
	if len(step) > len(p) {
		panic("test step larger than read window")
	}
	return copy(p, step), nil
}

func script(steps ...[]byte) *scriptSource {
	return &scriptSource{steps: steps}
}

func TestNextSingleLine(t *testing.T) {
	r := NewReader(script([]byte("hello\n")), 64)
	line, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(line))

	_, err = r.Next()
	assert.ErrorIs(t, err, ErrWouldBlock)
}

func TestNextPartialLineAcrossReads(t *testing.T) {
	r := NewReader(script([]byte(`{"a":`), nil, []byte(`1}`+"\n")), 64)

	_, err := r.Next()
	require.ErrorIs(t, err, ErrWouldBlock)

	line, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(line))
}

func TestNextMultipleLinesPerRead(t *testing.T) {
	r := NewReader(script([]byte("one\ntwo\nthree\n")), 64)
	for _, want := range []string{"one", "two", "three"} {
		line, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, want, string(line))
	}
	_, err := r.Next()
	assert.ErrorIs(t, err, ErrWouldBlock)
}

func TestNextGracefulClose(t *testing.T) {
	r := NewReader(strings.NewReader("last\n"), 64)
	line, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "last", string(line))

	_, err = r.Next()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNextLineTooLong(t *testing.T) {
	r := NewReader(script([]byte("aaaaaaaa"), []byte("bbbbbbbb")), 16)
	_, err := r.Next()
	assert.ErrorIs(t, err, ErrLineTooLong)
}

func TestNextCompaction(t *testing.T) {
	// First line consumes well past half the buffer; the tail of the second
	// line only fits after compaction.
	r := NewReader(script(
		[]byte("aaaaaaaaaaaa\nbb"),
		[]byte("cc\n"),
	), 16)

	line, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "aaaaaaaaaaaa", string(line))

	line, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "bbcc", string(line))
}

func TestDrainCollectsUntilWouldBlock(t *testing.T) {
	r := NewReader(script([]byte("one\ntwo\n"), []byte("three\n")), 64)
	frames, err := r.Drain(nil)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, "one", string(frames[0]))
	assert.Equal(t, "two", string(frames[1]))
	assert.Equal(t, "three", string(frames[2]))

	frames, err = r.Drain(frames[:0])
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestDrainPartialTailStaysBuffered(t *testing.T) {
	r := NewReader(script([]byte("full\npart")), 64)
	frames, err := r.Drain(nil)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "full", string(frames[0]))
	assert.True(t, r.Buffered())

	r.src = script([]byte("ial\n"))
	frames, err = r.Drain(frames[:0])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "partial", string(frames[0]))
}

func TestDrainDefersCompactionWhileFramesPending(t *testing.T) {
	// The first drain carves one frame and leaves the parsed cursor past
	// half capacity; it must hand the frame back before compacting.
	r := NewReader(script([]byte("aaaaaaaaaaaa\nbb"), []byte("b\n")), 16)

	frames, err := r.Drain(nil)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "aaaaaaaaaaaa", string(frames[0]))

	frames, err = r.Drain(frames[:0])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "bbb", string(frames[0]))
}

func TestDrainDeliversFramesBeforeClose(t *testing.T) {
	r := NewReader(strings.NewReader("a\nb\n"), 64)
	frames, err := r.Drain(nil)
	assert.ErrorIs(t, err, ErrClosed)
	require.Len(t, frames, 2)
	assert.Equal(t, "a", string(frames[0]))
	assert.Equal(t, "b", string(frames[1]))
}

func TestDrainNeverDropsBytes(t *testing.T) {
	// One long stream cut at awkward boundaries; every payload byte must
	// come back exactly once, in order.
	payload := "alpha\nbeta\ngamma\ndelta\nepsilon\n"
	var steps [][]byte
	for i := 0; i < len(payload); i += 7 {
		end := i + 7
		if end > len(payload) {
			end = len(payload)
		}
		steps = append(steps, []byte(payload[i:end]), nil)
	}
	r := NewReader(script(steps...), 64)

	var got []string
	for i := 0; i < len(steps)+4; i++ {
		frames, err := r.Drain(nil)
		require.NoError(t, err)
		for _, f := range frames {
			got = append(got, string(f))
		}
	}
	assert.Equal(t, []string{"alpha", "beta", "gamma", "delta", "epsilon"}, got)
}
