package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/smplcache/pkg/math"
)

// createTestFrames returns n frames of v vertices with distinct, exactly
// representable coordinates.
func createTestFrames(n, v, start int) [][]math.Vec3 {
	frames := make([][]math.Vec3, n)
	for f := range frames {
		frames[f] = make([]math.Vec3, v)
		for i := range frames[f] {
			base := float64(start+f)*0.5 + float64(i)*0.25
			frames[f][i] = math.Vec3{X: base, Y: -base, Z: base + 1}
		}
	}
	return frames
}

func TestWritePC2_Header(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePC2(&buf, createTestFrames(3, 5, 0), DefaultPC2Options()); err != nil {
		t.Fatalf("WritePC2 failed: %v", err)
	}
	data := buf.Bytes()

	if len(data) != PC2HeaderSize+3*5*3*4 {
		t.Fatalf("expected %d bytes, got %d", PC2HeaderSize+3*5*3*4, len(data))
	}
	if string(data[:11]) != "POINTCACHE2" || data[11] != 0 {
		t.Errorf("unexpected magic %q", data[:12])
	}
	if v := binary.LittleEndian.Uint32(data[12:]); v != 1 {
		t.Errorf("expected version 1, got %d", v)
	}
	if n := binary.LittleEndian.Uint32(data[16:]); n != 5 {
		t.Errorf("expected 5 points at offset 16, got %d", n)
	}
	if n := binary.LittleEndian.Uint32(data[28:]); n != 3 {
		t.Errorf("expected 3 samples at offset 28, got %d", n)
	}
}

func TestParsePC2_RoundTrip(t *testing.T) {
	for _, half := range []bool{false, true} {
		opts := DefaultPC2Options()
		opts.Float16 = half
		frames := createTestFrames(4, 6, 0)

		var buf bytes.Buffer
		require.NoError(t, WritePC2(&buf, frames, opts))

		pc, err := ParsePC2(buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, half, pc.Float16)
		assert.Equal(t, int32(6), pc.Header.NumPoints)
		assert.Equal(t, int32(4), pc.Header.NumSamples)
		assert.Equal(t, float32(1), pc.Header.SampleRate)
		assert.Equal(t, frames, pc.Frames)
	}
}

func TestAppendPC2(t *testing.T) {
	tests := []struct {
		name string
		opts PC2Options
	}{
		{"float32", PC2Options{SampleRate: 1}},
		{"float16", PC2Options{SampleRate: 1, Float16: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "anim.pc2")
			const verts = 7

			require.NoError(t, AppendPC2(path, createTestFrames(3, verts, 0), tt.opts), "append creates")
			require.NoError(t, AppendPC2(path, createTestFrames(2, verts, 3), tt.opts))

			st, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, int64(PC2HeaderSize+5*verts*3*tt.opts.ElementSize()), st.Size())

			pc, err := ParsePC2File(path)
			require.NoError(t, err)
			assert.Equal(t, int32(5), pc.Header.NumSamples)
			assert.Equal(t, int32(verts), pc.Header.NumPoints)
			assert.Equal(t, createTestFrames(5, verts, 0), pc.Frames)
		})
	}
}

func TestAppendPC2_VertexCountMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anim.pc2")
	require.NoError(t, CreatePC2(path, createTestFrames(2, 4, 0), DefaultPC2Options()))

	err := AppendPC2(path, createTestFrames(1, 5, 0), DefaultPC2Options())
	assert.ErrorIs(t, err, ErrPC2VertexCount)

	// File left untouched.
	pc, err := ParsePC2File(path)
	require.NoError(t, err)
	assert.Len(t, pc.Frames, 2)
}

func TestAppendPC2_ElementSizeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anim.pc2")
	require.NoError(t, CreatePC2(path, createTestFrames(2, 4, 0), DefaultPC2Options()))

	half := DefaultPC2Options()
	half.Float16 = true
	err := AppendPC2(path, createTestFrames(1, 4, 0), half)
	assert.ErrorIs(t, err, ErrTruncatedPC2Data)
}

func TestAppendPC2_InvalidMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anim.pc2")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{'x'}, 64), 0644))

	err := AppendPC2(path, createTestFrames(1, 4, 0), DefaultPC2Options())
	assert.ErrorIs(t, err, ErrInvalidPC2Magic)
}

func TestCreatePC2_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anim.pc2")
	require.NoError(t, CreatePC2(path, createTestFrames(5, 4, 0), DefaultPC2Options()))
	require.NoError(t, CreatePC2(path, createTestFrames(1, 2, 0), DefaultPC2Options()))

	pc, err := ParsePC2File(path)
	require.NoError(t, err)
	assert.Len(t, pc.Frames, 1)
	assert.Len(t, pc.Frames[0], 2)
}

func TestWritePC2_Errors(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePC2(&buf, nil, DefaultPC2Options()); !errors.Is(err, ErrNoPC2Frames) {
		t.Errorf("expected ErrNoPC2Frames, got %v", err)
	}

	frames := createTestFrames(2, 3, 0)
	frames[1] = frames[1][:2]
	if err := WritePC2(&buf, frames, DefaultPC2Options()); !errors.Is(err, ErrPC2VertexCount) {
		t.Errorf("expected ErrPC2VertexCount, got %v", err)
	}
}

func TestParsePC2_Errors(t *testing.T) {
	var valid bytes.Buffer
	require.NoError(t, WritePC2(&valid, createTestFrames(2, 3, 0), DefaultPC2Options()))

	badVersion := bytes.Clone(valid.Bytes())
	binary.LittleEndian.PutUint32(badVersion[12:], 2)

	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"short header", valid.Bytes()[:20], ErrTruncatedPC2Data},
		{"bad magic", append([]byte("POINTCACHE3\x00"), valid.Bytes()[12:]...), ErrInvalidPC2Magic},
		{"bad version", badVersion, ErrUnsupportedPC2Version},
		{"truncated body", valid.Bytes()[:valid.Len()-1], ErrTruncatedPC2Data},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePC2(tt.data)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestParsePC2_Empty(t *testing.T) {
	var buf bytes.Buffer
	h := NewPC2Header(10, 0, DefaultPC2Options())
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &h))

	pc, err := ParsePC2(buf.Bytes())
	require.NoError(t, err)
	assert.Empty(t, pc.Frames)
}
