package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	gomath "math"
	"os"

	"github.com/x448/float16"

	"github.com/Faultbox/smplcache/pkg/math"
)

// PC2 format errors.
var (
	ErrInvalidPC2Magic       = errors.New("invalid PC2 magic: expected 'POINTCACHE2'")
	ErrUnsupportedPC2Version = errors.New("unsupported PC2 version")
	ErrTruncatedPC2Data      = errors.New("truncated PC2 data")
	ErrPC2VertexCount        = errors.New("PC2 vertex count mismatch")
	ErrNoPC2Frames           = errors.New("no PC2 frames to write")
)

const (
	pc2Magic   = "POINTCACHE2\x00"
	pc2Version = 1

	// PC2HeaderSize is the size of the fixed header in bytes.
	PC2HeaderSize = 32

	// pc2SamplesOffset is the byte offset of the frame count field.
	pc2SamplesOffset = 28
)

// PC2Header is the on-disk header of a point cache, little-endian.
type PC2Header struct {
	Magic      [12]byte
	Version    int32
	NumPoints  int32 // vertices per frame
	StartFrame float32
	SampleRate float32
	NumSamples int32 // frames
}

// PC2Options controls how frames are encoded.
type PC2Options struct {
	// Float16 stores components as IEEE half floats instead of float32.
	Float16 bool
	// StartFrame and SampleRate are written into new headers.
	StartFrame float32
	SampleRate float32
}

// DefaultPC2Options returns float32 output starting at frame 0, one sample per frame.
func DefaultPC2Options() PC2Options {
	return PC2Options{StartFrame: 0, SampleRate: 1}
}

// ElementSize returns the byte size of one vertex component.
func (o PC2Options) ElementSize() int {
	if o.Float16 {
		return 2
	}
	return 4
}

// PC2 is a decoded point cache.
type PC2 struct {
	Header PC2Header
	// Float16 reports whether the body was stored as half floats.
	Float16 bool
	Frames  [][]math.Vec3
}

// NewPC2Header builds a header for numPoints vertices and numSamples frames.
func NewPC2Header(numPoints, numSamples int, opts PC2Options) PC2Header {
	h := PC2Header{
		Version:    pc2Version,
		NumPoints:  int32(numPoints),
		StartFrame: opts.StartFrame,
		SampleRate: opts.SampleRate,
		NumSamples: int32(numSamples),
	}
	copy(h.Magic[:], pc2Magic)
	return h
}

// WritePC2 writes a complete point cache.
func WritePC2(w io.Writer, frames [][]math.Vec3, opts PC2Options) error {
	payload, err := encodePC2Frames(frames, opts, -1)
	if err != nil {
		return err
	}
	h := NewPC2Header(len(frames[0]), len(frames), opts)
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("writing PC2 header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("writing PC2 frames: %w", err)
	}
	return nil
}

// CreatePC2 writes frames to path, replacing any existing file.
func CreatePC2(path string, frames [][]math.Vec3, opts PC2Options) error {
	var buf bytes.Buffer
	if err := WritePC2(&buf, frames, opts); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// AppendPC2 appends frames to the cache at path, creating it if missing.
// The existing vertex count must match the new frames and the existing body
// must be encoded with the same element size.
func AppendPC2(path string, frames [][]math.Vec3, opts PC2Options) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if errors.Is(err, fs.ErrNotExist) {
		return CreatePC2(path, frames, opts)
	}
	if err != nil {
		return fmt.Errorf("opening PC2 file: %w", err)
	}
	defer f.Close()

	h, err := ReadPC2Header(f)
	if err != nil {
		return err
	}

	payload, err := encodePC2Frames(frames, opts, int(h.NumPoints))
	if err != nil {
		return err
	}

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat PC2 file: %w", err)
	}
	body := st.Size() - PC2HeaderSize
	want := int64(h.NumSamples) * int64(h.NumPoints) * 3 * int64(opts.ElementSize())
	if body != want {
		return fmt.Errorf("%w: body is %d bytes, header implies %d for %d-byte components",
			ErrTruncatedPC2Data, body, want, opts.ElementSize())
	}

	// Payload first: an interrupted append leaves trailing bytes but a
	// header that still describes the earlier frames.
	if _, err := f.WriteAt(payload, st.Size()); err != nil {
		return fmt.Errorf("appending PC2 frames: %w", err)
	}
	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(h.NumSamples)+uint32(len(frames)))
	if _, err := f.WriteAt(count[:], pc2SamplesOffset); err != nil {
		return fmt.Errorf("updating PC2 frame count: %w", err)
	}
	return nil
}

// ReadPC2Header reads and validates the fixed header.
func ReadPC2Header(r io.Reader) (PC2Header, error) {
	var h PC2Header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return PC2Header{}, fmt.Errorf("%w: reading header", ErrTruncatedPC2Data)
	}
	if string(h.Magic[:]) != pc2Magic {
		return PC2Header{}, ErrInvalidPC2Magic
	}
	if h.Version != pc2Version {
		return PC2Header{}, fmt.Errorf("%w: %d", ErrUnsupportedPC2Version, h.Version)
	}
	if h.NumPoints < 0 || h.NumSamples < 0 {
		return PC2Header{}, fmt.Errorf("invalid PC2 dimensions: %d points, %d samples", h.NumPoints, h.NumSamples)
	}
	return h, nil
}

// ParsePC2 decodes a point cache. The component size (float32 or float16) is
// inferred from the body length.
func ParsePC2(data []byte) (*PC2, error) {
	if len(data) < PC2HeaderSize {
		return nil, ErrTruncatedPC2Data
	}
	h, err := ReadPC2Header(bytes.NewReader(data[:PC2HeaderSize]))
	if err != nil {
		return nil, err
	}

	body := data[PC2HeaderSize:]
	components := int(h.NumPoints) * int(h.NumSamples) * 3
	pc := &PC2{Header: h, Frames: make([][]math.Vec3, h.NumSamples)}
	if components == 0 {
		if len(body) != 0 {
			return nil, fmt.Errorf("%w: %d trailing bytes", ErrTruncatedPC2Data, len(body))
		}
		return pc, nil
	}

	switch len(body) {
	case components * 4:
	case components * 2:
		pc.Float16 = true
	default:
		return nil, fmt.Errorf("%w: body is %d bytes for %d components", ErrTruncatedPC2Data, len(body), components)
	}

	off := 0
	next := func() float64 {
		if pc.Float16 {
			v := float16.Frombits(binary.LittleEndian.Uint16(body[off:])).Float32()
			off += 2
			return float64(v)
		}
		v := gomath.Float32frombits(binary.LittleEndian.Uint32(body[off:]))
		off += 4
		return float64(v)
	}

	for s := range pc.Frames {
		frame := make([]math.Vec3, h.NumPoints)
		for v := range frame {
			frame[v] = math.Vec3{X: next(), Y: next(), Z: next()}
		}
		pc.Frames[s] = frame
	}
	return pc, nil
}

// ParsePC2File parses a point cache from disk.
func ParsePC2File(path string) (*PC2, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading PC2 file: %w", err)
	}
	return ParsePC2(data)
}

// encodePC2Frames serializes frames. numPoints < 0 accepts whatever vertex
// count the first frame has.
func encodePC2Frames(frames [][]math.Vec3, opts PC2Options, numPoints int) ([]byte, error) {
	if len(frames) == 0 {
		return nil, ErrNoPC2Frames
	}
	if numPoints < 0 {
		numPoints = len(frames[0])
	}

	size := opts.ElementSize()
	buf := make([]byte, 0, len(frames)*numPoints*3*size)
	var scratch [4]byte
	for i, frame := range frames {
		if len(frame) != numPoints {
			return nil, fmt.Errorf("%w: frame %d has %d vertices, want %d", ErrPC2VertexCount, i, len(frame), numPoints)
		}
		for _, v := range frame {
			for _, c := range v.Array() {
				if opts.Float16 {
					binary.LittleEndian.PutUint16(scratch[:], float16.Fromfloat32(float32(c)).Bits())
				} else {
					binary.LittleEndian.PutUint32(scratch[:], gomath.Float32bits(float32(c)))
				}
				buf = append(buf, scratch[:size]...)
			}
		}
	}
	return buf, nil
}
