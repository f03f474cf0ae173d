// Package convert bakes motion archives into PC2 point caches with a shared
// body model.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/smplcache/internal/logger"
	"github.com/Faultbox/smplcache/internal/motion"
	"github.com/Faultbox/smplcache/pkg/formats"
	"github.com/Faultbox/smplcache/pkg/smpl"
)

var (
	ErrNoMotion = errors.New("no motion files matched")
	ErrNoFrames = errors.New("motion has no frames")
)

// Options holds everything a conversion needs besides the model.
type Options struct {
	Shape       []float64
	Motion      motion.Options
	PC2         formats.PC2Options
	ChunkFrames int
}

// Stats describes one finished conversion.
type Stats struct {
	Motion   string
	Output   string
	Frames   int
	Vertices int
	Elapsed  time.Duration
}

// Converter turns motion files into point caches. It is safe for concurrent use.
type Converter struct {
	model *smpl.Model
	opts  Options
	log   *zap.Logger
}

// New checks the options against the model.
func New(model *smpl.Model, opts Options) (*Converter, error) {
	if len(opts.Shape) != model.NumShapes() {
		return nil, fmt.Errorf("%w: shape has %d values, model expects %d", smpl.ErrInputShape, len(opts.Shape), model.NumShapes())
	}
	if opts.Motion.Joints != model.NumJoints() {
		return nil, fmt.Errorf("%w: motion keeps %d joints, model has %d", smpl.ErrInputShape, opts.Motion.Joints, model.NumJoints())
	}
	if opts.ChunkFrames <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", opts.ChunkFrames)
	}
	return &Converter{model: model, opts: opts, log: logger.Named("convert")}, nil
}

// LoadModel reads a model archive and validates it.
func LoadModel(path string, numShapes int) (*smpl.Model, error) {
	params, err := formats.ReadModelNPZ(path, formats.ModelOptions{NumShapes: numShapes})
	if err != nil {
		return nil, err
	}
	return smpl.NewModel(params)
}

// OutputPath returns the point cache path for a motion file: the same path
// with its extension replaced by .pc2.
func OutputPath(motionPath string) string {
	return strings.TrimSuffix(motionPath, filepath.Ext(motionPath)) + ".pc2"
}

// Glob expands a motion pattern into a sorted list of files.
func Glob(pattern string) ([]string, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("motion pattern %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMotion, pattern)
	}
	sort.Strings(paths)
	return paths, nil
}

// ConvertFile bakes one motion archive. Any existing output is replaced; on
// failure no partial output is left behind.
func (c *Converter) ConvertFile(ctx context.Context, path string) (Stats, error) {
	start := time.Now()
	out := OutputPath(path)
	stats := Stats{Motion: path, Output: out, Vertices: c.model.NumVertices()}

	raw, err := formats.ReadMotionNPZ(path)
	if err != nil {
		return stats, err
	}
	m, err := motion.Prepare(raw, c.opts.Motion)
	if err != nil {
		return stats, fmt.Errorf("%s: %w", path, err)
	}
	if m.NumFrames() == 0 {
		return stats, fmt.Errorf("%w: %s", ErrNoFrames, path)
	}

	if err := os.Remove(out); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return stats, fmt.Errorf("removing previous output: %w", err)
	}

	if err := c.bake(ctx, m, out); err != nil {
		_ = os.Remove(out)
		return stats, fmt.Errorf("%s: %w", path, err)
	}

	stats.Frames = m.NumFrames()
	stats.Elapsed = time.Since(start)
	c.log.Info("converted",
		zap.String("motion", path),
		zap.String("output", out),
		zap.Int("frames", stats.Frames),
		zap.Int("vertices", stats.Vertices),
		zap.Float64("fps", m.FrameRate),
		zap.Duration("elapsed", stats.Elapsed),
	)
	return stats, nil
}

// bake evaluates the sequence in chunks and appends each chunk to out.
func (c *Converter) bake(ctx context.Context, m *formats.Motion, out string) error {
	n := m.NumFrames()
	for lo := 0; lo < n; lo += c.opts.ChunkFrames {
		if err := ctx.Err(); err != nil {
			return err
		}
		hi := min(lo+c.opts.ChunkFrames, n)

		shapes := make([][]float64, hi-lo)
		for i := range shapes {
			shapes[i] = c.opts.Shape
		}
		res, err := c.model.Evaluate(smpl.Input{
			Shapes: shapes,
			Poses:  m.Poses[lo:hi],
			Trans:  m.Trans[lo:hi],
		})
		if err != nil {
			return fmt.Errorf("frames %d-%d: %w", lo, hi, err)
		}
		if err := formats.AppendPC2(out, res.Vertices, c.opts.PC2); err != nil {
			return err
		}
		c.log.Debug("chunk written", zap.String("output", out), zap.Int("from", lo), zap.Int("to", hi))
	}
	return nil
}

// Run converts every path with at most workers conversions in flight
// (0 means GOMAXPROCS). The first failure cancels the remaining work.
func (c *Converter) Run(ctx context.Context, paths []string, workers int) ([]Stats, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	total := len(paths)
	results := make([]Stats, total)
	var processed atomic.Int64
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}
		i, path := i, path
		g.Go(func() error {
			stats, err := c.ConvertFile(ctx, path)
			if err != nil {
				return err
			}
			results[i] = stats
			p := processed.Add(1)
			c.log.Info("progress",
				zap.Int64("done", p),
				zap.Int("total", total),
				zap.Float64("files_per_sec", float64(p)/time.Since(start).Seconds()),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
