// Package config handles converter configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/smplcache/internal/logger"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all converter settings.
type Config struct {
	SMPL     SMPLConfig     `yaml:"smpl" ini:"smpl"`
	Motion   MotionConfig   `yaml:"motion" ini:"motion"`
	Retarget RetargetConfig `yaml:"retarget" ini:"retarget"`
	Arms     ArmsConfig     `yaml:"arms" ini:"arms"`
	Output   OutputConfig   `yaml:"output" ini:"output"`
	Logging  LoggingConfig  `yaml:"logging" ini:"logging"`
}

// SMPLConfig selects the body model and the body shape to bake.
type SMPLConfig struct {
	Path      string `yaml:"path" ini:"path"`             // model .npz archive
	Shape     Shape  `yaml:"shape" ini:"-"`               // parsed separately from INI
	NumShapes int    `yaml:"num_shapes" ini:"num_shapes"` // 0 = every component in the archive
}

// MotionConfig controls motion ingestion.
type MotionConfig struct {
	Pattern   string  `yaml:"pattern" ini:"pattern"`       // glob of motion archives
	TargetFPS float64 `yaml:"target_fps" ini:"target_fps"` // 0 disables decimation
	Joints    int     `yaml:"joints" ini:"joints"`         // pose columns kept = 3 * joints
}

// RetargetConfig describes the fixed rotation applied to root orientation and
// translation. Axes are lowercase (extrinsic), one angle per axis.
type RetargetConfig struct {
	Enabled bool      `yaml:"enabled" ini:"enabled"`
	Axes    string    `yaml:"axes" ini:"axes"`
	Degrees []float64 `yaml:"degrees" ini:"degrees" delim:","`
}

// ArmsConfig drives the arm separation heuristic.
type ArmsConfig struct {
	Enabled      bool    `yaml:"enabled" ini:"enabled"`
	LeftJoint    int     `yaml:"left_joint" ini:"left_joint"`
	RightJoint   int     `yaml:"right_joint" ini:"right_joint"`
	Degrees      float64 `yaml:"degrees" ini:"degrees"`
	DampedJoints []int   `yaml:"damped_joints" ini:"damped_joints" delim:","`
	Damping      float64 `yaml:"damping" ini:"damping"`
}

// OutputConfig controls point cache output.
type OutputConfig struct {
	Float16     bool `yaml:"float16" ini:"float16"`
	ChunkFrames int  `yaml:"chunk_frames" ini:"chunk_frames"`
	Workers     int  `yaml:"workers" ini:"workers"` // 0 = GOMAXPROCS
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" ini:"level"`
	LogFile string `yaml:"log_file" ini:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Motion: MotionConfig{
			TargetFPS: 30,
			Joints:    24,
		},
		Retarget: RetargetConfig{
			Enabled: true,
			Axes:    "zx",
			Degrees: []float64{-90, 270},
		},
		Arms: ArmsConfig{
			Enabled:      false,
			LeftJoint:    17,
			RightJoint:   16,
			Degrees:      20,
			DampedJoints: []int{22, 23},
			Damping:      0.1,
		},
		Output: OutputConfig{
			Float16:     false,
			ChunkFrames: 256,
			Workers:     0,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate reports settings that cannot produce a conversion.
func (c *Config) Validate() error {
	switch {
	case c.SMPL.Path == "":
		return fmt.Errorf("%w: smpl.path is required", ErrInvalidConfig)
	case len(c.SMPL.Shape) == 0:
		return fmt.Errorf("%w: smpl.shape is required", ErrInvalidConfig)
	case c.SMPL.NumShapes < 0:
		return fmt.Errorf("%w: smpl.num_shapes must not be negative", ErrInvalidConfig)
	case c.SMPL.NumShapes > 0 && c.SMPL.NumShapes != len(c.SMPL.Shape):
		return fmt.Errorf("%w: smpl.shape has %d values, num_shapes is %d", ErrInvalidConfig, len(c.SMPL.Shape), c.SMPL.NumShapes)
	case c.Motion.TargetFPS < 0:
		return fmt.Errorf("%w: motion.target_fps must not be negative", ErrInvalidConfig)
	case c.Motion.Joints <= 0:
		return fmt.Errorf("%w: motion.joints must be positive", ErrInvalidConfig)
	case c.Output.ChunkFrames <= 0:
		return fmt.Errorf("%w: output.chunk_frames must be positive", ErrInvalidConfig)
	case c.Output.Workers < 0:
		return fmt.Errorf("%w: output.workers must not be negative", ErrInvalidConfig)
	}

	if c.Retarget.Enabled {
		if len(c.Retarget.Axes) != len(c.Retarget.Degrees) {
			return fmt.Errorf("%w: retarget has %d axes and %d angles", ErrInvalidConfig, len(c.Retarget.Axes), len(c.Retarget.Degrees))
		}
		if strings.Trim(c.Retarget.Axes, "xyz") != "" {
			return fmt.Errorf("%w: retarget axes %q must use x, y, z", ErrInvalidConfig, c.Retarget.Axes)
		}
	}

	if c.Arms.Enabled {
		for _, j := range append([]int{c.Arms.LeftJoint, c.Arms.RightJoint}, c.Arms.DampedJoints...) {
			if j <= 0 || j >= c.Motion.Joints {
				return fmt.Errorf("%w: arm joint %d outside 1..%d", ErrInvalidConfig, j, c.Motion.Joints-1)
			}
		}
	}

	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Shape is a list of shape coefficients. In files it may be written as a
// sequence or as a single whitespace- or comma-separated string.
type Shape []float64

// ParseShape parses a whitespace- or comma-separated list of floats.
func ParseShape(s string) (Shape, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	shape := make(Shape, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("shape value %d: %w", i, err)
		}
		shape[i] = v
	}
	return shape, nil
}

// UnmarshalYAML accepts both a sequence and a scalar string.
func (s *Shape) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		v, err := ParseShape(node.Value)
		if err != nil {
			return err
		}
		*s = v
		return nil
	case yaml.SequenceNode:
		var v []float64
		if err := node.Decode(&v); err != nil {
			return err
		}
		*s = v
		return nil
	}
	return fmt.Errorf("line %d: shape must be a list or a string", node.Line)
}

// String formats the shape the way INI files store it.
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}
