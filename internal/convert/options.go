package convert

import (
	"github.com/Faultbox/smplcache/internal/config"
	"github.com/Faultbox/smplcache/internal/motion"
	"github.com/Faultbox/smplcache/pkg/formats"
	"github.com/Faultbox/smplcache/pkg/math"
)

// OptionsFromConfig maps a validated config onto conversion options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	swap := math.QuatIdentity()
	if cfg.Retarget.Enabled {
		var err error
		if swap, err = motion.EulerRotation(cfg.Retarget.Axes, cfg.Retarget.Degrees); err != nil {
			return Options{}, err
		}
	}

	pc2 := formats.DefaultPC2Options()
	pc2.Float16 = cfg.Output.Float16

	return Options{
		Shape: cfg.SMPL.Shape,
		Motion: motion.Options{
			TargetFPS:    cfg.Motion.TargetFPS,
			Joints:       cfg.Motion.Joints,
			Retarget:     cfg.Retarget.Enabled,
			Swap:         swap,
			SeparateArms: cfg.Arms.Enabled,
			Arms: motion.Arms{
				LeftJoint:    cfg.Arms.LeftJoint,
				RightJoint:   cfg.Arms.RightJoint,
				Degrees:      cfg.Arms.Degrees,
				DampedJoints: cfg.Arms.DampedJoints,
				Damping:      cfg.Arms.Damping,
			},
		},
		PC2:         pc2,
		ChunkFrames: cfg.Output.ChunkFrames,
	}, nil
}
