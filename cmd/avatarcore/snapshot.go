package main

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/cobra"

	"github.com/normanking/avatarcore/internal/avatar"
	"github.com/normanking/avatarcore/internal/avatar3d"
	"github.com/normanking/avatarcore/internal/posestream"
)

// snapshot integrates a fixed-rate run offline and writes the final pose.
func newSnapshotCmd() *cobra.Command {
	var (
		emotion  string
		seconds  float64
		fps      int
		speaking float64
		tap      bool
		out      string
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Simulate the animation core and write the resulting pose",
		Long: `Simulate the animation core for a fixed time at a fixed frame rate.

With a glTF/VRM model configured, the posed document is written to --out.
Otherwise the final frame is printed as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if fps <= 0 {
				return fmt.Errorf("fps must be positive")
			}

			syslog, err := newQuietLogger(cfg)
			if err != nil {
				return err
			}
			defer syslog.Close()
			logger := syslog.Zerolog()

			model, save, err := openModel(cfg.Model, syslog.Component("model"))
			if err != nil {
				return err
			}

			seed := cfg.Loop.Seed
			if seed == 0 {
				seed = 1
			}
			ctrl := avatar.NewController(model, avatar.Options{
				Tuning:   cfg.Animation,
				Logger:   logger,
				Seed:     seed,
				Collider: headCollider(cfg.Model),
			})
			ctrl.SetEmotion(emotion)

			if speaking > 0 {
				analyser := avatar3d.NewSnapshotAnalyser(64)
				level := make([]byte, 64)
				for i := range level {
					level[i] = byte(mgl32.Clamp(float32(speaking), 0, 1) * 255)
				}
				analyser.Update(level)
				ctrl.StartSpeaking(analyser)
			}
			if tap {
				center := mgl32.Vec3{0, 1.45, 0}
				if c := headCollider(cfg.Model); c != nil {
					center = c.Center
				}
				ctrl.HandleHeadTap(center)
			}

			dt := 1 / float64(fps)
			var snap avatar.FrameSnapshot
			for n := int(seconds*float64(fps) + 0.5); n > 0; n-- {
				snap = ctrl.Frame(dt)
			}

			if save != nil && out != "" {
				if err := save(out); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d frames, emotion %s)\n", out, snap.Sequence, snap.Frame.Emotion)
				return nil
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(posestream.NewFrameMessage(snap))
		},
	}

	cmd.Flags().StringVar(&emotion, "emotion", "neutral", "emotion label to hold")
	cmd.Flags().Float64Var(&seconds, "seconds", 3, "simulated time")
	cmd.Flags().IntVar(&fps, "fps", 60, "simulated frame rate")
	cmd.Flags().Float64Var(&speaking, "speaking", 0, "constant speech level in [0,1]; 0 is silent")
	cmd.Flags().BoolVar(&tap, "tap", false, "tap the head on the first frame")
	cmd.Flags().StringVar(&out, "out", "posed.glb", "output document for glTF/VRM models")
	return cmd
}
