package scene

import (
	"context"
	"fmt"

	"github.com/zeusync/camdist/internal/config"
	"github.com/zeusync/camdist/internal/core/measure"
	"github.com/zeusync/camdist/internal/core/measurers"
	"github.com/zeusync/camdist/internal/core/observability/log"
	"github.com/zeusync/camdist/internal/core/spatial"
)

// Scene owns the single registry, broadcaster and driver of one scene.
// Pass it explicitly; there is no package level instance.
type Scene struct {
	Name        string
	Registry    *measure.Registry
	Broadcaster *measure.Broadcaster
	Driver      *measure.Driver
	Camera      *measure.StaticCamera

	logger log.Log
	// keeps config-declared weak measurers reachable for the scene lifetime
	owned []measure.Measurer
}

// New builds a scene from cfg and places the measurers it declares.
func New(cfg *config.Config, logger log.Log, reporter measure.FailureReporter) (*Scene, error) {
	logger = logger.Named("scene").With(log.String("scene", cfg.Scene.Name))

	registry := measure.NewRegistry()
	broadcaster := measure.NewBroadcaster(registry,
		measure.WithLogger(logger),
		measure.WithReporter(reporter),
	)
	camera := measure.NewStaticCamera(measure.NewCamera(cfg.Scene.Camera), vec(cfg.Scene.CameraPos))
	driver := measure.NewDriver(broadcaster, camera, cfg.Scene.TickInterval,
		measure.WithPruneEvery(cfg.Scene.PruneEvery),
		measure.WithDriverLogger(logger),
	)

	s := &Scene{
		Name:        cfg.Scene.Name,
		Registry:    registry,
		Broadcaster: broadcaster,
		Driver:      driver,
		Camera:      camera,
		logger:      logger,
	}
	for i, mc := range cfg.Measurers {
		if err := s.place(mc); err != nil {
			return nil, fmt.Errorf("measurers[%d]: %w", i, err)
		}
	}
	logger.Info("Scene ready", log.Int("measurers", registry.Len()))
	return s, nil
}

// Run drives the scene until ctx is cancelled.
func (s *Scene) Run(ctx context.Context) error {
	return s.Driver.Run(ctx)
}

// Measurers returns the measurers placed from configuration.
func (s *Scene) Measurers() []measure.Measurer {
	return append([]measure.Measurer(nil), s.owned...)
}

func (s *Scene) place(mc config.MeasurerConfig) error {
	pos := vec(mc.Position)
	switch mc.Kind {
	case config.KindLOD:
		m, err := measurers.NewLODSelector(pos, mc.Distances...)
		if err != nil {
			return err
		}
		m.OnChange(func(from, to int) {
			s.logger.Debug("LOD changed", log.Int("from", from), log.Int("to", to))
		})
		register(s, m, mc.Weak)
	case config.KindAudio:
		if len(mc.Distances) != 2 {
			return fmt.Errorf("%w: audio needs [min, max]", config.ErrInvalidMeasurer)
		}
		m, err := measurers.NewAudioAttenuator(pos, mc.Distances[0], mc.Distances[1])
		if err != nil {
			return err
		}
		register(s, m, mc.Weak)
	case config.KindCull:
		if len(mc.Distances) != 1 {
			return fmt.Errorf("%w: cull needs [max]", config.ErrInvalidMeasurer)
		}
		register(s, measurers.NewCuller(pos, mc.Distances[0]), mc.Weak)
	case config.KindBillboard:
		if len(mc.Distances) != 1 {
			return fmt.Errorf("%w: billboard needs [range]", config.ErrInvalidMeasurer)
		}
		register(s, measurers.NewBillboard(pos, mc.Distances[0]), mc.Weak)
	default:
		return fmt.Errorf("%w: unknown kind %q", config.ErrInvalidMeasurer, mc.Kind)
	}
	return nil
}

func register[T any, P interface {
	*T
	measure.Measurer
}](s *Scene, m P, weak bool) {
	s.owned = append(s.owned, m)
	if weak {
		measure.AddWeak(s.Registry, m)
		return
	}
	s.Registry.Add(m)
}

func vec(v [3]float64) spatial.Vector3 {
	return spatial.Vec3(v[0], v[1], v[2])
}
