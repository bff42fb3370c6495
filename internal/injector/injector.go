//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"
	"github.com/zeusync/camdist/internal/config"
	"github.com/zeusync/camdist/internal/core/scene"
)

func InitializeScene(cfg *config.Config) (*scene.Scene, func(), error) {
	wire.Build(SceneSet)
	return nil, nil, nil
}
