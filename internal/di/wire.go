//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"CoinTrack/internal/domain/repository"
	"CoinTrack/internal/usecase"
	"CoinTrack/pkg/config"
	"CoinTrack/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(ServeSet)
	return &server.App{}, nil, nil
}

// InitializeTracker wires a tracker that renders into r, for one-shot
// command line use.
func InitializeTracker(cfg *config.Config, r repository.Renderer) (*usecase.Tracker, func(), error) {
	wire.Build(CoreSet)
	return &usecase.Tracker{}, nil, nil
}
