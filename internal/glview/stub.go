//go:build nogl

package glview

import (
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/core"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/logger"
	"github.com/FabianRolfMatthiasNoll/SpectrumEmulator/internal/video"
)

type Window struct{}

func New(Config, core.Machine, *video.Pool, *logger.Logger) (*Window, error) {
	return nil, ErrUnavailable
}

func (*Window) RequestRedraw()              {}
func (*Window) Run() error                  { return ErrUnavailable }
func (*Window) Presenter() *video.Presenter { return nil }
func (*Window) Close()                      {}
