package engine

import (
	"context"
	"fmt"
)

// RenderFunc renders a page in a real browser. It is supplied by the
// browser package at wiring time so engine/ never imports rod directly.
type RenderFunc func(ctx context.Context, req *FetchRequest) (*FetchResult, error)

// RodEngine is the browser-backed engine. With forceStealth it always asks
// for the stealth evasions, which is what hostile boards need.
type RodEngine struct {
	render       RenderFunc
	forceStealth bool
}

// NewRodEngine creates a RodEngine around render.
func NewRodEngine(render RenderFunc, forceStealth bool) *RodEngine {
	return &RodEngine{render: render, forceStealth: forceStealth}
}

func (e *RodEngine) Name() string {
	if e.forceStealth {
		return "rod-stealth"
	}
	return "rod"
}

func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.render == nil {
		return nil, fmt.Errorf("%s: renderer not configured", e.Name())
	}

	r := *req
	if e.forceStealth {
		r.Stealth = true
	}

	result, err := e.render(ctx, &r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name(), err)
	}
	result.EngineName = e.Name()
	return result, nil
}
