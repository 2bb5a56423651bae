package extraction

import (
	"fmt"
	"strings"

	"github.com/gitsby/yarg/pkg/loaders"
	"github.com/gitsby/yarg/pkg/models/domain"
)

// CellPolicy returns the value of a crosstab value field without a matching fact.
type CellPolicy func(field string) domain.Value

func NullCells(string) domain.Value { return domain.Null }
func ZeroCells(string) domain.Value { return domain.Integer(0) }

// ParseCellPolicy accepts "null" (or empty) and "zero".
func ParseCellPolicy(name string) (CellPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "null":
		return NullCells, nil
	case "zero":
		return ZeroCells, nil
	default:
		return nil, fmt.Errorf("unknown cell policy %q", name)
	}
}

type Settings struct {
	// Parallelism is the number of worker goroutines shared by one
	// extractor. Zero extracts sequentially.
	Parallelism int
	CellPolicy  CellPolicy
}

type ControllerFactory interface {
	ControllerFor(orientation domain.Orientation) (Controller, error)
}

type controllerFactory struct {
	controllers map[domain.Orientation]Controller
}

// NewControllerFactory returns the factory of a new engine runtime backed by registry.
func NewControllerFactory(registry loaders.Registry, settings Settings) ControllerFactory {
	return newRuntime(registry, settings).factory
}

func newControllerFactory(rt *runtime) *controllerFactory {
	return &controllerFactory{
		controllers: map[domain.Orientation]Controller{
			domain.OrientationSimple:     &simpleController{rt: rt},
			domain.OrientationHorizontal: &horizontalController{rt: rt},
			domain.OrientationVertical:   &verticalController{rt: rt},
			domain.OrientationCrosstab:   &crosstabController{rt: rt},
		},
	}
}

func (f *controllerFactory) ControllerFor(orientation domain.Orientation) (Controller, error) {
	o := domain.ParseOrientation(string(orientation))
	ctrl, ok := f.controllers[o]
	if !ok {
		return nil, &UnknownOrientationError{Orientation: orientation}
	}
	return ctrl, nil
}
