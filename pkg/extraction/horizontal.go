package extraction

import (
	"context"

	"github.com/gitsby/yarg/pkg/models/domain"
)

type simpleController struct {
	rt *runtime
}

func (c *simpleController) Extract(ctx context.Context, ec *Context) ([]domain.BandID, error) {
	rows, err := c.rt.queryRows(ctx, ec)
	if err != nil {
		return nil, err
	}
	if len(rows) != 1 {
		return nil, &CardinalityError{Band: ec.Definition.Name, Rows: len(rows)}
	}

	id := ec.Tree.Add(ec.Parent, newBand(ec, rows[0]))
	if err := c.rt.extractChildren(ctx, ec, id); err != nil {
		return nil, err
	}
	return []domain.BandID{id}, nil
}

// horizontalController produces one band per row.
type horizontalController struct {
	rt *runtime
}

func (c *horizontalController) Extract(ctx context.Context, ec *Context) ([]domain.BandID, error) {
	rows, err := c.rt.queryRows(ctx, ec)
	if err != nil {
		return nil, err
	}

	ids := make([]domain.BandID, len(rows))
	for i, row := range rows {
		ids[i] = ec.Tree.Add(ec.Parent, newBand(ec, row))
	}
	if err := c.rt.extractChildrenOf(ctx, ec, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func newBand(ec *Context, data domain.Row) domain.Band {
	return domain.Band{
		Name:        ec.Definition.Name,
		Definition:  ec.Definition.Name,
		Orientation: domain.ParseOrientation(string(ec.Definition.Orientation)),
		Data:        data,
	}
}
