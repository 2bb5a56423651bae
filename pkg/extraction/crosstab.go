package extraction

import (
	"context"

	"github.com/gitsby/yarg/pkg/models/domain"
	"github.com/rs/zerolog"
)

// crosstabController pivots a header (column) query and a master (row)
// query into header bands and master bands holding one cell per header row.
type crosstabController struct {
	rt *runtime
}

type facts struct {
	byKey map[[2]string]domain.Row
}

func (c *crosstabController) Extract(ctx context.Context, ec *Context) ([]domain.BandID, error) {
	def := ec.Definition
	settings := domain.Crosstab{}
	if def.Crosstab != nil {
		settings = *def.Crosstab
	}

	headerQ, ok := def.QueryByRole(domain.RoleHeader)
	if !ok {
		return nil, &domain.DefinitionError{Band: def.Name, Reason: "crosstab band has no header query"}
	}
	masterQ, ok := def.QueryByRole(domain.RoleMaster)
	if !ok {
		return nil, &domain.DefinitionError{Band: def.Name, Reason: "crosstab band has no master query"}
	}
	valueQ, hasValues := def.QueryByRole(domain.RoleValue)
	if hasValues && (settings.HeaderKey == "" || settings.MasterKey == "") {
		return nil, &domain.DefinitionError{Band: def.Name, Reason: "crosstab value query needs header and master keys"}
	}

	headers, err := c.rt.load(ctx, def, headerQ, ec.Params)
	if err != nil {
		return nil, err
	}
	masters, err := c.rt.load(ctx, def, masterQ, ec.Params)
	if err != nil {
		return nil, err
	}

	var index *facts
	if hasValues && len(valueQ.LinkFields) == 0 {
		rows, err := c.rt.load(ctx, def, valueQ, ec.Params)
		if err != nil {
			return nil, err
		}
		if index, err = indexFacts(def.Name, rows, settings); err != nil {
			return nil, err
		}
	}

	ids := make([]domain.BandID, 0, len(headers)+len(masters))
	for _, h := range headers {
		b := newBand(ec, h)
		b.Name = def.HeaderBandName()
		ids = append(ids, ec.Tree.Add(ec.Parent, b))
	}
	masterIDs := make([]domain.BandID, len(masters))
	for i, m := range masters {
		b := newBand(ec, m)
		b.Name = def.MasterBandName()
		masterIDs[i] = ec.Tree.Add(ec.Parent, b)
	}

	err = c.rt.fanOut(ctx, len(masters), func(ctx context.Context, i int) error {
		cells := make([]domain.BandID, len(headers))
		for j, h := range headers {
			data, err := c.cell(ctx, ec, settings, masters[i], h, valueQ, hasValues, index)
			if err != nil {
				return err
			}
			cells[j] = ec.Tree.Add(masterIDs[i], newBand(ec, data))
		}
		ec.Tree.Attach(masterIDs[i], cells...)
		return c.rt.extractChildren(ctx, ec, masterIDs[i])
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("band", def.Name).
		Int("headers", len(headers)).
		Int("masters", len(masters)).
		Msg("crosstab extracted")
	return append(ids, masterIDs...), nil
}

// cell builds the data of one master x header cell.
func (c *crosstabController) cell(
	ctx context.Context,
	ec *Context,
	settings domain.Crosstab,
	master, header domain.Row,
	valueQ domain.Query,
	hasValues bool,
	index *facts,
) (domain.Row, error) {
	data := master.Merge(header)
	if !hasValues {
		return data, nil
	}

	var (
		fact  domain.Row
		found bool
	)
	if index != nil {
		mk, err := keyOf(ec.Definition.Name, master, settings.MasterKey)
		if err != nil {
			return domain.Row{}, err
		}
		hk, err := keyOf(ec.Definition.Name, header, settings.HeaderKey)
		if err != nil {
			return domain.Row{}, err
		}
		fact, found = index.byKey[[2]string{mk, hk}]
	} else {
		rows, err := c.cellRows(ctx, ec, data, valueQ)
		if err != nil {
			return domain.Row{}, err
		}
		if len(rows) > 0 {
			fact, found = rows[0], true
		}
	}

	if found {
		return data.Merge(fact), nil
	}
	for _, f := range settings.ValueFields {
		if !data.Has(f) {
			data = data.Set(f, c.rt.cellFill(f))
		}
	}
	return data, nil
}

// cellRows runs the value query for a single cell, linked to the merged
// master and header row on top of the parent band's data.
func (c *crosstabController) cellRows(ctx context.Context, ec *Context, data domain.Row, valueQ domain.Query) ([]domain.Row, error) {
	def := ec.Definition
	row := ec.Tree.Data(ec.Parent).Merge(data)
	linkFields := append(append([]string(nil), def.LinkFields...), valueQ.LinkFields...)
	cellCtx, err := c.rt.builder.BuildLinked(def, ec.Tree, ec.Parent, row, linkFields, ec.External)
	if err != nil {
		return nil, err
	}
	return c.rt.load(ctx, def, valueQ, cellCtx.Params)
}

func indexFacts(band string, rows []domain.Row, settings domain.Crosstab) (*facts, error) {
	idx := &facts{byKey: make(map[[2]string]domain.Row, len(rows))}
	for _, r := range rows {
		mk, err := keyOf(band, r, settings.MasterKey)
		if err != nil {
			return nil, err
		}
		hk, err := keyOf(band, r, settings.HeaderKey)
		if err != nil {
			return nil, err
		}
		k := [2]string{mk, hk}
		if _, dup := idx.byKey[k]; !dup {
			idx.byKey[k] = r
		}
	}
	return idx, nil
}

func keyOf(band string, r domain.Row, field string) (string, error) {
	v, ok := r.Get(field)
	if !ok {
		return "", &MissingLinkFieldError{Field: field, Band: band}
	}
	return v.Key(), nil
}
