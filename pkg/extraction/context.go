package extraction

import (
	"regexp"

	"github.com/gitsby/yarg/pkg/models/domain"
)

var reference = regexp.MustCompile(`^\$\{\s*([A-Za-z_][A-Za-z0-9_.]*)\s*\}$`)

// Context is the transient input of one controller call.
type Context struct {
	Definition *domain.BandDefinition
	Tree       *domain.Tree
	Parent     domain.BandID
	External   domain.Params
	Params     domain.Params
}

// ContextBuilder computes the effective parameters of a band: external
// parameters, overridden by the band's static parameters, overridden by the
// values of the link fields taken from the parent row.
type ContextBuilder interface {
	Build(def *domain.BandDefinition, tree *domain.Tree, parent domain.BandID, external domain.Params) (*Context, error)
	// BuildLinked reads link values from row instead of the parent band's data.
	BuildLinked(def *domain.BandDefinition, tree *domain.Tree, parent domain.BandID, row domain.Row,
		linkFields []string, external domain.Params) (*Context, error)
}

type contextBuilder struct{}

func NewContextBuilder() ContextBuilder {
	return contextBuilder{}
}

func (b contextBuilder) Build(
	def *domain.BandDefinition,
	tree *domain.Tree,
	parent domain.BandID,
	external domain.Params,
) (*Context, error) {
	return b.BuildLinked(def, tree, parent, tree.Data(parent), def.LinkFields, external)
}

func (contextBuilder) BuildLinked(
	def *domain.BandDefinition,
	tree *domain.Tree,
	parent domain.BandID,
	row domain.Row,
	linkFields []string,
	external domain.Params,
) (*Context, error) {
	params := make(domain.Params, len(external)+len(def.Parameters)+len(linkFields))
	for k, v := range external {
		params[k] = v
	}

	for name, v := range def.Parameters {
		resolved, err := resolveStatic(def.Name, v, external)
		if err != nil {
			return nil, err
		}
		params[name] = resolved
	}

	for _, field := range linkFields {
		v, ok := row.Get(field)
		if !ok {
			return nil, &MissingLinkFieldError{Field: field, Band: def.Name}
		}
		params[field] = v
	}

	return &Context{
		Definition: def,
		Tree:       tree,
		Parent:     parent,
		External:   external,
		Params:     params,
	}, nil
}

// resolveStatic expands a "${name}" static parameter from the external parameters.
func resolveStatic(band string, v domain.Value, external domain.Params) (domain.Value, error) {
	if v.Kind() != domain.KindText {
		return v, nil
	}
	m := reference.FindStringSubmatch(v.Str())
	if m == nil {
		return v, nil
	}
	ext, ok := external[m[1]]
	if !ok {
		return domain.Null, &MissingParameterError{Name: m[1], Band: band}
	}
	return ext, nil
}
