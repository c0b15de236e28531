package gateway

import (
	"time"

	"github.com/nulzo/tier-router/pkg/api"
)

// catalogEpoch is the fixed creation time reported for built-in entries.
var catalogEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()

var builtinCatalog = []api.Model{
	{ID: "gpt-4o", OwnedBy: "openai"},
	{ID: "gpt-4o-mini", OwnedBy: "openai"},
	{ID: "gpt-3.5-turbo", OwnedBy: "openai"},
	{ID: "claude-3-5-sonnet-20241022", OwnedBy: "anthropic"},
	{ID: "claude-3-sonnet-20240229", OwnedBy: "anthropic"},
	{ID: "claude-3-haiku-20240307", OwnedBy: "anthropic"},
}

// Catalog is the static model list served by the models endpoint. It is
// independent of routing: listing a model does not make it routable.
type Catalog struct {
	models []api.Model
}

// NewCatalog uses entries when given, otherwise the built-in list.
func NewCatalog(entries []api.Model) *Catalog {
	src := entries
	if len(src) == 0 {
		src = builtinCatalog
	}
	models := make([]api.Model, 0, len(src))
	for _, m := range src {
		if m.ID == "" {
			continue
		}
		m.Object = "model"
		if m.Created == 0 {
			m.Created = catalogEpoch
		}
		models = append(models, m)
	}
	return &Catalog{models: models}
}

func (c *Catalog) List() api.ModelList {
	data := make([]api.Model, len(c.models))
	copy(data, c.models)
	return api.ModelList{Object: "list", Data: data}
}

func (c *Catalog) Get(id string) (api.Model, bool) {
	for _, m := range c.models {
		if m.ID == id {
			return m, true
		}
	}
	return api.Model{}, false
}
