package api

import (
	"github.com/starford/prepcost/internal/models"
	"github.com/starford/prepcost/internal/recipe"
	"github.com/starford/prepcost/internal/recipediff"
	"github.com/starford/prepcost/internal/session"
)

// ItemListResponse wraps the catalog listing.
type ItemListResponse struct {
	Items []models.Item `json:"items" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// BaseItemListResponse lists the density records.
type BaseItemListResponse struct {
	BaseItems []models.BaseItem `json:"base_items" validate:"required"`
}

// UnitsResponse lists the units a recipe line may use for an item.
type UnitsResponse struct {
	Units []string `json:"units" validate:"required"`
}

// PercentagesResponse carries cost ratios; nil fields mean not applicable.
type PercentagesResponse struct {
	recipe.Percentages
	Applicable bool `json:"applicable"`
}

// TotalGramsRequest asks for the ingredient mass of a set of lines. Items
// holds unsaved items the lines may reference by key.
type TotalGramsRequest struct {
	Lines []models.RecipeLine `json:"lines" validate:"required"`
	Items []models.Item       `json:"items,omitempty"`
}

// TotalGramsResponse is the normalized mass.
type TotalGramsResponse struct {
	Grams float64 `json:"grams" example:"1000"`
}

// ValidateYieldRequest checks one item under an optional mode.
type ValidateYieldRequest struct {
	Item models.Item `json:"item" validate:"required"`
	Mode recipe.Mode `json:"mode,omitempty" example:"notify"`
}

// ValidateYieldResponse is the outcome with the action it implies.
type ValidateYieldResponse struct {
	recipe.Outcome
	Action  recipe.Action `json:"action"`
	Message string        `json:"message"`
}

// ItemsRequest carries an edited item collection.
type ItemsRequest struct {
	Items []models.Item `json:"items" validate:"required"`
}

// SaveRequest carries the edited items and the refs of items whose yield
// violation the user already accepted.
type SaveRequest struct {
	Items   []models.Item `json:"items" validate:"required"`
	Confirm []string      `json:"confirm,omitempty"`
}

// DiffResponse is the pending batch.
type DiffResponse = recipediff.Batch

// SaveResponse is the finished save run.
type SaveResponse = session.Result

// YieldErrorResponse is returned when a yield check stops a save.
type YieldErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Outcome recipe.Outcome `json:"outcome"`
}
