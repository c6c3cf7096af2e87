package api

import (
	"context"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/prepcost/internal/models"
	"github.com/starford/prepcost/internal/recipe"
	"github.com/starford/prepcost/internal/session"
)

// Handler holds API route handlers.
type Handler struct {
	sess *session.Session
}

// NewHandler creates a new Handler.
func NewHandler(sess *session.Session) *Handler {
	return &Handler{sess: sess}
}

// ListItems handles GET /api/items.
//
//	@Summary		List catalog items
//	@Tags			items
//	@Produce		json
//	@Param			selectable	query		bool	false	"Hide directly deprecated items"
//	@Success		200			{object}	ItemListResponse
//	@Router			/items [get]
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items := h.sess.Items()
	if ok, _ := strconv.ParseBool(r.URL.Query().Get("selectable")); ok {
		items = models.Selectable(items)
	}
	if items == nil {
		items = []models.Item{}
	}
	writeJSON(w, http.StatusOK, ItemListResponse{Items: items, Total: len(items)})
}

// GetItem handles GET /api/items/{id}.
//
//	@Summary		Get one item with its lines
//	@Tags			items
//	@Produce		json
//	@Param			id	path		string	true	"Item id"
//	@Success		200	{object}	models.Item
//	@Failure		404	{object}	errResponse
//	@Router			/items/{id} [get]
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.sess.Item(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get item", err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// ListBaseItems handles GET /api/base-items.
//
//	@Summary		List density records backing raw items
//	@Tags			items
//	@Produce		json
//	@Success		200	{object}	BaseItemListResponse
//	@Router			/base-items [get]
func (h *Handler) ListBaseItems(w http.ResponseWriter, _ *http.Request) {
	bases := h.sess.BaseItems()
	if bases == nil {
		bases = []models.BaseItem{}
	}
	writeJSON(w, http.StatusOK, BaseItemListResponse{BaseItems: bases})
}

// ItemUnits handles GET /api/items/{id}/units.
//
//	@Summary		Units a recipe line may use for this item
//	@Tags			items
//	@Produce		json
//	@Param			id	path		string	true	"Item id"
//	@Success		200	{object}	UnitsResponse
//	@Failure		404	{object}	errResponse
//	@Router			/items/{id}/units [get]
func (h *Handler) ItemUnits(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.sess.Item(id); err != nil {
		writeError(w, "item units", err)
		return
	}
	writeJSON(w, http.StatusOK, UnitsResponse{Units: h.sess.Normalizer().ValidUnits(id)})
}

// ItemPercentages handles GET /api/items/{id}/percentages.
//
//	@Summary		Labor, COG and LCOG as a share of a price
//	@Tags			items
//	@Produce		json
//	@Param			id		path		string	true	"Item id"
//	@Param			price	query		number	true	"Sell price"
//	@Param			basis	query		string	false	"Pricing basis"	Enums(kg, each)
//	@Success		200		{object}	PercentagesResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/items/{id}/percentages [get]
func (h *Handler) ItemPercentages(w http.ResponseWriter, r *http.Request) {
	it, err := h.sess.Item(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "item percentages", err)
		return
	}
	q := r.URL.Query()
	var price *float64
	if raw := q.Get("price"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("price must be a number"))
			return
		}
		price = &v
	}
	basis := recipe.PricingBasis(q.Get("basis"))
	if basis != "" && basis != recipe.BasisKilogram && basis != recipe.BasisEach {
		writeJSON(w, http.StatusBadRequest, errorBody("basis must be kg or each"))
		return
	}
	p := h.sess.Percentages(price, it, basis)
	writeJSON(w, http.StatusOK, PercentagesResponse{Percentages: p, Applicable: p.Applicable()})
}

// TotalGrams handles POST /api/recipes/total-grams.
//
//	@Summary		Ingredient mass of a set of lines
//	@Tags			recipes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TotalGramsRequest	true	"Lines"
//	@Success		200		{object}	TotalGramsResponse
//	@Failure		400		{object}	errResponse
//	@Router			/recipes/total-grams [post]
func (h *Handler) TotalGrams(w http.ResponseWriter, r *http.Request) {
	var req TotalGramsRequest
	if !decode(w, r, &req) {
		return
	}
	g := h.sess.Normalizer(req.Items...).TotalGrams(req.Lines)
	writeJSON(w, http.StatusOK, TotalGramsResponse{Grams: g})
}

// ValidateYield handles POST /api/recipes/validate-yield.
//
//	@Summary		Check an item's yield against its ingredients
//	@Tags			recipes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ValidateYieldRequest	true	"Item and optional mode"
//	@Success		200		{object}	ValidateYieldResponse
//	@Failure		400		{object}	errResponse
//	@Router			/recipes/validate-yield [post]
func (h *Handler) ValidateYield(w http.ResponseWriter, r *http.Request) {
	var req ValidateYieldRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Mode != "" && !req.Mode.Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody("mode must be block, notify or permit"))
		return
	}
	out := h.sess.ValidateYield(r.Context(), req.Item, req.Mode)
	writeJSON(w, http.StatusOK, ValidateYieldResponse{
		Outcome: out,
		Action:  out.Action(),
		Message: out.Message(),
	})
}

// OpenSession handles POST /api/session/open.
//
//	@Summary		Start editing; returns the items to edit
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	ItemListResponse
//	@Failure		403	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Router			/session/open [post]
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	items, err := h.sess.Open()
	if err != nil {
		writeError(w, "open session", err)
		return
	}
	writeJSON(w, http.StatusOK, ItemListResponse{Items: items, Total: len(items)})
}

// CancelSession handles POST /api/session/cancel.
//
//	@Summary		Discard edits and restore the snapshot
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	ItemListResponse
//	@Failure		403	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Router			/session/cancel [post]
func (h *Handler) CancelSession(w http.ResponseWriter, r *http.Request) {
	items, err := h.sess.Cancel()
	if err != nil {
		writeError(w, "cancel session", err)
		return
	}
	writeJSON(w, http.StatusOK, ItemListResponse{Items: items, Total: len(items)})
}

// Diff handles POST /api/session/diff.
//
//	@Summary		Preview the operations a save would apply
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ItemsRequest	true	"Edited items"
//	@Success		200		{object}	DiffResponse
//	@Failure		403		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/session/diff [post]
func (h *Handler) Diff(w http.ResponseWriter, r *http.Request) {
	var req ItemsRequest
	if !decode(w, r, &req) {
		return
	}
	b, err := h.sess.Diff(req.Items)
	if err != nil {
		writeError(w, "diff", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Save handles POST /api/session/save.
//
// Yield violations in notify mode are accepted only for items listed in
// Confirm; any other violation answers 409 with the outcome so the client
// can ask and resubmit. New items sent without a key are keyed by their
// position in Items, so the ref in a 409 stays valid for the resubmission.
//
//	@Summary		Validate and persist the edited items
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SaveRequest	true	"Edited items and confirmations"
//	@Success		200		{object}	SaveResponse
//	@Failure		403		{object}	errResponse
//	@Failure		409		{object}	YieldErrorResponse
//	@Failure		422		{object}	YieldErrorResponse
//	@Failure		500		{object}	errResponse
//	@Router			/session/save [post]
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if !decode(w, r, &req) {
		return
	}
	keyNewItems(req.Items)
	confirm := session.ConfirmFunc(func(_ context.Context, o recipe.Outcome) (bool, error) {
		return slices.Contains(req.Confirm, o.ItemRef), nil
	})
	res, err := h.sess.Save(r.Context(), req.Items, confirm)
	if err != nil {
		writeError(w, "save", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// keyNewItems gives every new item without a client key one derived from its
// index in the request.
func keyNewItems(items []models.Item) {
	for i := range items {
		if items[i].IsNew && items[i].Key == "" {
			items[i].Key = "new-" + strconv.Itoa(i)
		}
	}
}
