// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes recipe costing tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/prepcost/internal/apperr"
	"github.com/starford/prepcost/internal/models"
	"github.com/starford/prepcost/internal/recipe"
	"github.com/starford/prepcost/internal/session"
)

// Server wraps the MCP server with the costing tools.
type Server struct {
	mcp  *server.MCPServer
	sess *session.Session
}

// New creates a new MCP server with all tools registered. sess must be
// loaded.
func New(sess *session.Session, version string) *Server {
	s := &Server{sess: sess}

	s.mcp = server.NewMCPServer(
		"prepcost",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_items",
		mcp.WithDescription("List catalog items with their kind and deprecation state."),
		mcp.WithBoolean("selectable", mcp.Description("Hide directly deprecated items")),
	), s.listItems)

	s.mcp.AddTool(mcp.NewTool("get_item",
		mcp.WithDescription("Read one item with its recipe lines."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
	), s.getItem)

	s.mcp.AddTool(mcp.NewTool("total_grams",
		mcp.WithDescription("Total ingredient mass of an item's recipe in grams. "+
			"See the "+unitsURI+" resource for how units convert."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
	), s.totalGrams)

	s.mcp.AddTool(mcp.NewTool("validate_yield",
		mcp.WithDescription("Check that an item's declared yield does not weigh more than its ingredients."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
		mcp.WithString("mode", mcp.Description("Enforcement mode; defaults to the configured one"),
			mcp.Enum(string(recipe.ModeBlock), string(recipe.ModeNotify), string(recipe.ModePermit))),
	), s.validateYield)

	s.mcp.AddTool(mcp.NewTool("item_percentages",
		mcp.WithDescription("Labor, cost of goods and their sum as a percentage of a sell price."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
		mcp.WithNumber("price", mcp.Required(), mcp.Description("Sell price")),
		mcp.WithString("basis", mcp.Description("Price basis"),
			mcp.Enum(string(recipe.BasisKilogram), string(recipe.BasisEach))),
	), s.itemPercentages)

	s.mcp.AddTool(mcp.NewTool("reload_catalog",
		mcp.WithDescription("Re-read the catalog from the store."),
	), s.reloadCatalog)

	s.mcp.AddResource(
		mcp.NewResource(unitsURI, "Recipe units",
			mcp.WithResourceDescription("How recipe quantities convert to grams."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readUnitsResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type itemSummary struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Kind        models.ItemKind    `json:"kind"`
	Deprecation models.Deprecation `json:"deprecation"`
	Lines       int                `json:"lines"`
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) item(req mcp.CallToolRequest) (models.Item, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return models.Item{}, err
	}
	it, err := s.sess.Item(id)
	if errors.Is(err, apperr.ErrNotFound) {
		return models.Item{}, fmt.Errorf("item not found: %s", id)
	}
	return it, err
}

func (s *Server) listItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items := s.sess.Items()
	if req.GetBool("selectable", false) {
		items = models.Selectable(items)
	}
	out := make([]itemSummary, 0, len(items))
	for _, it := range items {
		out = append(out, itemSummary{
			ID:          it.ID,
			Name:        it.Name,
			Kind:        it.Kind,
			Deprecation: it.Deprecation,
			Lines:       len(it.Lines),
		})
	}
	return jsonResult(out)
}

func (s *Server) getItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	it, err := s.item(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(it)
}

func (s *Server) totalGrams(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	it, err := s.item(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]float64{"grams": s.sess.TotalGrams(it.Lines)})
}

func (s *Server) validateYield(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	it, err := s.item(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode := recipe.Mode(req.GetString("mode", ""))
	if mode != "" && !mode.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown mode: %s", mode)), nil
	}
	out := s.sess.ValidateYield(ctx, it, mode)
	return jsonResult(map[string]any{
		"outcome": out,
		"action":  out.Action(),
		"message": out.Message(),
	})
}

func (s *Server) itemPercentages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	it, err := s.item(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	price, err := req.RequireFloat("price")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	basis := recipe.PricingBasis(req.GetString("basis", ""))
	p := s.sess.Percentages(&price, it, basis)
	if !p.Applicable() {
		return mcp.NewToolResultText("not applicable: no cost breakdown for this item or no positive price"), nil
	}
	return jsonResult(p)
}

func (s *Server) reloadCatalog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.sess.Load(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("loaded %d items", len(s.sess.Items()))), nil
}

func (s *Server) readUnitsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      unitsURI,
			MIMEType: "text/markdown",
			Text:     UnitsReference(),
		},
	}, nil
}
