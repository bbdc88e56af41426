// Package mcp exposes the CRM operation surface as MCP tools over stdio.
package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/estatetools/propstack-mcp/internal/crm"
	"github.com/estatetools/propstack-mcp/pkg/client"
)

// Server wraps the MCP SDK server around a CRM service.
type Server struct {
	MCPServer *sdkmcp.Server
	service   *crm.Service
}

// NewServer creates an MCP server with the full CRM tool set registered.
func NewServer(service *crm.Service, version string) *Server {
	s := &Server{service: service}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "propstack-mcp", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves MCP over the given transport until the context ends.
func (s *Server) Run(ctx context.Context, transport sdkmcp.Transport) error {
	return s.MCPServer.Run(ctx, transport)
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "search_contacts",
		Description: "Search CRM contacts by free text or email.",
	}, s.handleSearchContacts)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_contact",
		Description: "Fetch one contact by id.",
	}, s.handleGetContact)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "create_contact",
		Description: "Create a contact and return the stored record.",
	}, s.handleCreateContact)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "update_contact",
		Description: "Update a contact's fields and return the stored record.",
	}, s.handleUpdateContact)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "search_properties",
		Description: "Search property units with optional marketing type, city, status, price and room filters.",
	}, s.handleSearchProperties)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_property",
		Description: "Fetch one property unit by id.",
	}, s.handleGetProperty)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "create_property",
		Description: "Create a property unit and return the stored record.",
	}, s.handleCreateProperty)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "update_property",
		Description: "Update a property unit's fields and return the stored record.",
	}, s.handleUpdateProperty)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_deals",
		Description: "List deals, optionally scoped to one contact.",
	}, s.handleListDeals)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_deal",
		Description: "Fetch one deal by id.",
	}, s.handleGetDeal)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "update_deal",
		Description: "Update a deal's name, stage, or price.",
	}, s.handleUpdateDeal)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_deal_stages",
		Description: "List the pipeline stage names.",
	}, s.handleListDealStages)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_tasks",
		Description: "List tasks, optionally scoped to one contact.",
	}, s.handleListTasks)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "create_task",
		Description: "Create a task, optionally linked to a contact.",
	}, s.handleCreateTask)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_search_profiles",
		Description: "List saved searches, optionally scoped to one contact.",
	}, s.handleListSearchProfiles)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "match_property",
		Description: "Rank every saved search against one property. Returns scored, explainable matches (top 20) plus the total match count.",
	}, s.handleMatchProperty)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "pipeline_report",
		Description: "Aggregate all deals into stage buckets with counts, value sums, and a stale-deal list. Flags sections that failed to load and warns when pagination capped the sample.",
	}, s.handlePipelineReport)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "contact_dossier",
		Description: "Assemble one contact's deals, tasks, and saved searches. Sections that failed to load are flagged, available ones still render.",
	}, s.handleContactDossier)
}

// --- Tool input/output types ---

type searchContactsInput struct {
	Query string `json:"query,omitempty" jsonschema:"free-text name or email search"`
	Email string `json:"email,omitempty" jsonschema:"exact email filter"`
}

type idInput struct {
	ID int64 `json:"id" jsonschema:"record id"`
}

type createContactInput struct {
	crm.ContactInput
}

type updateContactInput struct {
	ID int64 `json:"id" jsonschema:"contact id"`
	crm.ContactInput
}

type searchPropertiesInput struct {
	MarketingType string   `json:"marketing_type,omitempty" jsonschema:"BUY or RENT"`
	Cities        []string `json:"cities,omitempty" jsonschema:"city filter, any match"`
	Status        string   `json:"status,omitempty" jsonschema:"property status filter"`
	PriceFrom     *float64 `json:"price_from,omitempty" jsonschema:"minimum price"`
	PriceTo       *float64 `json:"price_to,omitempty" jsonschema:"maximum price"`
	RoomsFrom     *float64 `json:"rooms_from,omitempty" jsonschema:"minimum room count"`
}

type createPropertyInput struct {
	crm.PropertyInput
}

type updatePropertyInput struct {
	ID int64 `json:"id" jsonschema:"property id"`
	crm.PropertyInput
}

type listDealsInput struct {
	ClientID *int64 `json:"client_id,omitempty" jsonschema:"restrict to one contact's deals"`
}

type updateDealInput struct {
	ID int64 `json:"id" jsonschema:"deal id"`
	crm.DealInput
}

type listTasksInput struct {
	ClientID *int64 `json:"client_id,omitempty" jsonschema:"restrict to one contact's tasks"`
}

type listSearchProfilesInput struct {
	ClientID *int64 `json:"client_id,omitempty" jsonschema:"restrict to one contact's saved searches"`
}

type createTaskInput struct {
	crm.TaskInput
}

type emptyInput struct{}

type dealStagesOutput struct {
	Stages []crm.DealStage `json:"stages"`
}

// --- Tool handlers ---

func (s *Server) handleSearchContacts(ctx context.Context, _ *sdkmcp.CallToolRequest, input searchContactsInput) (*sdkmcp.CallToolResult, *crm.List[crm.Contact], error) {
	list, err := s.service.SearchContacts(ctx, crm.ContactFilters{Query: input.Query, Email: input.Email})
	if err != nil {
		return nil, nil, toolError("search_contacts", err)
	}
	return nil, list, nil
}

func (s *Server) handleGetContact(ctx context.Context, _ *sdkmcp.CallToolRequest, input idInput) (*sdkmcp.CallToolResult, *crm.Contact, error) {
	contact, err := s.service.GetContact(ctx, input.ID)
	if err != nil {
		return nil, nil, toolError("get_contact", err)
	}
	return nil, contact, nil
}

func (s *Server) handleCreateContact(ctx context.Context, _ *sdkmcp.CallToolRequest, input createContactInput) (*sdkmcp.CallToolResult, *crm.Contact, error) {
	contact, err := s.service.CreateContact(ctx, input.ContactInput)
	if err != nil {
		return nil, nil, toolError("create_contact", err)
	}
	return nil, contact, nil
}

func (s *Server) handleUpdateContact(ctx context.Context, _ *sdkmcp.CallToolRequest, input updateContactInput) (*sdkmcp.CallToolResult, *crm.Contact, error) {
	contact, err := s.service.UpdateContact(ctx, input.ID, input.ContactInput)
	if err != nil {
		return nil, nil, toolError("update_contact", err)
	}
	return nil, contact, nil
}

func (s *Server) handleSearchProperties(ctx context.Context, _ *sdkmcp.CallToolRequest, input searchPropertiesInput) (*sdkmcp.CallToolResult, *crm.List[crm.Property], error) {
	list, err := s.service.SearchProperties(ctx, crm.PropertyFilters{
		MarketingType: input.MarketingType,
		Cities:        input.Cities,
		Status:        input.Status,
		PriceFrom:     input.PriceFrom,
		PriceTo:       input.PriceTo,
		RoomsFrom:     input.RoomsFrom,
	})
	if err != nil {
		return nil, nil, toolError("search_properties", err)
	}
	return nil, list, nil
}

func (s *Server) handleGetProperty(ctx context.Context, _ *sdkmcp.CallToolRequest, input idInput) (*sdkmcp.CallToolResult, *crm.Property, error) {
	property, err := s.service.GetProperty(ctx, input.ID)
	if err != nil {
		return nil, nil, toolError("get_property", err)
	}
	return nil, property, nil
}

func (s *Server) handleCreateProperty(ctx context.Context, _ *sdkmcp.CallToolRequest, input createPropertyInput) (*sdkmcp.CallToolResult, *crm.Property, error) {
	property, err := s.service.CreateProperty(ctx, input.PropertyInput)
	if err != nil {
		return nil, nil, toolError("create_property", err)
	}
	return nil, property, nil
}

func (s *Server) handleUpdateProperty(ctx context.Context, _ *sdkmcp.CallToolRequest, input updatePropertyInput) (*sdkmcp.CallToolResult, *crm.Property, error) {
	property, err := s.service.UpdateProperty(ctx, input.ID, input.PropertyInput)
	if err != nil {
		return nil, nil, toolError("update_property", err)
	}
	return nil, property, nil
}

func (s *Server) handleListDeals(ctx context.Context, _ *sdkmcp.CallToolRequest, input listDealsInput) (*sdkmcp.CallToolResult, *crm.List[crm.Deal], error) {
	list, err := s.service.ListDeals(ctx, input.ClientID)
	if err != nil {
		return nil, nil, toolError("list_deals", err)
	}
	return nil, list, nil
}

func (s *Server) handleGetDeal(ctx context.Context, _ *sdkmcp.CallToolRequest, input idInput) (*sdkmcp.CallToolResult, *crm.Deal, error) {
	deal, err := s.service.GetDeal(ctx, input.ID)
	if err != nil {
		return nil, nil, toolError("get_deal", err)
	}
	return nil, deal, nil
}

func (s *Server) handleUpdateDeal(ctx context.Context, _ *sdkmcp.CallToolRequest, input updateDealInput) (*sdkmcp.CallToolResult, *crm.Deal, error) {
	deal, err := s.service.UpdateDeal(ctx, input.ID, input.DealInput)
	if err != nil {
		return nil, nil, toolError("update_deal", err)
	}
	return nil, deal, nil
}

func (s *Server) handleListDealStages(ctx context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, dealStagesOutput, error) {
	stages, err := s.service.ListDealStages(ctx)
	if err != nil {
		return nil, dealStagesOutput{}, toolError("list_deal_stages", err)
	}
	return nil, dealStagesOutput{Stages: stages}, nil
}

func (s *Server) handleListTasks(ctx context.Context, _ *sdkmcp.CallToolRequest, input listTasksInput) (*sdkmcp.CallToolResult, *crm.List[crm.Task], error) {
	list, err := s.service.ListTasks(ctx, input.ClientID)
	if err != nil {
		return nil, nil, toolError("list_tasks", err)
	}
	return nil, list, nil
}

func (s *Server) handleCreateTask(ctx context.Context, _ *sdkmcp.CallToolRequest, input createTaskInput) (*sdkmcp.CallToolResult, *crm.Task, error) {
	task, err := s.service.CreateTask(ctx, input.TaskInput)
	if err != nil {
		return nil, nil, toolError("create_task", err)
	}
	return nil, task, nil
}

func (s *Server) handleListSearchProfiles(ctx context.Context, _ *sdkmcp.CallToolRequest, input listSearchProfilesInput) (*sdkmcp.CallToolResult, *crm.List[crm.SearchProfile], error) {
	list, err := s.service.ListSearchProfiles(ctx, input.ClientID)
	if err != nil {
		return nil, nil, toolError("list_search_profiles", err)
	}
	return nil, list, nil
}

func (s *Server) handleMatchProperty(ctx context.Context, _ *sdkmcp.CallToolRequest, input idInput) (*sdkmcp.CallToolResult, *crm.PropertyMatches, error) {
	matches, err := s.service.MatchProperty(ctx, input.ID)
	if err != nil {
		return nil, nil, toolError("match_property", err)
	}
	return nil, matches, nil
}

func (s *Server) handlePipelineReport(ctx context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, *crm.PipelineReport, error) {
	report, err := s.service.BuildPipelineReport(ctx)
	if err != nil {
		return nil, nil, toolError("pipeline_report", err)
	}
	return nil, report, nil
}

func (s *Server) handleContactDossier(ctx context.Context, _ *sdkmcp.CallToolRequest, input idInput) (*sdkmcp.CallToolResult, *crm.ContactDossier, error) {
	dossier, err := s.service.BuildContactDossier(ctx, input.ID)
	if err != nil {
		return nil, nil, toolError("contact_dossier", err)
	}
	return nil, dossier, nil
}

// toolError renders a classified failure for the agent: the taxonomy
// kind plus the failing path, resource id, and field messages when
// available, so the agent can explain the failure without transport
// details leaking through.
func toolError(tool string, err error) error {
	apiErr, ok := client.AsAPIError(err)
	if !ok {
		return fmt.Errorf("%s: %w", tool, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s failed (%s)", tool, apiErr.Kind)
	if apiErr.Path != "" {
		fmt.Fprintf(&b, " at %s", apiErr.Path)
	}
	if apiErr.ResourceID != "" {
		fmt.Fprintf(&b, ", resource %s", apiErr.ResourceID)
	}
	if apiErr.Message != "" {
		fmt.Fprintf(&b, ": %s", apiErr.Message)
	}
	fields := make([]string, 0, len(apiErr.Fields))
	for field := range apiErr.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		fmt.Fprintf(&b, "; %s: %s", field, strings.Join(apiErr.Fields[field], ", "))
	}
	return fmt.Errorf("%s", b.String())
}
