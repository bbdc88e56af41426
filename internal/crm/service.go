package crm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/estatetools/propstack-mcp/pkg/client"
	"github.com/estatetools/propstack-mcp/pkg/logging"
	"github.com/estatetools/propstack-mcp/pkg/matching"
	"github.com/estatetools/propstack-mcp/pkg/pagination"
	"github.com/estatetools/propstack-mcp/pkg/pipeline"
)

// Endpoint paths.
const (
	pathContacts       = "/v1/contacts"
	pathUnits          = "/v1/units"
	pathDeals          = "/v1/deals"
	pathDealStages     = "/v1/deal_stages"
	pathTasks          = "/v1/tasks"
	pathSearchProfiles = "/v1/search_profiles"
)

// Options tunes the service beyond the client's own configuration.
type Options struct {
	Walk     pagination.Config
	Pipeline pipeline.Config
	Weights  matching.Weights
}

// DefaultOptions returns standard service options.
func DefaultOptions() Options {
	return Options{
		Walk:    pagination.DefaultConfig(),
		Weights: matching.DefaultWeights(),
	}
}

// Service exposes the CRM operation surface. Passthrough operations are
// thin typed wrappers over the request core; composite operations
// orchestrate several calls (see composite.go).
type Service struct {
	client *client.Client
	opts   Options
	logger zerolog.Logger
}

// NewService creates a CRM service on top of an API client.
func NewService(c *client.Client, opts Options) *Service {
	if opts.Walk.MaxItems <= 0 {
		opts.Walk = pagination.DefaultConfig()
	}
	zero := matching.Weights{}
	if opts.Weights == zero {
		opts.Weights = matching.DefaultWeights()
	}
	return &Service{
		client: c,
		opts:   opts,
		logger: logging.NewLogger("crm-service"),
	}
}

// ContactFilters narrows contact searches.
type ContactFilters struct {
	Query string `json:"query,omitempty"` // free-text name/email search
	Email string `json:"email,omitempty"`
}

// PropertyFilters narrows property searches.
type PropertyFilters struct {
	MarketingType string   `json:"marketing_type,omitempty"`
	Cities        []string `json:"cities,omitempty"`
	Status        string   `json:"status,omitempty"`
	PriceFrom     *float64 `json:"price_from,omitempty"`
	PriceTo       *float64 `json:"price_to,omitempty"`
	RoomsFrom     *float64 `json:"rooms_from,omitempty"`
}

// ContactInput carries contact fields for create/update.
type ContactInput struct {
	Salutation string `json:"salutation,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// PropertyInput carries property fields for create/update.
type PropertyInput struct {
	Name          string   `json:"name,omitempty"`
	Status        string   `json:"status,omitempty"`
	MarketingType string   `json:"marketing_type,omitempty"`
	RSType        string   `json:"rs_type,omitempty"`
	City          string   `json:"city,omitempty"`
	ZipCode       string   `json:"zip_code,omitempty"`
	Street        string   `json:"street,omitempty"`
	Price         *float64 `json:"price,omitempty"`
	BaseRent      *float64 `json:"base_rent,omitempty"`
	Rooms         *float64 `json:"number_of_rooms,omitempty"`
	LivingSpace   *float64 `json:"living_space,omitempty"`
}

// DealInput carries deal fields for update.
type DealInput struct {
	Name    string   `json:"name,omitempty"`
	StageID *int64   `json:"deal_stage_id,omitempty"`
	Price   *float64 `json:"price,omitempty"`
}

// TaskInput carries task fields for create.
type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ClientID    *int64 `json:"client_id,omitempty"`
	DueDate     string `json:"due_date,omitempty"` // ISO 8601 date
}

// SearchContacts pages through contacts matching the filters.
func (s *Service) SearchContacts(ctx context.Context, filters ContactFilters) (*List[Contact], error) {
	query := client.Query{}
	if filters.Query != "" {
		query.Set("q", filters.Query)
	}
	if filters.Email != "" {
		query.Set("email", filters.Email)
	}
	return walkList[Contact](ctx, s, pathContacts, query)
}

// GetContact fetches one contact by id.
func (s *Service) GetContact(ctx context.Context, id int64) (*Contact, error) {
	return getEntity[Contact](ctx, s, fmt.Sprintf("%s/%d", pathContacts, id))
}

// CreateContact creates a contact and returns the stored record.
func (s *Service) CreateContact(ctx context.Context, input ContactInput) (*Contact, error) {
	return writeEntity[Contact](ctx, s, http.MethodPost, pathContacts, map[string]any{"client": input})
}

// UpdateContact updates a contact and returns the stored record.
func (s *Service) UpdateContact(ctx context.Context, id int64, input ContactInput) (*Contact, error) {
	return writeEntity[Contact](ctx, s, http.MethodPut, fmt.Sprintf("%s/%d", pathContacts, id), map[string]any{"client": input})
}

// SearchProperties pages through units matching the filters.
func (s *Service) SearchProperties(ctx context.Context, filters PropertyFilters) (*List[Property], error) {
	query := client.Query{}
	if filters.MarketingType != "" {
		query.Set("marketing_type", filters.MarketingType)
	}
	if len(filters.Cities) > 0 {
		query.Set("cities", filters.Cities)
	}
	if filters.Status != "" {
		query.Set("status", filters.Status)
	}
	if filters.PriceFrom != nil {
		query.Set("price_from", *filters.PriceFrom)
	}
	if filters.PriceTo != nil {
		query.Set("price_to", *filters.PriceTo)
	}
	if filters.RoomsFrom != nil {
		query.Set("number_of_rooms_from", *filters.RoomsFrom)
	}
	return walkList[Property](ctx, s, pathUnits, query)
}

// GetProperty fetches one unit by id.
func (s *Service) GetProperty(ctx context.Context, id int64) (*Property, error) {
	return getEntity[Property](ctx, s, fmt.Sprintf("%s/%d", pathUnits, id))
}

// CreateProperty creates a unit and returns the stored record.
func (s *Service) CreateProperty(ctx context.Context, input PropertyInput) (*Property, error) {
	return writeEntity[Property](ctx, s, http.MethodPost, pathUnits, map[string]any{"property": input})
}

// UpdateProperty updates a unit and returns the stored record.
func (s *Service) UpdateProperty(ctx context.Context, id int64, input PropertyInput) (*Property, error) {
	return writeEntity[Property](ctx, s, http.MethodPut, fmt.Sprintf("%s/%d", pathUnits, id), map[string]any{"property": input})
}

// ListDeals pages through deals, optionally scoped to one contact.
func (s *Service) ListDeals(ctx context.Context, clientID *int64) (*List[Deal], error) {
	query := client.Query{}
	if clientID != nil {
		query.Set("client_id", *clientID)
	}
	return walkList[Deal](ctx, s, pathDeals, query)
}

// GetDeal fetches one deal by id.
func (s *Service) GetDeal(ctx context.Context, id int64) (*Deal, error) {
	return getEntity[Deal](ctx, s, fmt.Sprintf("%s/%d", pathDeals, id))
}

// UpdateDeal updates a deal and returns the stored record.
func (s *Service) UpdateDeal(ctx context.Context, id int64, input DealInput) (*Deal, error) {
	return writeEntity[Deal](ctx, s, http.MethodPut, fmt.Sprintf("%s/%d", pathDeals, id), map[string]any{"deal": input})
}

// ListDealStages fetches the stage id-to-name lookup.
func (s *Service) ListDealStages(ctx context.Context) ([]DealStage, error) {
	payload, err := s.client.Get(ctx, pathDealStages, client.Query{})
	if err != nil {
		return nil, err
	}
	var stages []DealStage
	if err := payload.DecodeItems(&stages); err != nil {
		return nil, fmt.Errorf("decode deal stages: %w", err)
	}
	return stages, nil
}

// ListTasks pages through tasks, optionally scoped to one contact.
func (s *Service) ListTasks(ctx context.Context, clientID *int64) (*List[Task], error) {
	query := client.Query{}
	if clientID != nil {
		query.Set("client_id", *clientID)
	}
	return walkList[Task](ctx, s, pathTasks, query)
}

// CreateTask creates a task and returns the stored record.
func (s *Service) CreateTask(ctx context.Context, input TaskInput) (*Task, error) {
	return writeEntity[Task](ctx, s, http.MethodPost, pathTasks, map[string]any{"task": input})
}

// ListSearchProfiles pages through saved searches, optionally scoped to
// one contact.
func (s *Service) ListSearchProfiles(ctx context.Context, clientID *int64) (*List[SearchProfile], error) {
	query := client.Query{}
	if clientID != nil {
		query.Set("client_id", *clientID)
	}
	return walkList[SearchProfile](ctx, s, pathSearchProfiles, query)
}

// walkList runs a pagination walk and decodes the accumulated items.
func walkList[T any](ctx context.Context, s *Service, path string, query client.Query) (*List[T], error) {
	coll, err := pagination.Walk(ctx, s.client, client.Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
	}, s.opts.Walk)
	if err != nil {
		return nil, err
	}

	list := &List[T]{
		Total:      coll.Total,
		TotalKnown: coll.TotalKnown,
		Truncated:  coll.Truncated,
	}
	if err := coll.Decode(&list.Items); err != nil {
		return nil, fmt.Errorf("decode %s items: %w", path, err)
	}
	if !list.TotalKnown {
		list.Total = len(list.Items)
	}
	return list, nil
}

// getEntity fetches and decodes a single record.
func getEntity[T any](ctx context.Context, s *Service, path string) (*T, error) {
	payload, err := s.client.Get(ctx, path, client.Query{})
	if err != nil {
		return nil, err
	}
	var entity T
	if err := payload.Decode(&entity); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &entity, nil
}

// writeEntity sends a create/update and decodes the stored record. A
// 204 answer returns nil without error: the write took effect but the
// upstream chose not to echo the record.
func writeEntity[T any](ctx context.Context, s *Service, method, path string, body any) (*T, error) {
	payload, err := s.client.Do(ctx, client.Request{Method: method, Path: path, Body: body})
	if err != nil {
		return nil, err
	}
	if payload.NoContent {
		return nil, nil
	}
	var entity T
	if err := payload.Decode(&entity); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &entity, nil
}
