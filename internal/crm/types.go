// Package crm provides typed operations against the Propstack API,
// built on the resilient request core.
package crm

import (
	"time"

	"github.com/estatetools/propstack-mcp/pkg/matching"
)

// Contact is a CRM person record.
type Contact struct {
	ID         int64      `json:"id"`
	Salutation string     `json:"salutation,omitempty"`
	FirstName  string     `json:"first_name,omitempty"`
	LastName   string     `json:"last_name,omitempty"`
	Email      string     `json:"email,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// Property is a CRM unit record.
type Property struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name,omitempty"`
	Status        string     `json:"status,omitempty"`
	MarketingType string     `json:"marketing_type,omitempty"` // BUY or RENT
	RSType        string     `json:"rs_type,omitempty"`
	City          string     `json:"city,omitempty"`
	ZipCode       string     `json:"zip_code,omitempty"`
	Street        string     `json:"street,omitempty"`
	Price         *float64   `json:"price,omitempty"`
	BaseRent      *float64   `json:"base_rent,omitempty"`
	Rooms         *float64   `json:"number_of_rooms,omitempty"`
	LivingSpace   *float64   `json:"living_space,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// Deal is a CRM deal record.
type Deal struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name,omitempty"`
	ClientID   *int64     `json:"client_id,omitempty"`
	PropertyID *int64     `json:"property_id,omitempty"`
	StageID    *int64     `json:"deal_stage_id,omitempty"`
	Price      *float64   `json:"price,omitempty"` // closing/sold value
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// DealStage names one pipeline stage.
type DealStage struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Task is a CRM task record.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	ClientID    *int64     `json:"client_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Done        bool       `json:"done,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// SearchProfile is a contact's saved search (candidate criteria-set for
// property matching).
type SearchProfile struct {
	ID       int64 `json:"id"`
	ClientID int64 `json:"client_id"`

	MarketingType string   `json:"marketing_type,omitempty"`
	Cities        []string `json:"cities,omitempty"`
	RSTypes       []string `json:"rs_types,omitempty"`

	Price         *float64 `json:"price,omitempty"`
	PriceTo       *float64 `json:"price_to,omitempty"`
	BaseRent      *float64 `json:"base_rent,omitempty"`
	BaseRentTo    *float64 `json:"base_rent_to,omitempty"`
	Rooms         *float64 `json:"number_of_rooms,omitempty"`
	RoomsTo       *float64 `json:"number_of_rooms_to,omitempty"`
	LivingSpace   *float64 `json:"living_space,omitempty"`
	LivingSpaceTo *float64 `json:"living_space_to,omitempty"`
}

// List is a bounded collection of fetched records. Truncated warns that a
// pagination cap cut the fetch short of the upstream total.
type List[T any] struct {
	Items      []T  `json:"items"`
	Total      int  `json:"total"`
	TotalKnown bool `json:"total_known"`
	Truncated  bool `json:"truncated"`
}

// MatchAttributes projects the property onto the scoring engine's input.
func (p Property) MatchAttributes() matching.Property {
	return matching.Property{
		ID:            p.ID,
		MarketingType: p.MarketingType,
		RSType:        p.RSType,
		City:          p.City,
		Price:         p.Price,
		BaseRent:      p.BaseRent,
		Rooms:         p.Rooms,
		LivingSpace:   p.LivingSpace,
	}
}

// Criteria projects the saved search onto the scoring engine's input.
func (s SearchProfile) Criteria() matching.Criteria {
	return matching.Criteria{
		ID:              s.ID,
		ClientID:        s.ClientID,
		MarketingType:   s.MarketingType,
		Cities:          s.Cities,
		RSTypes:         s.RSTypes,
		PriceFrom:       s.Price,
		PriceTo:         s.PriceTo,
		RentFrom:        s.BaseRent,
		RentTo:          s.BaseRentTo,
		RoomsFrom:       s.Rooms,
		RoomsTo:         s.RoomsTo,
		LivingSpaceFrom: s.LivingSpace,
		LivingSpaceTo:   s.LivingSpaceTo,
	}
}
