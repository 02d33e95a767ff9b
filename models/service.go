package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PromoRate is the share of the list price charged in the promo section
const PromoRate = 0.8

type Service struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	ServiceName string    `json:"serviceName" gorm:"not null"`
	Price       float64   `json:"price"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	Creator     string    `json:"creator"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	PromoPrice  float64   `json:"promoPrice" gorm:"-"`
}

func (s *Service) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

func (s *Service) AfterFind(tx *gorm.DB) (err error) {
	s.PromoPrice = s.Price * PromoRate
	return
}

// Catalog is the home screen layout: the first services as promotions,
// a slightly longer featured row, then everything.
type Catalog struct {
	Promo    []Service `json:"promo"`
	Featured []Service `json:"featured"`
	All      []Service `json:"all"`
}

// NewCatalog slices services, which must already be in insertion order
func NewCatalog(services []Service) Catalog {
	return Catalog{
		Promo:    head(services, 3),
		Featured: head(services, 4),
		All:      services,
	}
}

func head(s []Service, n int) []Service {
	if len(s) < n {
		n = len(s)
	}
	out := make([]Service, n)
	copy(out, s[:n])
	return out
}
