package domain

import (
	"time"
)

// Product is a catalog entry owned by the user who created it.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	CategoryID  string    `json:"category"`
	OwnerID     string    `json:"owner"`
	Images      []string  `json:"images"`
	Reviews     []Review  `json:"reviews"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OwnerInfo is the public part of the owning user shown on listings.
type OwnerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CategoryInfo is the category summary shown on listings.
type CategoryInfo struct {
	Name string `json:"name"`
}

// ProductView is a product enriched with owner and category details. Either
// block is nil when its referent no longer exists.
type ProductView struct {
	Product
	OwnerInfo    *OwnerInfo    `json:"owner_info"`
	CategoryInfo *CategoryInfo `json:"category_info"`
}

// Normalize replaces nil slices so products always serialize with arrays.
func (p *Product) Normalize() {
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Reviews == nil {
		p.Reviews = []Review{}
	}
}

// OwnedBy reports whether callerID owns the product.
func (p *Product) OwnedBy(callerID string) bool {
	return p.OwnerID != "" && p.OwnerID == callerID
}
