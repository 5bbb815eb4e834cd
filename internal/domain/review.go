package domain

import (
	"time"
)

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// Review is embedded in a product. Reviewer holds the display name and
// ReviewerID the id of the user who wrote it.
type Review struct {
	Reviewer   string    `json:"reviewer" bson:"reviewer"`
	ReviewerID string    `json:"reviewer_id" bson:"reviewer_id"`
	Rating     int       `json:"rating" bson:"rating"`
	Comment    string    `json:"comment,omitempty" bson:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

// ValidRating reports whether r is within MinRating..MaxRating.
func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}
