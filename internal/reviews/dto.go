package reviews

import (
	"time"

	"github.com/google/uuid"
)

// AuthorDTO is the public face of a review's author.
type AuthorDTO struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	AvatarURL *string   `json:"avatarUrl,omitempty"`
}

// ReviewDTO is the transport shape of a review.
type ReviewDTO struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"productId"`
	Author    AuthorDTO `json:"user"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Images    []string  `json:"images"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateReviewInput is the payload of a new review.
type CreateReviewInput struct {
	Rating  int
	Comment string
	Images  []string
}

// UpdateReviewInput carries optional review changes.
type UpdateReviewInput struct {
	Rating  *int
	Comment *string
	Images  []string
}

func fromRow(row reviewRow) ReviewDTO {
	images := []string(row.Images)
	if images == nil {
		images = []string{}
	}
	author := AuthorDTO{ID: row.UserID, AvatarURL: row.AuthorAvatarURL}
	if row.AuthorFirstName != nil {
		author.FirstName = *row.AuthorFirstName
	}
	if row.AuthorLastName != nil {
		author.LastName = *row.AuthorLastName
	}
	return ReviewDTO{
		ID:        row.ID,
		ProductID: row.ProductID,
		Author:    author,
		Rating:    row.Rating,
		Comment:   row.Comment,
		Images:    images,
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func fromRows(rows []reviewRow) []ReviewDTO {
	out := make([]ReviewDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out
}
