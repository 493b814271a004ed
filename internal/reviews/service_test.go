package reviews

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type fixture struct {
	svc     Service
	conn    *gorm.DB
	author  *models.User
	other   *models.User
	product *models.Product
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	conn := dbtest.Open(t)
	userRepo := users.NewRepository(conn)

	author, err := userRepo.Create(ctx, users.CreateUserDTO{Email: "a@example.com", PasswordHash: "x", FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)
	other, err := userRepo.Create(ctx, users.CreateUserDTO{Email: "b@example.com", PasswordHash: "x", FirstName: "Bob", LastName: "Builder"})
	require.NoError(t, err)

	category := &models.Category{Name: "Phones", Slug: "phones", IsActive: true}
	require.NoError(t, conn.Create(category).Error)
	product := &models.Product{CategoryID: category.ID, Name: "Pixel", Slug: "pixel"}
	require.NoError(t, conn.Create(product).Error)

	svc, err := NewService(NewRepository(conn), catalog.NewRepository(conn), userRepo)
	require.NoError(t, err)
	return fixture{svc: svc, conn: conn, author: author, other: other, product: product}
}

func TestCreateReviewAndDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	review, err := f.svc.Create(ctx, f.author.ID, f.product.ID, CreateReviewInput{Rating: 5, Comment: " Great phone ", Images: []string{"r.png"}})
	require.NoError(t, err)
	assert.Equal(t, "Great phone", review.Comment)
	assert.Equal(t, "Ada", review.Author.FirstName)
	assert.True(t, review.IsActive)
	assert.Equal(t, []string{"r.png"}, review.Images)

	_, err = f.svc.Create(ctx, f.author.ID, f.product.ID, CreateReviewInput{Rating: 3, Comment: "again"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Equal(t, "You have already reviewed this product", pkgerrors.As(err).Message())
}

func TestCreateReviewValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Create(ctx, f.author.ID, f.product.ID, CreateReviewInput{Rating: 6, Comment: "x"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Create(ctx, f.author.ID, uuid.New(), CreateReviewInput{Rating: 4, Comment: "x"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Create(ctx, uuid.New(), f.product.ID, CreateReviewInput{Rating: 4, Comment: "x"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateAndDeleteOwnership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	review, err := f.svc.Create(ctx, f.author.ID, f.product.ID, CreateReviewInput{Rating: 4, Comment: "ok"})
	require.NoError(t, err)

	rating := 2
	_, err = f.svc.Update(ctx, f.other.ID, review.ID, UpdateReviewInput{Rating: &rating})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	updated, err := f.svc.Update(ctx, f.author.ID, review.ID, UpdateReviewInput{Rating: &rating})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Rating)

	_, err = f.svc.Delete(ctx, f.other.ID, review.ID, false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	msg, err := f.svc.Delete(ctx, f.other.ID, review.ID, true)
	require.NoError(t, err)
	assert.Equal(t, MessageReviewDeleted, msg.Message)

	_, err = f.svc.Get(ctx, review.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListingsAndRating(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Create(ctx, f.author.ID, f.product.ID, CreateReviewInput{Rating: 5, Comment: "love it"})
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, f.other.ID, f.product.ID, CreateReviewInput{Rating: 2, Comment: "meh"})
	require.NoError(t, err)

	rating, err := f.svc.Rating(ctx, f.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.5, rating.AverageRating)
	assert.Equal(t, int64(2), rating.ReviewCount)

	require.NoError(t, f.conn.Model(&models.Review{}).Where("id = ?", second.ID).Update("is_active", false).Error)

	active, err := f.svc.ListByProduct(ctx, f.product.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "love it", active[0].Comment)

	mine, err := f.svc.ListMine(ctx, f.other.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.False(t, mine[0].IsActive)

	rating, err = f.svc.Rating(ctx, f.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, rating.AverageRating)
	assert.Equal(t, int64(1), rating.ReviewCount)
}
