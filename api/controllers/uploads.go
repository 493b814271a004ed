package controllers

import (
	"errors"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/uploads"
	"github.com/angelmondragon/storefront-backend/internal/users"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	uploadField = "image"
	// multipart framing on top of the file itself
	multipartOverhead = 1 << 20
)

type profileImageResponse struct {
	*uploads.Result
	User *users.UserDTO `json:"user"`
}

// ProfileImageUpload stores the caller's avatar and points their profile at it.
func ProfileImageUpload(svc uploads.Service, usersSvc users.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || usersSvc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("uploads"))
			return
		}

		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := receiveImage(r, svc, uploads.FolderProfile, maxBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		url := result.URL
		user, err := usersSvc.UpdateProfile(r.Context(), userID, users.UpdateProfileInput{AvatarURL: &url})
		if err != nil {
			svc.Delete(r.Context(), url)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, profileImageResponse{Result: result, User: user})
	}
}

// ProductImageUpload stores a catalog image; attaching it to a product is a
// separate catalog call.
func ProductImageUpload(svc uploads.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("uploads"))
			return
		}

		result, err := receiveImage(r, svc, uploads.FolderProducts, maxBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, result)
	}
}

func receiveImage(r *http.Request, svc uploads.Service, folder uploads.Folder, maxBytes int64) (*uploads.Result, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBytes+multipartOverhead)
	}
	file, _, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "File too large").
				WithDetails(map[string]any{"maxBytes": maxBytes})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "File is required").
			WithDetails(map[string]any{"field": uploadField})
	}
	defer file.Close()

	return svc.UploadImage(r.Context(), folder, file)
}
