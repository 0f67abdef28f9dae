package user

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/radif/profilepic/internal/avatar"
	"github.com/radif/profilepic/internal/middleware"
	"github.com/radif/profilepic/internal/response"
)

// multipartOverhead is the allowance on top of the image limit for multipart
// boundaries and part headers.
const multipartOverhead = 64 << 10

// Handler holds HTTP handlers for user-related endpoints.
type Handler struct {
	svc      *Service
	maxBytes int64
}

// NewHandler creates a new user Handler. maxBytes is the avatar size limit.
func NewHandler(svc *Service, maxBytes int64) *Handler {
	return &Handler{svc: svc, maxBytes: maxBytes}
}

type avatarData struct {
	AvatarURL string `json:"avatarUrl" example:"http://localhost:9000/profile-pictures/0b9d6c0e-7c44-4d0e-9a36-1c4b5f6f2a10.png"`
	User      *User  `json:"user"`
}

// GetMe godoc
//
//	@Summary		Get current user
//	@Description	Returns the profile of the currently authenticated user.
//	@Tags			users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=User}
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/users/me [get]
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	u, err := h.svc.GetByID(r.Context(), userID)
	if err != nil {
		if h.svc.IsNotFound(err) {
			response.NotFound(w, "user not found")
			return
		}
		log.Error().Err(err).Str("user_id", userID).Msg("user: get profile")
		response.InternalError(w)
		return
	}

	response.OK(w, u)
}

// UploadAvatar godoc
//
//	@Summary		Upload profile picture
//	@Description	Accepts any common raster format, validated by content. The image is scaled to 200x200, stored as PNG and set as the user's avatar.
//	@Tags			users
//	@Accept			mpfd
//	@Produce		json
//	@Security		BearerAuth
//	@Param			file	formData	file	true	"Image file (max 5 MiB)"
//	@Success		200		{object}	response.Envelope{data=avatarData}
//	@Failure		400		{object}	response.Envelope	"Empty file or not an image"
//	@Failure		401		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		413		{object}	response.Envelope	"File too large"
//	@Failure		502		{object}	response.Envelope	"Storage write failed"
//	@Failure		503		{object}	response.Envelope	"Storage unavailable"
//	@Router			/users/me/avatar [post]
func (h *Handler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.PayloadTooLarge(w, h.tooLargeMessage())
			return
		}
		response.BadRequest(w, "file is required")
		return
	}
	defer file.Close()

	u, err := h.svc.UpdateAvatar(r.Context(), userID, file)
	if err != nil {
		h.writeUploadError(w, err, userID, header.Filename)
		return
	}

	url := ""
	if u.AvatarURL != nil {
		url = *u.AvatarURL
	}
	response.OK(w, avatarData{AvatarURL: url, User: u})
}

func (h *Handler) writeUploadError(w http.ResponseWriter, err error, userID, filename string) {
	var tooLarge *http.MaxBytesError

	switch {
	case h.svc.IsNotFound(err):
		response.NotFound(w, "user not found")
	case errors.Is(err, avatar.ErrEmptyInput):
		response.BadRequest(w, "file is empty")
	case errors.Is(err, avatar.ErrInvalidImage):
		response.BadRequest(w, "file is not a supported image")
	case errors.Is(err, avatar.ErrSizeLimitExceeded), errors.As(err, &tooLarge):
		response.PayloadTooLarge(w, h.tooLargeMessage())
	case errors.Is(err, avatar.ErrStorageUnavailable):
		log.Error().Err(err).Str("user_id", userID).Msg("user: avatar storage unavailable")
		response.ServiceUnavailable(w, "storage unavailable")
	case errors.Is(err, avatar.ErrStorageWrite):
		log.Error().Err(err).Str("user_id", userID).Msg("user: avatar write failed")
		response.BadGateway(w, "storage write failed")
	default:
		log.Error().Err(err).Str("user_id", userID).Str("filename", filename).Msg("user: upload avatar")
		response.InternalError(w)
	}
}

func (h *Handler) tooLargeMessage() string {
	return fmt.Sprintf("file size cannot exceed %d bytes", h.maxBytes)
}
