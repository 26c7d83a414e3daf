package http

import (
	"errors"
	"mime"
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/auth/blob"
	"github.com/aussiebroadwan/accounts/internal/auth/service"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
)

// multipart overhead allowed on top of the image itself
const maxFormOverhead = 1 << 20

type RegisterHandler struct {
	Accounts *service.AccountService
}

// ServeHTTP godoc
//
//	@Summary		Register
//	@Description	Creates an unverified account and emails a 6-digit verification code valid for one hour.
//	@Description	Accepts JSON, or multipart/form-data with an optional profileImage (jpeg, png or webp, max 5 MiB).
//	@Tags			Users
//	@Accept			json,mpfd
//	@Produce		json
//	@Param			request			body		authsdk.RegisterRequest	false	"JSON registration"
//	@Param			profileImage	formData	file					false	"Profile image (multipart only)"
//	@Success		201				{object}	authsdk.Response		"user, otp (non-production only)"
//	@Failure		400				{object}	authsdk.Response		"validation_failed, email_taken"
//	@Failure		500				{object}	authsdk.Response		"internal_error"
//	@Router			/users/register [post]
func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in service.RegisterInput
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, blob.MaxImageSize+maxFormOverhead)
		if err := r.ParseMultipartForm(blob.MaxImageSize + maxFormOverhead); err != nil {
			authsdk.NewAPIError(http.StatusBadRequest, authsdk.CodeValidationFailed, "Invalid multipart form").WriteError(w)
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		in = service.RegisterInput{
			Name:            r.FormValue("name"),
			Email:           r.FormValue("email"),
			Password:        r.FormValue("password"),
			ConfirmPassword: r.FormValue("confirm_password"),
		}

		file, _, err := r.FormFile("profileImage")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			authsdk.NewAPIError(http.StatusBadRequest, authsdk.CodeValidationFailed, "Invalid profileImage").WriteError(w)
			return
		default:
			defer file.Close()
			in.ProfileImage = file
		}
	} else {
		var req authsdk.RegisterRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		in = service.RegisterInput{
			Name:            req.Name,
			Email:           req.Email,
			Password:        req.Password,
			ConfirmPassword: req.ConfirmPassword,
		}
	}

	res, err := h.Accounts.Register(ctx, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeOK(w, http.StatusCreated, authsdk.Response{
		Message:   "User registered successfully. Please verify your email.",
		User:      toUser(res.User),
		OTP:       res.OTP,
		ExpiresAt: timePtr(res.OTPExpiresAt),
	})
}
