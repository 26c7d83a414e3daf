package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/accounts/internal/auth/blob"
	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/aussiebroadwan/accounts/pkg/errutil"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// FilesHandler godoc
//
//	@Summary		Get profile image
//	@Tags			Files
//	@Produce		image/jpeg,image/png,image/webp
//	@Param			ref	path		string	true	"Image reference, e.g. profile/<id>.png"
//	@Success		200	{file}		binary
//	@Failure		404	{object}	authsdk.Response
//	@Router			/files/{ref} [get]
func FilesHandler(store blob.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := r.PathValue("ref")

		obj, err := store.Open(r.Context(), ref)
		if errors.Is(err, blob.ErrNotFound) || errors.Is(err, blob.ErrInvalidRef) {
			authsdk.NewAPIError(http.StatusNotFound, "file_not_found", "File not found").WriteError(w)
			return
		}
		if err != nil {
			errutil.LogError(slogx.FromContext(r.Context()), "failed to open file", err, "ref", ref)
			authsdk.NewAPIError(http.StatusInternalServerError, authsdk.CodeInternal, "Internal server error").WriteError(w)
			return
		}
		defer obj.Body.Close()

		w.Header().Set("Content-Type", obj.ContentType)
		if obj.Size > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
		}
		w.Header().Set("Cache-Control", "private, max-age=3600")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, obj.Body)
	}
}
