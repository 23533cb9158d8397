package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/cropverse/utils"
)

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func parseIDQuery(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Query(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// optionalString trims s and maps blank to nil.
func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func isMultipart(c *gin.Context) bool {
	return c.ContentType() == "multipart/form-data"
}

// optionalFormFile returns the named upload of a multipart request, or nil when absent.
func optionalFormFile(c *gin.Context, field string) (*multipart.FileHeader, error) {
	if !isMultipart(c) {
		return nil, nil
	}
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	return fh, err
}

// saveImage validates fh and writes it into the store, returning its public URL.
func saveImage(c *gin.Context, store *utils.ImageStore, fh *multipart.FileHeader, dir, prefix string, maxBytes int64) (string, error) {
	dst, url, err := store.Prepare(fh, dir, prefix, maxBytes)
	if err != nil {
		return "", err
	}
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		return "", err
	}
	return url, nil
}

func isUploadRejection(err error) bool {
	return errors.Is(err, utils.ErrNotAnImage) || errors.Is(err, utils.ErrFileTooLarge)
}
