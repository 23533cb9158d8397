package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/cropverse/models"
)

// pngHeader is enough of a PNG for upload tests; only the part's content type is checked.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// as stands in for JwtAuthMiddleware.
func as(u *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", u.ID)
		c.Set("role", u.Role)
		c.Set("email", u.Email)
		c.Next()
	}
}

func performJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewBuffer(payload)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type filePart struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func performMultipart(r http.Handler, method, path string, fields map[string]string, file *filePart) *httptest.ResponseRecorder {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+file.field+`"; filename="`+file.filename+`"`)
		h.Set("Content-Type", file.contentType)
		part, _ := mw.CreatePart(h)
		_, _ = part.Write(file.data)
	}
	_ = mw.Close()

	req, _ := http.NewRequest(method, path, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func itemsOf(t *testing.T, w *httptest.ResponseRecorder) []interface{} {
	t.Helper()
	items, ok := decodeBody(t, w)["items"].([]interface{})
	require.True(t, ok, w.Body.String())
	return items
}
