package server

import (
	"errors"
	"io"
	"strings"
	"unicode"

	"tdh/internal/featureflags"
	"tdh/internal/models"
	"tdh/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

const maxPaginationLimit = 100

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) service.Page {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return service.Page{
		Limit:  limit,
		Offset: offset,
	}
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
// The error message is derived from the parameter name (e.g. "id" -> "Invalid ID",
// "userId" -> "Invalid user ID").
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "userId" -> "user ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		prefix := param[:len(param)-2]
		words := splitCamel(prefix)
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// currentUser returns the account bound by AuthRequired, or nil.
func currentUser(c *fiber.Ctx) *models.User {
	u, _ := c.Locals(localsUser).(*models.User)
	return u
}

// isMultipart reports whether the request carries a multipart form.
func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm)
}

// formUpload reads an optional file field. It returns nil when the field is absent.
func (s *Server) formUpload(c *fiber.Ctx, field string) (*service.Upload, error) {
	if !isMultipart(c) {
		return nil, nil
	}
	fh, err := c.FormFile(field)
	if err != nil || fh == nil || fh.Size == 0 {
		return nil, nil
	}
	if user := currentUser(c); user != nil && !s.featureFlags.Enabled(featureflags.ImageUploads, user.ID) {
		return nil, models.NewValidationError("Image uploads are disabled")
	}

	maxBytes := int64(s.config.MediaMaxUploadSizeMB) << 20
	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, models.NewValidationError("Image exceeds the upload size limit")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, models.NewValidationError("Could not read uploaded file")
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, models.NewValidationError("Could not read uploaded file")
	}

	return &service.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Content:     content,
	}, nil
}

// optionalField returns a pointer to a submitted form/JSON value, nil when absent.
func optionalField(present bool, value string) *string {
	if !present {
		return nil
	}
	return &value
}
