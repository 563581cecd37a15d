package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jonathan/perfect-fit/internal/server/middleware"
	"github.com/jonathan/perfect-fit/internal/types"
)

const (
	maxBodyBytes    = 1 << 20
	defaultPageSize = 50
	maxPageSize     = 200
)

// principal returns the authenticated caller.
func principal(r *http.Request) (types.Principal, error) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		return types.Principal{}, &ErrUnauthorized{}
	}
	return p, nil
}

// pathUUID parses the named path value as a UUID.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, &types.ErrValidation{Field: name, Message: "must be a valid UUID"}
	}
	return id, nil
}

// decodeJSON decodes a required request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err != nil {
		return &types.ErrValidation{Field: "body", Message: "invalid request body"}
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		return &types.ErrValidation{Field: "body", Message: "invalid request body"}
	}
	return nil
}

// pagination reads limit and offset from the query string.
func pagination(r *http.Request) (limit, offset int, err error) {
	limit = defaultPageSize
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxPageSize {
			return 0, 0, &types.ErrValidation{Field: "limit", Message: "must be between 1 and 200"}
		}
	}
	if v := q.Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, &types.ErrValidation{Field: "offset", Message: "must be a non-negative integer"}
		}
	}
	return limit, offset, nil
}

// messageResponse is the body of mutations that return no entity.
type messageResponse struct {
	Message string `json:"message"`
}
