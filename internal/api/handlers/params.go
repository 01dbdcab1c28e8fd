package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/strategylib/control-plane/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// parsePagination reads page/page_size query params, defaulting to
// page=1 and page_size=pageSizeMax (spec §6).
func parsePagination(r *http.Request, pageSizeMax int) core.Pagination {
	pg := core.Pagination{Page: 1, PageSize: pageSizeMax}
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			pg.Page = n
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			pg.PageSize = n
		}
	}
	return pg
}

func queryStringPtr(r *http.Request, key string) *string {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	return &v
}
