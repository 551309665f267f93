package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/ghuser/persistredis/pkg/httpx"
	pkgvalidator "github.com/ghuser/persistredis/pkg/validator"
	"github.com/ghuser/persistredis/services/journal/domain/models"
)

// persistenceIDRange is the parsed and validated form of ?from=&to=&live=
// on the by-persistence-id endpoints.
type persistenceIDRange struct {
	From uint64 `validate:"gte=0"`
	To   uint64 `validate:"gtefield=From"`
	Live bool
}

// parsePersistenceIDRange reads from/to/live query params, defaulting from to
// 0 and to to unbounded, and validates to >= from before the engine ever sees
// them. Writes its own error response and returns ok=false on failure.
func parsePersistenceIDRange(w http.ResponseWriter, r *http.Request) (persistenceIDRange, bool) {
	q := r.URL.Query()

	from, err := parseUint64(q.Get("from"), 0)
	if err != nil {
		httpx.JSONError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid from: %s", err))
		return persistenceIDRange{}, false
	}
	to, err := parseUint64(q.Get("to"), math.MaxUint64)
	if err != nil {
		httpx.JSONError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid to: %s", err))
		return persistenceIDRange{}, false
	}

	pr := persistenceIDRange{From: from, To: to, Live: q.Get("live") == "true"}
	if err := pkgvalidator.Validate(&pr); err != nil {
		httpx.JSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": pkgvalidator.FormatValidationErrors(err),
		})
		return persistenceIDRange{}, false
	}
	return pr, true
}

// tagQuery is the parsed form of ?offset=&live= on the by-tag endpoints.
type tagQuery struct {
	Offset models.Offset
	Live   bool
}

// parseTagQuery reads offset/live query params. An absent or empty offset
// means NoOffset; otherwise it must parse as a non-negative integer.
func parseTagQuery(w http.ResponseWriter, r *http.Request) (tagQuery, bool) {
	q := r.URL.Query()

	raw := q.Get("offset")
	offset := models.NoOffset()
	if raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			httpx.JSONError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid offset: %s", err))
			return tagQuery{}, false
		}
		offset = models.Sequence(v)
	}
	return tagQuery{Offset: offset, Live: q.Get("live") == "true"}, true
}

func parseUint64(raw string, def uint64) (uint64, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}
