// Package api exposes the query engine's four core-facing operations as
// SSE streams, plus an admin introspection endpoint over active sources.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ghuser/persistredis/pkg/errhttp"
	"github.com/ghuser/persistredis/pkg/httpx"
	"github.com/ghuser/persistredis/pkg/logger"
	appsvcs "github.com/ghuser/persistredis/services/journal/application/services"
)

// PersistenceIDEventsHandler serves current and live event streams scoped to
// a single persistence identifier.
type PersistenceIDEventsHandler struct {
	engine       *appsvcs.QueryEngine
	log          logger.Logger
	isProduction bool
}

func NewPersistenceIDEventsHandler(engine *appsvcs.QueryEngine, log logger.Logger, isProduction bool) *PersistenceIDEventsHandler {
	return &PersistenceIDEventsHandler{engine: engine, log: log, isProduction: isProduction}
}

// Execute streams events for the persistence id named by the {id} URL param.
//
//	@Summary		Stream events by persistence id
//	@Description	Streams events for a single persistence identifier as server-sent events. live=true follows the tail instead of completing at exhaustion.
//	@Tags			journal
//	@Produce		text/event-stream
//	@Param			id		path	string	true	"persistence identifier"
//	@Param			from	query	int		false	"inclusive lower sequence bound"
//	@Param			to		query	int		false	"inclusive upper sequence bound"
//	@Param			live	query	bool	false	"follow the tail instead of completing at exhaustion"
//	@Success		200
//	@Failure		422	{object}	ErrorResponse
//	@Router			/persistence-ids/{id}/events [get]
func (h *PersistenceIDEventsHandler) Execute(w http.ResponseWriter, r *http.Request) {
	persistenceID := chi.URLParam(r, "id")
	if persistenceID == "" {
		httpx.JSONError(w, http.StatusBadRequest, "persistence id required")
		return
	}

	pr, ok := parsePersistenceIDRange(w, r)
	if !ok {
		return
	}

	var (
		src appsvcs.Source
		err error
	)
	if pr.Live {
		src, err = h.engine.EventsByPersistenceId(r.Context(), persistenceID, pr.From, pr.To)
	} else {
		src, err = h.engine.CurrentEventsByPersistenceId(r.Context(), persistenceID, pr.From, pr.To)
	}
	if err != nil {
		errhttp.WriteError(w, err, h.isProduction)
		return
	}
	defer src.Close()

	streamSSE(w, r, src, h.log)
}

// TagEventsHandler serves current and live event streams scoped to a tag.
type TagEventsHandler struct {
	engine       *appsvcs.QueryEngine
	log          logger.Logger
	isProduction bool
}

func NewTagEventsHandler(engine *appsvcs.QueryEngine, log logger.Logger, isProduction bool) *TagEventsHandler {
	return &TagEventsHandler{engine: engine, log: log, isProduction: isProduction}
}

// Execute streams events carrying the tag named by the {tag} URL param.
//
//	@Summary		Stream events by tag
//	@Description	Streams events carrying a tag as server-sent events, ordered by offset. live=true follows the tail instead of completing at exhaustion.
//	@Tags			journal
//	@Produce		text/event-stream
//	@Param			tag		path	string	true	"tag"
//	@Param			offset	query	int		false	"inclusive lower offset bound; absent means from the beginning"
//	@Param			live	query	bool	false	"follow the tail instead of completing at exhaustion"
//	@Success		200
//	@Failure		422	{object}	ErrorResponse
//	@Router			/tags/{tag}/events [get]
func (h *TagEventsHandler) Execute(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	if tag == "" {
		httpx.JSONError(w, http.StatusBadRequest, "tag required")
		return
	}

	tq, ok := parseTagQuery(w, r)
	if !ok {
		return
	}

	var (
		src appsvcs.Source
		err error
	)
	if tq.Live {
		src, err = h.engine.EventsByTag(r.Context(), tag, tq.Offset)
	} else {
		src, err = h.engine.CurrentEventsByTag(r.Context(), tag, tq.Offset)
	}
	if err != nil {
		errhttp.WriteError(w, err, h.isProduction)
		return
	}
	defer src.Close()

	streamSSE(w, r, src, h.log)
}

// AdminSourcesHandler lists every currently-active source, for operators
// diagnosing a stuck or runaway live query.
type AdminSourcesHandler struct {
	engine *appsvcs.QueryEngine
}

func NewAdminSourcesHandler(engine *appsvcs.QueryEngine) *AdminSourcesHandler {
	return &AdminSourcesHandler{engine: engine}
}

// Execute lists every currently-active source.
//
//	@Summary		List active sources
//	@Description	Lists every currently-active query source and its FSM state. Requires an admin session.
//	@Tags			admin
//	@Produce		json
//	@Success		200	{array}		AdminSourceInfo
//	@Failure		401	{object}	ErrorResponse
//	@Router			/admin/sources [get]
func (h *AdminSourcesHandler) Execute(w http.ResponseWriter, r *http.Request) {
	infos := h.engine.Registry().List()

	resp := make([]AdminSourceResponse, 0, len(infos))
	for _, info := range infos {
		resp = append(resp, AdminSourceResponse{
			ID:         info.ID,
			Kind:       info.Kind,
			Descriptor: info.Descriptor,
			Live:       info.Live,
			State:      info.State(),
			CreatedAt:  info.CreatedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}
