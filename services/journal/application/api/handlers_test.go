package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ghuser/persistredis/services/journal/domain/models"
	"github.com/ghuser/persistredis/services/journal/domain/repositories"
	appsvcs "github.com/ghuser/persistredis/services/journal/application/services"
)

type memGateway struct{ sets map[string][]repositories.ScoredValue }

func (g *memGateway) Range(ctx context.Context, key string, lo, hi uint64) ([]repositories.ScoredValue, error) {
	var out []repositories.ScoredValue
	for _, v := range g.sets[key] {
		if v.Score >= lo && v.Score <= hi {
			out = append(out, v)
		}
	}
	return out, nil
}

func (g *memGateway) Subscribe(ctx context.Context, channel string) (repositories.Subscription, error) {
	return &noopSubscription{ch: make(chan string)}, nil
}

type noopSubscription struct{ ch chan string }

func (s *noopSubscription) Messages() <-chan string { return s.ch }
func (s *noopSubscription) Close() error            { return nil }

type stubKeyScheme struct{}

func (stubKeyScheme) PersistenceIDKey(id string) string     { return "pid:" + id }
func (stubKeyScheme) PersistenceIDChannel(id string) string { return "pid-ch:" + id }
func (stubKeyScheme) TagKey(tag string) string              { return "tag:" + tag }
func (stubKeyScheme) TagChannel(tag string) string           { return "tag-ch:" + tag }

type stubSerializer struct{}

func (stubSerializer) DecodeRecord(raw []byte) (models.PersistentRecord, error) {
	return models.PersistentRecord{PersistenceID: "order-1", SequenceNr: 0, Payload: raw}, nil
}

func TestPersistenceIDEventsHandler_StreamsEnvelopes(t *testing.T) {
	gw := &memGateway{sets: map[string][]repositories.ScoredValue{
		"pid:order-1": {{Score: 0, Value: []byte("hello")}},
	}}
	engine := appsvcs.New(gw, stubKeyScheme{}, stubSerializer{}, 10, nil, nil)
	handler := NewPersistenceIDEventsHandler(engine, newTestLogger(), false)

	r := httptest.NewRequest("GET", "/persistence-ids/order-1/events", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "order-1")
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	handler.Execute(w, r)

	body := w.Body.String()
	if !strings.Contains(body, `"payload":"aGVsbG8="`) { // base64("hello")
		t.Fatalf("expected payload in body, got: %s", body)
	}
	if !strings.Contains(body, "event: complete") {
		t.Fatalf("expected completion event, got: %s", body)
	}
}

func TestPersistenceIDEventsHandler_MissingID(t *testing.T) {
	engine := appsvcs.New(&memGateway{sets: map[string][]repositories.ScoredValue{}}, stubKeyScheme{}, stubSerializer{}, 10, nil, nil)
	handler := NewPersistenceIDEventsHandler(engine, newTestLogger(), false)

	r := httptest.NewRequest("GET", "/persistence-ids//events", nil)
	rctx := chi.NewRouteContext()
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	handler.Execute(w, r)

	if w.Code != 400 {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAdminSourcesHandler_ListsActiveSources(t *testing.T) {
	gw := &memGateway{sets: map[string][]repositories.ScoredValue{}}
	engine := appsvcs.New(gw, stubKeyScheme{}, stubSerializer{}, 10, nil, nil)

	src, err := engine.CurrentEventsByPersistenceId(context.Background(), "order-1", 0, 0)
	if err != nil {
		t.Fatalf("CurrentEventsByPersistenceId: %v", err)
	}
	defer src.Close()

	handler := NewAdminSourcesHandler(engine)
	r := httptest.NewRequest("GET", "/admin/sources", nil)
	w := httptest.NewRecorder()

	handler.Execute(w, r)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "order-1") {
		t.Fatalf("expected the active source in body, got: %s", w.Body.String())
	}
}
