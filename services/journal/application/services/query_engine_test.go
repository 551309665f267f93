package services

import (
	"context"
	"errors"
	"io"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/ghuser/persistredis/services/journal/domain/models"
	"github.com/ghuser/persistredis/services/journal/domain/repositories"
)

// memGateway is an in-memory repositories.StoreGateway: a map of sorted sets
// keyed by name, each a slice of (score, value) pairs.
type memGateway struct {
	sets map[string][]repositories.ScoredValue
}

func newMemGateway() *memGateway {
	return &memGateway{sets: make(map[string][]repositories.ScoredValue)}
}

func (g *memGateway) put(key string, score uint64, value string) {
	g.sets[key] = append(g.sets[key], repositories.ScoredValue{Score: score, Value: []byte(value)})
	sort.Slice(g.sets[key], func(i, j int) bool { return g.sets[key][i].Score < g.sets[key][j].Score })
}

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

type memKeyScheme struct{}

func (memKeyScheme) PersistenceIDKey(id string) string      { return "pid:" + id }
func (memKeyScheme) PersistenceIDChannel(id string) string  { return "pid-ch:" + id }
func (memKeyScheme) TagKey(tag string) string               { return "tag:" + tag }
func (memKeyScheme) TagChannel(tag string) string           { return "tag-ch:" + tag }

// memSerializer decodes the raw value as "<prefix>|<payload>": the prefix is
// ignored and every record gets PersistenceID "p1" and SequenceNr 0.
type memSerializer struct{}

func (memSerializer) DecodeRecord(raw []byte) (models.PersistentRecord, error) {
	s := string(raw)
	for i := 0; i < len(s); i++ {
		if s[i] == '|' {
			return models.PersistentRecord{PersistenceID: "p1", SequenceNr: 0, Payload: []byte(s[i+1:])}, nil
		}
	}
	return models.PersistentRecord{}, errors.New("malformed test record")
}

func TestQueryEngine_CurrentEventsByPersistenceId(t *testing.T) {
	gw := newMemGateway()
	gw.put("pid:order-1", 0, "x|a")
	gw.put("pid:order-1", 1, "x|b")

	engine := New(gw, memKeyScheme{}, memSerializer{}, 10, nil, nil)

	src, err := engine.CurrentEventsByPersistenceId(context.Background(), "order-1", 0, 10)
	if err != nil {
		t.Fatalf("CurrentEventsByPersistenceId: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	env, err := src.Next(ctx)
	if err != nil || string(env.Payload) != "a" {
		t.Fatalf("first: env=%+v err=%v", env, err)
	}
	env, err = src.Next(ctx)
	if err != nil || string(env.Payload) != "b" {
		t.Fatalf("second: env=%+v err=%v", env, err)
	}
	if _, err := src.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestQueryEngine_CurrentEventsByTag(t *testing.T) {
	gw := newMemGateway()
	gw.put("pid:order-1", 0, "x|shipped")
	gw.put("tag:shipped", 0, "0:order-1")

	engine := New(gw, memKeyScheme{}, memSerializer{}, 10, nil, nil)

	src, err := engine.CurrentEventsByTag(context.Background(), "shipped", models.NoOffset())
	if err != nil {
		t.Fatalf("CurrentEventsByTag: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	env, err := src.Next(ctx)
	if err != nil || string(env.Payload) != "shipped" {
		t.Fatalf("first: env=%+v err=%v", env, err)
	}
	if _, err := src.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

// TestQueryEngine_CurrentEventsByPersistenceId_SparseFromZero mirrors a
// persistence ID whose sequence numbers start at 1 (the normal case), queried
// from=0: the store's scores are never dense from current, so the cursor
// must advance past the last examined index rather than by the page's record
// count, or the last record of the set is re-fetched and re-emitted.
func TestQueryEngine_CurrentEventsByPersistenceId_SparseFromZero(t *testing.T) {
	cases := []struct {
		name string
		to   uint64
	}{
		{"boundedToLastRecord", 3},
		{"boundedBelowLastRecord", 2},
		{"unboundedTo", math.MaxUint64},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := newMemGateway()
			gw.put("pid:order-1", 1, "x|a")
			gw.put("pid:order-1", 2, "x|b")
			gw.put("pid:order-1", 3, "x|c")

			engine := New(gw, memKeyScheme{}, memSerializer{}, 10, nil, nil)

			src, err := engine.CurrentEventsByPersistenceId(context.Background(), "order-1", 0, tc.to)
			if err != nil {
				t.Fatalf("CurrentEventsByPersistenceId: %v", err)
			}
			defer src.Close()

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			want := []string{"a", "b", "c"}
			if tc.to < 3 {
				want = want[:tc.to]
			}

			seen := make([]string, 0, len(want))
			for range want {
				env, err := src.Next(ctx)
				if err != nil {
					t.Fatalf("Next: %v", err)
				}
				seen = append(seen, string(env.Payload))
			}
			for i, payload := range want {
				if seen[i] != payload {
					t.Fatalf("position %d: want %q, got %q (full: %v)", i, payload, seen[i], seen)
				}
			}
			if _, err := src.Next(ctx); !errors.Is(err, io.EOF) {
				t.Fatalf("expected io.EOF after %v, got %v", want, err)
			}
		})
	}
}

func TestQueryEngine_RegistryTracksActiveSources(t *testing.T) {
	gw := newMemGateway()
	engine := New(gw, memKeyScheme{}, memSerializer{}, 10, nil, nil)

	src, err := engine.CurrentEventsByPersistenceId(context.Background(), "order-1", 0, 0)
	if err != nil {
		t.Fatalf("CurrentEventsByPersistenceId: %v", err)
	}

	infos := engine.Registry().List()
	if len(infos) != 1 {
		t.Fatalf("expected 1 active source, got %d", len(infos))
	}
	if infos[0].Kind != "by-persistence-id" || infos[0].Descriptor != "order-1" {
		t.Fatalf("unexpected source info: %+v", infos[0])
	}

	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(engine.Registry().List()) != 0 {
		t.Fatal("expected the registry to be empty after Close")
	}
}
