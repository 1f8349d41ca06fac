package query

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/zonemap/internal/domain/feature"
	"github.com/kailas-cloud/zonemap/internal/domain/geo"
)

// --- Mocks ---

type reply struct {
	text string
	err  error
}

type call struct {
	prompt string
	ctx    context.Context
	reply  chan reply
}

// gatedClient blocks every Invoke until the test answers it.
type gatedClient struct {
	mu             sync.Mutex
	calls          chan call
	outstanding    int
	maxOutstanding int
	total          int
}

func newGatedClient() *gatedClient {
	return &gatedClient{calls: make(chan call, 16)}
}

func (g *gatedClient) Invoke(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.outstanding++
	g.total++
	if g.outstanding > g.maxOutstanding {
		g.maxOutstanding = g.outstanding
	}
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.outstanding--
		g.mu.Unlock()
	}()

	c := call{prompt: prompt, ctx: ctx, reply: make(chan reply, 1)}
	g.calls <- c
	select {
	case r := <-c.reply:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *gatedClient) next(t *testing.T) call {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for remote call")
		return call{}
	}
}

func (g *gatedClient) stats() (total, maxOutstanding int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.total, g.maxOutstanding
}

type panicClient struct{}

func (panicClient) Invoke(context.Context, string) (string, error) { panic("boom") }

// --- Helpers ---

func zoneA() *feature.Feature {
	f := feature.Reconstruct(2, nil, map[string]any{"name": "ZA", "DESC": "Zone A"})
	return &f
}

func undescribed() *feature.Feature {
	f := feature.Reconstruct(1, nil, map[string]any{"name": "ZC", "DESC": ""})
	return &f
}

func newTestSession(client Client) *Session {
	return NewSession(client, DefaultConfig(), zap.NewNop())
}

func waitSettled(t *testing.T, s *Session) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := s.Wait(ctx)
	if err != nil {
		t.Fatalf("session did not settle: %v", err)
	}
	return st
}

// --- Tests ---

func TestSession_StartsIdle(t *testing.T) {
	s := newTestSession(newGatedClient())
	st := s.Snapshot()

	if st.Status != StatusIdle || st.Marker != nil || st.Result != nil {
		t.Errorf("unexpected initial state: %+v", st)
	}
	select {
	case <-s.Done():
	default:
		t.Error("Done() must be closed when no query was issued")
	}
}

func TestSession_ClickSuccess(t *testing.T) {
	client := newGatedClient()
	s := newTestSession(client)
	at := geo.LngLat{Lng: -45.938, Lat: -22.227}

	if !s.Click(at, zoneA()) {
		t.Fatal("click should be accepted")
	}

	st := s.Snapshot()
	if st.Status != StatusLoading {
		t.Errorf("status = %q, want loading", st.Status)
	}
	if st.Marker == nil || *st.Marker != at {
		t.Errorf("marker = %v, want %v", st.Marker, at)
	}

	c := client.next(t)
	if !strings.Contains(c.prompt, "Zone A") {
		t.Errorf("prompt %q does not mention the zone", c.prompt)
	}
	c.reply <- reply{text: "Explanation..."}

	st = waitSettled(t, s)
	if st.Status != StatusLoaded {
		t.Errorf("status = %q, want loaded", st.Status)
	}
	if st.Result == nil || *st.Result != "Explanation..." {
		t.Errorf("result = %v, want Explanation...", st.Result)
	}
}

func TestSession_ClickWhileLoadingIsDropped(t *testing.T) {
	client := newGatedClient()
	s := newTestSession(client)
	first := geo.LngLat{Lng: 1, Lat: 1}

	s.Click(first, zoneA())
	c := client.next(t)

	if s.Click(geo.LngLat{Lng: 2, Lat: 2}, zoneA()) {
		t.Error("second click while loading must be rejected")
	}
	if st := s.Snapshot(); *st.Marker != first {
		t.Errorf("rejected click moved the marker to %v", *st.Marker)
	}

	c.reply <- reply{text: "first answer"}
	st := waitSettled(t, s)
	if *st.Result != "first answer" {
		t.Errorf("result = %q", *st.Result)
	}

	total, _ := client.stats()
	if total != 1 {
		t.Errorf("remote calls = %d, want 1", total)
	}
}

func TestSession_FailureShowsFixedMessage(t *testing.T) {
	client := newGatedClient()
	s := newTestSession(client)

	s.Click(geo.LngLat{}, zoneA())
	client.next(t).reply <- reply{err: errors.New("upstream 500")}

	st := waitSettled(t, s)
	if st.Status != StatusLoaded {
		t.Errorf("status = %q, want loaded", st.Status)
	}
	if st.Result == nil || *st.Result != DefaultFailureMessage {
		t.Errorf("result = %v, want failure message", st.Result)
	}
}

func TestSession_GuardRejectsMissingDescription(t *testing.T) {
	client := newGatedClient()
	s := newTestSession(client)

	tests := []struct {
		name   string
		active *feature.Feature
	}{
		{"no active feature", nil},
		{"empty description", undescribed()},
		{"missing description", func() *feature.Feature {
			f := feature.Reconstruct(0, nil, map[string]any{"name": "x"})
			return &f
		}()},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if s.Click(geo.LngLat{Lng: 3, Lat: 3}, tc.active) {
				t.Error("click should be rejected")
			}
			if st := s.Snapshot(); st.Status != StatusIdle || st.Marker != nil {
				t.Errorf("state changed: %+v", st)
			}
		})
	}
	if total, _ := client.stats(); total != 0 {
		t.Errorf("remote calls = %d, want 0", total)
	}
}

func TestSession_BlankDescriptionStillQueries(t *testing.T) {
	client := newGatedClient()
	s := newTestSession(client)
	f := feature.Reconstruct(3, nil, map[string]any{"name": "ZE", "DESC": " "})

	if !s.Click(geo.LngLat{Lng: 1, Lat: 1}, &f) {
		t.Fatal("a non-empty description must pass the guard")
	}
	client.next(t).reply <- reply{text: "Explanation..."}
	if st := waitSettled(t, s); st.Status != StatusLoaded {
		t.Errorf("status = %q, want loaded", st.Status)
	}
}

func TestSession_EmptyAnswerIsStored(t *testing.T) {
	client := newGatedClient()
	s := newTestSession(client)

	s.Click(geo.LngLat{Lng: 1, Lat: 1}, zoneA())
	client.next(t).reply <- reply{text: ""}

	st := waitSettled(t, s)
	if st.Result == nil || *st.Result != "" {
		t.Errorf("result = %v, want the empty answer", st.Result)
	}
}

func TestSession_NonQualifyingClickKeepsResult(t *testing.T) {
	client := newGatedClient()
	s := newTestSession(client)
	at := geo.LngLat{Lng: 5, Lat: 5}

	s.Click(at, zoneA())
	client.next(t).reply <- reply{text: "answer"}
	waitSettled(t, s)

	s.Click(geo.LngLat{Lng: 9, Lat: 9}, undescribed())

	st := s.Snapshot()
	if *st.Marker != at || *st.Result != "answer" || st.Status != StatusLoaded {
		t.Errorf("state changed by non-qualifying click: %+v", st)
	}
}

func TestSession_NewQueryOverwritesMarker(t *testing.T) {
	client := newGatedClient()
	s := newTestSession(client)

	s.Click(geo.LngLat{Lng: 1, Lat: 1}, zoneA())
	client.next(t).reply <- reply{text: "one"}
	waitSettled(t, s)

	second := geo.LngLat{Lng: 2, Lat: 2}
	if !s.Click(second, zoneA()) {
		t.Fatal("click after loaded should be accepted")
	}
	st := s.Snapshot()
	if *st.Marker != second || st.Status != StatusLoading || st.Result != nil {
		t.Errorf("unexpected restarted state: %+v", st)
	}

	client.next(t).reply <- reply{text: "two"}
	if st := waitSettled(t, s); *st.Result != "two" {
		t.Errorf("result = %q, want two", *st.Result)
	}
}

func TestSession_SingleFlightUnderConcurrentClicks(t *testing.T) {
	client := newGatedClient()
	s := newTestSession(client)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Click(geo.LngLat{Lng: float64(i % 90), Lat: 0}, zoneA()) {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Fatalf("accepted clicks = %d, want 1", accepted)
	}
	client.next(t).reply <- reply{text: "ok"}
	waitSettled(t, s)

	total, maxOut := client.stats()
	if total != 1 || maxOut != 1 {
		t.Errorf("total = %d, max outstanding = %d; want 1, 1", total, maxOut)
	}
}

func TestSession_CloseCancelsInFlight(t *testing.T) {
	client := newGatedClient()
	s := newTestSession(client)

	s.Click(geo.LngLat{}, zoneA())
	c := client.next(t)
	s.Close()

	select {
	case <-c.ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight call was not cancelled")
	}

	st := waitSettled(t, s)
	if st.Status != StatusLoaded || *st.Result != DefaultFailureMessage {
		t.Errorf("cancelled session state = %+v", st)
	}
	if s.Click(geo.LngLat{}, zoneA()) {
		t.Error("closed session must reject clicks")
	}
}

func TestSession_TimeoutSettles(t *testing.T) {
	client := newGatedClient()
	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	s := NewSession(client, cfg, zap.NewNop())

	s.Click(geo.LngLat{}, zoneA())
	client.next(t)

	st := waitSettled(t, s)
	if st.Status != StatusLoaded || *st.Result != DefaultFailureMessage {
		t.Errorf("timed out session state = %+v", st)
	}
}

func TestSession_PanicSettles(t *testing.T) {
	s := newTestSession(panicClient{})

	s.Click(geo.LngLat{}, zoneA())

	st := waitSettled(t, s)
	if st.Status != StatusLoaded || *st.Result != DefaultFailureMessage {
		t.Errorf("panicking client left state %+v", st)
	}
}

func TestSession_CustomConfig(t *testing.T) {
	client := newGatedClient()
	s := NewSession(client, Config{
		PromptTemplate: "O que é {description}?",
		FailureMessage: "Erro, tente novamente.",
		DescriptionKey: "description",
	}, zap.NewNop())

	f := feature.Reconstruct(0, nil, map[string]any{"description": "Zona Mista"})
	s.Click(geo.LngLat{}, &f)

	c := client.next(t)
	if c.prompt != "O que é Zona Mista?" {
		t.Errorf("prompt = %q", c.prompt)
	}
	c.reply <- reply{err: errors.New("fail")}
	if st := waitSettled(t, s); *st.Result != "Erro, tente novamente." {
		t.Errorf("result = %q", *st.Result)
	}
}

func TestSession_SnapshotIsCopy(t *testing.T) {
	client := newGatedClient()
	s := newTestSession(client)

	s.Click(geo.LngLat{Lng: 1, Lat: 1}, zoneA())
	st := s.Snapshot()
	st.Marker.Lng = 99

	if s.Snapshot().Marker.Lng != 1 {
		t.Error("snapshot shares marker with session")
	}
	client.next(t).reply <- reply{text: "x"}
	waitSettled(t, s)
}
