package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"mcpchat/chat"
	"mcpchat/mcp"
	"mcpchat/model"
	"mcpchat/provider/testutil"
	"mcpchat/storage"
)

type fakeTools struct {
	mu       sync.Mutex
	tools    []model.ToolDescriptor
	started  []string
	stopped  []string
	startErr error
}

func (f *fakeTools) ListTools() []model.ToolDescriptor { return f.tools }

func (f *fakeTools) StartServer(_ context.Context, cfg mcp.ServerConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, cfg.ID)
	return nil
}

func (f *fakeTools) StopServer(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, id)
	return nil
}

func (f *fakeTools) Statuses() []mcp.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []mcp.Status
	for _, id := range f.started {
		out = append(out, mcp.Status{ID: id, Running: true, Tools: len(f.tools)})
	}
	return out
}

func newTestHandlers(t *testing.T, turns ...[]model.StreamEvent) (*Handlers, *fakeTools, *testutil.MockToolCaller) {
	t.Helper()
	caller := &testutil.MockToolCaller{Results: map[string]string{
		"get_weather": testutil.TextResult("sunny"),
	}}
	orch := chat.NewOrchestrator(testutil.NewMockProvider(turns...), caller, chat.Options{})
	tools := &fakeTools{tools: testutil.TestTools()}

	store, err := storage.NewServerStore(filepath.Join(t.TempDir(), "servers.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return NewHandlers(orch, tools, store, nil), tools, caller
}

func readFrames(t *testing.T, body *bytes.Buffer) []model.Event {
	t.Helper()
	var events []model.Event
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			t.Fatalf("unexpected line %q", line)
		}
		var ev model.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			t.Fatalf("decode frame %q: %v", payload, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	rr := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Fatalf("health = %d %s", rr.Code, rr.Body.String())
	}
}

func TestListTools(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	rr := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/tools", nil))

	var tools []model.ToolDescriptor
	if err := json.Unmarshal(rr.Body.Bytes(), &tools); err != nil {
		t.Fatalf("decode: %v (%s)", err, rr.Body.String())
	}
	if len(tools) != 2 || tools[0].Name != "get_weather" {
		t.Errorf("tools = %+v", tools)
	}
}

func TestChatStreamsEvents(t *testing.T) {
	h, _, caller := newTestHandlers(t,
		testutil.ToolTurn("call_1", "get_weather", `{"location":"Paris"}`),
		testutil.TextTurn("It is ", "sunny."),
	)

	body := `{"message":"weather in Paris?"}`
	rr := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body)))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	events := readFrames(t, rr.Body)
	var got []string
	for _, ev := range events {
		got = append(got, ev.Type)
	}
	want := []string{
		model.EventToolExecutionStart,
		model.EventToolExecutionResult,
		model.EventContent,
		model.EventContent,
		model.EventDone,
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("event types = %v, want %v", got, want)
	}
	if events[1].IsError || events[1].ToolName != "get_weather" {
		t.Errorf("tool result event = %+v", events[1])
	}
	done := events[len(events)-1]
	if n := len(done.Messages); n != 4 {
		t.Errorf("final history has %d messages, want 4", n)
	}
	if inv := caller.Invocations(); len(inv) != 1 || inv[0].Args["location"] != "Paris" {
		t.Errorf("invocations = %+v", inv)
	}
}

func TestChatRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"not json", "{", "invalid request body"},
		{"empty", `{"messages":[]}`, "messages are required"},
		{"bad role", `{"messages":[{"role":"wizard","content":"hi"}]}`, "unknown role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, _ := newTestHandlers(t)
			rr := httptest.NewRecorder()
			NewRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(tt.body)))

			if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), tt.want) {
				t.Errorf("got %d %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestServersLifecycle(t *testing.T) {
	h, tools, _ := newTestHandlers(t)
	router := NewRouter(h)

	add := `{"id":"weather","name":"Weather","transport":"stdio","command":"weather-mcp",
		"env":{"API_KEY":"s3cret","REGION":"eu"},"enabled":true}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/servers", strings.NewReader(add)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("add = %d %s", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "s3cret") {
		t.Errorf("secret leaked in response: %s", rr.Body.String())
	}
	if len(tools.started) != 1 || tools.started[0] != "weather" {
		t.Errorf("started = %v", tools.started)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/servers", nil))
	var views []serverView
	if err := json.Unmarshal(rr.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 1 || !views[0].Running || views[0].Tools != 2 {
		t.Fatalf("views = %+v", views)
	}
	if views[0].Env["API_KEY"] != redacted || views[0].Env["REGION"] != "eu" {
		t.Errorf("env = %v", views[0].Env)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/servers/weather", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete = %d %s", rr.Code, rr.Body.String())
	}
	if len(tools.stopped) != 1 {
		t.Errorf("stopped = %v", tools.stopped)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/servers/weather", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("second delete = %d", rr.Code)
	}
}

func TestAddServerValidationAndStartFailure(t *testing.T) {
	h, tools, _ := newTestHandlers(t)
	router := NewRouter(h)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/servers",
		strings.NewReader(`{"id":"x","transport":"ftp"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid transport = %d", rr.Code)
	}

	tools.startErr = errors.New("exec: not found")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/servers",
		strings.NewReader(`{"transport":"sse","url":"http://localhost:1/sse","enabled":true}`)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("add = %d %s", rr.Code, rr.Body.String())
	}
	var view serverView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view.ID == "" || view.Running || !strings.Contains(view.Error, "not found") {
		t.Errorf("view = %+v", view)
	}
}

func TestServersWithoutStore(t *testing.T) {
	h := NewHandlers(nil, &fakeTools{}, nil, nil)
	rr := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/servers", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestServerServeAndShutdown(t *testing.T) {
	h, _, _ := newTestHandlers(t, testutil.TextTurn("hello"))
	srv := New(DefaultConfig("127.0.0.1:0"), h)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	url := fmt.Sprintf("http://%s/api/chat", ln.Addr())
	resp, err := http.Post(url, "application/json", strings.NewReader(`{"message":"hi"}`))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	events := readFrames(t, &buf)
	if len(events) != 2 || events[0].Content != "hello" || events[1].Type != model.EventDone {
		t.Errorf("events = %+v", events)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := <-errc; err != nil {
		t.Errorf("Serve returned %v", err)
	}
}
