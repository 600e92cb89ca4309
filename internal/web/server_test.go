package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gmulz/viam-automated-gate/internal/command"
	"github.com/gmulz/viam-automated-gate/internal/history"
	"github.com/gmulz/viam-automated-gate/internal/logging"
	"github.com/gmulz/viam-automated-gate/internal/status"
)

// fakeDispatcher returns a scripted response for any command.
type fakeDispatcher struct {
	resp map[string]any
	err  error

	lastSource string
	lastCmd    map[string]any
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, source string, cmd map[string]any) (map[string]any, error) {
	f.lastSource = source
	f.lastCmd = cmd
	return f.resp, f.err
}

func newTestServer(t *testing.T, d *fakeDispatcher, hist history.Repository) (*httptest.Server, *status.Tracker) {
	t.Helper()
	tracker := status.NewTracker(time.Now(), status.Config{
		Name:     "front",
		Broker:   "tcp://localhost:1883",
		HTTPAddr: ":8080",
	})
	s := New(":0", tracker, d, hist, logging.Default())
	ts := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tracker
}

func postCommand(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+"/api/v1/command", "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("POST command: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func TestCommandSuccess(t *testing.T) {
	d := &fakeDispatcher{resp: map[string]any{"status": "open"}}
	ts, _ := newTestServer(t, d, nil)

	resp := postCommand(t, ts.URL, `{"open": true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != "open" {
		t.Errorf("body = %v", body)
	}
	if d.lastSource != "http" {
		t.Errorf("source = %q, want http", d.lastSource)
	}
}

func TestCommandBusyConflict(t *testing.T) {
	d := &fakeDispatcher{resp: map[string]any{"status": "busy"}}
	ts, _ := newTestServer(t, d, nil)

	resp := postCommand(t, ts.URL, `{"close": true}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != "busy" {
		t.Errorf("body = %v", body)
	}
}

func TestCommandInvalid(t *testing.T) {
	d := &fakeDispatcher{err: command.ErrInvalidCommand}
	ts, _ := newTestServer(t, d, nil)

	resp := postCommand(t, ts.URL, `{"launch": true}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["code"] != "bad_request" {
		t.Errorf("body = %v", body)
	}
}

func TestCommandMalformedJSON(t *testing.T) {
	d := &fakeDispatcher{resp: map[string]any{"status": "open"}}
	ts, _ := newTestServer(t, d, nil)

	resp := postCommand(t, ts.URL, `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestStatusEndpoint(t *testing.T) {
	ts, tracker := newTestServer(t, &fakeDispatcher{}, nil)
	tracker.SetLive("closed", 1000, false)
	tracker.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/api/v1/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var sj StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()

	if sj.Status.State != "closed" || sj.Status.Position != 1000 {
		t.Errorf("status = %+v", sj.Status)
	}
	if !sj.Status.MQTT.Connected || sj.Status.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("mqtt = %+v", sj.Status.MQTT)
	}
	if sj.Status.Config.Name != "front" {
		t.Errorf("config = %+v", sj.Status.Config)
	}
}

func TestPositionEndpoint(t *testing.T) {
	d := &fakeDispatcher{resp: map[string]any{"status": "position", "position": 42.0}}
	ts, _ := newTestServer(t, d, nil)

	resp, err := http.Get(ts.URL + "/api/v1/position")
	if err != nil {
		t.Fatalf("GET position: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["position"] != 42.0 {
		t.Errorf("body = %v", body)
	}
	if !d.lastCmd["position"].(bool) {
		t.Errorf("dispatched cmd = %v", d.lastCmd)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	repo := &history.FakeRepository{}
	for _, op := range []string{"open", "close"} {
		repo.Record(context.Background(), history.Entry{Op: op, Source: "http", FinishedAt: time.Now()})
	}
	ts, _ := newTestServer(t, &fakeDispatcher{}, repo)

	resp, err := http.Get(ts.URL + "/api/v1/history")
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["count"] != 2.0 {
		t.Errorf("count = %v, want 2", body["count"])
	}
	ops := body["operations"].([]any)
	first := ops[0].(map[string]any)
	if first["op"] != "close" {
		t.Errorf("first entry = %v, want newest first", first)
	}
}

func TestHistoryLimitRejected(t *testing.T) {
	ts, _ := newTestServer(t, &fakeDispatcher{}, &history.FakeRepository{})

	for _, raw := range []string{"0", "-1", "abc"} {
		resp, err := http.Get(ts.URL + "/api/v1/history?limit=" + raw)
		if err != nil {
			t.Fatalf("GET history: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want 400", raw, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestHistoryDisabled(t *testing.T) {
	ts, _ := newTestServer(t, &fakeDispatcher{}, nil)

	resp, err := http.Get(ts.URL + "/api/v1/history")
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, &fakeDispatcher{}, nil)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestIndexHTML(t *testing.T) {
	ts, tracker := newTestServer(t, &fakeDispatcher{}, nil)
	tracker.SetLive("open", 25, false)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	page := string(raw)
	if !strings.Contains(page, "Gate: front") || !strings.Contains(page, "open") {
		t.Errorf("page missing expected content:\n%s", page)
	}
}
