package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/dto"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const flow = `{
  "startNode": "1",
  "nodes": [
    {"id": "1", "question": "Need help?", "questionType": "OptionsWithText",
     "answers": [{"response": "No", "nextNode": "2"}]},
    {"id": "2", "question": "Bye", "questionType": "Terminal"}
  ]
}`

func newTestServer(t *testing.T) (*httptest.Server, *parley.Engine) {
	t.Helper()
	catalog, err := memory.NewLoader(map[string]string{"workflow.json": flow})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	eng, err := parley.New(
		parley.WithCatalog(catalog),
		parley.WithCompleter(memory.NewCompleter("Sure, ask away.")),
		parley.WithMetrics(observability.NewMetrics(reg)),
	)
	require.NoError(t, err)

	srv := httptest.NewServer(NewHandler(eng, WithGatherer(reg), WithMaxInputSize(64)))
	t.Cleanup(srv.Close)
	return srv, eng
}

// readSSE parses "event:"/"data:" frames until the body ends.
func readSSE(t *testing.T, resp *http.Response) []domain.Event {
	t.Helper()
	var events []domain.Event
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev domain.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestPostMessage_StreamsTurn(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := post(t, srv.URL+"/conversations/c1/messages", `{"text": "how does this work?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := readSSE(t, resp)
	require.NotEmpty(t, events)
	var text strings.Builder
	for _, ev := range events[:len(events)-2] {
		assert.Equal(t, domain.EventStreamChunk, ev.Type)
		text.WriteString(ev.Text)
	}
	assert.Equal(t, "Sure, ask away.", text.String())
	assert.Equal(t, domain.EventStreamEnd, events[len(events)-2].Type)
	assert.Equal(t, domain.EventPresentNode, events[len(events)-1].Type)
	assert.Equal(t, "1", events[len(events)-1].NodeID)
}

func TestPostMessage_RejectsOversizedInput(t *testing.T) {
	srv, eng := newTestServer(t)

	resp := post(t, srv.URL+"/conversations/c1/messages", `{"text": "`+strings.Repeat("a", 65)+`"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, eng.Conversations())
}

func TestPostMessage_InvalidBody(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := post(t, srv.URL+"/conversations/c1/messages", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConversationLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/conversations/c1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var present domain.Event
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&present))
	assert.Equal(t, "1", present.NodeID)
	assert.NotNil(t, present.Payload)

	readSSE(t, post(t, srv.URL+"/conversations/c1/messages", `{"text": "no"}`))

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/conversations/c1/user", strings.NewReader(`{"userName": "Ada"}`))
	putResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer putResp.Body.Close()
	require.Equal(t, http.StatusOK, putResp.StatusCode)

	trResp, err := http.Get(srv.URL + "/conversations/c1/transcript")
	require.NoError(t, err)
	defer trResp.Body.Close()
	var tr transcriptResponse
	require.NoError(t, json.NewDecoder(trResp.Body).Decode(&tr))
	assert.Equal(t, "Ada", tr.UserName)
	assert.Equal(t, "1", tr.CurrentNode, "binding a workflow starts over")
	require.Len(t, tr.Turns, 1)
	assert.Equal(t, "no", tr.Turns[0].Text)
}

func TestGetTranscript_Unknown(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/conversations/ghost/transcript")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubscribeEvents(t *testing.T) {
	srv, eng := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/conversations/c1/events", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.NoError(t, eng.Converse(context.Background(), "c1", "no", nil))

	got := make(chan domain.Event, 1)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
				var ev domain.Event
				if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev) == nil {
					got <- ev
					return
				}
			}
		}
	}()

	select {
	case ev := <-got:
		assert.Equal(t, "2", ev.NodeID)
		assert.True(t, ev.Terminal)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestWorkflowEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/workflows")
	require.NoError(t, err)
	var list map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	assert.Equal(t, []string{"workflow.json"}, list["workflows"])

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/workflows/workflow.json/nodes/3",
		strings.NewReader(`{"id": 3, "question": "More?", "questionType": "Text"}`))
	putResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var doc dto.WorkflowDocument
	require.NoError(t, json.NewDecoder(putResp.Body).Decode(&doc))
	putResp.Body.Close()
	assert.Len(t, doc.Nodes, 3)

	req, _ = http.NewRequest(http.MethodPut, srv.URL+"/workflows/workflow.json/nodes/4",
		strings.NewReader(`{"id": "5"}`))
	mismatch, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	mismatch.Body.Close()
	assert.Equal(t, http.StatusBadRequest, mismatch.StatusCode)

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/workflows/workflow.json/nodes/1", nil)
	delStart, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delStart.Body.Close()
	assert.Equal(t, http.StatusConflict, delStart.StatusCode)

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/workflows/workflow.json/nodes/3", nil)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()
	assert.Equal(t, http.StatusOK, del.StatusCode)

	missing, err := http.Get(srv.URL + "/workflows/nope.json")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestGetDiagram(t *testing.T) {
	srv, eng := newTestServer(t)
	require.NoError(t, eng.Present(context.Background(), "c1", nil))

	resp, err := http.Get(srv.URL + "/workflows/workflow.json/diagram?conversation=c1")
	require.NoError(t, err)
	defer resp.Body.Close()

	var sb strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		sb.WriteString(scanner.Text() + "\n")
	}
	assert.Contains(t, sb.String(), "graph TD")
	assert.Contains(t, sb.String(), "class n_1 current;")
}

func TestHealthCORSAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/conversations/c1/messages", nil)
	pre, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	pre.Body.Close()
	assert.Equal(t, http.StatusOK, pre.StatusCode)

	readSSE(t, post(t, srv.URL+"/conversations/c1/messages", `{"text": "no"}`))

	m, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer m.Body.Close()
	var sb strings.Builder
	scanner := bufio.NewScanner(m.Body)
	for scanner.Scan() {
		sb.WriteString(scanner.Text() + "\n")
	}
	assert.Contains(t, sb.String(), `parley_turns_total{outcome="transition"} 1`)
	assert.Contains(t, sb.String(), "parley_sessions_created_total 1")
}
