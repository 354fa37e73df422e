package devbridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/microcosm-cc/bluemonday"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navigator-sdk/navigator/core"
	"github.com/navigator-sdk/navigator/history"
)

func newSelectAction() history.Action {
	return history.NewAction("intent:select", true)
}

func startTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	c := core.New()
	require.NoError(t, c.Init(context.Background()))
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { c.Stop(context.Background()) })

	s := New(c)
	go s.hub.run()
	s.unsub = s.core.EventBus().On("*", s.relayEvent)
	t.Cleanup(func() { s.unsub() })

	ts := httptest.NewServer(s.engine)
	t.Cleanup(ts.Close)
	return s, ts
}

func TestHealthzReportsRunningAndClientCount(t *testing.T) {
	_, ts := startTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["running"])
	assert.Equal(t, float64(0), body["clients"])
}

func TestStateEndpointReturnsCurrentRootState(t *testing.T) {
	_, ts := startTestServer(t)

	resp, err := http.Get(ts.URL + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body, "Navigation")
}

func TestHistoryEndpointReturnsRecordedActions(t *testing.T) {
	s, ts := startTestServer(t)
	s.core.RecordAction(newSelectAction())

	resp, err := http.Get(ts.URL + "/history?limit=5")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	actions := body["actions"].([]any)
	assert.Len(t, actions, 1)
}

func TestWebsocketReceivesRelayedEventFrame(t *testing.T) {
	s, ts := startTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(20 * time.Millisecond) // let registration land before emitting
	s.core.EventBus().Emit("test:debug-frame", map[string]any{"note": "hello"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(message, &frame))
	assert.Equal(t, "test:debug-frame", frame["name"])
}

func TestSanitizeAnyStripsHTMLFromNestedStrings(t *testing.T) {
	policy := bluemonday.StrictPolicy()
	input := map[string]any{
		"gesture": "<script>alert(1)</script>swipe_right",
		"nested":  map[string]any{"note": "<b>bold</b>"},
		"list":    []any{"<i>x</i>", 3.0},
	}

	out := sanitizeAny(policy, input).(map[string]any)
	assert.Equal(t, "swipe_right", out["gesture"])
	assert.Equal(t, "bold", out["nested"].(map[string]any)["note"])
	assert.Equal(t, "x", out["list"].([]any)[0])
	assert.Equal(t, 3.0, out["list"].([]any)[1])
}

func TestParsePositiveIntRejectsZeroAndNegative(t *testing.T) {
	_, err := parsePositiveInt("0")
	assert.Error(t, err)
	_, err = parsePositiveInt("-3")
	assert.Error(t, err)
	n, err := parsePositiveInt("7")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
