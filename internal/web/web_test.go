package web

import (
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresmejia3/thermosentinel/internal/capture"
	"github.com/andresmejia3/thermosentinel/internal/metrics"
	"github.com/andresmejia3/thermosentinel/internal/series"
	"github.com/andresmejia3/thermosentinel/internal/sink"
	"github.com/andresmejia3/thermosentinel/internal/thermal"
	"github.com/andresmejia3/thermosentinel/internal/types"
)

func result(temp float64) *capture.Result {
	return &capture.Result{
		Cycle:   1,
		Frame:   &capture.Frame{Time: time.Now(), Visible: image.NewRGBA(image.Rect(0, 0, 32, 24))},
		Scale:   8,
		Primary: thermal.PrimaryMedian,
		Faces: []types.FaceStats{{
			Stats: types.Stats{Max: temp, Min: temp, Mean: temp, Median: temp},
		}},
	}
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHTTPEndpoints(t *testing.T) {
	s := series.New[float64](10)
	hub := NewHub(s)
	srv := httptest.NewServer(hub.Handler(metrics.NewRegistry()))
	defer srv.Close()

	resp, _ := get(t, srv.URL+"/still.jpg")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp, _ = get(t, srv.URL+"/report")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	res := result(36.5)
	require.NoError(t, sink.Series{S: s}.Render(context.Background(), res))
	require.NoError(t, hub.Render(context.Background(), res))
	hub.SetStill([]byte{0xff, 0xd8, 0xff, 0xd9})

	resp, body := get(t, srv.URL+"/still.jpg")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, []byte{0xff, 0xd8, 0xff, 0xd9}, body)

	resp, body = get(t, srv.URL+"/report")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var report sink.Report
	require.NoError(t, json.Unmarshal(body, &report))
	require.Len(t, report.Faces, 1)
	assert.Equal(t, 36.5, report.Faces[0].Temperature)

	_, body = get(t, srv.URL+"/series")
	var pts []series.Point[float64]
	require.NoError(t, json.Unmarshal(body, &pts))
	require.Len(t, pts, 1)
	assert.Equal(t, 36.5, pts[0].Value)

	_, body = get(t, srv.URL+"/metrics")
	assert.Contains(t, string(body), "thermosentinel_cycle_duration_seconds")

	resp, body = get(t, srv.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "/stream")

	resp, _ = get(t, srv.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStillIsCopied(t *testing.T) {
	hub := NewHub(nil)
	img := []byte{1, 2, 3}
	hub.SetStill(img)
	img[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, hub.Still())
}

func TestStream(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub.Handler(nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Render(context.Background(), result(37.2)))
	hub.SetStill([]byte{0xff, 0xd8})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	assert.Equal(t, byte(kindReport), data[0])
	var report sink.Report
	require.NoError(t, json.Unmarshal(data[1:], &report))
	assert.Equal(t, 37.2, report.Faces[0].Temperature)

	kind, data, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)
	assert.Equal(t, []byte{kindImage, 0xff, 0xd8}, data)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcastNeverBlocks(t *testing.T) {
	hub := NewHub(nil)
	ch := hub.subscribe()
	defer hub.unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < clientQueue*3; i++ {
			hub.SetStill([]byte{byte(i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
	assert.Len(t, ch, clientQueue)
}

func TestServeShutsDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- Serve(ctx, "127.0.0.1:0", NewHub(nil).Handler(nil)) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
