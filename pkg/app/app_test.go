package app

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fsklink/pkg/app/config"
	"fsklink/pkg/mqtt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	c := config.NewConfig()
	c.Simulate = true
	c.Output = "none"
	c.Gpio.Led = -1
	c.Demodulator.BitClock = 833 * time.Microsecond
	c.Webserver.Webservices["send"] = true
	c.MQTT.Topic = "/test/fsklink"
	c.MQTT.Interval = time.Hour
	return c
}

// newTestApp initializes a simulated application without web server and broker.
func newTestApp(t *testing.T, c *config.Config) *App {
	t.Helper()

	a, err := New(c)
	require.NoError(t, err)
	require.NoError(t, a.init())
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func doRequest(t *testing.T, a *App, method, target string, body io.Reader) (*http.Response, []byte) {
	t.Helper()

	resp, err := a.web.Test(httptest.NewRequest(method, target, body))
	require.NoError(t, err)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, b
}

func TestApp_SendAndReceive(t *testing.T) {
	a := newTestApp(t, testConfig())
	go a.mqtt.Service()
	a.start()

	resp, body := doRequest(t, a, http.MethodPost, "/send", strings.NewReader("hello"))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.JSONEq(t, `{"queued":5}`, string(body))

	var d Data
	require.Eventually(t, func() bool {
		_, body := doRequest(t, a, http.MethodGet, "/data", nil)
		if err := json.Unmarshal(body, &d); err != nil {
			return false
		}
		return d.Received == 5
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, "hello", d.Text)
	assert.Equal(t, "68656c6c6f", d.Hex)

	resp, body = doRequest(t, a, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var s Stats
	require.NoError(t, json.Unmarshal(body, &s))
	assert.Equal(t, uint64(5), s.Demodulator.Frames)
	assert.Equal(t, uint64(5), s.Demodulator.Starts)
	assert.Zero(t, s.Demodulator.ParityErrors)
	assert.Zero(t, s.Demodulator.Buffered)
	assert.False(t, s.ErrorFlag)
}

func TestApp_SendErrors(t *testing.T) {
	a := newTestApp(t, testConfig())

	resp, _ := doRequest(t, a, http.MethodPost, "/send", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	a.transmitter = nil
	resp, _ = doRequest(t, a, http.MethodPost, "/send", strings.NewReader("x"))
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestApp_DisabledWebservice(t *testing.T) {
	c := testConfig()
	c.Webserver.Webservices["send"] = false
	c.Webserver.Webservices["stats"] = false
	a := newTestApp(t, c)

	resp, _ := doRequest(t, a, http.MethodPost, "/send", strings.NewReader("x"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = doRequest(t, a, http.MethodGet, "/stats", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestApp_VersionAndHealth(t *testing.T) {
	a := newTestApp(t, testConfig())

	resp, body := doRequest(t, a, http.MethodGet, "/version", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v map[string]string
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Equal(t, VERSION, v["version"])
	assert.Equal(t, MODULE, v["description"])
	assert.Equal(t, "fsklink V1.0.0", v["about"])

	resp, body = doRequest(t, a, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var h struct {
		Version  string
		Simulate bool
		State    string
	}
	require.NoError(t, json.Unmarshal(body, &h))
	assert.Equal(t, VERSION, h.Version)
	assert.True(t, h.Simulate)
	assert.Equal(t, "StartDetect", h.State)
}

func TestApp_ValidateStats(t *testing.T) {
	a := newTestApp(t, testConfig())

	a.validateStats()
	msg := receiveMessage(t, a.mqtt)
	assert.Equal(t, "/test/fsklink/stats", msg.Topic)
	var s Stats
	require.NoError(t, json.Unmarshal(msg.Payload, &s))
	assert.Equal(t, "StartDetect", s.State)

	// nothing changed within the interval
	a.validateStats()
	select {
	case msg := <-a.mqtt.C:
		t.Fatalf("unexpected message %v", msg.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestApp_Received(t *testing.T) {
	c := testConfig()
	c.Output = filepath.Join(t.TempDir(), "received.txt")
	a := newTestApp(t, c)

	a.received([]byte("ab"))
	msg := receiveMessage(t, a.mqtt)
	assert.Equal(t, "/test/fsklink/data", msg.Topic)
	var d Data
	require.NoError(t, json.Unmarshal(msg.Payload, &d))
	assert.Equal(t, "ab", d.Text)

	a.received([]byte("c"))
	_ = receiveMessage(t, a.mqtt)

	require.NoError(t, a.output.Close())
	b, err := os.ReadFile(c.Output)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(b))
	assert.Equal(t, uint64(3), a.recent.data().Received)
}

func TestRecent(t *testing.T) {
	r := newRecent(4)
	r.add([]byte("abc"))
	d := r.add([]byte("def"))
	assert.Equal(t, "def", d.Text)
	assert.Equal(t, uint64(6), d.Received)

	d = r.data()
	assert.Equal(t, "cdef", d.Text)
	assert.Equal(t, "63646566", d.Hex)
	assert.Equal(t, uint64(6), d.Received)
}

func TestOpenOutput(t *testing.T) {
	for _, name := range []string{"", "none", "stdout", "stderr"} {
		w, err := openOutput(name)
		require.NoError(t, err, name)
		assert.NoError(t, w.Close())
	}

	_, err := openOutput(filepath.Join(t.TempDir(), "missing", "out.txt"))
	assert.Error(t, err)
}

func TestNew_InvalidURL(t *testing.T) {
	c := testConfig()
	c.Webserver.URL = "http://[::1"
	a, err := New(c)
	assert.Error(t, err)
	assert.NoError(t, a.Close())
}

func receiveMessage(t *testing.T, m *mqtt.Handler) mqtt.Message {
	t.Helper()

	select {
	case msg := <-m.C:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no mqtt message")
	}
	return mqtt.Message{}
}
