package httpapi

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ttleague/livesync/internal/interfaces/stream"
)

func readFrames(t *testing.T, body *bufio.Reader, count int) []stream.Envelope {
	t.Helper()

	frames := make([]stream.Envelope, 0, count)
	deadline := time.After(5 * time.Second)
	lines := make(chan string, 8)
	go func() {
		for {
			line, err := body.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			lines <- line
		}
	}()

	for len(frames) < count {
		select {
		case <-deadline:
			t.Fatalf("timed out after %d of %d frames", len(frames), count)
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("stream closed after %d of %d frames", len(frames), count)
			}
			if line == "\n" || line == "" {
				continue
			}
			env, err := stream.DecodeFrame([]byte(line + "\n"))
			require.NoError(t, err)
			frames = append(frames, env)
		}
	}
	return frames
}

func TestWatchMatchStreamsInitialState(t *testing.T) {
	fx := newAPIFixture(t, fixedLocker{acquired: true})

	rec := doJSON(t, fx.router, http.MethodPost, "/live/submit_match",
		`{"result": `+scheduledPayload("42")+`}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	server := httptest.NewServer(fx.router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/live/watch_match/42")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	frames := readFrames(t, bufio.NewReader(resp.Body), 2)
	types := map[string]bool{}
	for _, env := range frames {
		types[env.Type] = true
	}
	require.True(t, types[stream.FrameMatchListUpdate], "expected an initial list frame")
	require.True(t, types[stream.FrameMatchUpdate], "expected an initial match frame")
}

func TestWatchMatchWithoutSubscriptionOnlyStreamsList(t *testing.T) {
	fx := newAPIFixture(t, fixedLocker{acquired: true})

	rec := doJSON(t, fx.router, http.MethodPost, "/live/submit_match",
		`{"result": `+scheduledPayload("42")+`}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	server := httptest.NewServer(fx.router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/live/watch_match")
	require.NoError(t, err)
	defer resp.Body.Close()

	frames := readFrames(t, bufio.NewReader(resp.Body), 1)
	require.Equal(t, stream.FrameMatchListUpdate, frames[0].Type)
}
