package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/go-readaloud/internal/audio"
	"github.com/example/go-readaloud/internal/pipeline"
	"github.com/example/go-readaloud/internal/playback"
	"github.com/example/go-readaloud/internal/server"
	"github.com/example/go-readaloud/internal/synth"
	"github.com/example/go-readaloud/internal/text"
)

// stubReader is a Reader with a scripted Run.
type stubReader struct {
	mu     sync.Mutex
	texts  []string
	voices []synth.Voice
	run    func(ctx context.Context, txt string) (pipeline.Summary, error)
}

func (s *stubReader) Run(ctx context.Context, txt string, voice synth.Voice) (pipeline.Summary, error) {
	s.mu.Lock()
	s.texts = append(s.texts, txt)
	s.voices = append(s.voices, voice)
	s.mu.Unlock()
	if s.run != nil {
		return s.run(ctx, txt)
	}
	n := len(text.Segment(txt, text.DefaultStopWordSet()))
	return pipeline.Summary{CallID: "c1", Segments: n, Played: n, Elapsed: time.Second}, nil
}

func (s *stubReader) Segments(txt string) []string {
	return text.Segment(txt, text.DefaultStopWordSet())
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&m))
	return m
}

func TestHealth_Returns200WithStatusOK(t *testing.T) {
	h := server.NewHandler(&stubReader{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["version"])
}

func TestSegments_ReturnsSegments(t *testing.T) {
	h := server.NewHandler(&stubReader{})
	rec := post(t, h, "/segments", `{"text":"Hi. Bye."}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Segments []string `json:"segments"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, []string{"Hi.", " Bye."}, body.Segments)
}

func TestSegments_EmptyTextReturnsEmptyArray(t *testing.T) {
	h := server.NewHandler(&stubReader{})
	rec := post(t, h, "/segments", `{"text":""}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"segments":[]}`, rec.Body.String())
}

func TestSpeak_Success(t *testing.T) {
	r := &stubReader{}
	h := server.NewHandler(r)
	rec := post(t, h, "/speak", `{"text":"One. Two.","lang":"en-US","voice":"en-US-Wavenet-D"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "played 2/2 segments in 1s", body["status"])
	assert.EqualValues(t, 2, body["played"])
	assert.Equal(t, "c1", body["call_id"])
	assert.Equal(t, []synth.Voice{{Lang: "en-US", Name: "en-US-Wavenet-D"}}, r.voices)
}

func TestSpeak_EmptyTextSucceedsTrivially(t *testing.T) {
	h := server.NewHandler(&stubReader{})
	rec := post(t, h, "/speak", `{"text":""}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode(t, rec)["segments"])
}

func TestSpeak_MethodNotAllowed(t *testing.T) {
	h := server.NewHandler(&stubReader{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/speak", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSpeak_InvalidJSON(t *testing.T) {
	h := server.NewHandler(&stubReader{})
	rec := post(t, h, "/speak", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "invalid JSON")
}

func TestSpeak_OversizedTextRejectedAs413(t *testing.T) {
	r := &stubReader{}
	h := server.NewHandler(r, server.WithMaxTextBytes(8))

	rec := post(t, h, "/speak", `{"text":"123456789"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, r.texts, "oversized text must not reach the pipeline")

	rec = post(t, h, "/speak", `{"text":"12345678"}`)
	assert.Equal(t, http.StatusOK, rec.Code, "text at exactly the limit is accepted")
}

func TestSpeak_SegmentFailureBody(t *testing.T) {
	r := &stubReader{run: func(context.Context, string) (pipeline.Summary, error) {
		err := &pipeline.SegmentError{
			Index:  1,
			Text:   " Two.",
			Stage:  pipeline.StageSynthesizing,
			Played: 1,
			Err:    fmt.Errorf("%w: exit status 1", synth.ErrFailed),
		}
		return pipeline.Summary{Segments: 3, Played: 1}, err
	}}
	h := server.NewHandler(r)
	rec := post(t, h, "/speak", `{"text":"One. Two. Three."}`)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, pipeline.KindSynthesisFailed, body["kind"])
	assert.EqualValues(t, 1, body["segment"])
	assert.Equal(t, " Two.", body["text"])
	assert.Equal(t, "synthesizing", body["stage"])
	assert.EqualValues(t, 1, body["played"])
}

func TestSpeak_ErrorKindsMapToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unavailable", synth.ErrUnavailable, http.StatusServiceUnavailable},
		{"decode", fmt.Errorf("wrap: %w", audio.ErrDecode), http.StatusBadGateway},
		{"device", playback.ErrDeviceUnavailable, http.StatusServiceUnavailable},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"canceled", context.Canceled, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &stubReader{run: func(context.Context, string) (pipeline.Summary, error) {
				return pipeline.Summary{}, tt.err
			}}
			rec := post(t, server.NewHandler(r), "/speak", `{"text":"a."}`)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestSpeak_RequestTimeoutCancelsInFlight(t *testing.T) {
	r := &stubReader{run: func(ctx context.Context, _ string) (pipeline.Summary, error) {
		<-ctx.Done()
		return pipeline.Summary{}, ctx.Err()
	}}
	h := server.NewHandler(r, server.WithRequestTimeout(20*time.Millisecond))

	rec := post(t, h, "/speak", `{"text":"slow."}`)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, pipeline.KindCanceled, decode(t, rec)["kind"])
}

func TestSpeak_OneCallAtATime(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		overlap bool
	)
	r := &stubReader{run: func(context.Context, string) (pipeline.Summary, error) {
		mu.Lock()
		active++
		if active > 1 {
			overlap = true
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return pipeline.Summary{}, nil
	}}
	h := server.NewHandler(r)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := post(t, h, "/speak", `{"text":"a."}`)
			assert.Equal(t, http.StatusOK, rec.Code)
		}()
	}
	wg.Wait()
	assert.False(t, overlap, "two calls played at once")
}

func TestSpeak_WaiterCancelledWhileBusy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	r := &stubReader{run: func(context.Context, string) (pipeline.Summary, error) {
		close(started)
		<-release
		return pipeline.Summary{}, nil
	}}
	h := server.NewHandler(r)

	done := make(chan struct{})
	go func() {
		defer close(done)
		post(t, h, "/speak", `{"text":"first."}`)
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/speak", bytes.NewBufferString(`{"text":"second."}`)).WithContext(ctx)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	close(release)
	<-done
}
