package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/FalconCode786/Minmeet/internal/audio"
	"github.com/FalconCode786/Minmeet/internal/config"
	"github.com/FalconCode786/Minmeet/internal/minutes"
)

// fakeSource simulates a capture device
type fakeSource struct {
	mu            sync.Mutex
	onData        func([]int16)
	startFailures int // number of Start calls to fail before succeeding
}

func (f *fakeSource) Open(c audio.Constraints) error { return nil }

func (f *fakeSource) Start(onData func([]int16)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startFailures > 0 {
		f.startFailures--
		return fmt.Errorf("device busy")
	}
	f.onData = onData
	return nil
}

func (f *fakeSource) Flush() {}

func (f *fakeSource) Close() error { return nil }

func (f *fakeSource) feed(samples []int16) {
	f.mu.Lock()
	onData := f.onData
	f.mu.Unlock()

	if onData != nil {
		onData(samples)
	}
}

// uploadRecord captures what the service saw for one audio upload
type uploadRecord struct {
	Timestamp float64
	IsFinal   bool
	Bytes     int
}

// fakeService implements the meeting service API surface
type fakeService struct {
	mu          sync.Mutex
	started     []string
	uploads     []uploadRecord
	stopCalls   int
	stopFailure int // number of stop requests to fail before succeeding
}

func (s *fakeService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/meetings/start", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title string `json:"title"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		s.mu.Lock()
		s.started = append(s.started, req.Title)
		s.mu.Unlock()

		json.NewEncoder(w).Encode(map[string]string{
			"meeting_id": "meeting-42",
			"title":      req.Title,
			"status":     "active",
		})
	})

	mux.HandleFunc("/api/meetings/meeting-42/audio", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("Failed to parse upload form: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}

		ts, err := strconv.ParseFloat(r.FormValue("timestamp"), 64)
		if err != nil {
			t.Errorf("Invalid timestamp field: %v", err)
		}
		isFinal, err := strconv.ParseBool(r.FormValue("is_final"))
		if err != nil {
			t.Errorf("Invalid is_final field: %v", err)
		}

		file, _, err := r.FormFile("audio")
		if err != nil {
			t.Errorf("Missing audio file: %v", err)
			http.Error(w, "missing audio", http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		file.Close()

		s.mu.Lock()
		s.uploads = append(s.uploads, uploadRecord{Timestamp: ts, IsFinal: isFinal, Bytes: len(data)})
		s.mu.Unlock()

		json.NewEncoder(w).Encode(map[string]string{"status": "received"})
	})

	mux.HandleFunc("/api/meetings/meeting-42/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"transcript\": [{\"id\": \"e1\", \"speaker\": \"Alice\", \"text\": \"hello\"}], \"total_speakers\": 1}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})

	mux.HandleFunc("/api/meetings/meeting-42/minutes", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"transcript": []interface{}{}})
	})

	mux.HandleFunc("/api/meetings/meeting-42/stop", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.stopCalls++
		fail := s.stopFailure > 0
		if fail {
			s.stopFailure--
		}
		s.mu.Unlock()

		if fail {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}

		json.NewEncoder(w).Encode(map[string]string{
			"status":     "completed",
			"meeting_id": "meeting-42",
		})
	})

	return mux
}

func (s *fakeService) uploadSnapshot() []uploadRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uploadRecord, len(s.uploads))
	copy(out, s.uploads)
	return out
}

func (s *fakeService) uploadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Capture: config.CaptureConfig{
			SampleRate:      16000,
			Channels:        1,
			SegmentInterval: 0.08, // 80ms segments keep the test fast
			FlushGraceMs:    10,
			CodecPreference: []string{"pcm"},
			VisualizerRate:  30,
		},
		Service: config.ServiceConfig{
			BaseURL:              baseURL,
			Timeout:              0,
			MaxConcurrentUploads: 4,
		},
		Sync: config.SyncConfig{
			PollInterval: 0.05,
		},
		Logging: config.LoggingConfig{Level: "info", Format: "text", Output: "stderr"},
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met before timeout")
}

// feeder pushes samples into the source until stopped
type feeder struct {
	stop chan struct{}
	wg   sync.WaitGroup
}

func startFeeding(source *fakeSource) *feeder {
	f := &feeder{stop: make(chan struct{})}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for {
			select {
			case <-f.stop:
				return
			case <-time.After(5 * time.Millisecond):
				source.feed([]int16{1, 2, 3, 4})
			}
		}
	}()
	return f
}

func (f *feeder) halt() {
	close(f.stop)
	f.wg.Wait()
}

func TestCoordinatorEndToEnd(t *testing.T) {
	service := &fakeService{}
	server := httptest.NewServer(service.handler(t))
	defer server.Close()

	source := &fakeSource{}
	coordinator, err := New(testConfig(server.URL), source, testLogger(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var mu sync.Mutex
	var entries, finalizes int
	coordinator.SetListeners(Listeners{
		OnEntry: func(e minutes.TranscriptEntry) {
			mu.Lock()
			entries++
			mu.Unlock()
		},
		OnFinalize: func() {
			mu.Lock()
			finalizes++
			mu.Unlock()
		},
	})

	if err := coordinator.Start(context.Background(), "Standup"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	sess := coordinator.Session()
	if sess == nil {
		t.Fatal("Expected an active session")
	}
	if sess.ID != "meeting-42" || sess.Title != "Standup" {
		t.Errorf("Unexpected session: %+v", sess)
	}
	if sess.Status != StatusActive {
		t.Errorf("Expected active status, got %s", sess.Status)
	}

	feed := startFeeding(source)

	// Two segment boundaries pass, and the pushed transcript entry arrives
	waitFor(t, 3*time.Second, func() bool { return service.uploadCount() >= 2 })
	waitFor(t, 3*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return entries >= 1
	})

	if err := coordinator.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	feed.halt()

	uploads := service.uploadSnapshot()
	if len(uploads) < 3 {
		t.Fatalf("Expected at least 3 uploads (2 segments + final), got %d", len(uploads))
	}

	// Exactly one final chunk, delivered last
	for i, u := range uploads {
		wantFinal := i == len(uploads)-1
		if u.IsFinal != wantFinal {
			t.Errorf("Upload %d: expected is_final=%t, got %t", i, wantFinal, u.IsFinal)
		}
		if u.Bytes == 0 {
			t.Errorf("Upload %d: empty audio payload", i)
		}
	}

	// Capture timestamps strictly increase across uploads
	for i := 1; i < len(uploads); i++ {
		if uploads[i].Timestamp <= uploads[i-1].Timestamp {
			t.Errorf("Upload %d timestamp %.3f not after upload %d timestamp %.3f",
				i, uploads[i].Timestamp, i-1, uploads[i-1].Timestamp)
		}
	}

	mu.Lock()
	gotFinalizes := finalizes
	gotEntries := entries
	mu.Unlock()

	if gotFinalizes != 1 {
		t.Errorf("Expected exactly 1 finalize notification, got %d", gotFinalizes)
	}
	if gotEntries != 1 {
		t.Errorf("Expected 1 transcript entry, got %d", gotEntries)
	}

	if sess := coordinator.Session(); sess.Status != StatusCompleted {
		t.Errorf("Expected completed status, got %s", sess.Status)
	}

	// Stopping again is a no-op: no second finalize request
	if err := coordinator.Stop(context.Background()); err != nil {
		t.Fatalf("Second Stop failed: %v", err)
	}

	service.mu.Lock()
	stopCalls := service.stopCalls
	service.mu.Unlock()
	if stopCalls != 1 {
		t.Errorf("Expected exactly 1 stop request, got %d", stopCalls)
	}
}

func TestCoordinatorStopRetry(t *testing.T) {
	service := &fakeService{stopFailure: 1}
	server := httptest.NewServer(service.handler(t))
	defer server.Close()

	source := &fakeSource{}
	coordinator, err := New(testConfig(server.URL), source, testLogger(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := coordinator.Start(context.Background(), "Retro"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	source.feed([]int16{1, 2, 3, 4})

	// The first finalize attempt fails and leaves the session stopping
	if err := coordinator.Stop(context.Background()); err == nil {
		t.Fatal("Expected error from failed finalize")
	}

	if sess := coordinator.Session(); sess.Status != StatusStopping {
		t.Errorf("Expected stopping status after failed finalize, got %s", sess.Status)
	}

	// The retry only re-issues the finalize request
	if err := coordinator.Stop(context.Background()); err != nil {
		t.Fatalf("Retry Stop failed: %v", err)
	}

	if sess := coordinator.Session(); sess.Status != StatusCompleted {
		t.Errorf("Expected completed status after retry, got %s", sess.Status)
	}

	service.mu.Lock()
	stopCalls := service.stopCalls
	service.mu.Unlock()
	if stopCalls != 2 {
		t.Errorf("Expected 2 stop requests, got %d", stopCalls)
	}
}

func TestCoordinatorStartRetryAfterFailure(t *testing.T) {
	service := &fakeService{}
	server := httptest.NewServer(service.handler(t))
	defer server.Close()

	source := &fakeSource{startFailures: 1}
	coordinator, err := New(testConfig(server.URL), source, testLogger(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := coordinator.Start(context.Background(), "Standup"); err == nil {
		t.Fatal("Expected error from failed capture start")
	}

	// A failed start leaves no session behind, so the retry runs the full
	// start sequence again.
	if sess := coordinator.Session(); sess != nil {
		t.Errorf("Expected no session after failed start, got %+v", sess)
	}

	if err := coordinator.Start(context.Background(), "Standup"); err != nil {
		t.Fatalf("Retry Start failed: %v", err)
	}

	sess := coordinator.Session()
	if sess == nil || sess.Status != StatusActive {
		t.Fatalf("Expected an active session after retry, got %+v", sess)
	}

	if err := coordinator.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestCoordinatorDoubleStart(t *testing.T) {
	service := &fakeService{}
	server := httptest.NewServer(service.handler(t))
	defer server.Close()

	coordinator, err := New(testConfig(server.URL), &fakeSource{}, testLogger(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := coordinator.Start(context.Background(), "Standup"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer coordinator.Stop(context.Background())

	if err := coordinator.Start(context.Background(), "Standup"); err == nil {
		t.Error("Expected error on second Start")
	}
}

func TestCoordinatorStopWithoutStart(t *testing.T) {
	service := &fakeService{}
	server := httptest.NewServer(service.handler(t))
	defer server.Close()

	coordinator, err := New(testConfig(server.URL), &fakeSource{}, testLogger(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := coordinator.Stop(context.Background()); err != nil {
		t.Errorf("Expected Stop without a session to be a no-op, got: %v", err)
	}
}
