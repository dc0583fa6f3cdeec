package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

type meetingState struct {
	ID         string
	Title      string
	StartedAt  time.Time
	Stopped    bool
	ChunkCount int

	mu sync.Mutex
}

var (
	meetings   = make(map[string]*meetingState)
	meetingsMu sync.Mutex
	nextID     int
)

func startHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	meetingsMu.Lock()
	nextID++
	id := fmt.Sprintf("meeting-%d", nextID)
	meetings[id] = &meetingState{ID: id, Title: req.Title, StartedAt: time.Now()}
	meetingsMu.Unlock()

	log.Printf("🎬 MEETING STARTED: %s (%q)", id, req.Title)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"meeting_id": id,
		"title":      req.Title,
		"status":     "active",
	})
}

func lookupMeeting(w http.ResponseWriter, r *http.Request) (*meetingState, string, bool) {
	// Path shape: /api/meetings/{id}/{op}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/meetings/"), "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return nil, "", false
	}

	meetingsMu.Lock()
	m, ok := meetings[parts[0]]
	meetingsMu.Unlock()

	if !ok {
		http.Error(w, "Meeting not found", http.StatusNotFound)
		return nil, "", false
	}

	return m, parts[1], true
}

func meetingHandler(w http.ResponseWriter, r *http.Request) {
	m, op, ok := lookupMeeting(w, r)
	if !ok {
		return
	}

	switch op {
	case "audio":
		audioHandler(w, r, m)
	case "stream":
		streamHandler(w, r, m)
	case "minutes":
		minutesHandler(w, r, m)
	case "stop":
		stopHandler(w, r, m)
	default:
		http.NotFound(w, r)
	}
}

func audioHandler(w http.ResponseWriter, r *http.Request, m *meetingState) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	timestamp := r.FormValue("timestamp")
	isFinal := r.FormValue("is_final")

	file, header, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	m.mu.Lock()
	m.ChunkCount++
	count := m.ChunkCount
	m.mu.Unlock()

	log.Printf("🎤 AUDIO CHUNK RECEIVED:")
	log.Printf("    Meeting: %s", m.ID)
	log.Printf("    Chunk #: %d", count)
	log.Printf("    Filename: %s (%d bytes)", header.Filename, len(audioData))
	log.Printf("    Timestamp: %s", timestamp)
	log.Printf("    Is Final: %s", isFinal)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "received",
		"chunk_count": count,
	})
}

// fakeMinutes builds the minutes payload the real service would stream
func fakeMinutes(m *meetingState) map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	transcript := make([]map[string]interface{}, 0, m.ChunkCount)
	for i := 0; i < m.ChunkCount; i++ {
		transcript = append(transcript, map[string]interface{}{
			"id":          fmt.Sprintf("%s-entry-%d", m.ID, i),
			"speaker":     "Speaker 1",
			"text":        fmt.Sprintf("Simulated transcript for segment %d.", i),
			"timestamp":   float64(i) * 5.0,
			"is_question": false,
		})
	}

	status := "active"
	if m.Stopped {
		status = "completed"
	}

	return map[string]interface{}{
		"transcript":     transcript,
		"qa_pairs":       []interface{}{},
		"total_speakers": 1,
		"status":         status,
	}
}

func streamHandler(w http.ResponseWriter, r *http.Request, m *meetingState) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	log.Printf("📡 SSE STREAM OPENED: %s", m.ID)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Printf("📡 SSE STREAM CLOSED: %s", m.ID)
			return
		case <-ticker.C:
			payload, _ := json.Marshal(fakeMinutes(m))
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()

			m.mu.Lock()
			stopped := m.Stopped
			m.mu.Unlock()
			if stopped {
				return
			}
		}
	}
}

func minutesHandler(w http.ResponseWriter, r *http.Request, m *meetingState) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(fakeMinutes(m))
}

func stopHandler(w http.ResponseWriter, r *http.Request, m *meetingState) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m.mu.Lock()
	m.Stopped = true
	chunks := m.ChunkCount
	m.mu.Unlock()

	log.Printf("🏁 MEETING STOPPED: %s (%d chunks)", m.ID, chunks)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":     "completed",
		"meeting_id": m.ID,
		"pdf_url":    fmt.Sprintf("/api/meetings/%s/pdf", m.ID),
	})
}

func main() {
	http.HandleFunc("/api/meetings/start", startHandler)
	http.HandleFunc("/api/meetings/", meetingHandler)

	port := ":5000"
	log.Printf("🚀 Test Meeting Server starting on port %s", port)
	log.Printf("📡 Base URL: http://localhost%s", port)
	log.Println("💡 Update your config to use: base_url: http://localhost:5000")

	if err := http.ListenAndServe(port, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
