package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/voicedesk/voicedesk/internal/queue"
)

// defaultSampleRate applies when a request omits sample_rate.
const defaultSampleRate = 24000

// statusResponse is the /status body. Field names are part of the client
// contract.
type statusResponse struct {
	Playing             bool    `json:"playing"`
	Paused              bool    `json:"paused"`
	CurrentProject      *string `json:"current_project"`
	QueueLength         int     `json:"queue_length"`
	PendingReservations int     `json:"pending_reservations"`
	TotalEnqueued       int     `json:"total_enqueued"`
	TotalPlayed         int     `json:"total_played"`
	EstimatedWaitMS     int64   `json:"estimated_wait_ms"`
	DictationActive     bool    `json:"dictation_active"`
	Hotkey              string  `json:"hotkey"`
	HotkeyPressed       bool    `json:"hotkey_pressed"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.start).Seconds()),
		"version":        s.version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.svc.GetStatus()
	resp := statusResponse{
		Playing:             st.Playing,
		Paused:              st.Paused,
		QueueLength:         st.QueueLength,
		PendingReservations: st.PendingReservations,
		TotalEnqueued:       st.TotalEnqueued,
		TotalPlayed:         st.TotalPlayed,
		EstimatedWaitMS:     st.EstimatedWait.Milliseconds(),
		DictationActive:     st.DictationActive,
		Hotkey:              st.Hotkey,
		HotkeyPressed:       st.HotkeyPressed,
	}
	if st.CurrentProject != "" {
		resp.CurrentProject = &st.CurrentProject
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Project  string `json:"project"`
		Priority string `json:"priority"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if body.Project == "" {
		body.Project = "unknown"
	}

	res := s.svc.Reserve(body.Project, queue.ParsePriority(body.Priority))
	writeJSON(w, http.StatusOK, map[string]any{
		"reserved":        true,
		"item_id":         res.ItemID,
		"position":        res.Position,
		"should_announce": res.ShouldAnnounce,
	})
}

func (s *Server) handleFill(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("item_id")

	var body struct {
		AudioData  string `json:"audio_data"`
		SampleRate int    `json:"sample_rate"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if body.AudioData == "" {
		writeError(w, http.StatusBadRequest, "missing audio_data")
		return
	}

	audio, err := base64.StdEncoding.DecodeString(body.AudioData)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid base64 audio_data: "+err.Error())
		return
	}
	if body.SampleRate == 0 {
		body.SampleRate = defaultSampleRate
	}

	if err := s.svc.Fill(itemID, audio, body.SampleRate); err != nil {
		// Not an HTTP failure: the reservation aged out or never
		// existed, and the caller needs the structured verdict.
		writeJSON(w, http.StatusOK, map[string]any{
			"filled": false,
			"error":  "Item not found or expired",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"filled":  true,
		"item_id": itemID,
	})
}

func (s *Server) handleWait(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("item_id")

	timeout := defaultWaitTimeout
	if v := r.URL.Query().Get("timeout"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			timeout = time.Duration(secs * float64(time.Second))
		}
	}

	if s.svc.WaitForItem(r.Context(), itemID, timeout) {
		writeJSON(w, http.StatusOK, map[string]any{
			"completed": true,
			"item_id":   itemID,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"completed": false,
		"item_id":   itemID,
		"error":     "timeout",
	})
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AudioData  string `json:"audio_data"`
		SampleRate int    `json:"sample_rate"`
		Project    string `json:"project"`
		Priority   string `json:"priority"`
		Wait       bool   `json:"wait"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if body.AudioData == "" {
		writeError(w, http.StatusBadRequest, "audio_data is required")
		return
	}

	audio, err := base64.StdEncoding.DecodeString(body.AudioData)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid base64 audio_data: "+err.Error())
		return
	}
	if body.SampleRate == 0 {
		body.SampleRate = defaultSampleRate
	}
	if body.Project == "" {
		body.Project = "external"
	}

	res := s.svc.Enqueue(audio, body.SampleRate, body.Project, queue.ParsePriority(body.Priority))
	resp := map[string]any{
		"spoken":            true,
		"item_id":           res.ItemID,
		"position":          res.Position,
		"estimated_wait_ms": res.EstimatedWait.Milliseconds(),
	}
	if body.Wait {
		resp["completed"] = s.svc.WaitForItem(r.Context(), res.ItemID, defaultWaitTimeout)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	s.svc.Pause()
	writeJSON(w, http.StatusOK, map[string]any{"paused": true})
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	s.svc.Resume()
	writeJSON(w, http.StatusOK, map[string]any{"paused": false})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	// The body is optional; an absent body means "clear everything".
	// Malformed JSON is rejected like on every other route.
	var body struct {
		Project string `json:"project"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	cleared := s.svc.ClearQueue(body.Project)
	writeJSON(w, http.StatusOK, map[string]any{"cleared": cleared})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"stopped": s.svc.StopPlayback()})
}

func (s *Server) handleChimeAllowed(w http.ResponseWriter, _ *http.Request) {
	res := s.svc.ChimeAllowed()
	writeJSON(w, http.StatusOK, map[string]any{
		"allowed":           res.Allowed,
		"seconds_remaining": res.SecondsRemaining,
	})
}

// decodeBody parses the request body into v. Unknown fields are ignored per
// the wire contract; an empty body decodes to the zero value.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
