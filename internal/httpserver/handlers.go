package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"drift/internal/config"
	"drift/internal/feed"
	"drift/internal/updater"
)

// handleHealth handles GET /health
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: s.version})
}

// handleState handles GET /state: the snapshot for late-joining observers.
func (s *HTTPServer) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	respondJSON(w, http.StatusOK, s.orch.State())
}

// handleCheck handles POST /check. ?force=1 bypasses the cooldown.
func (s *HTTPServer) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	force := r.URL.Query().Get("force") == "1" || r.URL.Query().Get("force") == "true"
	res, err := s.orch.Check(force)
	if err != nil {
		respondUpdaterError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// handleDownload handles POST /download. The request blocks until the
// artifact is staged or the download fails; progress streams over /ws.
func (s *HTTPServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := s.orch.Download(); err != nil {
		respondUpdaterError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.orch.State())
}

// handleInstall handles POST /install. On success the process will restart
// shortly after this response is written.
func (s *HTTPServer) handleInstall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := s.orch.Install(); err != nil {
		respondUpdaterError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, AcceptedResponse{Status: "installing"})
}

// handleFocus handles POST /focus: the app-wide window-focus trigger. The
// check (if the cooldown admits one) runs in the background.
func (s *HTTPServer) handleFocus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	go s.orch.NotifyFocus()
	respondJSON(w, http.StatusAccepted, AcceptedResponse{Status: "triggered"})
}

// handleFeedConfig handles GET and PUT /config/feed. Writes persist only;
// the running session keeps its feed until the next process start.
func (s *HTTPServer) handleFeedConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		respondJSON(w, http.StatusOK, s.orch.Feed())

	case http.MethodPut:
		var req FeedConfigRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return
		}
		cfg := config.FeedConfig{Source: req.Source, URL: req.URL, Owner: req.Owner, Repo: req.Repo}
		if err := s.orch.SetFeed(cfg); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, cfg)

	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleChannel handles GET and PUT /config/channel. A write persists the
// preference and immediately re-checks against the new channel.
func (s *HTTPServer) handleChannel(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		respondJSON(w, http.StatusOK, ChannelResponse{Channel: s.orch.Channel()})

	case http.MethodPut:
		var req ChannelRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return
		}
		res, err := s.orch.SetChannel(req.Channel)
		if err != nil {
			if errors.Is(err, updater.ErrBusy) {
				respondUpdaterError(w, err)
				return
			}
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, res)

	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// decodeJSON parses a request body, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return err
	}
	return nil
}

// respondUpdaterError maps orchestrator errors onto HTTP statuses. Caller
// contract violations and busy rejections are 409 so the host UI can tell
// them apart from transient feed failures; a feed with no releases is 404.
func respondUpdaterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, updater.ErrBusy),
		errors.Is(err, updater.ErrInstallPrecondition),
		errors.Is(err, updater.ErrDownloadPrecondition):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, feed.ErrNoReleases):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		respondError(w, http.StatusBadGateway, err.Error())
	}
}
