package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/fleetline/msggate/internal/engine"
	"github.com/fleetline/msggate/internal/phone"
	"github.com/fleetline/msggate/internal/session"
)

// maxUploadBytes bounds in-memory multipart parsing for image uploads.
const maxUploadBytes = 16 << 20

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID string `json:"clientId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClientID == "" {
		writeFieldErrors(w, map[string]string{"clientId": "Invalid value"})
		return
	}

	if _, err := s.manager.Start(r.Context(), req.ClientID); err != nil {
		s.logger.Error("session start failed", "tenant_id", req.ClientID, "error", err)
		writeFailure(w, http.StatusInternalServerError, "could not start session")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:   true,
		ClientID: req.ClientID,
		Message:  "initializing",
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID string `json:"clientId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClientID == "" {
		writeFieldErrors(w, map[string]string{"clientId": "Invalid value"})
		return
	}

	if err := s.manager.Stop(r.Context(), req.ClientID); err != nil {
		if errors.Is(err, session.ErrNoSession) {
			writeFailure(w, http.StatusUnprocessableEntity, "no session for "+req.ClientID)
			return
		}
		s.logger.Error("session stop failed", "tenant_id", req.ClientID, "error", err)
		writeFailure(w, http.StatusInternalServerError, "could not stop session")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: true, ClientID: req.ClientID})
}

// readySession resolves a tenant to its live, READY session. The error
// response is already written on failure.
func (s *Server) readySession(w http.ResponseWriter, tenantID string) (*session.Session, bool) {
	sess, ok := s.registry.Get(tenantID)
	if !ok {
		writeFailure(w, http.StatusUnprocessableEntity,
			"session for "+tenantID+" is not started")
		return nil, false
	}
	if sess.State() != session.StateReady {
		writeFailure(w, http.StatusUnprocessableEntity,
			"session for "+tenantID+" is not ready")
		return nil, false
	}
	return sess, true
}

// checkRecipient verifies the recipient number is registered with the
// engine. The error response is already written on failure.
func (s *Server) checkRecipient(w http.ResponseWriter, r *http.Request, sess *session.Session, number string) bool {
	registered, err := sess.Engine().IsRegisteredUser(r.Context(), number)
	if err != nil {
		s.logger.Error("recipient check failed",
			"tenant_id", sess.TenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, statusResponse{
			Status:   false,
			Response: err.Error(),
		})
		return false
	}
	if !registered {
		s.logger.Warn("recipient not registered", "tenant_id", sess.TenantID)
		writeFailure(w, http.StatusUnprocessableEntity, "The number is not registered")
		return false
	}
	return true
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Number  string `json:"number"`
		Message string `json:"message"`
		From    string `json:"from"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	fields := map[string]string{}
	if req.Number == "" {
		fields["number"] = "Invalid value"
	}
	if req.Message == "" {
		fields["message"] = "Invalid value"
	}
	if req.From == "" {
		fields["from"] = "Invalid value"
	}
	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}

	sess, ok := s.readySession(w, req.From)
	if !ok {
		return
	}

	number := phone.Format(req.Number)
	if !s.checkRecipient(w, r, sess, number) {
		return
	}

	receipt, err := sess.Engine().SendMessage(r.Context(), number, req.Message)
	if err != nil {
		s.logger.Error("send failed", "tenant_id", req.From, "error", err)
		writeJSON(w, http.StatusInternalServerError, statusResponse{
			Status:   false,
			Response: err.Error(),
		})
		return
	}

	s.logger.Info("message sent", "tenant_id", req.From)
	writeJSON(w, http.StatusOK, statusResponse{Status: true, Response: receipt})
}

func (s *Server) handleSendImageMessage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeFieldErrors(w, map[string]string{"file": "File should not be empty"})
		return
	}

	number := r.FormValue("number")
	from := r.FormValue("from")
	caption := r.FormValue("caption")

	fields := map[string]string{}
	if number == "" {
		fields["number"] = "Invalid value"
	}
	if from == "" {
		fields["from"] = "Invalid value"
	}

	file, header, err := r.FormFile("file")
	if err != nil || header.Size == 0 {
		fields["file"] = "File should not be empty"
	} else {
		defer file.Close()
	}
	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "could not read upload")
		return
	}

	sess, ok := s.readySession(w, from)
	if !ok {
		return
	}

	formatted := phone.Format(number)
	if !s.checkRecipient(w, r, sess, formatted) {
		return
	}

	media := engine.Media{
		MimeType: header.Header.Get("Content-Type"),
		Data:     base64.StdEncoding.EncodeToString(data),
		Filename: header.Filename,
		Size:     header.Size,
	}

	receipt, err := sess.Engine().SendMedia(r.Context(), formatted, media, caption)
	if err != nil {
		s.logger.Error("media send failed", "tenant_id", from, "error", err)
		writeJSON(w, http.StatusInternalServerError, statusResponse{
			Status:   false,
			Response: err.Error(),
		})
		return
	}

	s.logger.Info("image sent", "tenant_id", from)
	writeJSON(w, http.StatusOK, statusResponse{Status: true, Response: receipt})
}

func (s *Server) handleSendImageURLMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Number      string `json:"number"`
		DownloadURL string `json:"downloadURL"`
		From        string `json:"from"`
		Caption     string `json:"caption"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	fields := map[string]string{}
	if req.Number == "" {
		fields["number"] = "Invalid value"
	}
	if req.DownloadURL == "" {
		fields["downloadURL"] = "Invalid value"
	}
	if req.From == "" {
		fields["from"] = "Invalid value"
	}
	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}

	sess, ok := s.readySession(w, req.From)
	if !ok {
		return
	}

	number := phone.Format(req.Number)
	if !s.checkRecipient(w, r, sess, number) {
		return
	}

	media, err := s.downloadMedia(r, req.DownloadURL)
	if err != nil {
		s.logger.Error("media download failed",
			"tenant_id", req.From, "url", req.DownloadURL, "error", err)
		writeFailure(w, http.StatusUnprocessableEntity, "could not download media")
		return
	}

	receipt, err := sess.Engine().SendMedia(r.Context(), number, media, req.Caption)
	if err != nil {
		s.logger.Error("media send failed", "tenant_id", req.From, "error", err)
		writeJSON(w, http.StatusInternalServerError, statusResponse{
			Status:   false,
			Response: err.Error(),
		})
		return
	}

	s.logger.Info("image sent from url", "tenant_id", req.From)
	writeJSON(w, http.StatusOK, statusResponse{Status: true, Response: receipt})
}

func (s *Server) downloadMedia(r *http.Request, url string) (engine.Media, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, url, nil)
	if err != nil {
		return engine.Media{}, err
	}

	resp, err := s.downloads.Do(req)
	if err != nil {
		return engine.Media{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return engine.Media{}, errors.New("download returned status " + resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUploadBytes))
	if err != nil {
		return engine.Media{}, err
	}

	return engine.Media{
		MimeType: resp.Header.Get("Content-Type"),
		Data:     base64.StdEncoding.EncodeToString(data),
		Size:     int64(len(data)),
	}, nil
}

func (s *Server) handleCheckState(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From string `json:"from"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.From == "" {
		writeFieldErrors(w, map[string]string{"from": "Invalid value"})
		return
	}

	sess, ok := s.registry.Get(req.From)
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, statusResponse{
			Status:   false,
			Response: "session for " + req.From + " is not started",
		})
		return
	}

	state, err := sess.Engine().State(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, statusResponse{
			Status:   false,
			Response: err.Error(),
		})
		return
	}
	if state != engine.StateConnected {
		writeJSON(w, http.StatusUnprocessableEntity, statusResponse{
			Status:   false,
			Response: state,
		})
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: true})
}

// checkClientsResponse reports every local session's probed state. A session
// whose engine no longer answers is reported disconnected and evicted.
type checkClientsResponse struct {
	Status                   bool              `json:"status"`
	ClientStatuses           map[string]string `json:"clientStatuses"`
	NumberOfConnectedClients int               `json:"numberOfConnectedClients"`
}

func (s *Server) handleCheckClients(w http.ResponseWriter, r *http.Request) {
	statuses := make(map[string]string)
	connected := 0

	for _, sess := range s.registry.List() {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		state, err := sess.Engine().State(ctx)
		cancel()

		switch {
		case err != nil:
			s.logger.Warn("state check failed, evicting session",
				"tenant_id", sess.TenantID, "error", err)
			s.registry.Evict(sess.TenantID)
			statuses[sess.TenantID] = "disconnected"
		case state == engine.StateConnected:
			statuses[sess.TenantID] = "active"
			connected++
		default:
			statuses[sess.TenantID] = "disconnected"
		}
	}

	writeJSON(w, http.StatusOK, checkClientsResponse{
		Status:                   true,
		ClientStatuses:           statuses,
		NumberOfConnectedClients: connected,
	})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID string `json:"clientId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClientID == "" {
		writeFieldErrors(w, map[string]string{"clientId": "Invalid value"})
		return
	}

	writeJSON(w, http.StatusOK, s.artifacts.ClearCache(req.ClientID))
}

// directorySizeEntry is one tenant's artifact-tree size, or the reason it
// could not be measured.
type directorySizeEntry struct {
	SizeMB float64 `json:"sizeMB,omitempty"`
	Error  string  `json:"error,omitempty"`
}

func (s *Server) handleGetDirectorySize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID     string   `json:"clientId"`
		AllClientIDs []string `json:"allClientIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFieldErrors(w, map[string]string{"clientId": "Invalid value"})
		return
	}

	tenants := req.AllClientIDs
	if len(tenants) == 0 {
		if req.ClientID == "" {
			writeFieldErrors(w, map[string]string{"clientId": "Invalid value"})
			return
		}
		tenants = []string{req.ClientID}
	}

	sizes := make(map[string]directorySizeEntry, len(tenants))
	for _, tenant := range tenants {
		size, err := s.artifacts.DirectorySizeMB(tenant)
		if err != nil {
			sizes[tenant] = directorySizeEntry{Error: err.Error()}
			continue
		}
		sizes[tenant] = directorySizeEntry{SizeMB: size}
	}

	writeJSON(w, http.StatusOK, sizes)
}

// sessionStatus is one local session in the status report.
type sessionStatus struct {
	ClientID        string    `json:"clientId"`
	State           string    `json:"state"`
	PairingAttempts int       `json:"pairingAttempts"`
	CreatedAt       time.Time `json:"createdAt"`
	LastActive      time.Time `json:"lastActive"`
}

// fleetRecord is the shareable slice of an ownership record. The pairing
// payload and secret counter never leave the store.
type fleetRecord struct {
	ClientID     string    `json:"clientId"`
	Status       string    `json:"status"`
	InstanceName string    `json:"instanceName"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

type statusReport struct {
	Status   bool            `json:"status"`
	Instance string          `json:"instance"`
	Sessions []sessionStatus `json:"sessions"`
	Fleet    []fleetRecord   `json:"fleet,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report := statusReport{
		Status:   true,
		Instance: s.instanceName,
		Sessions: make([]sessionStatus, 0, s.registry.Len()),
	}

	for _, sess := range s.registry.List() {
		report.Sessions = append(report.Sessions, sessionStatus{
			ClientID:        sess.TenantID,
			State:           string(sess.State()),
			PairingAttempts: sess.PairingAttempts(),
			CreatedAt:       sess.CreatedAt,
			LastActive:      sess.LastActive(),
		})
	}

	if s.store != nil {
		recs, err := s.store.List(r.Context())
		if err != nil {
			// Fleet view is best effort; local sessions still report.
			s.logger.Warn("ownership record list failed", "error", err)
		}
		for _, rec := range recs {
			report.Fleet = append(report.Fleet, fleetRecord{
				ClientID:     rec.TenantID,
				Status:       rec.Status,
				InstanceName: rec.InstanceName,
				LastUpdated:  rec.LastUpdated,
			})
		}
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
