package desk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"AgentDesk/entity"
	"AgentDesk/internal/config"
	"AgentDesk/internal/lib/sl"
)

// Service talks to the desk rest api: session detail, read receipts
// and token validation live here.
type Service struct {
	BaseURL string
	Token   string
	Log     *slog.Logger
	client  *http.Client
}

func NewDeskService(conf *config.Config, logger *slog.Logger) *Service {
	return &Service{
		BaseURL: conf.Server.ApiURL,
		Token:   conf.Server.AuthToken,
		Log:     logger.With(sl.Module("desk-service")),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// GetSession fetches the full session snapshot by id.
func (s *Service) GetSession(sessionID string) (*entity.Session, error) {
	url := fmt.Sprintf("%s/sessions/%s", s.BaseURL, sessionID)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.Token))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %v", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		s.Log.With(
			slog.String("session", sessionID),
			slog.Int("status", resp.StatusCode),
		).Error("invalid response code")
		return nil, fmt.Errorf("request failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}

	var sess entity.Session
	if err := json.Unmarshal(body, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse response: %v", err)
	}

	s.Log.With(
		slog.String("session", sessionID),
	).Debug("session detail fetched")

	return &sess, nil
}

// MarkRead posts a read receipt for a session. Fire and forget from the
// caller's perspective; a failure is reported, never retried.
func (s *Service) MarkRead(sessionID string) error {
	url := fmt.Sprintf("%s/sessions/%s/read", s.BaseURL, sessionID)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(nil))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.Token))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %v", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("request failed with status: %d", resp.StatusCode)
	}

	return nil
}

// ValidateToken checks the token against the lightweight validation
// endpoint. A 2xx means valid, any other status means expired; a
// transport error means the check could not be completed at all.
func (s *Service) ValidateToken(token string) (bool, error) {
	url := fmt.Sprintf("%s/auth/validate", s.BaseURL)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to send request: %v", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode <= 299, nil
}
