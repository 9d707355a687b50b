package app

import (
	"context"
	"fmt"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	svc *Service
}

func NewHealthService(svc *Service) *HealthService {
	return &HealthService{svc: svc}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	s.svc.stateMu.RLock()
	current := s.svc.current
	fingerprint := s.svc.fingerprint
	lastErr := s.svc.lastErr
	s.svc.stateMu.RUnlock()

	// Check Project
	if current == nil {
		status.Status = "degraded"
		status.Components["project"] = "not synced"
	} else {
		st := current.Stats()
		status.Components["project"] = fmt.Sprintf("ok (%d source folders, %d generated, fingerprint %s)",
			st.SourceFolders, st.GeneratedFolders, fingerprint)
	}

	// Check last sync
	if lastErr != nil {
		status.Status = "degraded"
		status.Components["last_sync"] = "failed: " + lastErr.Error()
	} else if current != nil {
		status.Components["last_sync"] = "ok"
	}

	// Check History
	if s.svc.deps.History != nil {
		status.Components["history"] = "ok"
	} else {
		status.Components["history"] = "disabled"
	}

	return status
}
