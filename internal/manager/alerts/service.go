// Package alerts implements the manager's Alert Pipeline (spec.md C11):
// progressive escalation over consecutive health-check failures, and a
// single recovery notification when a previously-alerted node becomes
// healthy again. Grounded almost verbatim on
// original_source/manager/src/services/alert_service.rs's AlertService.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/log"
)

// Type is the category of event an alert describes.
type Type string

const (
	TypeNodeHealth  Type = "NodeHealth"
	TypeAutoRestore Type = "AutoRestore"
	TypeSnapshot    Type = "Snapshot"
	TypeHermes      Type = "Hermes"
	TypeLogPattern  Type = "LogPattern"
	TypeMaintenance Type = "Maintenance"
)

// Severity is how urgently an alert should be treated.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityWarning  Severity = "Warning"
	SeverityInfo     Severity = "Info"
	SeverityRecovery Severity = "Recovery"
)

// Payload is the JSON document posted to the configured webhook.
type Payload struct {
	Timestamp  time.Time `json:"timestamp"`
	AlertType  Type      `json:"alert_type"`
	Severity   Severity  `json:"severity"`
	NodeName   string    `json:"node_name"`
	Message    string    `json:"message"`
	ServerHost string    `json:"server_host"`
	Details    any       `json:"details,omitempty"`
}

// state is the per-node bookkeeping the progressive-escalation schedule
// is computed from.
type state struct {
	firstAlertTime      time.Time
	lastAlertSent       time.Time
	alertCount          uint32
	consecutiveFailures uint32
	hasSentAlert        bool
}

// Clock abstracts time.Now so tests can control the escalation schedule
// deterministically, per spec.md §9's resolution of the alert-pipeline
// clock-source open question.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Service tracks per-node alert state and posts webhook notifications on
// the progressive escalation schedule.
type Service struct {
	webhookURL string
	httpClient *http.Client
	clock      Clock

	mu                   sync.Mutex
	alertStates          map[string]*state
	previousHealthStates map[string]bool
}

// New builds a Service posting to webhookURL. An empty webhookURL is
// valid: sendWebhook becomes a no-op, matching the original's
// "no webhook URL configured, skipping alert" behavior.
func New(webhookURL string) *Service {
	return &Service{
		webhookURL:           webhookURL,
		httpClient:           &http.Client{Timeout: 10 * time.Second},
		clock:                realClock{},
		alertStates:          make(map[string]*state),
		previousHealthStates: make(map[string]bool),
	}
}

// WithClock overrides the service's clock; intended for tests.
func (s *Service) WithClock(c Clock) *Service {
	s.clock = c
	return s
}

// SendProgressiveAlert records a health observation for nodeName and, per
// the escalation schedule (3rd consecutive failure -> 1st alert, then
// 6h/6h/12h/24h/24h...), posts a webhook. A transition back to healthy is
// routed to the recovery path instead.
func (s *Service) SendProgressiveAlert(ctx context.Context, nodeName, serverHost string, isHealthy bool, errorMessage string, details any) {
	s.mu.Lock()

	previousHealth, hadPrevious := s.previousHealthStates[nodeName]
	s.previousHealthStates[nodeName] = isHealthy

	becameUnhealthy := (hadPrevious && previousHealth && !isHealthy) || (!hadPrevious && !isHealthy)
	becameHealthy := hadPrevious && !previousHealth && isHealthy
	stillUnhealthy := hadPrevious && !previousHealth && !isHealthy

	if becameHealthy {
		s.mu.Unlock()
		s.sendRecoveryAlertIfNeeded(ctx, nodeName, serverHost, details)
		return
	}

	if !becameUnhealthy && !stillUnhealthy {
		s.mu.Unlock()
		return
	}

	now := s.clock.Now()
	st, exists := s.alertStates[nodeName]
	var shouldSend bool

	if !exists {
		s.alertStates[nodeName] = &state{
			firstAlertTime:      now,
			consecutiveFailures: 1,
		}
		log.WithNode(nodeName).Info().Msg("node unhealthy check 1/3 - no alert sent yet")
		shouldSend = false
	} else {
		st.consecutiveFailures++

		if st.alertCount == 0 {
			if st.consecutiveFailures >= 3 {
				st.alertCount = 1
				st.lastAlertSent = now
				st.hasSentAlert = true
				shouldSend = true
			}
		} else {
			hoursSinceLast := now.Sub(st.lastAlertSent).Hours()
			var threshold float64
			switch st.alertCount {
			case 1, 2:
				threshold = 6
			case 3:
				threshold = 12
			default:
				threshold = 24
			}
			if hoursSinceLast >= threshold {
				st.alertCount++
				st.lastAlertSent = now
				shouldSend = true
			}
		}
	}
	s.mu.Unlock()

	if !shouldSend {
		return
	}

	message := errorMessage
	if message == "" {
		message = "Node health check failed"
	}
	s.sendWebhook(ctx, Payload{
		Timestamp:  now,
		AlertType:  TypeNodeHealth,
		Severity:   SeverityCritical,
		NodeName:   nodeName,
		Message:    message,
		ServerHost: serverHost,
		Details:    details,
	})
}

// SendImmediateAlert posts a webhook unconditionally, for events that
// need instant notification regardless of escalation state (e.g. an
// auto-restore trigger firing).
func (s *Service) SendImmediateAlert(ctx context.Context, alertType Type, severity Severity, nodeName, serverHost, message string, details any) {
	s.sendWebhook(ctx, Payload{
		Timestamp:  s.clock.Now(),
		AlertType:  alertType,
		Severity:   severity,
		NodeName:   nodeName,
		Message:    message,
		ServerHost: serverHost,
		Details:    details,
	})
}

func (s *Service) sendRecoveryAlertIfNeeded(ctx context.Context, nodeName, serverHost string, details any) {
	s.mu.Lock()
	st, existed := s.alertStates[nodeName]
	delete(s.alertStates, nodeName)
	s.mu.Unlock()

	if !existed || !st.hasSentAlert {
		log.WithNode(nodeName).Debug().Msg("no recovery notification needed - no alerts were sent during unhealthy period")
		return
	}

	s.sendWebhook(ctx, Payload{
		Timestamp:  s.clock.Now(),
		AlertType:  TypeNodeHealth,
		Severity:   SeverityRecovery,
		NodeName:   nodeName,
		Message:    "Node has recovered and is now healthy",
		ServerHost: serverHost,
		Details:    details,
	})
	log.WithNode(nodeName).Info().Msg("recovery notification sent")
}

// sendWebhook posts payload, logging but never propagating failure — a
// down alert channel must not block the health-monitor loop that calls
// it.
func (s *Service) sendWebhook(ctx context.Context, payload Payload) {
	logger := log.WithNode(payload.NodeName)

	if s.webhookURL == "" {
		logger.Debug().Msg("no webhook URL configured, skipping alert")
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to encode alert payload")
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		logger.Warn().Err(err).Msg("failed to build alert webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to send alert webhook")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn().Int("status", resp.StatusCode).Msg("alert webhook returned non-success status")
		return
	}
	logger.Info().Str("alert_type", string(payload.AlertType)).Msg("alert sent successfully")
}
