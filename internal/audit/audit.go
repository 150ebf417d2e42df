package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/sirupsen/logrus"
)

type EventType string

const (
	EventAccess   EventType = "ACCESS"
	EventCreate   EventType = "CREATE"
	EventDenied   EventType = "DENIED"
	EventGenerate EventType = "GENERATE"
)

const IndexPrefix = "clinical_audit_"

type AuditEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	EventType   EventType `json:"event_type"`
	UserID      string    `json:"user_id"`
	Action      string    `json:"action"`
	Resource    string    `json:"resource"`
	ResourceID  string    `json:"resource_id"`
	IPAddress   string    `json:"ip_address"`
	UserAgent   string    `json:"user_agent"`
	RequestID   string    `json:"request_id"`
	Status      string    `json:"status"`
	Sensitivity string    `json:"sensitivity"`
}

type Service interface {
	LogEvent(ctx context.Context, event *AuditEvent) error
}

type requestInfoKey struct{}

type requestInfo struct {
	requestID string
	ipAddress string
	userAgent string
}

// WithRequestInfo attaches request metadata that LogEvent copies into events
// which leave those fields empty.
func WithRequestInfo(ctx context.Context, requestID, ipAddress, userAgent string) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, requestInfo{
		requestID: requestID,
		ipAddress: ipAddress,
		userAgent: userAgent,
	})
}

type service struct {
	es     *elasticsearch.Client
	logger *logrus.Logger
}

// NewService returns an audit service that always logs through logrus and
// additionally indexes into Elasticsearch when esClient is non-nil.
func NewService(esClient *elasticsearch.Client, logger *logrus.Logger) Service {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetLevel(logrus.InfoLevel)
	}

	return &service{
		es:     esClient,
		logger: logger,
	}
}

func (s *service) LogEvent(ctx context.Context, event *AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if info, ok := ctx.Value(requestInfoKey{}).(requestInfo); ok {
		if event.RequestID == "" {
			event.RequestID = info.requestID
		}
		if event.IPAddress == "" {
			event.IPAddress = info.ipAddress
		}
		if event.UserAgent == "" {
			event.UserAgent = info.userAgent
		}
	}

	s.logger.WithFields(logrus.Fields{
		"event_type":  event.EventType,
		"user_id":     event.UserID,
		"action":      event.Action,
		"resource":    event.Resource,
		"resource_id": event.ResourceID,
		"ip_address":  event.IPAddress,
		"request_id":  event.RequestID,
		"status":      event.Status,
		"sensitivity": event.Sensitivity,
	}).Info("Audit event logged")

	if s.es == nil {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	res, err := s.es.Index(
		IndexPrefix+event.Timestamp.Format("2006.01"),
		bytes.NewReader(payload),
		s.es.Index.WithContext(ctx),
	)
	if err != nil {
		s.logger.WithError(err).Error("Failed to index audit event")
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.IsError() {
		err := fmt.Errorf("audit index returned %s", res.Status())
		s.logger.WithError(err).Error("Failed to index audit event")
		return err
	}

	return nil
}
