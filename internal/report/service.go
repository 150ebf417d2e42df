package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesikahq/clinical-notes/internal/metrics"
	"github.com/mesikahq/clinical-notes/internal/patient"
)

var ErrMissingAPIKey = errors.New("missing API key")

// UnsavedReportError is returned when the model produced a report that could
// not be persisted. Report holds the generated text.
type UnsavedReportError struct {
	Report string
	Err    error
}

func (e *UnsavedReportError) Error() string {
	return "report generated but not saved: " + e.Err.Error()
}

func (e *UnsavedReportError) Unwrap() error {
	return e.Err
}

type Result struct {
	Report   string `json:"report"`
	ReportID string `json:"reportId"`
}

type Service interface {
	// Ready reports ErrMissingAPIKey when no model credential is configured.
	Ready() error
	Generate(ctx context.Context, userID string, data *patient.Patient) (*Result, error)
}

type service struct {
	patients  patient.Service
	generator Generator
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewService wires the report workflow. A nil generator means no model
// credential is configured and every call fails with ErrMissingAPIKey.
func NewService(patients patient.Service, generator Generator, m *metrics.Metrics, logger *zap.Logger) Service {
	return &service{
		patients:  patients,
		generator: generator,
		metrics:   m,
		logger:    logger,
	}
}

func (s *service) Ready() error {
	if s.generator == nil {
		s.metrics.ObserveGeneration(metrics.OutcomeMissingKey, 0)
		return ErrMissingAPIKey
	}
	return nil
}

func (s *service) Generate(ctx context.Context, userID string, data *patient.Patient) (*Result, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}

	if _, err := s.patients.Get(ctx, userID, data.ID); err != nil {
		return nil, err
	}

	start := time.Now()
	text, err := s.generator.Generate(ctx, BuildPrompt(data))
	latency := time.Since(start)
	if err != nil {
		s.metrics.ObserveGeneration(metrics.OutcomeFailed, latency)
		return nil, fmt.Errorf("generate report: %w", err)
	}

	stored, err := s.patients.AddReport(ctx, userID, data.ID, text)
	if err != nil {
		s.metrics.ObserveGeneration(metrics.OutcomeUnsaved, latency)
		s.logger.Error("generated report could not be saved",
			zap.Error(err),
			zap.String("patient_id", data.ID),
			zap.String("user_id", userID),
		)
		return nil, &UnsavedReportError{Report: text, Err: err}
	}

	s.metrics.ObserveGeneration(metrics.OutcomeSuccess, latency)
	s.logger.Info("report generated",
		zap.String("patient_id", data.ID),
		zap.String("report_id", stored.ID),
		zap.Duration("latency", latency),
	)

	return &Result{Report: text, ReportID: stored.ID}, nil
}
