package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mesikahq/clinical-notes/internal/audit"
	"github.com/mesikahq/clinical-notes/internal/encryption"
)

var (
	ErrPatientNotFound    = errors.New("patient not found")
	ErrUnauthorizedAccess = errors.New("unauthorized access to patient data")
)

// Service applies ownership rules on top of a Store. Every method takes the
// uid of the authenticated caller.
type Service interface {
	Create(ctx context.Context, userID string, patient *Patient) (*Patient, error)
	Get(ctx context.Context, userID, id string) (*Patient, error)
	List(ctx context.Context, userID string) ([]*Patient, error)
	ListReports(ctx context.Context, userID, patientID string) ([]*Report, error)
	AddReport(ctx context.Context, userID, patientID, content string) (*Report, error)
}

type Option func(*service)

// WithClock replaces the time source used to stamp createdAt.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

type service struct {
	store   Store
	encrypt encryption.Service
	audit   audit.Service
	now     func() time.Time
}

// NewService builds the patient service. encrypt may be nil, in which case
// identifying fields are stored as given.
func NewService(store Store, encrypt encryption.Service, auditService audit.Service, opts ...Option) Service {
	s := &service{
		store:   store,
		encrypt: encrypt,
		audit:   auditService,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Create(ctx context.Context, userID string, patient *Patient) (*Patient, error) {
	created := *patient
	created.ID = ""
	created.CreatedAt = FormatTimestamp(s.now())
	created.CreatedBy = userID

	stored := created
	if err := s.encryptPatientData(&stored); err != nil {
		return nil, err
	}

	id, err := s.store.InsertPatient(ctx, &stored)
	if err != nil {
		return nil, err
	}
	created.ID = id

	s.record(ctx, audit.EventCreate, userID, "CREATE", "patient", id, "success")

	return &created, nil
}

func (s *service) Get(ctx context.Context, userID, id string) (*Patient, error) {
	patient, err := s.authorize(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if err := s.decryptPatientData(patient); err != nil {
		return nil, err
	}

	s.record(ctx, audit.EventAccess, userID, "READ", "patient", id, "success")

	return patient, nil
}

func (s *service) List(ctx context.Context, userID string) ([]*Patient, error) {
	patients, err := s.store.FindPatientsByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, patient := range patients {
		if err := s.decryptPatientData(patient); err != nil {
			return nil, err
		}
	}

	s.record(ctx, audit.EventAccess, userID, "LIST", "patient", "", "success")

	return patients, nil
}

func (s *service) ListReports(ctx context.Context, userID, patientID string) ([]*Report, error) {
	if _, err := s.authorize(ctx, userID, patientID); err != nil {
		return nil, err
	}

	reports, err := s.store.FindReports(ctx, patientID)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.EventAccess, userID, "LIST", "report", patientID, "success")

	return reports, nil
}

func (s *service) AddReport(ctx context.Context, userID, patientID, content string) (*Report, error) {
	if _, err := s.authorize(ctx, userID, patientID); err != nil {
		return nil, err
	}

	report := &Report{
		PatientID:     patientID,
		ReportContent: content,
		CreatedAt:     FormatTimestamp(s.now()),
		GeneratedBy:   userID,
	}

	id, err := s.store.InsertReport(ctx, report)
	if err != nil {
		return nil, err
	}
	report.ID = id

	s.record(ctx, audit.EventGenerate, userID, "CREATE", "report", id, "success")

	return report, nil
}

// authorize loads the patient and checks that userID created it.
func (s *service) authorize(ctx context.Context, userID, id string) (*Patient, error) {
	patient, err := s.store.FindPatient(ctx, id)
	if err != nil {
		return nil, err
	}

	if patient.CreatedBy != userID {
		s.record(ctx, audit.EventDenied, userID, "READ", "patient", id, "forbidden")
		return nil, ErrUnauthorizedAccess
	}

	return patient, nil
}

func (s *service) record(ctx context.Context, eventType audit.EventType, userID, action, resource, resourceID, status string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:   eventType,
		UserID:      userID,
		Action:      action,
		Resource:    resource,
		ResourceID:  resourceID,
		Status:      status,
		Sensitivity: "PHI",
	})
}

func (s *service) encryptPatientData(patient *Patient) error {
	if s.encrypt == nil {
		return nil
	}

	for _, field := range []*string{&patient.CPF, &patient.Phone} {
		if *field == "" {
			continue
		}
		encrypted, err := s.encrypt.Encrypt(*field)
		if err != nil {
			return fmt.Errorf("encrypt patient data: %w", err)
		}
		*field = encrypted
	}
	return nil
}

func (s *service) decryptPatientData(patient *Patient) error {
	if s.encrypt == nil {
		return nil
	}

	// Values stored before a key was configured have no prefix and are
	// returned as stored.
	for _, field := range []*string{&patient.CPF, &patient.Phone} {
		if !encryption.IsEncrypted(*field) {
			continue
		}
		decrypted, err := s.encrypt.Decrypt(*field)
		if err != nil {
			return fmt.Errorf("decrypt patient data: %w", err)
		}
		*field = decrypted
	}
	return nil
}
