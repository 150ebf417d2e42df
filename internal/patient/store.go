package patient

import "context"

// Store persists patients and the reports nested under them. Implementations
// assign identifiers on insert and return ErrPatientNotFound for unknown or
// malformed patient ids.
type Store interface {
	InsertPatient(ctx context.Context, patient *Patient) (string, error)
	FindPatient(ctx context.Context, id string) (*Patient, error)
	FindPatientsByOwner(ctx context.Context, ownerID string) ([]*Patient, error)

	// InsertReport stores report under report.PatientID.
	InsertReport(ctx context.Context, report *Report) (string, error)
	// FindReports returns the reports of a patient, newest first.
	FindReports(ctx context.Context, patientID string) ([]*Report, error)
}
