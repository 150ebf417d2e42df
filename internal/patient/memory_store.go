package patient

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memoryReport struct {
	report Report
	seq    int
}

// MemoryStore is an in-process Store used by tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	patients map[string]Patient
	order    []string
	reports  map[string][]memoryReport
	seq      int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patients: make(map[string]Patient),
		reports:  make(map[string][]memoryReport),
	}
}

func (s *MemoryStore) InsertPatient(_ context.Context, patient *Patient) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	stored := *patient
	stored.ID = id
	s.patients[id] = stored
	s.order = append(s.order, id)
	return id, nil
}

func (s *MemoryStore) FindPatient(_ context.Context, id string) (*Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &stored, nil
}

func (s *MemoryStore) FindPatientsByOwner(_ context.Context, ownerID string) ([]*Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	patients := make([]*Patient, 0)
	for _, id := range s.order {
		stored := s.patients[id]
		if stored.CreatedBy == ownerID {
			patients = append(patients, &stored)
		}
	}
	return patients, nil
}

func (s *MemoryStore) InsertReport(_ context.Context, report *Report) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.patients[report.PatientID]; !ok {
		return "", ErrPatientNotFound
	}

	s.seq++
	stored := *report
	stored.ID = uuid.NewString()
	s.reports[report.PatientID] = append(s.reports[report.PatientID], memoryReport{report: stored, seq: s.seq})
	return stored.ID, nil
}

func (s *MemoryStore) FindReports(_ context.Context, patientID string) ([]*Report, error) {
	s.mu.RLock()
	entries := append([]memoryReport(nil), s.reports[patientID]...)
	s.mu.RUnlock()

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].report.CreatedAt != entries[j].report.CreatedAt {
			return entries[i].report.CreatedAt > entries[j].report.CreatedAt
		}
		return entries[i].seq > entries[j].seq
	})

	reports := make([]*Report, 0, len(entries))
	for i := range entries {
		reports = append(reports, &entries[i].report)
	}
	return reports, nil
}
