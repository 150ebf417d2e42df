package patient

import "time"

// TimestampLayout is the ISO-8601 form used for createdAt: UTC with
// millisecond precision, so lexical and chronological order agree.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

type Patient struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	DOB             string   `json:"dob"`
	Gender          string   `json:"gender"`
	CPF             string   `json:"cpf"`
	Phone           string   `json:"phone"`
	MainComplaint   string   `json:"mainComplaint"`
	HDA             string   `json:"hda"`
	ChronicDiseases TextList `json:"chronicDiseases"`
	Allergies       TextList `json:"allergies"`
	Medications     TextList `json:"medications"`

	// Metadata
	CreatedAt string `json:"createdAt"`
	CreatedBy string `json:"createdBy"`
}

// Report is a generated narrative stored under a patient. Reports are never
// modified after creation.
type Report struct {
	ID            string `json:"id"`
	PatientID     string `json:"patientId"`
	ReportContent string `json:"reportContent"`
	CreatedAt     string `json:"createdAt"`
	GeneratedBy   string `json:"generatedBy"`
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
