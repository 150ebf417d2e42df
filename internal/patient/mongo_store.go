package patient

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	patientsCollection = "patients"
	reportsCollection  = "reports"
)

type patientDocument struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Name            string             `bson:"name"`
	DOB             string             `bson:"dob"`
	Gender          string             `bson:"gender"`
	CPF             string             `bson:"cpf"`
	Phone           string             `bson:"phone"`
	MainComplaint   string             `bson:"mainComplaint"`
	HDA             string             `bson:"hda"`
	ChronicDiseases TextList           `bson:"chronicDiseases"`
	Allergies       TextList           `bson:"allergies"`
	Medications     TextList           `bson:"medications"`
	CreatedAt       string             `bson:"createdAt"`
	CreatedBy       string             `bson:"createdBy"`
}

type reportDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	PatientID     primitive.ObjectID `bson:"patientId"`
	ReportContent string             `bson:"reportContent"`
	CreatedAt     string             `bson:"createdAt"`
	GeneratedBy   string             `bson:"generatedBy"`
}

type mongoStore struct {
	patients *mongo.Collection
	reports  *mongo.Collection
}

// NewMongoStore returns a Store backed by the patients and reports
// collections of db.
func NewMongoStore(db *mongo.Database) Store {
	return &mongoStore{
		patients: db.Collection(patientsCollection),
		reports:  db.Collection(reportsCollection),
	}
}

func (s *mongoStore) InsertPatient(ctx context.Context, patient *Patient) (string, error) {
	res, err := s.patients.InsertOne(ctx, toPatientDocument(patient))
	if err != nil {
		return "", fmt.Errorf("insert patient: %w", err)
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("insert patient: unexpected id type %T", res.InsertedID)
	}
	return id.Hex(), nil
}

func (s *mongoStore) FindPatient(ctx context.Context, id string) (*Patient, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrPatientNotFound
	}

	var doc patientDocument
	err = s.patients.FindOne(ctx, bson.M{"_id": objectID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("find patient: %w", err)
	}
	return doc.toPatient(), nil
}

func (s *mongoStore) FindPatientsByOwner(ctx context.Context, ownerID string) ([]*Patient, error) {
	cursor, err := s.patients.Find(ctx, bson.M{"createdBy": ownerID})
	if err != nil {
		return nil, fmt.Errorf("find patients: %w", err)
	}
	defer cursor.Close(ctx)

	patients := make([]*Patient, 0)
	for cursor.Next(ctx) {
		var doc patientDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode patient: %w", err)
		}
		patients = append(patients, doc.toPatient())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate patients: %w", err)
	}
	return patients, nil
}

func (s *mongoStore) InsertReport(ctx context.Context, report *Report) (string, error) {
	patientID, err := primitive.ObjectIDFromHex(report.PatientID)
	if err != nil {
		return "", ErrPatientNotFound
	}

	res, err := s.reports.InsertOne(ctx, reportDocument{
		PatientID:     patientID,
		ReportContent: report.ReportContent,
		CreatedAt:     report.CreatedAt,
		GeneratedBy:   report.GeneratedBy,
	})
	if err != nil {
		return "", fmt.Errorf("insert report: %w", err)
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("insert report: unexpected id type %T", res.InsertedID)
	}
	return id.Hex(), nil
}

func (s *mongoStore) FindReports(ctx context.Context, patientID string) ([]*Report, error) {
	objectID, err := primitive.ObjectIDFromHex(patientID)
	if err != nil {
		return nil, ErrPatientNotFound
	}

	// ObjectIDs grow with insertion, which orders reports sharing a timestamp.
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.reports.Find(ctx, bson.M{"patientId": objectID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find reports: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []reportDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode reports: %w", err)
	}

	reports := make([]*Report, 0, len(docs))
	for _, doc := range docs {
		reports = append(reports, &Report{
			ID:            doc.ID.Hex(),
			PatientID:     doc.PatientID.Hex(),
			ReportContent: doc.ReportContent,
			CreatedAt:     doc.CreatedAt,
			GeneratedBy:   doc.GeneratedBy,
		})
	}
	return reports, nil
}

func toPatientDocument(p *Patient) patientDocument {
	return patientDocument{
		Name:            p.Name,
		DOB:             p.DOB,
		Gender:          p.Gender,
		CPF:             p.CPF,
		Phone:           p.Phone,
		MainComplaint:   p.MainComplaint,
		HDA:             p.HDA,
		ChronicDiseases: p.ChronicDiseases,
		Allergies:       p.Allergies,
		Medications:     p.Medications,
		CreatedAt:       p.CreatedAt,
		CreatedBy:       p.CreatedBy,
	}
}

func (d patientDocument) toPatient() *Patient {
	return &Patient{
		ID:              d.ID.Hex(),
		Name:            d.Name,
		DOB:             d.DOB,
		Gender:          d.Gender,
		CPF:             d.CPF,
		Phone:           d.Phone,
		MainComplaint:   d.MainComplaint,
		HDA:             d.HDA,
		ChronicDiseases: d.ChronicDiseases,
		Allergies:       d.Allergies,
		Medications:     d.Medications,
		CreatedAt:       d.CreatedAt,
		CreatedBy:       d.CreatedBy,
	}
}
