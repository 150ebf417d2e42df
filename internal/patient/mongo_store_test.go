package patient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func newMockStore(mt *mtest.T) Store {
	return NewMongoStore(mt.DB)
}

func namespace(mt *mtest.T, collection string) string {
	return mt.DB.Name() + "." + collection
}

func TestMongoStoreInsertPatient(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("writes the document and returns the hex id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		id, err := newMockStore(mt).InsertPatient(context.Background(), &Patient{
			Name:      "Ana",
			Allergies: ListOf("penicillin", "latex"),
			CreatedAt: "2025-01-01T12:00:00.000Z",
			CreatedBy: "U1",
		})
		require.NoError(mt, err)
		assert.True(mt, primitive.IsValidObjectID(id))

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "insert", evt.CommandName)
		assert.Equal(mt, patientsCollection, evt.Command.Lookup("insert").StringValue())

		doc := evt.Command.Lookup("documents", "0").Document()
		assert.Equal(mt, id, doc.Lookup("_id").ObjectID().Hex())
		assert.Equal(mt, "U1", doc.Lookup("createdBy").StringValue())
		assert.Equal(mt, bson.TypeArray, doc.Lookup("allergies").Type)
	})

	mt.Run("wraps write errors", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 121, Message: "validation failed"}))

		_, err := newMockStore(mt).InsertPatient(context.Background(), &Patient{Name: "Ana"})
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "insert patient")
	})
}

func TestMongoStoreFindPatient(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes the stored document", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt, patientsCollection), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "name", Value: "Ana"},
			{Key: "cpf", Value: "123.456.789-00"},
			{Key: "allergies", Value: bson.A{"penicillin", "latex"}},
			{Key: "medications", Value: "losartan"},
			{Key: "createdAt", Value: "2025-01-01T12:00:00.000Z"},
			{Key: "createdBy", Value: "U1"},
		}))

		got, err := newMockStore(mt).FindPatient(context.Background(), id.Hex())
		require.NoError(mt, err)
		assert.Equal(mt, &Patient{
			ID:          id.Hex(),
			Name:        "Ana",
			CPF:         "123.456.789-00",
			Allergies:   ListOf("penicillin", "latex"),
			Medications: TextOf("losartan"),
			CreatedAt:   "2025-01-01T12:00:00.000Z",
			CreatedBy:   "U1",
		}, got)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, id, evt.Command.Lookup("filter", "_id").ObjectID())
	})

	mt.Run("maps no documents to not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt, patientsCollection), mtest.FirstBatch))

		_, err := newMockStore(mt).FindPatient(context.Background(), primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, ErrPatientNotFound)
	})

	mt.Run("maps malformed ids to not found without a query", func(mt *mtest.T) {
		_, err := newMockStore(mt).FindPatient(context.Background(), "not-an-object-id")
		assert.ErrorIs(mt, err, ErrPatientNotFound)
		assert.Empty(mt, mt.GetAllStartedEvents())
	})
}

func TestMongoStoreFindPatientsByOwner(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("scopes the query to the owner", func(mt *mtest.T) {
		first, second := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt, patientsCollection), mtest.FirstBatch,
			bson.D{{Key: "_id", Value: first}, {Key: "name", Value: "Ana"}, {Key: "createdBy", Value: "U1"}},
			bson.D{{Key: "_id", Value: second}, {Key: "name", Value: "Bruno"}, {Key: "createdBy", Value: "U1"}},
		))

		patients, err := newMockStore(mt).FindPatientsByOwner(context.Background(), "U1")
		require.NoError(mt, err)
		require.Len(mt, patients, 2)
		assert.Equal(mt, first.Hex(), patients[0].ID)
		assert.Equal(mt, "Bruno", patients[1].Name)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "find", evt.CommandName)
		assert.Equal(mt, patientsCollection, evt.Command.Lookup("find").StringValue())

		var filter bson.D
		require.NoError(mt, bson.Unmarshal(evt.Command.Lookup("filter").Document(), &filter))
		assert.Equal(mt, bson.D{{Key: "createdBy", Value: "U1"}}, filter)
	})

	mt.Run("returns an empty slice when the owner has no patients", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt, patientsCollection), mtest.FirstBatch))

		patients, err := newMockStore(mt).FindPatientsByOwner(context.Background(), "U3")
		require.NoError(mt, err)
		assert.NotNil(mt, patients)
		assert.Empty(mt, patients)
	})

	mt.Run("wraps command errors", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "bad filter"}))

		_, err := newMockStore(mt).FindPatientsByOwner(context.Background(), "U1")
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "find patients")
	})
}

func TestMongoStoreReports(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("links the report to its patient", func(mt *mtest.T) {
		patientID := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		id, err := newMockStore(mt).InsertReport(context.Background(), &Report{
			PatientID:     patientID.Hex(),
			ReportContent: "Relatório.",
			CreatedAt:     "2025-01-01T12:00:00.000Z",
			GeneratedBy:   "U1",
		})
		require.NoError(mt, err)
		assert.True(mt, primitive.IsValidObjectID(id))

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, reportsCollection, evt.Command.Lookup("insert").StringValue())
		doc := evt.Command.Lookup("documents", "0").Document()
		assert.Equal(mt, patientID, doc.Lookup("patientId").ObjectID())
		assert.Equal(mt, "Relatório.", doc.Lookup("reportContent").StringValue())
	})

	mt.Run("sorts newest first with the id as tiebreak", func(mt *mtest.T) {
		patientID := primitive.NewObjectID()
		older, newer := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt, reportsCollection), mtest.FirstBatch,
			bson.D{{Key: "_id", Value: newer}, {Key: "patientId", Value: patientID}, {Key: "reportContent", Value: "second"}, {Key: "createdAt", Value: "2025-01-01T12:00:02.000Z"}},
			bson.D{{Key: "_id", Value: older}, {Key: "patientId", Value: patientID}, {Key: "reportContent", Value: "first"}, {Key: "createdAt", Value: "2025-01-01T12:00:01.000Z"}},
		))

		reports, err := newMockStore(mt).FindReports(context.Background(), patientID.Hex())
		require.NoError(mt, err)
		require.Len(mt, reports, 2)
		assert.Equal(mt, []string{newer.Hex(), older.Hex()}, []string{reports[0].ID, reports[1].ID})
		assert.Equal(mt, patientID.Hex(), reports[0].PatientID)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, reportsCollection, evt.Command.Lookup("find").StringValue())
		assert.Equal(mt, patientID, evt.Command.Lookup("filter", "patientId").ObjectID())

		var sort bson.D
		require.NoError(mt, bson.Unmarshal(evt.Command.Lookup("sort").Document(), &sort))
		require.Len(mt, sort, 2)
		assert.Equal(mt, "createdAt", sort[0].Key)
		assert.EqualValues(mt, -1, sort[0].Value)
		assert.Equal(mt, "_id", sort[1].Key)
		assert.EqualValues(mt, -1, sort[1].Value)
	})

	mt.Run("maps malformed patient ids to not found", func(mt *mtest.T) {
		store := newMockStore(mt)

		_, err := store.InsertReport(context.Background(), &Report{PatientID: "bad"})
		assert.ErrorIs(mt, err, ErrPatientNotFound)

		_, err = store.FindReports(context.Background(), "bad")
		assert.ErrorIs(mt, err, ErrPatientNotFound)

		assert.Empty(mt, mt.GetAllStartedEvents())
	})
}
