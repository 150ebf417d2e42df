package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mesikahq/clinical-notes/internal/auth"
	"github.com/mesikahq/clinical-notes/internal/patient"
	"github.com/mesikahq/clinical-notes/internal/report"
)

const livenessMessage = "Backend server is running!"

type Handler struct {
	patientService patient.Service
	reportService  report.Service
	logger         *zap.Logger
}

func NewHandler(patientService patient.Service, reportService report.Service, logger *zap.Logger) *Handler {
	return &Handler{
		patientService: patientService,
		reportService:  reportService,
		logger:         logger,
	}
}

// Patient Handlers

type CreatePatientRequest struct {
	Name            string           `json:"name" binding:"required"`
	DOB             string           `json:"dob"`
	Gender          string           `json:"gender"`
	CPF             string           `json:"cpf"`
	Phone           string           `json:"phone"`
	MainComplaint   string           `json:"mainComplaint"`
	HDA             string           `json:"hda"`
	ChronicDiseases patient.TextList `json:"chronicDiseases"`
	Allergies       patient.TextList `json:"allergies"`
	Medications     patient.TextList `json:"medications"`
}

func (r *CreatePatientRequest) toPatient() *patient.Patient {
	return &patient.Patient{
		Name:            r.Name,
		DOB:             r.DOB,
		Gender:          r.Gender,
		CPF:             r.CPF,
		Phone:           r.Phone,
		MainComplaint:   r.MainComplaint,
		HDA:             r.HDA,
		ChronicDiseases: r.ChronicDiseases,
		Allergies:       r.Allergies,
		Medications:     r.Medications,
	}
}

// CreatePatient stores a new patient owned by the caller
func (h *Handler) CreatePatient(c *gin.Context) {
	var req CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, bindingErrorBody(err))
		return
	}

	created, err := h.patientService.Create(c.Request.Context(), auth.GetUserID(c), req.toPatient())
	if err != nil {
		h.writeError(c, "create patient", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":      created.ID,
		"message": fmt.Sprintf("Patient added with ID: %s", created.ID),
	})
}

// ListPatients returns the patients created by the caller
func (h *Handler) ListPatients(c *gin.Context) {
	patients, err := h.patientService.List(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		h.writeError(c, "list patients", err)
		return
	}

	c.JSON(http.StatusOK, patients)
}

func (h *Handler) GetPatient(c *gin.Context) {
	p, err := h.patientService.Get(c.Request.Context(), auth.GetUserID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, "get patient", err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// ListReports returns a patient's reports, newest first
func (h *Handler) ListReports(c *gin.Context) {
	reports, err := h.patientService.ListReports(c.Request.Context(), auth.GetUserID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, "list reports", err)
		return
	}

	c.JSON(http.StatusOK, reports)
}

// Report Handlers

type PatientData struct {
	ID              string           `json:"id" binding:"required"`
	Name            string           `json:"name"`
	DOB             string           `json:"dob"`
	Gender          string           `json:"gender"`
	CPF             string           `json:"cpf"`
	Phone           string           `json:"phone"`
	MainComplaint   string           `json:"mainComplaint"`
	HDA             string           `json:"hda"`
	ChronicDiseases patient.TextList `json:"chronicDiseases"`
	Allergies       patient.TextList `json:"allergies"`
	Medications     patient.TextList `json:"medications"`
}

type GenerateReportRequest struct {
	PatientData *PatientData `json:"patientData" binding:"required"`
}

func (d *PatientData) toPatient() *patient.Patient {
	return &patient.Patient{
		ID:              d.ID,
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
	}
}

// GenerateReport asks the model for a narrative report and stores it under the patient
func (h *Handler) GenerateReport(c *gin.Context) {
	if err := h.reportService.Ready(); err != nil {
		h.writeGenerateError(c, "", err)
		return
	}

	var req GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, bindingErrorBody(err))
		return
	}

	result, err := h.reportService.Generate(c.Request.Context(), auth.GetUserID(c), req.PatientData.toPatient())
	if err != nil {
		h.writeGenerateError(c, req.PatientData.ID, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) writeGenerateError(c *gin.Context, patientID string, err error) {
	var unsaved *report.UnsavedReportError
	switch {
	case errors.Is(err, report.ErrMissingAPIKey):
		h.logger.Error("report generation unavailable", zap.Error(err), zap.String("request_id", c.GetString("request_id")))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Missing API key"})
	case errors.As(err, &unsaved):
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": "Report generated but not saved",
			"error":   unsaved.Err.Error(),
			"report":  unsaved.Report,
			"saved":   false,
		})
	case errors.Is(err, patient.ErrPatientNotFound), errors.Is(err, patient.ErrUnauthorizedAccess):
		h.writeError(c, "generate report", err)
	default:
		h.logger.Error("report generation failed",
			zap.Error(err),
			zap.String("request_id", c.GetString("request_id")),
			zap.String("patient_id", patientID),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": "Error generating report",
			"error":   err.Error(),
		})
	}
}

// writeError maps service errors onto status codes and logs the ones that are
// not the caller's fault.
func (h *Handler) writeError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, patient.ErrPatientNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Patient not found"})
	case errors.Is(err, patient.ErrUnauthorizedAccess):
		h.logger.Warn("access denied",
			zap.String("op", op),
			zap.String("user_id", auth.GetUserID(c)),
			zap.String("request_id", c.GetString("request_id")),
		)
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	default:
		h.logger.Error(op+" failed",
			zap.Error(err),
			zap.String("user_id", auth.GetUserID(c)),
			zap.String("request_id", c.GetString("request_id")),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
	}
}

func bindingErrorBody(err error) gin.H {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return gin.H{"error": "invalid request body"}
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = "is required"
		default:
			fields[fe.Field()] = "failed " + fe.Tag() + " validation"
		}
	}
	return gin.H{"error": "invalid request", "fields": fields}
}
