package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	transferdomain "github.com/odontia/odontia/internal/transfer/domain"
)

type createTransferRequest struct {
	PatientID       string  `json:"patient_id"`
	SourcePaymentID string  `json:"source_payment_id"`
	Amount          float64 `json:"amount"`
	TreatmentID     string  `json:"treatment_id"`
	DoctorID        string  `json:"doctor_id"`
	Notes           string  `json:"notes"`
}

func (s *Server) CreateTransfer(c *gin.Context) {
	var req createTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	patientID, err := snowflake.ParseString(strings.TrimSpace(req.PatientID))
	if err != nil {
		AbortWithError(c, newValidationError("patient_id", "invalid_patient", "invalid patient"))
		return
	}
	sourceID, err := snowflake.ParseString(strings.TrimSpace(req.SourcePaymentID))
	if err != nil {
		AbortWithError(c, newValidationError("source_payment_id", "invalid_source", "invalid source payment"))
		return
	}
	doctorID, err := snowflake.ParseString(strings.TrimSpace(req.DoctorID))
	if err != nil {
		AbortWithError(c, newValidationError("doctor_id", "invalid_doctor", "invalid doctor"))
		return
	}
	treatmentID, err := parseOptionalID(req.TreatmentID, "treatment_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.transferSvc.Transfer(c.Request.Context(), transferdomain.TransferRequest{
		PatientID:       patientID,
		SourcePaymentID: sourceID,
		Amount:          req.Amount,
		TreatmentID:     treatmentID,
		DoctorID:        doctorID,
		Notes:           strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
