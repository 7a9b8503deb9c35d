package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	walletdomain "github.com/odontia/odontia/internal/wallet/domain"
	"github.com/odontia/odontia/pkg/db/pagination"
)

type recordPaymentRequest struct {
	PatientID   string  `json:"patient_id"`
	Amount      float64 `json:"amount"`
	Method      string  `json:"method"`
	Type        string  `json:"type"`
	BudgetID    string  `json:"budget_id"`
	TreatmentID string  `json:"treatment_id"`
	DoctorID    string  `json:"doctor_id"`
	InvoiceID   string  `json:"invoice_id"`
	Notes       string  `json:"notes"`
}

func (s *Server) RecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	patientID, err := snowflake.ParseString(strings.TrimSpace(req.PatientID))
	if err != nil {
		AbortWithError(c, newValidationError("patient_id", "invalid_patient", "invalid patient"))
		return
	}

	svcReq := walletdomain.RecordPaymentRequest{
		PatientID: patientID,
		Amount:    req.Amount,
		Method:    walletdomain.PaymentMethod(strings.ToUpper(strings.TrimSpace(req.Method))),
		Type:      walletdomain.PaymentType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Notes:     strings.TrimSpace(req.Notes),
	}
	if svcReq.BudgetID, err = parseOptionalID(req.BudgetID, "budget_id"); err != nil {
		AbortWithError(c, err)
		return
	}
	if svcReq.TreatmentID, err = parseOptionalID(req.TreatmentID, "treatment_id"); err != nil {
		AbortWithError(c, err)
		return
	}
	if svcReq.DoctorID, err = parseOptionalID(req.DoctorID, "doctor_id"); err != nil {
		AbortWithError(c, err)
		return
	}
	if svcReq.InvoiceID, err = parseOptionalID(req.InvoiceID, "invoice_id"); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.walletSvc.RecordPayment(c.Request.Context(), svcReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func parseOptionalID(raw, field string) (*snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return nil, newValidationError(field, "invalid_"+field, "invalid "+field)
	}
	return &id, nil
}

func (s *Server) ListPayments(c *gin.Context) {
	patientID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, info, err := s.walletSvc.HistoryPage(c.Request.Context(), patientID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp, "page_info": info})
}

func (s *Server) GetWalletBalance(c *gin.Context) {
	patientID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	balance, err := s.walletSvc.Balance(c.Request.Context(), patientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"patient_id": patientID.String(),
		"balance":    balance,
	}})
}

func (s *Server) RecomputeWallet(c *gin.Context) {
	patientID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	balance, err := s.walletSvc.RecomputeBalance(c.Request.Context(), patientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"patient_id": patientID.String(),
		"balance":    balance,
	}})
}
