package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	budgetdomain "github.com/odontia/odontia/internal/budget/domain"
	conversiondomain "github.com/odontia/odontia/internal/conversion/domain"
)

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, ErrNotFound
	}
	return id, nil
}

type createBudgetRequest struct {
	PatientID string                        `json:"patient_id"`
	Title     string                        `json:"title"`
	Items     []budgetdomain.LineItemInput  `json:"items"`
}

func (s *Server) CreateBudget(c *gin.Context) {
	var req createBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	patientID, err := snowflake.ParseString(strings.TrimSpace(req.PatientID))
	if err != nil {
		AbortWithError(c, newValidationError("patient_id", "invalid_patient", "invalid patient"))
		return
	}

	resp, err := s.budgetSvc.Create(c.Request.Context(), budgetdomain.CreateBudgetRequest{
		PatientID: patientID,
		Title:     strings.TrimSpace(req.Title),
		Items:     req.Items,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type addLineItemRequest struct {
	budgetdomain.LineItemInput
}

func (s *Server) AddBudgetLineItem(c *gin.Context) {
	patientID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req addLineItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.budgetSvc.AddLineItem(c.Request.Context(), budgetdomain.AddLineItemRequest{
		PatientID: patientID,
		Item:      req.LineItemInput,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type setBudgetStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) SetBudgetStatus(c *gin.Context) {
	budgetID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req setBudgetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.budgetSvc.SetStatus(c.Request.Context(), budgetID,
		budgetdomain.BudgetStatus(strings.ToUpper(strings.TrimSpace(req.Status))))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBudgetByID(c *gin.Context) {
	budgetID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.budgetSvc.GetByID(c.Request.Context(), budgetID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListBudgetsByPatient(c *gin.Context) {
	patientID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.budgetSvc.ListByPatient(c.Request.Context(), patientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type convertBudgetRequest struct {
	PaymentMethod string `json:"payment_method"`
}

func (s *Server) ConvertBudget(c *gin.Context) {
	budgetID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req convertBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.conversionSvc.ConvertToInvoice(c.Request.Context(), conversiondomain.ConvertToInvoiceRequest{
		BudgetID:      budgetID,
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type createPlanFromBudgetRequest struct {
	DownPayment       float64 `json:"down_payment"`
	InstallmentsCount int     `json:"installments_count"`
}

func (s *Server) CreateFinancingFromBudget(c *gin.Context) {
	budgetID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req createPlanFromBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.conversionSvc.CreatePlan(c.Request.Context(), conversiondomain.CreatePlanRequest{
		BudgetID:          budgetID,
		DownPayment:       req.DownPayment,
		InstallmentsCount: req.InstallmentsCount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
