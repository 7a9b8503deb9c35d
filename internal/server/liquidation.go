package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	liquidationdomain "github.com/odontia/odontia/internal/liquidation/domain"
)

func (s *Server) CalculateLiquidation(c *gin.Context) {
	appointmentID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.liquidationSvc.Calculate(c.Request.Context(), appointmentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPayroll(c *gin.Context) {
	var query struct {
		DoctorID string `form:"doctor_id"`
		Month    string `form:"month"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := liquidationdomain.PayrollRequest{}
	if raw := strings.TrimSpace(query.DoctorID); raw != "" {
		doctorID, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("doctor_id", "invalid_doctor", "invalid doctor"))
			return
		}
		req.DoctorID = doctorID
	}
	if raw := strings.TrimSpace(query.Month); raw != "" {
		month, err := time.Parse("2006-01", raw)
		if err != nil {
			AbortWithError(c, newValidationError("month", "invalid_month", "expected YYYY-MM"))
			return
		}
		req.Month = &month
	}

	resp, err := s.liquidationSvc.Payroll(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MarkLiquidationPaid(c *gin.Context) {
	liquidationID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.liquidationSvc.MarkPaid(c.Request.Context(), liquidationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
