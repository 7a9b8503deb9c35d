package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/odontia/odontia/internal/invoice/domain"
)

func (s *Server) GetInvoiceByID(c *gin.Context) {
	invoiceID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.invoiceRepo.FindByID(c.Request.Context(), s.db, invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if resp == nil {
		AbortWithError(c, invoicedomain.ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListInvoicesByPatient(c *gin.Context) {
	patientID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.invoiceRepo.ListByPatient(c.Request.Context(), s.db, patientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetInvoiceLinks re-fetches the viewing URLs from the external issuer and
// refreshes the cached PDF URL when it changed.
func (s *Server) GetInvoiceLinks(c *gin.Context) {
	invoiceID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invoice, err := s.invoiceRepo.FindByID(c.Request.Context(), s.db, invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if invoice == nil {
		AbortWithError(c, invoicedomain.ErrNotFound)
		return
	}
	if invoice.ExternalID == "" {
		AbortWithError(c, invoicedomain.ErrNotFound)
		return
	}

	urls, err := s.issuer.GetInvoiceURLs(c.Request.Context(), invoice.ExternalID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if urls.DownloadURL != "" && urls.DownloadURL != invoice.URL {
		_ = s.invoiceRepo.UpdateExternal(c.Request.Context(), s.db, invoice.ID, invoice.ExternalID, urls.DownloadURL)
	}

	c.JSON(http.StatusOK, gin.H{"data": urls})
}
