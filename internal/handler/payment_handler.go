package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fluentia/tutor-admin-api/internal/models"
	"github.com/fluentia/tutor-admin-api/internal/service"
	appErrors "github.com/fluentia/tutor-admin-api/pkg/errors"
	"github.com/fluentia/tutor-admin-api/pkg/export"
	"github.com/fluentia/tutor-admin-api/pkg/response"
)

// PaymentHandler exposes billing endpoints.
type PaymentHandler struct {
	payments *service.PaymentService
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments *service.PaymentService, csv *export.CSVExporter, pdf *export.PDFExporter) *PaymentHandler {
	return &PaymentHandler{payments: payments, csv: csv, pdf: pdf}
}

func paymentFilterFromQuery(c *gin.Context) models.PaymentFilter {
	var filter models.PaymentFilter
	if status := c.Query("status"); status != "" {
		filter.Status = models.PaymentStatus(strings.ToUpper(status))
	}
	filter.StudentID = c.Query("studentId")
	filter.ClassID = c.Query("classId")
	if month, err := strconv.Atoi(c.Query("referenceMonth")); err == nil {
		filter.ReferenceMonth = month
	}
	if year, err := strconv.Atoi(c.Query("referenceYear")); err == nil {
		filter.ReferenceYear = year
	}
	filter.SortBy = c.DefaultQuery("sortBy", "dueDate")
	filter.SortOrder = c.DefaultQuery("sortOrder", "desc")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil {
		filter.PageSize = size
	}
	return filter
}

// List godoc
// @Summary List payments
// @Tags Payments
// @Produce json
// @Param status query string false "Filter by status"
// @Param studentId query string false "Filter by student"
// @Param classId query string false "Filter by class"
// @Param referenceMonth query int false "Filter by reference month"
// @Param referenceYear query int false "Filter by reference year"
// @Param sortBy query string false "Sort column"
// @Param sortOrder query string false "asc or desc"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	payments, pagination, err := h.payments.List(c.Request.Context(), paymentFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, pagination)
}

// Stats godoc
// @Summary Aggregate payment counts and amounts by status
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /payments/stats [get]
func (h *PaymentHandler) Stats(c *gin.Context) {
	stats, err := h.payments.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// ByStudent godoc
// @Summary List a student's payments
// @Tags Payments
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /payments/student/{studentId} [get]
func (h *PaymentHandler) ByStudent(c *gin.Context) {
	payments, err := h.payments.ListByStudent(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// Get godoc
// @Summary Get payment detail
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	payment, err := h.payments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Create godoc
// @Summary Create payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.CreatePaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	var req service.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	payment, err := h.payments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// Update godoc
// @Summary Update payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body service.UpdatePaymentRequest true "Payment payload"
// @Success 200 {object} response.Envelope
// @Router /payments/{id} [put]
func (h *PaymentHandler) Update(c *gin.Context) {
	var req service.UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	payment, err := h.payments.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// MarkPaid godoc
// @Summary Mark payment as paid
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body service.MarkPaidRequest false "Paid date and notes"
// @Success 200 {object} response.Envelope
// @Router /payments/{id}/pay [patch]
func (h *PaymentHandler) MarkPaid(c *gin.Context) {
	var req service.MarkPaidRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	payment, err := h.payments.MarkPaid(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Delete godoc
// @Summary Delete payment
// @Tags Payments
// @Param id path string true "Payment ID"
// @Success 204
// @Router /payments/{id} [delete]
func (h *PaymentHandler) Delete(c *gin.Context) {
	if err := h.payments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Bulk godoc
// @Summary Create payments for every enrolled student of a class
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.BulkPaymentRequest true "Bulk payment payload"
// @Success 201 {object} response.Envelope
// @Router /payments/bulk [post]
func (h *PaymentHandler) Bulk(c *gin.Context) {
	var req service.BulkPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.payments.CreateBulk(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Export godoc
// @Summary Export the filtered payment list
// @Tags Payments
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Router /payments/export [get]
func (h *PaymentHandler) Export(c *gin.Context) {
	dataset, err := h.payments.Export(c.Request.Context(), paymentFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	filename := fmt.Sprintf("payments-%s", time.Now().UTC().Format("2006-01-02"))
	switch format {
	case "csv":
		payload, err := h.csv.Render(dataset)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export"))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", filename))
		c.Data(http.StatusOK, "text/csv", payload)
	case "pdf":
		payload, err := h.pdf.Render(dataset, "Payments")
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export"))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", filename))
		c.Data(http.StatusOK, "application/pdf", payload)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unsupported export format"))
	}
}
