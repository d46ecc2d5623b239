package handlers

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/jung-kurt/gofpdf"

	"github.com/bankledger/backend/internal/models"
	"github.com/bankledger/backend/internal/services"
)

// StatementHandler renders account statements as PDF downloads. The
// statement content comes from the statement service; this layer only
// deals with HTTP and layout.
type StatementHandler struct {
	service *services.StatementService
}

func NewStatementHandler(service *services.StatementService) *StatementHandler {
	return &StatementHandler{service: service}
}

// DownloadStatement streams a PDF account statement
// @Summary Download account statement
// @Description Generate a PDF statement for an owned account over an optional date range
// @Tags statements
// @Produce application/pdf
// @Security BearerAuth
// @Param account_number query string true "Account number"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Success 200 {file} binary
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /statements [get]
func (h *StatementHandler) DownloadStatement(w http.ResponseWriter, r *http.Request) {
	userID, ok := services.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	accountNumber := r.URL.Query().Get("account_number")
	if accountNumber == "" {
		services.SendErrorResponse(w, "account_number is required", http.StatusBadRequest, nil)
		return
	}

	from, to, ok := services.ParseDateRange(w, r)
	if !ok {
		return
	}

	statement, err := h.service.Build(r.Context(), userID, accountNumber, from, to)
	if err != nil {
		log.Printf("[STATEMENT] Build failed for account %s: %v", accountNumber, err)
		services.SendDomainError(w, err)
		return
	}

	// Render into memory first so a mid-render failure can still
	// produce an error response instead of a truncated download.
	var buf bytes.Buffer
	if err := renderPDF(&buf, statement); err != nil {
		log.Printf("[STATEMENT] PDF render failed for account %s: %v", accountNumber, err)
		services.SendErrorResponse(w, "An internal error occurred", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="Account_Statement.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}

func renderPDF(w io.Writer, st *models.Statement) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "Account Statement", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 6, "Account Holder: "+st.HolderName, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Account Number: "+st.AccountNumber, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Statement Period: "+periodLabel(st), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	pdf.SetFillColor(242, 242, 242)
	pdf.CellFormat(30, 8, "Date", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 8, "Type", "1", 0, "L", true, 0, "")
	pdf.CellFormat(35, 8, "Amount", "1", 0, "L", true, 0, "")
	pdf.CellFormat(100, 8, "Description", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, row := range st.Rows {
		pdf.CellFormat(30, 8, row.CreatedAt.Format("2006-01-02"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 8, string(row.Type), "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 8, string(st.Currency)+" "+row.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(100, 8, row.Description, "1", 1, "L", false, 0, "")
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 8, "Closing Balance: "+string(st.Currency)+" "+st.ClosingBalance.StringFixed(2), "", 1, "L", false, 0, "")

	return pdf.Output(w)
}

func periodLabel(st *models.Statement) string {
	from := "Start"
	if st.From != nil {
		from = st.From.Format("2006-01-02")
	}
	to := "Today"
	if st.To != nil {
		to = st.To.Format("2006-01-02")
	}
	return from + " to " + to
}
