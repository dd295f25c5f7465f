package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"stancesense-cloud/internal/auth"
	"stancesense-cloud/internal/storage"
	telemetry "stancesense-cloud/internal/telemetry/domain"
)

const exportLimit = 100

// BuildAlertsPDF renders a minimal PDF report of recent alerts.
func BuildAlertsPDF(userID string, alerts []telemetry.Alert) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Alert History")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Patient: %s", userID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(55, 6, "Timestamp", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Event", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Severity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(65, 6, "Message", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, alert := range alerts {
		pdf.CellFormat(55, 6, alert.Timestamp, "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, alert.EventType, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, alert.Severity, "1", 0, "C", false, 0, "")
		pdf.CellFormat(65, 6, truncate(alert.Message, 48), "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAlertsXLSX renders a minimal XLSX workbook of recent alerts.
func BuildAlertsXLSX(userID string, alerts []telemetry.Alert) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	alertsSheet := "alerts"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(alertsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Alert History")
	_ = f.SetCellValue(summarySheet, "A3", "Patient")
	_ = f.SetCellValue(summarySheet, "B3", userID)
	_ = f.SetCellValue(summarySheet, "A4", "Generated")
	_ = f.SetCellValue(summarySheet, "B4", time.Now().UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Alerts")
	_ = f.SetCellValue(summarySheet, "B5", len(alerts))

	_ = f.SetCellValue(alertsSheet, "A1", "Timestamp")
	_ = f.SetCellValue(alertsSheet, "B1", "Event")
	_ = f.SetCellValue(alertsSheet, "C1", "Severity")
	_ = f.SetCellValue(alertsSheet, "D1", "Message")
	for i, alert := range alerts {
		row := i + 2
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("A%d", row), alert.Timestamp)
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("B%d", row), alert.EventType)
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("C%d", row), alert.Severity)
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("D%d", row), alert.Message)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportHandler serves alert history downloads in PDF and XLSX form.
type ExportHandler struct {
	store  Store
	logger *log.Logger
}

// NewExportHandler constructs an export handler.
func NewExportHandler(store Store, logger *log.Logger) (*ExportHandler, error) {
	if store == nil {
		return nil, errors.New("history: nil store")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ExportHandler{store: store, logger: logger}, nil
}

func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	alerts, err := h.loadAlerts(r, userID)
	if err != nil {
		h.logger.Printf("history: export query failed for %s: %v", userID, err)
		http.Error(w, "history query error", http.StatusInternalServerError)
		return
	}

	switch r.URL.Path {
	case "/api/v1/exports/alerts.pdf":
		payload, err := BuildAlertsPDF(userID, alerts)
		if err != nil {
			h.logger.Printf("history: pdf export failed for %s: %v", userID, err)
			http.Error(w, "export error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="alerts.pdf"`)
		_, _ = w.Write(payload)
	case "/api/v1/exports/alerts.xlsx":
		payload, err := BuildAlertsXLSX(userID, alerts)
		if err != nil {
			h.logger.Printf("history: xlsx export failed for %s: %v", userID, err)
			http.Error(w, "export error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="alerts.xlsx"`)
		_, _ = w.Write(payload)
	default:
		http.NotFound(w, r)
	}
}

func (h *ExportHandler) loadAlerts(r *http.Request, userID string) ([]telemetry.Alert, error) {
	docs, err := h.store.List(r.Context(), storage.UserCollection(userID, storage.CollectionAlerts), exportLimit)
	if err != nil {
		return nil, err
	}
	alerts := make([]telemetry.Alert, 0, len(docs))
	for _, doc := range docs {
		var alert telemetry.Alert
		if err := json.Unmarshal(doc, &alert); err != nil {
			h.logger.Printf("history: skipping malformed alert document: %v", err)
			continue
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
