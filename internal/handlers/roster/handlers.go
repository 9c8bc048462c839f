package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Jsunwilke/employeeapp-sub001/internal/models"
	"github.com/Jsunwilke/employeeapp-sub001/internal/pkg/response"
	"github.com/Jsunwilke/employeeapp-sub001/internal/repositories"
)

type Handlers struct {
	repo *repositories.RosterRepository
}

func NewHandlers(repo *repositories.RosterRepository) *Handlers {
	return &Handlers{repo: repo}
}

func (h *Handlers) ListHandler(w http.ResponseWriter, r *http.Request) {
	shootID := r.URL.Query().Get("shoot_id")
	if shootID == "" {
		response.RespondWithError(w, http.StatusBadRequest, "shoot_id is required")
		return
	}

	entries, err := h.repo.ListByShoot(r.Context(), shootID)
	if err != nil {
		log.Printf("Failed to list roster for shoot %s: %v", shootID, err)
		response.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if entries == nil {
		entries = []models.RosterEntry{}
	}
	response.RespondWithJSON(w, http.StatusOK, entries)
}

// ImportHandler loads roster rows from an uploaded .xlsx file or a Google
// Sheet URL. Expected columns: subject name, group, image numbers, notes;
// the first row is a header.
func (h *Handlers) ImportHandler(w http.ResponseWriter, r *http.Request) {
	var (
		rows    [][]string
		shootID string
		orgID   string
		err     error
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			ShootID        string `json:"shoot_id"`
			OrganizationID string `json:"organization_id"`
			GoogleSheetURL string `json:"google_sheet_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.RespondWithError(w, http.StatusBadRequest, "Invalid request")
			return
		}
		if req.ShootID == "" || req.GoogleSheetURL == "" {
			response.RespondWithError(w, http.StatusBadRequest, "shoot_id and google_sheet_url are required")
			return
		}
		shootID, orgID = req.ShootID, req.OrganizationID
		rows, err = readFromGoogleSheet(r.Context(), req.GoogleSheetURL)
		if err != nil {
			response.RespondWithError(w, http.StatusInternalServerError, "Failed to read Google Sheet: "+err.Error())
			return
		}
	} else {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			response.RespondWithError(w, http.StatusBadRequest, "File too large or malformed")
			return
		}
		shootID = r.FormValue("shoot_id")
		orgID = r.FormValue("organization_id")
		if shootID == "" {
			response.RespondWithError(w, http.StatusBadRequest, "shoot_id is required")
			return
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			response.RespondWithError(w, http.StatusBadRequest, "File not found")
			return
		}
		defer file.Close()

		xlsx, err := excelize.OpenReader(file)
		if err != nil {
			response.RespondWithError(w, http.StatusBadRequest, "Invalid Excel file")
			return
		}
		rows, err = xlsx.GetRows("Sheet1")
		if err != nil {
			sheetList := xlsx.GetSheetList()
			if len(sheetList) == 0 {
				response.RespondWithError(w, http.StatusBadRequest, "Empty Excel file")
				return
			}
			rows, err = xlsx.GetRows(sheetList[0])
			if err != nil {
				response.RespondWithError(w, http.StatusInternalServerError, "Failed to read sheet")
				return
			}
		}
	}

	if len(rows) < 2 {
		response.RespondWithError(w, http.StatusBadRequest, "File must contain a header and at least one row")
		return
	}

	entries := make([]models.RosterEntry, 0, len(rows)-1)
	now := time.Now()
	for _, row := range rows[1:] {
		if len(row) == 0 || strings.TrimSpace(cell(row, 0)) == "" {
			continue
		}
		entries = append(entries, models.RosterEntry{
			ID:             uuid.NewString(),
			ShootID:        shootID,
			OrganizationID: orgID,
			SubjectName:    strings.TrimSpace(cell(row, 0)),
			GroupName:      strings.TrimSpace(cell(row, 1)),
			ImageNumbers:   strings.TrimSpace(cell(row, 2)),
			Notes:          strings.TrimSpace(cell(row, 3)),
			UpdatedAt:      now,
		})
	}
	if len(entries) == 0 {
		response.RespondWithError(w, http.StatusBadRequest, "No roster rows found")
		return
	}

	if err = h.repo.BulkInsert(r.Context(), entries); err != nil {
		log.Printf("Roster import for shoot %s failed: %v", shootID, err)
		response.RespondWithError(w, http.StatusInternalServerError, "Import failed")
		return
	}
	response.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"imported": len(entries),
	})
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

var sheetURLPattern = regexp.MustCompile(`\/d\/([a-zA-Z0-9-_]+)`)

func readFromGoogleSheet(ctx context.Context, url string) ([][]string, error) {
	matches := sheetURLPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return nil, fmt.Errorf("invalid Google Sheets URL")
	}
	spreadsheetID := matches[1]

	srv, err := sheets.NewService(ctx, option.WithCredentialsFile("credentials.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to init Google API: %w", err)
	}

	resp, err := srv.Spreadsheets.Values.Get(spreadsheetID, "A1:D5000").Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read spreadsheet: %w", err)
	}
	if len(resp.Values) == 0 {
		return nil, fmt.Errorf("spreadsheet is empty")
	}

	var rows [][]string
	for _, row := range resp.Values {
		var strRow []string
		for _, c := range row {
			strRow = append(strRow, fmt.Sprintf("%v", c))
		}
		rows = append(rows, strRow)
	}
	return rows, nil
}
