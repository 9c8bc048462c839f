package export

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Jsunwilke/employeeapp-sub001/internal/middleware"
	"github.com/Jsunwilke/employeeapp-sub001/internal/models"
	"github.com/Jsunwilke/employeeapp-sub001/internal/pkg/response"
	"github.com/Jsunwilke/employeeapp-sub001/internal/timeclock"
)

type Handlers struct {
	service *timeclock.Service
}

func NewHandlers(service *timeclock.Service) *Handlers {
	return &Handlers{service: service}
}

// TimesheetHandler writes the caller's completed entries for [from, to) as
// an .xlsx download.
func (h *Handlers) TimesheetHandler(w http.ResponseWriter, r *http.Request) {
	id, found := middleware.GetUserIDFromContext(r.Context())
	if !found {
		response.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	userID := strconv.Itoa(id)

	now := time.Now()
	from, to := now.AddDate(0, 0, -7), now
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			response.RespondWithError(w, http.StatusBadRequest, "Invalid from date")
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			response.RespondWithError(w, http.StatusBadRequest, "Invalid to date")
			return
		}
		to = t.Add(24 * time.Hour)
	}

	entries, err := h.service.ListEntries(r.Context(), userID, from, to)
	if err != nil {
		log.Printf("Timesheet query for user %s failed: %v", userID, err)
		response.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}

	f := excelize.NewFile()
	sheet := "Timesheet"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Date", "Clock In", "Clock Out", "Duration", "Notes"}
	for i, name := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetCellValue(sheet, col+"1", name)
	}

	row := 2
	var total time.Duration
	for _, e := range entries {
		if e.Status != models.StatusCompleted || e.EndTime == nil {
			continue
		}
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), e.StartTime.Format("2006-01-02"))
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), e.StartTime.Format("15:04"))
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), e.EndTime.Format("15:04"))
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), response.FormatDuration(int(e.Duration().Seconds())))
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), e.Notes)
		total += e.Duration()
		row++
	}
	f.SetCellValue(sheet, fmt.Sprintf("A%d", row+1), "Total")
	f.SetCellValue(sheet, fmt.Sprintf("D%d", row+1), response.FormatDuration(int(total.Seconds())))

	filename := fmt.Sprintf("timesheet_%s_%s.xlsx", from.Format("2006-01-02"), to.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := f.Write(w); err != nil {
		log.Printf("Failed to stream timesheet for user %s: %v", userID, err)
	}
}
