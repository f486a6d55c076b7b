package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ExportCashbackLedger streams the full cashback ledger as an xlsx
// spreadsheet.
func (h *APIHandler) ExportCashbackLedger(c *gin.Context) {
	entries, err := h.ledger.Entries(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Cashback"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Purchase ID", "Referrer ID", "Referee ID", "Purchase Amount", "Cashback %", "Cashback Amount", "Created At"}
	for i, hdr := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, hdr)
	}

	for row, e := range entries {
		values := []interface{}{
			e.PurchaseID,
			e.ReferrerID,
			e.RefereeID,
			e.PurchaseAmount,
			e.CashbackPercentage,
			e.CashbackAmount,
			e.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	filename := fmt.Sprintf("cashback-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := f.Write(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
