package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openspool/printtrack/internal/api/dto"
	"github.com/openspool/printtrack/internal/domain"
)

// ListPrinters handles GET /api/v1/printers
// Lists printers known to the print service with their availability
func (h *PrinterHandler) ListPrinters(c *gin.Context) {
	client := h.providers()

	printers, err := client.Printers()
	if err != nil {
		h.logger.Error("Failed to list printers", slog.String("error", err.Error()))
		c.JSON(http.StatusBadGateway, gin.H{"error": "print service unavailable"})
		return
	}

	out := make([]dto.PrinterDTO, len(printers))
	for i := range printers {
		p := &printers[i]
		out[i] = dto.PrinterDTO{
			Name:         p.Name,
			Info:         p.Info,
			Location:     p.Location,
			MakeAndModel: p.MakeAndModel,
			State:        p.State,
			StateMessage: p.StateMessage,
			Available:    p.Available(),
		}
	}

	c.JSON(http.StatusOK, dto.PrintersResponse{Printers: out})
}

// PrinterOptions handles GET /api/v1/printers/:name/options
// Returns the grouped print options a printer supports
func (h *PrinterHandler) PrinterOptions(c *gin.Context) {
	name := c.Param("name")
	client := h.providers()

	groups, err := client.PrinterOptions(name)
	if err != nil {
		if errors.Is(err, domain.ErrPrinterNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "printer not found"})
			return
		}
		h.logger.Error("Failed to get printer options",
			slog.String("printer", name),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "print service unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"groups": groups})
}
