package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/ledger"
)

type AdminHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

// RebuildLedger reconciles one stay (?stay_id=) or the whole catalogue.
func (h AdminHandler) RebuildLedger(c *gin.Context) {
	cmd := ledger.RebuildLedgerCommand{StayID: c.Query("stay_id")}
	result, err := commands.Dispatch[ledger.RebuildLedgerCommand, *dto.LedgerRepair](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ AdminHTTP = AdminHandler{}
