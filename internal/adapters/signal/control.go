package signal

import (
	"errors"

	"github.com/dkeye/shoproom/internal/domain"
)

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) sendError(conn *WsSignalConn, code, msg string) {
	ctl.sendJSON(conn, map[string]any{
		"type":    "error",
		"error":   code,
		"message": msg,
	})
}

func (ctl *SignalWSController) sendErr(conn *WsSignalConn, err error) {
	ctl.sendError(conn, errorCode(err), err.Error())
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrPersistence):
		return "unavailable"
	default:
		return "internal"
	}
}
