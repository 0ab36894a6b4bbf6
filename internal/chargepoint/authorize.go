package chargepoint

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"evquota/internal/ocpp/protocol"
)

// Authorize accepts a tag when its user may start a session, or unconditionally on an
// exempt charger.
func (cp *ChargePoint) Authorize(_ context.Context, req protocol.AuthorizeRequest) protocol.AuthorizeResponse {
	tag := strings.TrimSpace(req.IdTag)
	allowed, reason := cp.admit(tag)

	status := protocol.AuthorizationAccepted
	if !allowed {
		status = protocol.AuthorizationInvalid
	}
	cp.logger.Info("authorize", zap.String("id_tag", tag), zap.String("status", status), zap.String("reason", reason))
	return protocol.AuthorizeResponse{IdTagInfo: protocol.IdTagInfo{Status: status}}
}

func (cp *ChargePoint) admit(tag string) (bool, string) {
	if cp.exempt() {
		return true, "exempt charger"
	}
	return cp.ledger.CanStart(tag)
}
