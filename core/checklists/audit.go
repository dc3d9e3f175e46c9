package checklists

import (
	"checkops/core/auth"
	"checkops/core/utils"
)

const (
	AuditTemplateCreate     = "checklists.template.create"
	AuditTemplateUpdate     = "checklists.template.update"
	AuditTemplateActivate   = "checklists.template.activate"
	AuditTemplateDeactivate = "checklists.template.deactivate"
	AuditTemplateDelete     = "checklists.template.delete"
	AuditInstanceCreate     = "checklists.instance.create"
	AuditInstanceUpdate     = "checklists.instance.update"
	AuditInstanceStatus     = "checklists.instance.status"
	AuditInstanceDelete     = "checklists.instance.delete"
	AuditResponseRecord     = "checklists.response.record"
	AuditApprovalSubmit     = "checklists.approval.submit"
	AuditApprovalDecide     = "checklists.approval.decide"
	AuditAttachmentAdd      = "checklists.attachment.add"
	AuditAttachmentDelete   = "checklists.attachment.delete"
)

// Log writes one audit line. details are zap key/value pairs.
func Log(logger *utils.Logger, actor auth.Actor, action, result string, details ...any) {
	if logger == nil {
		return
	}
	kv := append([]any{"audit", true, "action", action, "result", result, "tenant_id", actor.TenantID, "user_id", actor.UserID}, details...)
	if result == "failed" {
		logger.Warnw("audit", kv...)
		return
	}
	logger.Infow("audit", kv...)
}
