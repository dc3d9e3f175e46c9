package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"checkops/config"
	"checkops/core/auth"
	"checkops/core/checklists"
	"checkops/core/properties"
	"checkops/core/store"
	"checkops/core/utils"

	"github.com/go-playground/validator/v10"
)

const (
	OutcomeCreated            = "created"
	OutcomeNoMatchingTemplate = "no_matching_template"
	OutcomeDuplicate          = "duplicate"
	OutcomeFailed             = "failed"
)

var validate = validator.New()

// Alert is a surveillance event as delivered by the alert sources.
type Alert struct {
	TenantID   string    `json:"tenant_id" validate:"required,max=128"`
	AlertID    string    `json:"alert_id" validate:"required,max=256"`
	PropertyID int64     `json:"property_id,omitempty" validate:"gte=0"`
	CameraID   string    `json:"camera_id,omitempty" validate:"required_without=PropertyID,max=256"`
	Category   string    `json:"category" validate:"required,max=100"`
	Severity   string    `json:"severity,omitempty" validate:"max=32"`
	CreatedAt  time.Time `json:"created_at"`
}

// Outcome reports what Process did with one alert. Retry marks transient failures
// that the source should deliver again.
type Outcome struct {
	Status     string `json:"status"`
	InstanceID int64  `json:"instance_id,omitempty"`
	TemplateID int64  `json:"template_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Retry      bool   `json:"-"`
	Err        error  `json:"-"`
}

type Generator struct {
	svc    *checklists.Service
	store  *store.Store
	dir    properties.Directory
	cfg    config.AlertsConfig
	logger *utils.Logger
	now    func() time.Time
}

func NewGenerator(svc *checklists.Service, st *store.Store, dir properties.Directory, cfg config.AlertsConfig, logger *utils.Logger) *Generator {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Generator{svc: svc, store: st, dir: dir, cfg: cfg, logger: logger, now: utils.NowUTC}
}

// Process turns one alert into at most one checklist instance. It never panics and
// never returns an error; everything is reported through the Outcome.
func (g *Generator) Process(ctx context.Context, a Alert) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Status: OutcomeFailed, Reason: "internal error", Err: fmt.Errorf("panic: %v", r)}
		}
		alertsProcessed.WithLabelValues(out.Status).Inc()
		g.logOutcome(a, out)
	}()
	a.TenantID = strings.TrimSpace(a.TenantID)
	a.AlertID = strings.TrimSpace(a.AlertID)
	a.CameraID = strings.TrimSpace(a.CameraID)
	if err := validate.Struct(a); err != nil {
		return Outcome{Status: OutcomeFailed, Reason: "invalid alert", Err: err}
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = g.now()
	}

	q := g.store.Queries()
	link, err := q.GetAlertLink(ctx, a.TenantID, a.AlertID)
	if err != nil {
		return Outcome{Status: OutcomeFailed, Reason: "dedupe lookup", Retry: true, Err: err}
	}
	if link != nil {
		return Outcome{Status: OutcomeDuplicate, InstanceID: link.InstanceID}
	}

	category := TemplateCategory(a.Category)
	if category == "" {
		return Outcome{Status: OutcomeNoMatchingTemplate, Reason: "unmapped category " + a.Category, Err: checklists.ErrNoMatchingTemplate}
	}

	propertyID := a.PropertyID
	if propertyID == 0 {
		propertyID, err = g.dir.ResolveProperty(ctx, a.TenantID, a.CameraID)
		if errors.Is(err, properties.ErrUnknownCamera) {
			return Outcome{Status: OutcomeFailed, Reason: "unknown camera " + a.CameraID, Err: err}
		}
		if err != nil {
			return Outcome{Status: OutcomeFailed, Reason: "resolve camera", Retry: true, Err: err}
		}
	}
	propertyType := ""
	prop, err := g.dir.GetProperty(ctx, a.TenantID, propertyID)
	switch {
	case errors.Is(err, properties.ErrUnknownProperty):
		return Outcome{Status: OutcomeFailed, Reason: fmt.Sprintf("unknown property %d", propertyID), Err: err}
	case err != nil:
		return Outcome{Status: OutcomeFailed, Reason: "describe property", Retry: true, Err: err}
	case prop != nil:
		propertyType = prop.Type
	}

	candidates, err := q.ListActiveTemplatesByCategory(ctx, a.TenantID, category)
	if err != nil {
		return Outcome{Status: OutcomeFailed, Reason: "template lookup", Retry: true, Err: err}
	}
	tpl := pickTemplate(candidates, propertyType)
	if tpl == nil {
		return Outcome{Status: OutcomeNoMatchingTemplate, Reason: "no active " + category + " template", Err: checklists.ErrNoMatchingTemplate}
	}

	due := a.CreatedAt.UTC().Add(g.cfg.DueFor(a.Severity))
	in := checklists.InstanceInput{
		PropertyID: propertyID,
		TemplateID: tpl.ID,
		AssignedTo: g.cfg.DefaultAssignee,
		DueDate:    &due,
	}
	reason := triggerReason(a)
	inst, err := g.svc.CreateInstanceWith(ctx, auth.System(a.TenantID), in, func(ctx context.Context, q *store.Queries, inst *store.ChecklistInstance) error {
		return q.InsertAlertLink(ctx, &store.AlertGeneratedLink{
			TenantID:      a.TenantID,
			AlertID:       a.AlertID,
			InstanceID:    inst.ID,
			TriggerReason: reason,
			CreatedAt:     inst.CreatedAt,
		})
	})
	if errors.Is(err, store.ErrDuplicateAlert) {
		// another worker linked the alert first
		existing, lerr := g.store.Queries().GetAlertLink(ctx, a.TenantID, a.AlertID)
		if lerr == nil && existing != nil {
			return Outcome{Status: OutcomeDuplicate, InstanceID: existing.InstanceID}
		}
		return Outcome{Status: OutcomeDuplicate}
	}
	if err != nil {
		_, domain := checklists.AsDomainError(err)
		return Outcome{Status: OutcomeFailed, TemplateID: tpl.ID, Reason: "create instance", Retry: !domain, Err: err}
	}
	return Outcome{Status: OutcomeCreated, InstanceID: inst.ID, TemplateID: tpl.ID}
}

// pickTemplate returns the first usable template; candidates arrive newest first.
func pickTemplate(candidates []store.ChecklistTemplate, propertyType string) *store.ChecklistTemplate {
	for i := range candidates {
		tpl := &candidates[i]
		if !tpl.IsActive {
			continue
		}
		if propertyType == "" || tpl.PropertyType == "" || strings.EqualFold(tpl.PropertyType, propertyType) {
			return tpl
		}
	}
	return nil
}

func triggerReason(a Alert) string {
	parts := []string{a.Category + " alert"}
	if a.Severity != "" {
		parts = append(parts, "severity="+a.Severity)
	}
	if a.CameraID != "" {
		parts = append(parts, "camera="+a.CameraID)
	}
	return strings.Join(parts, " ")
}

func (g *Generator) logOutcome(a Alert, out Outcome) {
	kv := []any{"tenant_id", a.TenantID, "alert_id", a.AlertID, "category", a.Category, "outcome", out.Status}
	if out.InstanceID != 0 {
		kv = append(kv, "instance_id", out.InstanceID)
	}
	if out.Reason != "" {
		kv = append(kv, "reason", out.Reason)
	}
	switch out.Status {
	case OutcomeFailed:
		if out.Err != nil {
			kv = append(kv, "error", out.Err.Error())
		}
		g.logger.Errorw("alert processing failed", kv...)
	case OutcomeNoMatchingTemplate:
		g.logger.Infow("alert matched no checklist template", kv...)
	default:
		g.logger.Infow("alert processed", kv...)
	}
}
