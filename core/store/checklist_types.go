package store

import (
	"encoding/json"
	"time"
)

type ChecklistTemplate struct {
	ID           int64          `json:"id"`
	TenantID     string         `json:"tenant_id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Category     string         `json:"category"`
	PropertyType string         `json:"property_type,omitempty"`
	IsActive     bool           `json:"is_active"`
	CreatedBy    string         `json:"created_by"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Items        []TemplateItem `json:"items,omitempty"`
}

type TemplateItem struct {
	ID            int64           `json:"id"`
	TenantID      string          `json:"tenant_id"`
	TemplateID    int64           `json:"template_id"`
	Text          string          `json:"text"`
	ItemType      string          `json:"type"`
	IsRequired    bool            `json:"is_required"`
	SortOrder     int             `json:"sort_order"`
	Config        json.RawMessage `json:"config,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeactivatedAt *time.Time      `json:"deactivated_at,omitempty"`
}

func (i TemplateItem) Active() bool {
	return i.DeactivatedAt == nil
}

// InEffectAt reports whether the item belonged to the template at moment t.
func (i TemplateItem) InEffectAt(t time.Time) bool {
	if i.CreatedAt.After(t) {
		return false
	}
	return i.DeactivatedAt == nil || i.DeactivatedAt.After(t)
}

type TemplateFilter struct {
	Category     string
	PropertyType string
	Active       *bool
	Limit        int
	Offset       int
}

type ChecklistInstance struct {
	ID          int64      `json:"id"`
	TenantID    string     `json:"tenant_id"`
	PropertyID  int64      `json:"property_id"`
	TemplateID  int64      `json:"template_id"`
	AssignedTo  string     `json:"assigned_to,omitempty"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type InstanceFilter struct {
	PropertyID int64
	TemplateID int64
	Status     string
	AssignedTo string
	Limit      int
	Offset     int
}

type ItemResponse struct {
	ID               int64      `json:"id"`
	TenantID         string     `json:"tenant_id"`
	InstanceID       int64      `json:"instance_id"`
	ItemID           int64      `json:"item_id"`
	Value            string     `json:"value"`
	Notes            string     `json:"notes,omitempty"`
	CompletedBy      string     `json:"completed_by,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	RequiresApproval bool       `json:"requires_approval"`
	UpdatedBy        string     `json:"updated_by"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (r ItemResponse) Complete() bool {
	return r.CompletedAt != nil
}

type Approval struct {
	ID         int64      `json:"id"`
	TenantID   string     `json:"tenant_id"`
	ResponseID int64      `json:"response_id"`
	ApproverID string     `json:"approver_id,omitempty"`
	Status     string     `json:"status"`
	Notes      string     `json:"notes,omitempty"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type Attachment struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	ResponseID  int64     `json:"response_id"`
	FileName    string    `json:"file_name"`
	StoragePath string    `json:"storage_path"`
	FileType    string    `json:"file_type"`
	FileSize    int64     `json:"file_size"`
	UploadedBy  string    `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type AlertGeneratedLink struct {
	ID            int64     `json:"id"`
	TenantID      string    `json:"tenant_id"`
	AlertID       string    `json:"alert_id"`
	InstanceID    int64     `json:"instance_id"`
	TriggerReason string    `json:"trigger_reason"`
	CreatedAt     time.Time `json:"created_at"`
}

// DeletionReport lists what DeleteInstanceCascade removed.
type DeletionReport struct {
	InstanceID   int64    `json:"instance_id"`
	Attachments  int64    `json:"attachments"`
	Approvals    int64    `json:"approvals"`
	Responses    int64    `json:"responses"`
	AlertLinks   int64    `json:"alert_links"`
	StoragePaths []string `json:"-"`
}
