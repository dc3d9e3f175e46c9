package checklists

import (
	"encoding/json"
	"time"

	"checkops/core/store"
)

const (
	CategorySecurity    = "security"
	CategoryMaintenance = "maintenance"
	CategoryInspection  = "inspection"
	CategoryCompliance  = "compliance"
	CategoryEmergency   = "emergency"
	CategoryOther       = "other"
)

var Categories = []string{CategorySecurity, CategoryMaintenance, CategoryInspection, CategoryCompliance, CategoryEmergency, CategoryOther}

const (
	ItemText      = "text"
	ItemBoolean   = "boolean"
	ItemFile      = "file"
	ItemPhoto     = "photo"
	ItemSignature = "signature"
	ItemDropdown  = "dropdown"
	ItemNumber    = "number"
)

var ItemTypes = []string{ItemText, ItemBoolean, ItemFile, ItemPhoto, ItemSignature, ItemDropdown, ItemNumber}

const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

var Statuses = []string{StatusPending, StatusInProgress, StatusCompleted}

const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

func ValidCategory(c string) bool { return contains(Categories, c) }

func ValidItemType(t string) bool { return contains(ItemTypes, t) }

func ValidStatus(s string) bool { return contains(Statuses, s) }

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

type TemplateInput struct {
	Name         string              `json:"name" validate:"required,max=200"`
	Description  string              `json:"description" validate:"max=4000"`
	Category     string              `json:"category" validate:"required,category"`
	PropertyType string              `json:"property_type" validate:"max=100"`
	Items        []TemplateItemInput `json:"items" validate:"dive"`
}

// TemplateItemInput describes one item. ID is zero for new items; on update a
// non-zero ID refers to an existing active item of the template.
type TemplateItemInput struct {
	ID         int64           `json:"id,omitempty"`
	Text       string          `json:"text" validate:"required,max=1000"`
	Type       string          `json:"type" validate:"required,itemtype"`
	IsRequired bool            `json:"is_required"`
	SortOrder  int             `json:"sort_order"`
	Config     json.RawMessage `json:"config,omitempty"`
}

type InstanceInput struct {
	PropertyID int64      `json:"property_id" validate:"required,gt=0"`
	TemplateID int64      `json:"template_id" validate:"required,gt=0"`
	AssignedTo string     `json:"assigned_to" validate:"max=200"`
	DueDate    *time.Time `json:"due_date,omitempty"`
}

type InstanceUpdate struct {
	AssignedTo   *string    `json:"assigned_to,omitempty" validate:"omitempty,max=200"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ClearDueDate bool       `json:"clear_due_date,omitempty"`
}

type ResponseInput struct {
	ItemID int64  `json:"item_id" validate:"required,gt=0"`
	Value  string `json:"value" validate:"max=10000"`
	Notes  string `json:"notes" validate:"max=4000"`
}

type DecisionInput struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
	Notes  string `json:"notes" validate:"max=4000"`
}

type FileMeta struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"file_type"`
	Size        int64  `json:"file_size"`
}

// ItemView is one item of an instance with its current answer and evidence.
type ItemView struct {
	Item           store.TemplateItem  `json:"item"`
	Response       *store.ItemResponse `json:"response,omitempty"`
	LatestApproval *store.Approval     `json:"latest_approval,omitempty"`
	Attachments    []store.Attachment  `json:"attachments,omitempty"`
}

type InstanceView struct {
	store.ChecklistInstance
	Items []ItemView `json:"items"`
}

type ResponseResult struct {
	Response store.ItemResponse      `json:"response"`
	Approval *store.Approval         `json:"approval,omitempty"`
	Instance store.ChecklistInstance `json:"instance"`
}

type SubmissionResult struct {
	Instance  store.ChecklistInstance `json:"instance"`
	Submitted []store.Approval        `json:"submitted"`
}

type DecisionResult struct {
	Approval store.Approval          `json:"approval"`
	Instance store.ChecklistInstance `json:"instance"`
}
