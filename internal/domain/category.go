package domain

import (
	"strings"
	"time"
)

// ============================================================
// Category tree
// ============================================================

// CategoryType classifies a category as income or expense. A
// subcategory always matches its parent's type.
type CategoryType string

const (
	CategoryIncome  CategoryType = "INCOME"
	CategoryExpense CategoryType = "EXPENSE"
)

// Category is one node of the two-level tree. A root category has an
// empty ParentID; a subcategory points at a root of the same type.
// Template categories (the admin-defined tree copied into every new
// ledger) carry an empty LedgerID.
type Category struct {
	ID        string       `json:"id"`
	LedgerID  string       `json:"ledger_id,omitempty"`
	Name      string       `json:"name"`
	Type      CategoryType `json:"type"`
	ParentID  string       `json:"parent_id,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// IsRoot reports whether the node sits at the top level.
func (c *Category) IsRoot() bool {
	return c.ParentID == ""
}

// ValidateCategoryName rejects empty or blank names.
func ValidateCategoryName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ErrValidation{Field: "name", Message: "must not be empty"}
	}
	return nil
}

// CanAttachTo reports whether c may become a child of parent. Only
// root categories accept children, and the types must match.
func (c *Category) CanAttachTo(parent *Category) error {
	if parent == nil || !parent.IsRoot() {
		return &ErrValidation{Field: "parent_id", Message: "parent must be a root category"}
	}
	if parent.Type != c.Type {
		return &ErrConflict{Message: "invalid category hierarchy"}
	}
	return nil
}
