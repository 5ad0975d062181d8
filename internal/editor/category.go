package editor

import "strings"

// CategoryDraft is the form state for creating or renaming a category.
// Uniqueness is not checked.
type CategoryDraft struct {
	Name string
}

func (d CategoryDraft) Ready() bool {
	return strings.TrimSpace(d.Name) != ""
}

func (d CategoryDraft) Value() string {
	return strings.TrimSpace(d.Name)
}
