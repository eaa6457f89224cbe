package handler

import (
	"strings"

	dErrors "profreg/pkg/domain-errors"
)

// CreateEntityRequest opens a new register record with its first draft.
type CreateEntityRequest struct {
	Kind           string   `json:"kind"`
	Name           string   `json:"name"`
	Summary        string   `json:"summary"`
	Qualifications string   `json:"qualifications"`
	Legislation    []string `json:"legislation"`
}

func (r *CreateEntityRequest) Normalize() {
	r.Kind = strings.TrimSpace(strings.ToLower(r.Kind))
	r.Name = strings.TrimSpace(r.Name)
	r.Summary = strings.TrimSpace(r.Summary)
	r.Qualifications = strings.TrimSpace(r.Qualifications)
	cleaned := r.Legislation[:0]
	for _, l := range r.Legislation {
		if l = strings.TrimSpace(l); l != "" {
			cleaned = append(cleaned, l)
		}
	}
	r.Legislation = cleaned
}

func (r *CreateEntityRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.Kind == "" {
		return dErrors.New(dErrors.CodeValidation, "kind is required")
	}
	return nil
}

// RenameRequest corrects a published entity's name.
type RenameRequest struct {
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

func (r *RenameRequest) Validate() error {
	if strings.TrimSpace(r.OldName) == "" {
		return dErrors.New(dErrors.CodeValidation, "old_name is required")
	}
	if strings.TrimSpace(r.NewName) == "" {
		return dErrors.New(dErrors.CodeValidation, "new_name is required")
	}
	return nil
}
