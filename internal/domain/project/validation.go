package project

import (
	"fmt"
	"regexp"
	"unicode"

	"github.com/Strob0t/NexusPM/internal/domain"
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

var validStatuses = map[Status]bool{
	StatusActive:    true,
	StatusPaused:    true,
	StatusCompleted: true,
}

// ValidateCreateRequest validates the fields of a project creation request.
func ValidateCreateRequest(req CreateRequest) error {
	if err := validateName(req.Name); err != nil {
		return err
	}
	if len(req.Description) > 2000 {
		return fmt.Errorf("description exceeds 2000 characters: %w", domain.ErrValidation)
	}
	if req.Color != "" && !colorPattern.MatchString(req.Color) {
		return fmt.Errorf("color must be a #RRGGBB hex value: %w", domain.ErrValidation)
	}
	return nil
}

// ValidateUpdateRequest validates the fields of a project update request.
func ValidateUpdateRequest(req UpdateRequest) error {
	if req.Name != nil {
		if err := validateName(*req.Name); err != nil {
			return err
		}
	}
	if req.Description != nil && len(*req.Description) > 2000 {
		return fmt.Errorf("description exceeds 2000 characters: %w", domain.ErrValidation)
	}
	if req.Status != nil && !validStatuses[*req.Status] {
		return fmt.Errorf("unknown status %q: %w", *req.Status, domain.ErrValidation)
	}
	if req.Color != nil && !colorPattern.MatchString(*req.Color) {
		return fmt.Errorf("color must be a #RRGGBB hex value: %w", domain.ErrValidation)
	}
	if req.Health != nil && (*req.Health < 0 || *req.Health > 100) {
		return fmt.Errorf("health must be between 0 and 100: %w", domain.ErrValidation)
	}
	for name, v := range map[string]*int{"agentCount": req.AgentCount, "memberCount": req.MemberCount, "syncCount": req.SyncCount} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must not be negative: %w", name, domain.ErrValidation)
		}
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name is required: %w", domain.ErrValidation)
	}
	if len(name) > 255 {
		return fmt.Errorf("name exceeds 255 characters: %w", domain.ErrValidation)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("name contains control characters: %w", domain.ErrValidation)
		}
	}
	return nil
}
