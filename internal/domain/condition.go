// Package domain contains core business types and interfaces.
//
// This file defines the condition assessment an owner or renter records
// when documenting the state of a rented item.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// Condition Level
// =============================================================================

// ConditionLevel grades the state of an item or one of its components.
type ConditionLevel string

const (
	ConditionExcellent ConditionLevel = "excellent"
	ConditionGood      ConditionLevel = "good"
	ConditionFair      ConditionLevel = "fair"
	ConditionPoor      ConditionLevel = "poor"
	ConditionDamaged   ConditionLevel = "damaged"
)

// String returns the string representation of the condition level.
func (c ConditionLevel) String() string {
	return string(c)
}

// IsValid returns true if the condition level is a recognized value.
func (c ConditionLevel) IsValid() bool {
	switch c {
	case ConditionExcellent, ConditionGood, ConditionFair, ConditionPoor, ConditionDamaged:
		return true
	}
	return false
}

// Rank orders condition levels from best (0) to worst (4). Unknown levels rank -1.
func (c ConditionLevel) Rank() int {
	switch c {
	case ConditionExcellent:
		return 0
	case ConditionGood:
		return 1
	case ConditionFair:
		return 2
	case ConditionPoor:
		return 3
	case ConditionDamaged:
		return 4
	}
	return -1
}

// =============================================================================
// Condition Assessment
// =============================================================================

// ItemCondition is one itemized component of an assessment.
type ItemCondition struct {
	Name        string         `json:"name"`
	Condition   ConditionLevel `json:"condition"`
	Description string         `json:"description,omitempty"`
}

// Accessory records whether an accessory was handed over and in what state.
type Accessory struct {
	Name      string         `json:"name"`
	Included  bool           `json:"included"`
	Condition ConditionLevel `json:"condition,omitempty"`
}

// ConditionAssessment describes an item's state. It is immutable once part
// of a submitted inspection.
type ConditionAssessment struct {
	OverallCondition   ConditionLevel  `json:"overallCondition"`
	Items              []ItemCondition `json:"items"`
	Accessories        []Accessory     `json:"accessories"`
	KnownIssues        []string        `json:"knownIssues"`
	MaintenanceHistory string          `json:"maintenanceHistory,omitempty"`
}

// Validate checks the assessment and reports every offending field.
// Items and accessories may be empty.
func (a ConditionAssessment) Validate(op, prefix string) error {
	var ve *ValidationError
	add := func(field, msg string) {
		if ve == nil {
			ve = &ValidationError{Op: op, Fields: map[string]string{}}
		}
		ve.Fields[prefix+field] = msg
	}

	if a.OverallCondition == "" {
		add("overallCondition", "overall condition is required")
	} else if !a.OverallCondition.IsValid() {
		add("overallCondition", fmt.Sprintf("unknown condition %q", a.OverallCondition))
	}

	for i, item := range a.Items {
		if strings.TrimSpace(item.Name) == "" {
			add(fmt.Sprintf("items[%d].name", i), "item name is required")
		}
		if !item.Condition.IsValid() {
			add(fmt.Sprintf("items[%d].condition", i), fmt.Sprintf("unknown condition %q", item.Condition))
		}
	}

	for i, acc := range a.Accessories {
		if strings.TrimSpace(acc.Name) == "" {
			add(fmt.Sprintf("accessories[%d].name", i), "accessory name is required")
		}
		if acc.Condition != "" && !acc.Condition.IsValid() {
			add(fmt.Sprintf("accessories[%d].condition", i), fmt.Sprintf("unknown condition %q", acc.Condition))
		}
	}

	if ve != nil {
		return ve
	}
	return nil
}

// =============================================================================
// GPS Location
// =============================================================================

// GPSLocation is where a submission was captured. Latitude and longitude are
// pointers so a missing coordinate is distinguishable from 0.
type GPSLocation struct {
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
	Address   string    `json:"address,omitempty"`
}

// IsSet returns true if both coordinates are present.
func (l *GPSLocation) IsSet() bool {
	return l != nil && l.Latitude != nil && l.Longitude != nil
}

// Validate requires both coordinates together and within range.
func (l *GPSLocation) Validate(op, field string) error {
	if l == nil || (l.Latitude == nil && l.Longitude == nil) {
		return InvalidField(op, field, "location is required")
	}
	if l.Latitude == nil || l.Longitude == nil {
		return InvalidField(op, field, "latitude and longitude must be provided together")
	}
	if *l.Latitude < -90 || *l.Latitude > 90 {
		return InvalidField(op, field+".latitude", "latitude must be between -90 and 90")
	}
	if *l.Longitude < -180 || *l.Longitude > 180 {
		return InvalidField(op, field+".longitude", "longitude must be between -180 and 180")
	}
	return nil
}
