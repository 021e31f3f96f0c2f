// Package report - Safety instructions and serializable per-image reports.
package report

import (
	"github.com/nvr-ai/go-dms/fusion"
	"github.com/nvr-ai/go-dms/models"
)

// Kind tells whether an instruction praises or warns.
type Kind string

const (
	// KindSafe marks a reassuring instruction.
	KindSafe Kind = "safe"
	// KindDanger marks a warning.
	KindDanger Kind = "danger"
)

// NoSeatbelt is the keyword of the warning emitted when no seatbelt was detected.
const NoSeatbelt = "No Seatbelt"

// Rule is the instruction shown for one canonical class.
type Rule struct {
	Title   string
	Message string
	Type    Kind
}

// DefaultRules holds the instruction of every canonical class that has one.
// "Safe Driving" has none.
var DefaultRules = map[string]Rule{
	models.ClassSeatbelt: {
		Title:   "Seatbelt Detected",
		Message: "Thank you for wearing your seatbelt. Stay safe!",
		Type:    KindSafe,
	},
	models.ClassDrinking: {
		Title:   "Drinking Detected",
		Message: "Avoid drinking while driving - it impairs your judgment and reaction time.",
		Type:    KindDanger,
	},
	models.ClassSmoking: {
		Title:   "Smoking Detected",
		Message: "Smoking while driving is distracting and unsafe.",
		Type:    KindDanger,
	},
	models.ClassPhoneUsage: {
		Title:   "Phone Usage Detected",
		Message: "Do not use your phone while driving. Pull over if you need to make a call.",
		Type:    KindDanger,
	},
	models.ClassDrowsy: {
		Title:   "Drowsiness Detected",
		Message: "You appear drowsy. Please take a break and rest immediately.",
		Type:    KindDanger,
	},
	models.ClassEating: {
		Title:   "Eating Detected",
		Message: "Eating while driving can be distracting. Please focus on the road.",
		Type:    KindDanger,
	},
	models.ClassDistracted: {
		Title:   "Distraction Detected",
		Message: "Please focus on the road and eliminate distractions.",
		Type:    KindDanger,
	},
}

var noSeatbeltRule = Rule{
	Title:   "No Seatbelt Detected",
	Message: "Please fasten your seatbelt for your safety.",
	Type:    KindDanger,
}

// Instruction is one line of advice for the driver.
type Instruction struct {
	Keyword string `json:"keyword"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    Kind   `json:"type"`
	// Count is the number of fused detections of the class.
	Count int `json:"count"`
}

// Instructions derives the driver advice from a fused result.
//
// A missing seatbelt produces a warning with a zero count. Warnings come before
// reassurances; within a kind, instructions follow class order. Classes without a
// rule are skipped.
//
// Arguments:
//   - fused: The fused detections of one image.
//
// Returns:
//   - []Instruction: The advice, never nil.
func Instructions(fused fusion.FusedResult) []Instruction {
	var danger, safe []Instruction

	if !fused.Has(models.ClassSeatbelt) {
		danger = append(danger, instruction(NoSeatbelt, noSeatbeltRule, 0))
	}

	counts := fused.Counts()
	for _, class := range fused.Classes() {
		rule, ok := DefaultRules[class]
		if !ok {
			continue
		}
		in := instruction(class, rule, counts[class])
		if rule.Type == KindSafe {
			safe = append(safe, in)
		} else {
			danger = append(danger, in)
		}
	}

	return append(append(make([]Instruction, 0, len(danger)+len(safe)), danger...), safe...)
}

func instruction(keyword string, rule Rule, count int) Instruction {
	return Instruction{
		Keyword: keyword,
		Title:   rule.Title,
		Message: rule.Message,
		Type:    rule.Type,
		Count:   count,
	}
}
