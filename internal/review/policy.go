// Package review implements the deterministic review prioritization
// policy. The policy may only raise priority and flags, never lower them:
// a later, looser stage must not silently downgrade a record already
// flagged as risky.
package review

import (
	"github.com/sells-group/directory-cli/internal/model"
)

// Confidence thresholds the policy evaluates against.
const (
	OverallFlagThreshold = 0.6
	ContactLowThreshold  = 0.5
	ValidatedThreshold   = 0.8
)

// Priorities assigned by the policy rules.
const (
	PriorityLowConfidence = 8
	PriorityLowContact    = 7
)

// Discrepancy notes appended by the policy. The wording is load-bearing
// for operator dashboards; do not reword without coordinating downstream.
const (
	NoteLowConfidence = "Low confidence score detected"
	NoteLowContact    = "Contact information has low confidence"
)

// Evaluate applies the prioritization rules to a copy of the record and
// returns the updated copy. The input record is never mutated.
//
// Rule order is fixed:
//  1. overall confidence below 0.6 flags the record at priority >= 8
//  2. a low phone or email confidence forces review at priority >= 7
//  3. otherwise a clean record at or above 0.8 is validated
//  4. otherwise any cross-source discrepancy marks the record
//  5. everything else lands in requires_review
//
// Rules 1-2 fire independently of 3-5; 3-5 assign a status only when the
// record was not flagged.
func Evaluate(record *model.ProviderRecord) *model.ProviderRecord {
	r := record.Clone()

	rule1 := r.OverallConfidence < OverallFlagThreshold
	if rule1 {
		r.RequiresManualReview = true
		r.RaisePriority(PriorityLowConfidence)
		r.ValidationStatus = model.StatusFlagged
		r.Discrepancies = append(r.Discrepancies, NoteLowConfidence)
	}

	rule2 := contactBelow(r.PhoneConfidence) || contactBelow(r.EmailConfidence)
	if rule2 {
		r.Discrepancies = append(r.Discrepancies, NoteLowContact)
		r.RequiresManualReview = true
		r.RaisePriority(PriorityLowContact)
	}

	if r.ValidationStatus == model.StatusFlagged {
		return r
	}

	switch {
	case !rule1 && !rule2 && r.OverallConfidence >= ValidatedThreshold:
		r.ValidationStatus = model.StatusValidated
	case anyDiscrepancy(r.DataElementConfidences):
		r.ValidationStatus = model.StatusDiscrepancy
		r.RequiresManualReview = true
	default:
		r.ValidationStatus = model.StatusRequiresReview
	}

	return r
}

// contactBelow reports whether a confidence shadow has been computed and
// sits below the contact threshold. An unset shadow never fires the rule.
func contactBelow(conf *float64) bool {
	return conf != nil && *conf < ContactLowThreshold
}

func anyDiscrepancy(observations []model.DataElementConfidence) bool {
	for _, obs := range observations {
		if obs.DiscrepancyFound {
			return true
		}
	}
	return false
}
