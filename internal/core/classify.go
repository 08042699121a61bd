package core

import "github.com/fundwise/steward/internal/models"

// Classify assigns a risk tier to an operation. It is deterministic and has
// no side effects: the same operation always yields the same tier.
//
// Precedence, highest first:
//  1. erase_all, restore, or anything database-wide is critical.
//  2. bulk kinds, or a delete matching more than one record, are high.
//  3. update and single-record delete are medium.
//  4. create and backup are low.
func Classify(op *models.Operation) models.RiskTier {
	switch {
	case op.Kind == models.OpEraseAll, op.Kind == models.OpRestore, op.Table == models.TableAll:
		return models.RiskCritical
	case op.Kind.IsBulk():
		return models.RiskHigh
	case op.Kind == models.OpDelete && matchedIDs(op.Payload) > 1:
		return models.RiskHigh
	case op.Kind == models.OpUpdate, op.Kind == models.OpDelete, op.Kind == models.OpRevert:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// matchedIDs returns how many record ids a delete payload names.
func matchedIDs(payload map[string]any) int {
	if payload == nil {
		return 0
	}
	if ids, ok := payload["ids"].([]any); ok {
		return len(ids)
	}
	if _, ok := payload["id"]; ok {
		return 1
	}
	return 0
}

// ApplyClassification fills in the operation's risk tier and confirmation
// requirement. Medium tier and above require confirmation by default. A
// caller-supplied override can force confirmation on, and can waive it only
// for medium-tier operations: high and critical operations are always gated,
// and erase_all in particular is always critical and always confirmed.
func ApplyClassification(op *models.Operation, override *bool) {
	op.RiskTier = Classify(op)
	op.RequiresConfirmation = op.RiskTier.AtLeast(models.RiskMedium)

	if override == nil {
		return
	}
	if *override {
		op.RequiresConfirmation = true
		return
	}
	if op.RiskTier == models.RiskMedium {
		op.RequiresConfirmation = false
	}
}
