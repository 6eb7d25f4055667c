package verification

import (
	"encoding/json"
	"strings"

	"github.com/hireloop/backend/internal/models"
)

// Classify applies the delivery verdict rule to an opaque result and
// evidence payload. Only result.status and evidence.autoApprove are
// inspected; everything else passes through untouched.
//
// The rule, in order:
//  1. result.status equals "failed" (case-insensitive) -> REJECTED
//  2. evidence.autoApprove is true, or result.status is exactly
//     "success" -> VERIFIED
//  3. otherwise -> PENDING (awaiting manual review)
//
// Malformed or absent payloads never fail classification; they simply
// contribute nothing, which lands on PENDING.
func Classify(result, evidence json.RawMessage) string {
	var res struct {
		Status string `json:"status"`
	}
	if len(result) > 0 {
		_ = json.Unmarshal(result, &res)
	}
	if strings.EqualFold(res.Status, "failed") {
		return models.VerificationStatusRejected
	}

	var ev struct {
		AutoApprove bool `json:"autoApprove"`
	}
	if len(evidence) > 0 {
		_ = json.Unmarshal(evidence, &ev)
	}
	if ev.AutoApprove || res.Status == "success" {
		return models.VerificationStatusVerified
	}
	return models.VerificationStatusPending
}
