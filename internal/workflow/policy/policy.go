// Package policy decides whether a caller may invoke a workflow
// operation. It is pure: the workflow service gathers the ownership
// facts, the policy only judges them. A denied check happens before any
// store mutation, so a denial never leaves a partial write behind.
package policy

import (
	ledgercontracts "attest/contracts/ledger"
)

// Operation names a role-gated workflow operation.
type Operation string

const (
	OpRegisterIdentity   Operation = "register_identity"
	OpUpdateRole         Operation = "update_role"
	OpVerifyInstitution  Operation = "verify_institution"
	OpRevokeVerification Operation = "revoke_verification"
	OpUpdateProfile      Operation = "update_profile"
	OpCreateExam         Operation = "create_exam"
	OpTransitionExam     Operation = "transition_exam"
	OpEnrollStudents     Operation = "enroll_students"
	OpSubmitResult       Operation = "submit_result"
	OpIssueCertificate   Operation = "issue_certificate"
	OpRevokeCertificate  Operation = "revoke_certificate"
)

// Facts carry the ownership context a decision depends on. The caller
// of CanPerform is responsible for establishing them from current
// ledger state.
type Facts struct {
	// OwnsResource is true when the caller is the owner of the entity
	// the operation targets: the exam's creating institution, the
	// identity whose profile is updated, or the certificate's issuer.
	OwnsResource bool

	// CallerVerified is true when the caller's identity carries the
	// admin-granted verified flag.
	CallerVerified bool
}

// CanPerform reports whether a caller with the given role may invoke
// the operation under the given facts.
func CanPerform(role ledgercontracts.Role, op Operation, f Facts) bool {
	switch op {
	case OpRegisterIdentity:
		// Self-registration happens before a role exists.
		return true

	case OpUpdateRole, OpVerifyInstitution, OpRevokeVerification:
		return role == ledgercontracts.RoleAdmin

	case OpUpdateProfile:
		return role == ledgercontracts.RoleInstitution && f.OwnsResource

	case OpCreateExam, OpIssueCertificate:
		return role == ledgercontracts.RoleInstitution && f.CallerVerified

	case OpTransitionExam, OpEnrollStudents, OpSubmitResult:
		return role == ledgercontracts.RoleInstitution && f.OwnsResource

	case OpRevokeCertificate:
		if role == ledgercontracts.RoleAdmin {
			return true
		}
		return role == ledgercontracts.RoleInstitution && f.OwnsResource

	default:
		return false
	}
}
