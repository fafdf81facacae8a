package models

// ContractStatus is the lifecycle state of a Contract.
type ContractStatus string

const (
	ContractDraft           ContractStatus = "DRAFT"
	ContractPendingApproval ContractStatus = "PENDING_APPROVAL"
	ContractActive          ContractStatus = "ACTIVE"
	ContractRejected        ContractStatus = "REJECTED"
	ContractSuspended       ContractStatus = "SUSPENDED"
	ContractTerminated      ContractStatus = "TERMINATED"
	ContractExpired         ContractStatus = "EXPIRED"
	ContractCancelled       ContractStatus = "CANCELLED"
)

func (s ContractStatus) Valid() bool {
	switch s {
	case ContractDraft, ContractPendingApproval, ContractActive, ContractRejected,
		ContractSuspended, ContractTerminated, ContractExpired, ContractCancelled:
		return true
	}
	return false
}

// InForce reports whether a contract in this state legally binds the employee today.
func (s ContractStatus) InForce() bool {
	switch s {
	case ContractActive, ContractSuspended:
		return true
	case ContractDraft, ContractPendingApproval, ContractRejected,
		ContractTerminated, ContractExpired, ContractCancelled:
		return false
	}
	return false
}

// Activated reports whether the contract was approved at some point.
func (s ContractStatus) Activated() bool {
	switch s {
	case ContractActive, ContractSuspended, ContractTerminated, ContractExpired:
		return true
	case ContractDraft, ContractPendingApproval, ContractRejected, ContractCancelled:
		return false
	}
	return false
}

// ContractSource tells whether the contract went through the live
// recruitment workflow or was migrated from an older system.
type ContractSource string

const (
	SourceRecruitment ContractSource = "RECRUITMENT"
	SourceLegacy      ContractSource = "LEGACY"
)

func (s ContractSource) Valid() bool {
	switch s {
	case SourceRecruitment, SourceLegacy:
		return true
	}
	return false
}

// TerminationReason explains why a contract, and with it an employment period, ended.
type TerminationReason string

const (
	ReasonResignation     TerminationReason = "RESIGNATION"
	ReasonDismissal       TerminationReason = "DISMISSAL"
	ReasonMutualAgreement TerminationReason = "MUTUAL_AGREEMENT"
	ReasonContractExpiry  TerminationReason = "CONTRACT_EXPIRY"
	ReasonRetirement      TerminationReason = "RETIREMENT"
	ReasonOther           TerminationReason = "OTHER"
)

func (r TerminationReason) Valid() bool {
	switch r {
	case ReasonResignation, ReasonDismissal, ReasonMutualAgreement,
		ReasonContractExpiry, ReasonRetirement, ReasonOther:
		return true
	}
	return false
}

// ApprovalLevel names the role that signs off one step of an approval chain.
type ApprovalLevel string

const (
	LevelDepartmentHead ApprovalLevel = "DEPARTMENT_HEAD"
	LevelHR             ApprovalLevel = "HR"
	LevelDirector       ApprovalLevel = "DIRECTOR"
)

func (l ApprovalLevel) Valid() bool {
	switch l {
	case LevelDepartmentHead, LevelHR, LevelDirector:
		return true
	}
	return false
}

// ApprovalStatus is the state of a single approval step.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// AppendixType is the kind of amendment an appendix carries.
type AppendixType string

const (
	AppendixSalary             AppendixType = "SALARY_CHANGE"
	AppendixPosition           AppendixType = "POSITION_CHANGE"
	AppendixDepartmentTransfer AppendixType = "DEPARTMENT_TRANSFER"
	AppendixWorkingTerms       AppendixType = "WORKING_TERMS"
	AppendixExtension          AppendixType = "EXTENSION"
	AppendixOther              AppendixType = "OTHER"
)

func (t AppendixType) Valid() bool {
	switch t {
	case AppendixSalary, AppendixPosition, AppendixDepartmentTransfer,
		AppendixWorkingTerms, AppendixExtension, AppendixOther:
		return true
	}
	return false
}

// AppendixStatus is the lifecycle state of a ContractAppendix.
type AppendixStatus string

const (
	AppendixDraft           AppendixStatus = "DRAFT"
	AppendixPendingApproval AppendixStatus = "PENDING_APPROVAL"
	AppendixActive          AppendixStatus = "ACTIVE"
	AppendixRejected        AppendixStatus = "REJECTED"
	AppendixCancelled       AppendixStatus = "CANCELLED"
)

// ProfileReason records why an insurance profile slice was opened.
type ProfileReason string

const (
	ProfileInitial        ProfileReason = "INITIAL"
	ProfileSeniority      ProfileReason = "SENIORITY"
	ProfilePromotion      ProfileReason = "PROMOTION"
	ProfileAdjustment     ProfileReason = "ADJUSTMENT"
	ProfilePositionChange ProfileReason = "POSITION_CHANGE"
	ProfileBackfill       ProfileReason = "BACKFILL"
)

func (r ProfileReason) Valid() bool {
	switch r {
	case ProfileInitial, ProfileSeniority, ProfilePromotion,
		ProfileAdjustment, ProfilePositionChange, ProfileBackfill:
		return true
	}
	return false
}

// Role is a named capability held by a user.
type Role string

const (
	RoleDirector Role = "DIRECTOR"
	RoleHR       Role = "HR"
)
