package kyc

import (
	"errors"
	"time"
)

// Status is the organization-level verification state reported by the
// platform backend. The console never transitions it locally.
type Status string

const (
	StatusNotSubmitted  Status = "not_submitted"
	StatusPending       Status = "pending"
	StatusInReview      Status = "in_review"
	StatusNeedsMoreInfo Status = "needs_more_info"
	StatusReviewed      Status = "reviewed"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
)

// Valid reports whether s is one of the backend-defined states.
func (s Status) Valid() bool {
	switch s {
	case StatusNotSubmitted, StatusPending, StatusInReview,
		StatusNeedsMoreInfo, StatusReviewed, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether the review cycle has reached a final decision.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// DocumentType enumerates the identity and business documents accepted by
// the verification flow.
type DocumentType string

const (
	DocumentNationalID           DocumentType = "national_id"
	DocumentPassport             DocumentType = "passport"
	DocumentDriversLicense       DocumentType = "drivers_license"
	DocumentProofOfAddress       DocumentType = "proof_of_address"
	DocumentBusinessRegistration DocumentType = "business_registration"
	DocumentTaxCertificate       DocumentType = "tax_certificate"
	DocumentDirectorID           DocumentType = "director_id"
)

// DocumentStatus is the per-document review state.
type DocumentStatus string

const (
	DocumentPending  DocumentStatus = "pending"
	DocumentApproved DocumentStatus = "approved"
	DocumentRejected DocumentStatus = "rejected"
)

// Document is a read-through projection of a backend verification record.
// Status and RejectionReason are owned by the backend review workflow.
type Document struct {
	ID              string         `json:"id"`
	OrganizationID  string         `json:"organization_id"`
	Type            DocumentType   `json:"document_type"`
	Status          DocumentStatus `json:"status"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	FileName        string         `json:"file_name"`
	SubmittedAt     time.Time      `json:"submitted_at"`
	ReviewedAt      *time.Time     `json:"reviewed_at,omitempty"`
}

// Upload is one file attached to a KYC submission. Content is opaque to the
// console; the backend defines the accepted formats.
type Upload struct {
	Type     DocumentType
	FileName string
	Content  []byte
}

var ErrInvalidUpload = errors.New("kyc: invalid upload")

// ValidateUploads performs the client-side checks that run before any
// network call: a submission needs at least one file and every file needs
// a type and a name.
func ValidateUploads(uploads []Upload) error {
	if len(uploads) == 0 {
		return errors.New("kyc: at least one document is required")
	}
	for _, u := range uploads {
		if u.Type == "" {
			return errors.New("kyc: document type is required")
		}
		if u.FileName == "" {
			return errors.New("kyc: file name is required")
		}
		if len(u.Content) == 0 {
			return errors.New("kyc: file content is empty")
		}
	}
	return nil
}
