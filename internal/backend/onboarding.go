package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"payloom.io/internal/onboarding"
)

// OnboardingService wraps the /api/v1/onboarding endpoints. Every step has
// a dedicated endpoint and each submission returns the refreshed progress
// object, which is the only thing that advances the client's step gating.
type OnboardingService struct {
	c *Client
}

// Status fetches the server-reported onboarding progress.
func (s *OnboardingService) Status(ctx context.Context) (onboarding.Status, error) {
	var st onboarding.Status
	err := s.c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/v1/onboarding/status",
		out:      &st,
		resource: "onboarding.status",
	})
	return st, err
}

// OrganizationRequest creates the tenant in step one.
type OrganizationRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type"` // individual | corporate
	Country string `json:"country"`
}

// CreateOrganization completes step one.
func (s *OnboardingService) CreateOrganization(ctx context.Context, req OrganizationRequest) (onboarding.Status, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return onboarding.Status{}, errors.New("backend: organization name is required")
	}
	var st onboarding.Status
	err := s.c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/api/v1/onboarding/organization",
		body:     req,
		out:      &st,
		resource: "onboarding.organization",
	})
	return st, err
}

// SubmitProfileReview completes step two.
func (s *OnboardingService) SubmitProfileReview(ctx context.Context) (onboarding.Status, error) {
	return s.submitStep(ctx, "/api/v1/onboarding/profile-review", "onboarding.profile_review")
}

// SubmitKYC completes step three. The documents themselves travel through
// KYCService.Submit; this call only marks the step done upstream.
func (s *OnboardingService) SubmitKYC(ctx context.Context) (onboarding.Status, error) {
	return s.submitStep(ctx, "/api/v1/onboarding/kyc", "onboarding.kyc")
}

// PayoutAccountRequest registers the settlement destination in step four.
type PayoutAccountRequest struct {
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	Currency      string `json:"currency"`
}

// SubmitPayout completes step four.
func (s *OnboardingService) SubmitPayout(ctx context.Context, req PayoutAccountRequest) (onboarding.Status, error) {
	if strings.TrimSpace(req.AccountNumber) == "" || strings.TrimSpace(req.BankCode) == "" {
		return onboarding.Status{}, errors.New("backend: bank_code and account_number are required")
	}
	var st onboarding.Status
	err := s.c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/api/v1/onboarding/payout",
		body:     req,
		out:      &st,
		resource: "onboarding.payout",
	})
	return st, err
}

// Complete finalizes onboarding once all steps are done.
func (s *OnboardingService) Complete(ctx context.Context) (onboarding.Status, error) {
	return s.submitStep(ctx, "/api/v1/onboarding/complete", "onboarding.complete")
}

func (s *OnboardingService) submitStep(ctx context.Context, path, resource string) (onboarding.Status, error) {
	var st onboarding.Status
	err := s.c.do(ctx, request{
		method:   http.MethodPost,
		path:     path,
		out:      &st,
		resource: resource,
	})
	return st, err
}
