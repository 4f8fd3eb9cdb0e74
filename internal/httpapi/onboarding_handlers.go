package httpapi

import (
	"context"
	"net/http"

	"payloom.io/internal/audit"
	"payloom.io/internal/backend"
	"payloom.io/internal/cache"
	"payloom.io/internal/onboarding"
	"payloom.io/internal/session"
)

func (a *API) onboardingStatus(r *http.Request, rec *session.Record) (onboarding.Status, error) {
	key := cache.Key("onboarding", rec.ID)
	return cache.Fetch(r.Context(), a.cache, key, cache.TTLDefault, func(ctx context.Context) (onboarding.Status, error) {
		return a.api.Onboarding.Status(ctx)
	})
}

func (a *API) handleOnboardingStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	rec, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	st, err := a.onboardingStatus(r, rec)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, st)
}

// completeStep guards step access, forwards the submission and returns the
// refreshed progress. Later steps stay locked until their predecessor is
// recorded as done.
func (a *API) completeStep(w http.ResponseWriter, r *http.Request, step int, submit func(*session.Record) (onboarding.Status, error)) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	rec, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	current, err := a.onboardingStatus(r, rec)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	if !current.CanAccessStep(step) {
		writeError(w, r, http.StatusConflict, "step_locked", "previous onboarding step is not complete")
		return
	}

	st, err := submit(rec)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	a.cache.Invalidate(cache.Key("onboarding", rec.ID))
	audit.LogEvent(r.Context(), "onboarding.step_complete", map[string]any{"step": step})
	writeData(w, http.StatusOK, st)
}

func (a *API) handleOnboardingOrganization(w http.ResponseWriter, r *http.Request) {
	var req backend.OrganizationRequest
	if r.Method == http.MethodPost {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}
	a.completeStep(w, r, onboarding.StepOrganization, func(rec *session.Record) (onboarding.Status, error) {
		st, err := a.api.Onboarding.CreateOrganization(r.Context(), req)
		if err == nil {
			// The new organization changes the user projection.
			a.mgr.InvalidateUser(rec.ID)
		}
		return st, err
	})
}

func (a *API) handleOnboardingProfileReview(w http.ResponseWriter, r *http.Request) {
	a.completeStep(w, r, onboarding.StepProfileReview, func(*session.Record) (onboarding.Status, error) {
		return a.api.Onboarding.SubmitProfileReview(r.Context())
	})
}

func (a *API) handleOnboardingKYC(w http.ResponseWriter, r *http.Request) {
	a.completeStep(w, r, onboarding.StepKYC, func(*session.Record) (onboarding.Status, error) {
		return a.api.Onboarding.SubmitKYC(r.Context())
	})
}

func (a *API) handleOnboardingPayout(w http.ResponseWriter, r *http.Request) {
	var req backend.PayoutAccountRequest
	if r.Method == http.MethodPost {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}
	a.completeStep(w, r, onboarding.StepPayout, func(*session.Record) (onboarding.Status, error) {
		return a.api.Onboarding.SubmitPayout(r.Context(), req)
	})
}

func (a *API) handleOnboardingComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	rec, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	current, err := a.onboardingStatus(r, rec)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	for step := onboarding.FirstStep; step <= onboarding.LastStep; step++ {
		if !current.Completed(step) {
			writeError(w, r, http.StatusConflict, "steps_incomplete", "all onboarding steps must be complete")
			return
		}
	}

	st, err := a.api.Onboarding.Complete(r.Context())
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	a.cache.Invalidate(cache.Key("onboarding", rec.ID))
	a.mgr.InvalidateUser(rec.ID)
	audit.LogEvent(r.Context(), "onboarding.complete", nil)
	writeData(w, http.StatusOK, st)
}
