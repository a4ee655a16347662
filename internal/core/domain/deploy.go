package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Deploy Report
// =============================================================================

// OutcomeStatus is the result of refreshing one service during a deploy.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeFailed    OutcomeStatus = "failed"
)

// ServiceOutcome records what happened to one service's image during a deploy.
// Output carries the build tool's diagnostic text when a build failed.
type ServiceOutcome struct {
	Service string        `json:"service"`
	Image   string        `json:"image"`
	Status  OutcomeStatus `json:"status"`
	Reason  string        `json:"reason,omitempty"`
	Output  string        `json:"output,omitempty"`
}

// DeployReport summarizes a deploy run.
type DeployReport struct {
	ID          string           `json:"id"`
	Application string           `json:"application"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
	Services    []ServiceOutcome `json:"services"`
	Warnings    []string         `json:"warnings,omitempty"`
}

// NewDeployReport starts a report for the named application.
func NewDeployReport(application string, startedAt time.Time) *DeployReport {
	return &DeployReport{
		ID:          uuid.New().String(),
		Application: application,
		StartedAt:   startedAt,
		Services:    []ServiceOutcome{},
	}
}

// Succeeded records a refreshed service.
func (r *DeployReport) Succeeded(service, image string) {
	r.Services = append(r.Services, ServiceOutcome{Service: service, Image: image, Status: OutcomeSucceeded})
}

// Skipped records a service that was not refreshed.
func (r *DeployReport) Skipped(service, image, reason string) {
	r.Services = append(r.Services, ServiceOutcome{Service: service, Image: image, Status: OutcomeSkipped, Reason: reason})
}

// Failed records a service whose refresh failed.
func (r *DeployReport) Failed(service, image string, err error, output string) {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	r.Services = append(r.Services, ServiceOutcome{
		Service: service,
		Image:   image,
		Status:  OutcomeFailed,
		Reason:  reason,
		Output:  output,
	})
}

// Warn records a non-fatal problem outside any single service, such as a
// failed teardown.
func (r *DeployReport) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Count returns how many services ended with the given status.
func (r *DeployReport) Count(status OutcomeStatus) int {
	n := 0
	for _, o := range r.Services {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Outcome returns the outcome for the named service.
func (r *DeployReport) Outcome(service string) (ServiceOutcome, bool) {
	for _, o := range r.Services {
		if o.Service == service {
			return o, true
		}
	}
	return ServiceOutcome{}, false
}
