// Package domain contains the nominal entity types shared across the
// grounded-conversation orchestration core: tenants and sites, persona and
// prompt versions, evidence, session memory, trace records, and the
// control-plane documents (policy, release, experiment, alert).
//
// Arbitrary metadata maps are kept free-form at record edges, but nothing
// the core dispatches on lives in a map; every field the pipeline reads or
// branches on is a named struct field.
package domain

import "time"

// TenantStatus enumerates the lifecycle states of a Tenant.
type TenantStatus string

const (
	TenantActive    TenantStatus = "active"
	TenantSuspended TenantStatus = "suspended"
)

// Tenant is the top-level owner of Sites. Tenants are global (not scoped).
type Tenant struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"display_name"`
	Plan        string       `json:"plan"`
	Status      TenantStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
}

// SiteStatus enumerates the lifecycle states of a Site.
type SiteStatus string

const (
	SiteActive   SiteStatus = "active"
	SiteDisabled SiteStatus = "disabled"
)

// Site owns all per-site entities: personas, prompts, evidence, releases.
type Site struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	Name      string         `json:"name"`
	Config    map[string]any `json:"config,omitempty"`
	Status    SiteStatus     `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// Scope identifies the (tenant, site) pair nearly every entity in this
// system is scoped by.
type Scope struct {
	TenantID string `json:"tenant_id"`
	SiteID   string `json:"site_id"`
}

func (s Scope) Valid() bool {
	return s.TenantID != "" && s.SiteID != ""
}
