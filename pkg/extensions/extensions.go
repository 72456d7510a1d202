// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.

// Package extensions defines injection points for deployment-specific
// functionality around the FIR analysis service.
//
// The open source build runs with no-op defaults for every interface:
// no authentication, every action allowed, audit events discarded, FIR
// text passed through unredacted. Hardened deployments provide concrete
// implementations via ServiceOptions without modifying the core service.
//
// # Extension Categories
//
//   - auth.go: Authentication and authorization (AuthProvider, AuthzProvider)
//   - audit.go: Compliance audit logging (AuditLogger)
//   - filter.go: FIR text redaction before LLM calls and logs (MessageFilter)
//   - classifier.go: Sensitivity classification of case material (DataClassifier)
//   - request_auditor.go: Tamper-evident chain of custody (RequestAuditor)
//
// # Usage
//
// Open source default:
//
//	opts := extensions.DefaultOptions()
//	svc, err := orchestrator.New(cfg, &opts)
//
// Hardened deployment:
//
//	opts := extensions.ServiceOptions{
//	    AuthProvider:  deptAuthProvider,
//	    AuditLogger:   caseAuditTrail,
//	    MessageFilter: piiRedactor,
//	}
//
// # Thread Safety
//
// All interface implementations must be safe for concurrent use.
package extensions

// ServiceOptions groups all extension points for service construction.
// All fields are optional; nil values are replaced with no-op defaults
// when DefaultOptions() is called or when services check for nil.
//
// Example:
//
//	// Open source: use defaults
//	opts := extensions.DefaultOptions()
//
//	// Hardened: inject implementations
//	opts := extensions.ServiceOptions{
//	    AuthProvider:  ssoProvider,
//	    AuditLogger:   splunkAuditor,
//	    MessageFilter: piiFilter,
//	}
type ServiceOptions struct {
	// AuthProvider validates authentication tokens.
	// Default: NopAuthProvider (always returns valid local user)
	AuthProvider AuthProvider

	// AuthzProvider checks authorization permissions.
	// Default: NopAuthzProvider (always allows all actions)
	AuthzProvider AuthzProvider

	// AuditLogger records security-relevant events such as FIR uploads
	// and report downloads.
	// Default: NopAuditLogger (discards all events)
	AuditLogger AuditLogger

	// MessageFilter redacts or blocks FIR-derived text before it is sent
	// to an LLM backend or written to logs.
	// Default: NopMessageFilter (passes through unchanged)
	MessageFilter MessageFilter

	// DataClassifier scans case material for sensitive data before it
	// leaves the deployment boundary.
	// Default: NopDataClassifier (reports everything PUBLIC)
	DataClassifier DataClassifier

	// RequestAuditor maintains tamper-evident hash chains over workflow
	// material for chain-of-custody verification.
	// Default: NopRequestAuditor (discards everything)
	RequestAuditor RequestAuditor
}

// DefaultOptions returns ServiceOptions with no-op defaults.
//
// This is the configuration used by the open source version.
// All operations are allowed, no audit trail, no filtering.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider:   &NopAuthProvider{},
		AuthzProvider:  &NopAuthzProvider{},
		AuditLogger:    &NopAuditLogger{},
		MessageFilter:  &NopMessageFilter{},
		DataClassifier: &NopDataClassifier{},
		RequestAuditor: &NopRequestAuditor{},
	}
}

// Normalize fills any nil fields with no-op defaults so consumers can
// call every extension point without nil checks.
func (opts ServiceOptions) Normalize() ServiceOptions {
	if opts.AuthProvider == nil {
		opts.AuthProvider = &NopAuthProvider{}
	}
	if opts.AuthzProvider == nil {
		opts.AuthzProvider = &NopAuthzProvider{}
	}
	if opts.AuditLogger == nil {
		opts.AuditLogger = &NopAuditLogger{}
	}
	if opts.MessageFilter == nil {
		opts.MessageFilter = &NopMessageFilter{}
	}
	if opts.DataClassifier == nil {
		opts.DataClassifier = &NopDataClassifier{}
	}
	if opts.RequestAuditor == nil {
		opts.RequestAuditor = &NopRequestAuditor{}
	}
	return opts
}

// WithAuth returns a copy of opts with the given AuthProvider.
// Useful for fluent configuration.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}

// WithAuthz returns a copy of opts with the given AuthzProvider.
func (opts ServiceOptions) WithAuthz(provider AuthzProvider) ServiceOptions {
	opts.AuthzProvider = provider
	return opts
}

// WithAudit returns a copy of opts with the given AuditLogger.
func (opts ServiceOptions) WithAudit(logger AuditLogger) ServiceOptions {
	opts.AuditLogger = logger
	return opts
}

// WithFilter returns a copy of opts with the given MessageFilter.
func (opts ServiceOptions) WithFilter(filter MessageFilter) ServiceOptions {
	opts.MessageFilter = filter
	return opts
}

// WithClassifier returns a copy of opts with the given DataClassifier.
func (opts ServiceOptions) WithClassifier(classifier DataClassifier) ServiceOptions {
	opts.DataClassifier = classifier
	return opts
}

// WithRequestAuditor returns a copy of opts with the given RequestAuditor.
func (opts ServiceOptions) WithRequestAuditor(auditor RequestAuditor) ServiceOptions {
	opts.RequestAuditor = auditor
	return opts
}
