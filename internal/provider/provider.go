// Package provider supplies experiment variation records to the decision
// layer. The remote Client fetches them from the experiment provider's
// script endpoint, backed by a disk cache; Local serves a YAML file for
// development and air-gapped deployments; Fallback chains the two.
package provider

import "errors"

var (
	// ErrUnavailable means the provider endpoint could not be reached or
	// answered with a non-success status. Usually transient.
	ErrUnavailable = errors.New("experiment provider unavailable")

	// ErrMalformedPayload means the provider answered but its response did
	// not contain a decodable experiment payload.
	ErrMalformedPayload = errors.New("malformed provider payload")

	// ErrExperimentNotFound means the provider does not know the
	// experiment.
	ErrExperimentNotFound = errors.New("experiment not found")

	// ErrExperimentRejected means the provider knows the experiment but
	// refused to serve it, for example because it is stopped.
	ErrExperimentRejected = errors.New("experiment rejected by provider")
)
