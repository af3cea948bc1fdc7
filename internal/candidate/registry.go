package candidate

import (
	"fmt"
	"net/url"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Registry is the immutable, ordered list of candidates built once at
// startup.
type Registry struct {
	candidates []*Candidate
	fallback   string
}

// NewRegistry builds a registry from the configured candidate URLs and the
// deployment fallback. Duplicates keep their first position, except the
// fallback which is always moved to the end. An empty fallback leaves the
// last listed candidate as the default.
func NewRegistry(urls []string, fallback string) (*Registry, error) {
	fallback = Normalize(fallback)
	if fallback != "" {
		if err := ValidateURL(fallback); err != nil {
			return nil, fmt.Errorf("fallback %q: %w", fallback, err)
		}
	}

	seen := make(map[string]bool, len(urls)+1)
	candidates := make([]*Candidate, 0, len(urls)+1)

	for _, raw := range urls {
		u := Normalize(raw)
		if u == "" || seen[u] || u == fallback {
			continue
		}
		if err := ValidateURL(u); err != nil {
			return nil, fmt.Errorf("candidate %q: %w", u, err)
		}
		seen[u] = true
		candidates = append(candidates, New(u, false))
	}

	if fallback != "" {
		candidates = append(candidates, New(fallback, true))
	} else if len(candidates) > 0 {
		last := candidates[len(candidates)-1]
		last.fallback = true
		fallback = last.url
	}

	return &Registry{
		candidates: candidates,
		fallback:   fallback,
	}, nil
}

// Candidates returns the candidates in probing order. The slice is a copy;
// the candidates themselves are shared.
func (r *Registry) Candidates() []*Candidate {
	out := make([]*Candidate, len(r.candidates))
	copy(out, r.candidates)
	return out
}

// Fallback returns the deployment-configured default address, or "" when
// the registry is empty.
func (r *Registry) Fallback() string {
	return r.fallback
}

// Lookup finds the candidate with the given base URL.
func (r *Registry) Lookup(rawURL string) *Candidate {
	u := Normalize(rawURL)
	for _, c := range r.candidates {
		if c.url == u {
			return c
		}
	}
	return nil
}

// Statuses returns a snapshot of every candidate in probing order.
func (r *Registry) Statuses() []Status {
	out := make([]Status, 0, len(r.candidates))
	for _, c := range r.candidates {
		out = append(out, c.Status())
	}
	return out
}

// ValidateURL checks that value is an absolute http or https URL with a
// host. It is usable as an ozzo validation rule through validation.By.
func ValidateURL(value interface{}) error {
	raw, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if raw == "" {
		return validation.NewError("validation_empty_url", "URL cannot be empty")
	}

	parsedURL, err := url.Parse(raw)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}
