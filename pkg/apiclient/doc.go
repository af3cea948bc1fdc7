// Package apiclient is the request surface used by every domain call site
// (students, courses, timetables, attendance, audit, settings). Callers pass a
// method, a path relative to the API root and an optional JSON body; the
// client decides which backend address to use.
//
// A request that fails in a way that suggests the backend moved (transport
// failure, 5xx, and by default 404) is retried at most once, and only when
// the health tracker allows a redetection and that redetection produced a
// different address. Every other failure is returned unchanged.
//
// Example usage:
//
//	client, err := apiclient.New(coordinator, tracker,
//		apiclient.Tokens(store),
//		apiclient.Logger(log),
//	)
//	var students []Student
//	err = client.DoJSON(ctx, http.MethodGet, "/students/", nil, &students)
//
//	var apiErr *apiclient.APIError
//	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity {
//		// show validation message
//	}
package apiclient
