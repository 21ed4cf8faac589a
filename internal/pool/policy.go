package pool

// AllowNewSource decides whether an endpoint that already has existing
// sources may take one more. Each source may grow to perUserMax
// connections, so the endpoint is full once existing*perUserMax reaches
// totalMax.
//
// The registry does not consult it for the first source of an endpoint.
func AllowNewSource(totalMax, perUserMax, existing int) bool {
	return existing*perUserMax < totalMax
}
