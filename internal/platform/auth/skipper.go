package auth

// publicPaths bypass authentication and clinic resolution.
var publicPaths = map[string]bool{
	"/health":            true,
	"/health/db":         true,
	"/api/v1/auth/login": true,
}

// IsPublicPath reports whether path is reachable without a session.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
