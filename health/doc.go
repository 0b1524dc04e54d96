// Package health provides lightweight health checks for the cache, meant
// to feed whatever operator endpoint the hosting service exposes.
package health
