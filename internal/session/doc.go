// Package session contains the practice session lifecycle: the domain types
// and validation rules in domain, and the orchestrating service in service.
package session
