package catalog

import "strings"

// Service is one bookable entry in an organization's catalog.
type Service struct {
	Name        string `json:"name"`
	Active      bool   `json:"active"`
	DurationMin int    `json:"duration_min,omitempty"`
}

// Organization is the read-only per-deployment context a session runs against.
// Sessions never mutate it.
type Organization struct {
	Name         string    `json:"name"`
	Services     []Service `json:"services"`
	Hours        string    `json:"hours"`
	Location     string    `json:"location"`
	LocationMode string    `json:"location_mode"` // on_site | mobile | both
	Greeting     string    `json:"greeting"`
}

func (o *Organization) ActiveServices() []Service {
	out := make([]Service, 0, len(o.Services))
	for _, s := range o.Services {
		if s.Active {
			out = append(out, s)
		}
	}
	return out
}

// ServiceNames returns active service names for spoken listings.
func (o *Organization) ServiceNames() string {
	names := []string{}
	for _, s := range o.ActiveServices() {
		names = append(names, s.Name)
	}
	return strings.Join(names, ", ")
}

// ParseServices builds a catalog from a comma-separated config value.
func ParseServices(csv string) []Service {
	out := []Service{}
	for _, part := range strings.Split(csv, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		out = append(out, Service{Name: name, Active: true})
	}
	return out
}
