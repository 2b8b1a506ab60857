// Package internaldefs holds the shared counter definitions used by the
// metrics exporters. It exists so the Prometheus and OTel exporters render
// identical names and help text.
package internaldefs
