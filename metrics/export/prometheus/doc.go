// Package prometheus renders goCtrl metrics in the Prometheus text
// exposition format, with no dependency on a Prometheus client library.
package prometheus
