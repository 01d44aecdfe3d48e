// Package assign implements the daily assignment engine. A run selects the
// clients due on a target date, matches staff to them under access and
// specialization rules while balancing workload, then covers the resulting
// subregions with vehicles. Stages run strictly in sequence and each returns
// a fresh result built from the previous stage's output.
package assign
