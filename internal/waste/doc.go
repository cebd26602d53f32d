// Package waste models the waste-weighing records scraped from the Diftar
// portal: the closed set of waste categories, the measurements parsed from
// portal rows, and the per-category batches forwarded to EnergyID.
package waste
