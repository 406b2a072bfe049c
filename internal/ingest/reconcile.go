package ingest

// Reconcile merges detected with existing into a new table. Entries from
// existing always win because InfluxDB rejects writes that change a stored
// field's type. Neither input is modified.
func Reconcile(detected, existing TypeTable) TypeTable {
	out := make(TypeTable, len(detected)+len(existing))
	for f, t := range detected {
		out[f] = t
	}
	for f, t := range existing {
		out[f] = t
	}
	return out
}
