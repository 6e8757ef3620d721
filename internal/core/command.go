package core

// Kind discriminates what a command asks for.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
	KindQuery  Kind = "query"

	// Administrative and persistence kinds. Clear tombstones every live
	// entity. Load bulk-restores previously persisted snapshots. Save asks
	// archival subscribers to flush; it mutates nothing.
	KindClear Kind = "clear"
	KindLoad  Kind = "load"
	KindSave  Kind = "save"
)

// Command is a request against the Processor. TargetID is required for
// update, delete and by-id query commands. Payload carries the proposed
// attribute values; its concrete type is owned by the Schema, except for
// the core-defined LookupByKey and load payloads.
type Command struct {
	Kind     Kind
	TargetID string
	Payload  any
}

// LookupByKey is the query payload for resolving a live entity by its
// unique key instead of its identifier.
type LookupByKey struct {
	Value string
}

// Result is the outcome of an applied command. Snapshot holds the
// post-change view for entity-scoped kinds; Count reports how many entities
// a bulk kind touched.
type Result struct {
	Kind     Kind
	Snapshot Snapshot
	Count    int
}

// ChangeEvent announces exactly one applied mutating command. For bulk
// kinds (clear, load, save) ID is empty and Snapshot.Entity nil;
// subscribers refresh from List instead.
type ChangeEvent struct {
	Kind     Kind
	ID       string
	Snapshot Snapshot
}
