package core

// Entity is an identifiable domain record held by a Store. Identifiers are
// immutable and never reused, even after deletion.
//
// Clone must return a deep copy: snapshots handed out of the core never
// alias store-owned state, so readers on other goroutines can't observe a
// torn write.
type Entity interface {
	EntityID() string
	Clone() Entity
}

// Snapshot is an immutable view of one entity at a point in time. The
// version starts at 1 when the entity is created and increments on every
// applied mutation, deletion included.
type Snapshot struct {
	Entity  Entity
	Version int
}

// Schema supplies the domain behavior a Processor enforces: payload
// validation, entity construction and mutation, and the designated unique
// key. Implementations never touch the Store; they compute new state from
// the copies the Processor hands them.
type Schema interface {
	// Kind names the entity kind, used in reason strings ("student").
	Kind() string

	// Validate checks a command's payload for structural well-formedness.
	// It must be a pure function of the command.
	Validate(cmd Command) error

	// New constructs the entity for a create command. taken reports whether
	// an identifier has ever been assigned; New must mint one for which
	// taken returns false.
	New(cmd Command, taken func(id string) bool) (Entity, error)

	// Apply mutates a copy of the current entity according to an update
	// command and returns it. current is owned by the callee and may be
	// modified in place.
	Apply(current Entity, cmd Command) (Entity, error)

	// UniqueKey names the field enforced unique across live entities, used
	// in reason strings ("email"). Empty disables the check.
	UniqueKey() string

	// KeyOf returns e's value for the unique key field.
	KeyOf(e Entity) string
}
