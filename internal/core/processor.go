package core

import "sync"

// Processor is the sole entry point for state change. Every accepted
// command is validated, applied to the store and announced as one
// indivisible step; a mutex serializes Submit calls so validation always
// runs against the state the command will be applied to. A rejected
// command has no side effects at all and is safe to resubmit.
type Processor struct {
	mu       sync.Mutex
	store    *Store
	notifier *Notifier
	schema   Schema
}

func NewProcessor(store *Store, notifier *Notifier, schema Schema) *Processor {
	return &Processor{store: store, notifier: notifier, schema: schema}
}

// Submit runs one command to completion: validate, resolve the target,
// check business rules, apply, publish exactly one ChangeEvent. Rejections
// come back as ValidationError, NotFoundError or ConflictError.
func (p *Processor) Submit(cmd Command) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch cmd.Kind {
	case KindCreate:
		return p.create(cmd)
	case KindUpdate:
		return p.update(cmd)
	case KindDelete:
		return p.delete(cmd)
	case KindQuery:
		return p.query(cmd)
	case KindClear:
		return p.clear()
	case KindLoad:
		return p.load(cmd)
	case KindSave:
		return p.save()
	default:
		return Result{}, Validationf("unknown command kind %q", cmd.Kind)
	}
}

func (p *Processor) create(cmd Command) (Result, error) {
	if err := p.schema.Validate(cmd); err != nil {
		return Result{}, err
	}
	e, err := p.schema.New(cmd, p.store.assigned)
	if err != nil {
		return Result{}, err
	}
	if field := p.schema.UniqueKey(); field != "" {
		value := p.schema.KeyOf(e)
		if _, ok := p.store.findByKey(p.schema.KeyOf, value); ok {
			return Result{}, Conflictf("%s with %s %q already exists", p.schema.Kind(), field, value)
		}
	}
	if err := p.store.insert(e, 1); err != nil {
		return Result{}, err
	}
	snap := Snapshot{Entity: e.Clone(), Version: 1}
	p.notifier.publish(ChangeEvent{Kind: KindCreate, ID: e.EntityID(), Snapshot: snap})
	return Result{Kind: KindCreate, Snapshot: snap, Count: 1}, nil
}

func (p *Processor) update(cmd Command) (Result, error) {
	if cmd.TargetID == "" {
		return Result{}, Validationf("update requires a target identifier")
	}
	if err := p.schema.Validate(cmd); err != nil {
		return Result{}, err
	}
	current, err := p.store.Get(cmd.TargetID)
	if err != nil {
		return Result{}, err
	}
	mutated, err := p.schema.Apply(current.Entity, cmd)
	if err != nil {
		return Result{}, err
	}
	if field := p.schema.UniqueKey(); field != "" {
		value := p.schema.KeyOf(mutated)
		if other, ok := p.store.findByKey(p.schema.KeyOf, value); ok && other.Entity.EntityID() != cmd.TargetID {
			return Result{}, Conflictf("%s with %s %q already exists", p.schema.Kind(), field, value)
		}
	}
	snap, err := p.store.replace(cmd.TargetID, mutated)
	if err != nil {
		return Result{}, err
	}
	p.notifier.publish(ChangeEvent{Kind: KindUpdate, ID: cmd.TargetID, Snapshot: snap})
	return Result{Kind: KindUpdate, Snapshot: snap, Count: 1}, nil
}

func (p *Processor) delete(cmd Command) (Result, error) {
	if cmd.TargetID == "" {
		return Result{}, Validationf("delete requires a target identifier")
	}
	snap, err := p.store.tombstone(cmd.TargetID)
	if err != nil {
		return Result{}, err
	}
	p.notifier.publish(ChangeEvent{Kind: KindDelete, ID: cmd.TargetID, Snapshot: snap})
	return Result{Kind: KindDelete, Snapshot: snap, Count: 1}, nil
}

// query resolves a snapshot without mutating or publishing: by target
// identifier, or by unique key with a LookupByKey payload.
func (p *Processor) query(cmd Command) (Result, error) {
	if cmd.TargetID != "" {
		snap, err := p.store.Get(cmd.TargetID)
		if err != nil {
			return Result{}, err
		}
		return Result{Kind: KindQuery, Snapshot: snap, Count: 1}, nil
	}
	lookup, ok := cmd.Payload.(LookupByKey)
	if !ok {
		return Result{}, Validationf("query requires a target identifier or a key lookup")
	}
	if p.schema.UniqueKey() == "" {
		return Result{}, Validationf("%s has no unique key to look up", p.schema.Kind())
	}
	snap, found := p.store.findByKey(p.schema.KeyOf, lookup.Value)
	if !found {
		return Result{}, NotFoundf("no %s with %s %q", p.schema.Kind(), p.schema.UniqueKey(), lookup.Value)
	}
	return Result{Kind: KindQuery, Snapshot: snap, Count: 1}, nil
}

func (p *Processor) clear() (Result, error) {
	n := p.store.clearAll()
	p.notifier.publish(ChangeEvent{Kind: KindClear})
	return Result{Kind: KindClear, Count: n}, nil
}

func (p *Processor) load(cmd Command) (Result, error) {
	snaps, ok := cmd.Payload.([]Snapshot)
	if !ok {
		return Result{}, Validationf("load requires a snapshot payload")
	}
	seen := make(map[string]bool, len(snaps))
	for _, s := range snaps {
		if s.Entity == nil || s.Entity.EntityID() == "" {
			return Result{}, Validationf("load payload contains an entity without an identifier")
		}
		if s.Version < 1 {
			return Result{}, Validationf("load payload contains %s %q with version %d", p.schema.Kind(), s.Entity.EntityID(), s.Version)
		}
		id := s.Entity.EntityID()
		if seen[id] || p.store.assigned(id) {
			return Result{}, Conflictf("%s identifier %q already assigned", p.schema.Kind(), id)
		}
		seen[id] = true
	}
	for _, s := range snaps {
		if err := p.store.insert(s.Entity, s.Version); err != nil {
			return Result{}, err
		}
	}
	p.notifier.publish(ChangeEvent{Kind: KindLoad})
	return Result{Kind: KindLoad, Count: len(snaps)}, nil
}

func (p *Processor) save() (Result, error) {
	n := p.store.Count()
	p.notifier.publish(ChangeEvent{Kind: KindSave})
	return Result{Kind: KindSave, Count: n}, nil
}
