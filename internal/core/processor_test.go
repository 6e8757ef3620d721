package core

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testItem struct {
	ID    string
	Name  string
	Label string
}

func (t *testItem) EntityID() string { return t.ID }

func (t *testItem) Clone() Entity {
	c := *t
	return &c
}

type createItem struct {
	Name  string
	Label string
}

type renameItem struct {
	Name string
}

// testSchema mints sequential identifiers so tests can predict them.
type testSchema struct {
	next int
}

func (s *testSchema) Kind() string { return "item" }

func (s *testSchema) Validate(cmd Command) error {
	switch cmd.Kind {
	case KindCreate:
		p, ok := cmd.Payload.(createItem)
		if !ok {
			return Validationf("create requires an item payload")
		}
		if p.Name == "" {
			return Validationf("name is required")
		}
	case KindUpdate:
		if _, ok := cmd.Payload.(renameItem); !ok {
			return Validationf("unsupported update payload %T", cmd.Payload)
		}
	}
	return nil
}

func (s *testSchema) New(cmd Command, taken func(string) bool) (Entity, error) {
	p := cmd.Payload.(createItem)
	for {
		s.next++
		id := fmt.Sprintf("item-%03d", s.next)
		if !taken(id) {
			return &testItem{ID: id, Name: p.Name, Label: p.Label}, nil
		}
	}
}

func (s *testSchema) Apply(current Entity, cmd Command) (Entity, error) {
	it := current.(*testItem)
	p := cmd.Payload.(renameItem)
	if p.Name == "" {
		return nil, Validationf("name is required")
	}
	it.Name = p.Name
	return it, nil
}

func (s *testSchema) UniqueKey() string { return "label" }

func (s *testSchema) KeyOf(e Entity) string { return e.(*testItem).Label }

func newTestCore() (*Store, *Notifier, *Processor) {
	store := NewStore("item")
	notifier := NewNotifier()
	proc := NewProcessor(store, notifier, &testSchema{})
	return store, notifier, proc
}

func recvEvent(t *testing.T, sub *Subscription) ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed early")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
		return ChangeEvent{}
	}
}

func requireNoEvent(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCreateStartsAtVersionOne(t *testing.T) {
	t.Parallel()
	store, _, proc := newTestCore()

	res, err := proc.Submit(Command{Kind: KindCreate, Payload: createItem{Name: "x", Label: "a"}})
	require.NoError(t, err)
	require.Equal(t, 1, res.Snapshot.Version)
	require.Equal(t, 1, store.Count())

	it := res.Snapshot.Entity.(*testItem)
	require.Equal(t, "x", it.Name)
	require.NotEmpty(t, it.ID)
}

func TestEveryAppliedCreateIsALiveEntity(t *testing.T) {
	t.Parallel()
	store, _, proc := newTestCore()

	applied := 0
	for i := 0; i < 25; i++ {
		_, err := proc.Submit(Command{Kind: KindCreate, Payload: createItem{
			Name:  fmt.Sprintf("n%d", i),
			Label: fmt.Sprintf("l%d", i),
		}})
		require.NoError(t, err)
		applied++
	}

	snaps := store.List()
	require.Len(t, snaps, applied)
	ids := make(map[string]bool, len(snaps))
	for _, s := range snaps {
		ids[s.Entity.EntityID()] = true
	}
	require.Len(t, ids, applied, "duplicate identifiers")
}

func TestUpdateMissingTargetIsNotFound(t *testing.T) {
	t.Parallel()
	_, _, proc := newTestCore()

	_, err := proc.Submit(Command{Kind: KindUpdate, TargetID: "item-999", Payload: renameItem{Name: "y"}})
	require.Error(t, err)
	require.True(t, IsNotFound(err))
}

func TestDuplicateUniqueKeyConflicts(t *testing.T) {
	t.Parallel()
	store, _, proc := newTestCore()

	_, err := proc.Submit(Command{Kind: KindCreate, Payload: createItem{Name: "one", Label: "same"}})
	require.NoError(t, err)

	_, err = proc.Submit(Command{Kind: KindCreate, Payload: createItem{Name: "two", Label: "same"}})
	require.Error(t, err)
	require.True(t, IsConflict(err))
	require.Equal(t, 1, store.Count())
}

func TestRejectionIsIdempotent(t *testing.T) {
	t.Parallel()
	_, notifier, proc := newTestCore()
	sub := notifier.Subscribe()
	defer notifier.Unsubscribe(sub)

	cmd := Command{Kind: KindCreate, Payload: createItem{Name: "", Label: "l"}}
	_, err1 := proc.Submit(cmd)
	_, err2 := proc.Submit(cmd)
	require.Error(t, err1)
	require.Error(t, err2)
	require.True(t, IsValidation(err1))
	require.True(t, IsValidation(err2))
	require.Equal(t, err1.Error(), err2.Error())

	requireNoEvent(t, sub)
}

func TestRejectedCommandHasNoSideEffects(t *testing.T) {
	t.Parallel()
	store, notifier, proc := newTestCore()
	sub := notifier.Subscribe()
	defer notifier.Unsubscribe(sub)

	_, err := proc.Submit(Command{Kind: KindUpdate, TargetID: "item-404", Payload: renameItem{Name: "y"}})
	require.True(t, IsNotFound(err))
	require.Equal(t, 0, store.Count())
	requireNoEvent(t, sub)
}

func TestSubscribersSeeEventsInSubmissionOrder(t *testing.T) {
	t.Parallel()
	_, notifier, proc := newTestCore()
	subA := notifier.Subscribe()
	subB := notifier.Subscribe()
	defer notifier.Unsubscribe(subA)
	defer notifier.Unsubscribe(subB)

	var wantIDs []string
	for i := 0; i < 3; i++ {
		res, err := proc.Submit(Command{Kind: KindCreate, Payload: createItem{
			Name:  fmt.Sprintf("c%d", i),
			Label: fmt.Sprintf("k%d", i),
		}})
		require.NoError(t, err)
		wantIDs = append(wantIDs, res.Snapshot.Entity.EntityID())
	}

	for _, sub := range []*Subscription{subA, subB} {
		for _, want := range wantIDs {
			ev := recvEvent(t, sub)
			require.Equal(t, KindCreate, ev.Kind)
			require.Equal(t, want, ev.ID)
		}
	}
}

func TestDeleteTombstonesAndNotifiesOnce(t *testing.T) {
	t.Parallel()
	store, notifier, proc := newTestCore()

	res, err := proc.Submit(Command{Kind: KindCreate, Payload: createItem{Name: "x", Label: "a"}})
	require.NoError(t, err)
	id := res.Snapshot.Entity.EntityID()

	sub := notifier.Subscribe()
	defer notifier.Unsubscribe(sub)

	del, err := proc.Submit(Command{Kind: KindDelete, TargetID: id})
	require.NoError(t, err)
	require.Equal(t, 2, del.Snapshot.Version)

	ev := recvEvent(t, sub)
	require.Equal(t, KindDelete, ev.Kind)
	require.Equal(t, id, ev.ID)
	requireNoEvent(t, sub)

	_, err = store.Get(id)
	require.True(t, IsNotFound(err))
	require.Empty(t, store.List())

	// Deleting again is NotFound, not a second tombstone.
	_, err = proc.Submit(Command{Kind: KindDelete, TargetID: id})
	require.True(t, IsNotFound(err))
}

func TestDeletedIdentifierIsNeverReassigned(t *testing.T) {
	t.Parallel()
	store, _, proc := newTestCore()

	res, err := proc.Submit(Command{Kind: KindCreate, Payload: createItem{Name: "x", Label: "a"}})
	require.NoError(t, err)
	id := res.Snapshot.Entity.EntityID()

	_, err = proc.Submit(Command{Kind: KindDelete, TargetID: id})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		res, err := proc.Submit(Command{Kind: KindCreate, Payload: createItem{
			Name:  fmt.Sprintf("n%d", i),
			Label: fmt.Sprintf("l%d", i),
		}})
		require.NoError(t, err)
		require.NotEqual(t, id, res.Snapshot.Entity.EntityID())
	}
	require.True(t, store.assigned(id))
}

func TestUpdateBumpsVersionAndKeepsIdentity(t *testing.T) {
	t.Parallel()
	store, _, proc := newTestCore()

	res, err := proc.Submit(Command{Kind: KindCreate, Payload: createItem{Name: "before", Label: "a"}})
	require.NoError(t, err)
	id := res.Snapshot.Entity.EntityID()

	up, err := proc.Submit(Command{Kind: KindUpdate, TargetID: id, Payload: renameItem{Name: "after"}})
	require.NoError(t, err)
	require.Equal(t, 2, up.Snapshot.Version)
	require.Equal(t, id, up.Snapshot.Entity.EntityID())
	require.Equal(t, "after", up.Snapshot.Entity.(*testItem).Name)

	snap, err := store.Get(id)
	require.NoError(t, err)
	require.Equal(t, 2, snap.Version)
}

func TestQueryByIDAndByKey(t *testing.T) {
	t.Parallel()
	_, _, proc := newTestCore()

	res, err := proc.Submit(Command{Kind: KindCreate, Payload: createItem{Name: "x", Label: "findme"}})
	require.NoError(t, err)
	id := res.Snapshot.Entity.EntityID()

	byID, err := proc.Submit(Command{Kind: KindQuery, TargetID: id})
	require.NoError(t, err)
	require.Equal(t, id, byID.Snapshot.Entity.EntityID())

	byKey, err := proc.Submit(Command{Kind: KindQuery, Payload: LookupByKey{Value: "findme"}})
	require.NoError(t, err)
	require.Equal(t, id, byKey.Snapshot.Entity.EntityID())

	_, err = proc.Submit(Command{Kind: KindQuery, Payload: LookupByKey{Value: "absent"}})
	require.True(t, IsNotFound(err))

	_, err = proc.Submit(Command{Kind: KindQuery})
	require.True(t, IsValidation(err))
}

func TestQueryPublishesNothing(t *testing.T) {
	t.Parallel()
	_, notifier, proc := newTestCore()

	_, err := proc.Submit(Command{Kind: KindCreate, Payload: createItem{Name: "x", Label: "a"}})
	require.NoError(t, err)

	sub := notifier.Subscribe()
	defer notifier.Unsubscribe(sub)

	_, err = proc.Submit(Command{Kind: KindQuery, Payload: LookupByKey{Value: "a"}})
	require.NoError(t, err)
	requireNoEvent(t, sub)
}

func TestClearTombstonesEverything(t *testing.T) {
	t.Parallel()
	store, notifier, proc := newTestCore()

	for i := 0; i < 3; i++ {
		_, err := proc.Submit(Command{Kind: KindCreate, Payload: createItem{
			Name:  fmt.Sprintf("n%d", i),
			Label: fmt.Sprintf("l%d", i),
		}})
		require.NoError(t, err)
	}

	sub := notifier.Subscribe()
	defer notifier.Unsubscribe(sub)

	res, err := proc.Submit(Command{Kind: KindClear})
	require.NoError(t, err)
	require.Equal(t, 3, res.Count)
	require.Equal(t, 0, store.Count())

	ev := recvEvent(t, sub)
	require.Equal(t, KindClear, ev.Kind)
	require.Empty(t, ev.ID)
	requireNoEvent(t, sub)
}

func TestLoadRestoresSnapshotsWithVersions(t *testing.T) {
	t.Parallel()
	store, _, proc := newTestCore()

	seeds := []Snapshot{
		{Entity: &testItem{ID: "item-900", Name: "a", Label: "la"}, Version: 3},
		{Entity: &testItem{ID: "item-901", Name: "b", Label: "lb"}, Version: 1},
	}
	res, err := proc.Submit(Command{Kind: KindLoad, Payload: seeds})
	require.NoError(t, err)
	require.Equal(t, 2, res.Count)

	snap, err := store.Get("item-900")
	require.NoError(t, err)
	require.Equal(t, 3, snap.Version)

	list := store.List()
	require.Len(t, list, 2)
	require.Equal(t, "item-900", list[0].Entity.EntityID())
	require.Equal(t, "item-901", list[1].Entity.EntityID())
}

func TestLoadRejectsCollidingIdentifiers(t *testing.T) {
	t.Parallel()
	store, _, proc := newTestCore()

	res, err := proc.Submit(Command{Kind: KindCreate, Payload: createItem{Name: "x", Label: "a"}})
	require.NoError(t, err)
	id := res.Snapshot.Entity.EntityID()

	_, err = proc.Submit(Command{Kind: KindLoad, Payload: []Snapshot{
		{Entity: &testItem{ID: "item-800", Name: "ok", Label: "lo"}, Version: 1},
		{Entity: &testItem{ID: id, Name: "dupe", Label: "ld"}, Version: 1},
	}})
	require.True(t, IsConflict(err))

	// Rejected load inserts nothing, not even the valid half.
	require.Equal(t, 1, store.Count())
	require.False(t, store.assigned("item-800"))
}

func TestSaveCountsLiveAndNotifies(t *testing.T) {
	t.Parallel()
	_, notifier, proc := newTestCore()

	_, err := proc.Submit(Command{Kind: KindCreate, Payload: createItem{Name: "x", Label: "a"}})
	require.NoError(t, err)

	sub := notifier.Subscribe()
	defer notifier.Unsubscribe(sub)

	res, err := proc.Submit(Command{Kind: KindSave})
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)

	ev := recvEvent(t, sub)
	require.Equal(t, KindSave, ev.Kind)
}

func TestSlowSubscriberDoesNotBlockSubmit(t *testing.T) {
	t.Parallel()
	_, notifier, proc := newTestCore()

	stalled := notifier.Subscribe() // never reads
	defer notifier.Unsubscribe(stalled)
	live := notifier.Subscribe()
	defer notifier.Unsubscribe(live)

	const n = 200
	done := make(chan error, 1)
	go func() {
		for i := 0; i < n; i++ {
			_, err := proc.Submit(Command{Kind: KindCreate, Payload: createItem{
				Name:  fmt.Sprintf("n%d", i),
				Label: fmt.Sprintf("l%d", i),
			}})
			if err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("submit stalled behind a slow subscriber")
	}

	for i := 0; i < n; i++ {
		ev := recvEvent(t, live)
		require.Equal(t, KindCreate, ev.Kind)
	}
}

func TestConcurrentSubmittersSerialize(t *testing.T) {
	t.Parallel()
	store, _, proc := newTestCore()

	const workers = 8
	const each = 25
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				_, err := proc.Submit(Command{Kind: KindCreate, Payload: createItem{
					Name:  fmt.Sprintf("w%d-n%d", w, i),
					Label: fmt.Sprintf("w%d-l%d", w, i),
				}})
				if err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	snaps := store.List()
	require.Len(t, snaps, workers*each)
	ids := make(map[string]bool, len(snaps))
	for _, s := range snaps {
		require.Equal(t, 1, s.Version)
		ids[s.Entity.EntityID()] = true
	}
	require.Len(t, ids, workers*each)
}
