package service

import (
	"context"
	"fmt"

	"github.com/jask-aran/uniapp/internal/core"
	"github.com/jask-aran/uniapp/internal/database/repository"
	"github.com/jask-aran/uniapp/internal/domain"
)

// Archive mirrors applied changes into sqlite and seeds the store on startup.
type Archive struct {
	Repo  *repository.StudentRepo
	Store *core.Store
}

// Restore loads persisted snapshots into the store through a load command,
// keeping their saved versions. An empty database is not an error.
func (a *Archive) Restore(ctx context.Context, proc *core.Processor) (int, error) {
	snaps, err := a.Repo.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load students: %w", err)
	}
	if len(snaps) == 0 {
		return 0, nil
	}
	res, err := proc.Submit(core.Command{Kind: core.KindLoad, Payload: snaps})
	if err != nil {
		return 0, fmt.Errorf("seed store: %w", err)
	}
	return res.Count, nil
}

// Run consumes change events until the subscription closes or ctx ends.
// Persistence failures go to onErr and the feed keeps running.
func (a *Archive) Run(ctx context.Context, sub *core.Subscription, onErr func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := a.apply(ctx, ev); err != nil && onErr != nil {
				onErr(fmt.Errorf("archive %s %s: %w", ev.Kind, ev.ID, err))
			}
		}
	}
}

// Flush rewrites every persisted row from the live set.
func (a *Archive) Flush(ctx context.Context) error {
	return a.Repo.ReplaceAll(ctx, a.Store.List())
}

func (a *Archive) apply(ctx context.Context, ev core.ChangeEvent) error {
	switch ev.Kind {
	case core.KindCreate, core.KindUpdate:
		st, ok := ev.Snapshot.Entity.(*domain.Student)
		if !ok {
			return nil
		}
		return a.Repo.Upsert(ctx, st, ev.Snapshot.Version)
	case core.KindDelete:
		return a.Repo.Delete(ctx, ev.ID)
	case core.KindClear:
		return a.Repo.DeleteAll(ctx)
	case core.KindSave:
		return a.Flush(ctx)
	}
	// Load events originate from the archive itself.
	return nil
}
