package testdata

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/jask-aran/uniapp/internal/core"
	"github.com/jask-aran/uniapp/internal/domain"
)

var sampleNames = []string{
	"John Smith",
	"Jane Doe",
	"Wei Chen",
	"Priya Patel",
	"Liam O'Brien",
	"Sofia Rossi",
	"Noah Williams",
	"Amara Okafor",
	"Lucas Silva",
	"Mia Johnson",
}

// Seed registers n sample students with a few enrolments each, all through
// the command pipeline so subscribers and the archive see every change.
func Seed(proc *core.Processor, n int, rng *rand.Rand) error {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	for i := 0; i < n; i++ {
		name := sampleNames[i%len(sampleNames)]
		local := strings.ToLower(strings.ReplaceAll(name, " ", "."))
		local = strings.ReplaceAll(local, "'", "")
		res, err := proc.Submit(core.Command{Kind: core.KindCreate, Payload: domain.RegisterPayload{
			Name:     name,
			Email:    fmt.Sprintf("%s%d@university.com", local, i),
			Password: "Password123",
		}})
		if err != nil {
			return err
		}
		id := res.Snapshot.Entity.EntityID()
		for j := rng.Intn(domain.MaxSubjects + 1); j > 0; j-- {
			if _, err := proc.Submit(core.Command{Kind: core.KindUpdate, TargetID: id, Payload: domain.EnrolPayload{}}); err != nil {
				return err
			}
		}
	}
	return nil
}
