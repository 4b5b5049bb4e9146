package janitor

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/maintenance"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/optracker"
)

func TestSweepRemovesEntriesPastMaxAge(t *testing.T) {
	opt := optracker.New()
	maint := maintenance.New()

	require := func(err error) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require(opt.TryStart("fresh-node", "pruning", "test"))
	maint.Start("fresh-node", "pruning", 15, "server-1")

	j := New(opt, maint, nil)
	j.operationMaxAge = time.Millisecond
	j.maintenanceMaxAge = time.Millisecond
	time.Sleep(5 * time.Millisecond)

	j.sweep(context.Background(), zerolog.Nop())

	assert.False(t, opt.IsBusy("fresh-node"))
	assert.False(t, maint.IsInMaintenance("fresh-node"))
}

func TestSweepIsNoOpWithoutStore(t *testing.T) {
	j := New(optracker.New(), maintenance.New(), nil)
	assert.NotPanics(t, func() {
		j.sweep(context.Background(), zerolog.Nop())
	})
}
