package tracker

import (
	"fmt"
	"sync"
	"testing"

	"github.com/GoPolymarket/apilogs/internal/model"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestRegisterDeduplicatesAndKeepsOrder(t *testing.T) {
	tr := New()
	assert.True(t, tr.Register("req-1", "User", "1"))
	assert.True(t, tr.Register("req-1", "Order", "2"))
	assert.False(t, tr.Register("req-1", "User", "1"))
	assert.True(t, tr.Register("req-1", "User", "3"))

	want := []model.EntityRef{
		{EntityType: "User", EntityID: "1"},
		{EntityType: "Order", EntityID: "2"},
		{EntityType: "User", EntityID: "3"},
	}
	if diff := cmp.Diff(want, tr.Entries("req-1")); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestRegisterIgnoresEmptyKeys(t *testing.T) {
	tr := New()
	assert.False(t, tr.Register("", "User", "1"))
	assert.False(t, tr.Register("req-1", "", "1"))
	assert.Equal(t, 0, tr.Len())
}

func TestEntriesReturnsCopy(t *testing.T) {
	tr := New()
	tr.Register("req-1", "User", "1")
	got := tr.Entries("req-1")
	got[0].EntityID = "changed"
	assert.Equal(t, "1", tr.Entries("req-1")[0].EntityID)
	assert.Empty(t, tr.Entries("unknown"))
	assert.NotNil(t, tr.Entries("unknown"))
}

func TestClearAndClearAll(t *testing.T) {
	tr := New()
	tr.Register("req-1", "User", "1")
	tr.Register("req-2", "User", "2")
	tr.Register("req-3", "User", "3")
	assert.Equal(t, []string{"req-1", "req-2", "req-3"}, tr.CorrelationIDs())

	tr.Clear("req-2")
	assert.Empty(t, tr.Entries("req-2"))
	assert.Equal(t, 2, tr.Len())

	// clearing re-opens the id for registration
	assert.True(t, tr.Register("req-2", "User", "2"))

	tr.ClearAll()
	assert.Equal(t, 0, tr.Len())
	assert.Empty(t, tr.Entries("req-1"))
}

func TestConcurrentRegistration(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				tr.Register(fmt.Sprintf("req-%d", i%10), "User", fmt.Sprint(i))
				tr.Register(fmt.Sprintf("req-%d", i%10), "Worker", fmt.Sprint(w))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 10, tr.Len())
	// each id saw users i, i+10, ... (10 of them) and all 8 workers
	for i := 0; i < 10; i++ {
		assert.Len(t, tr.Entries(fmt.Sprintf("req-%d", i)), 18)
	}
}
