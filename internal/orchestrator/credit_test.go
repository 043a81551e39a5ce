package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kiranshivaraju/eomhub/pkg/models"
)

func TestResolveMinutes(t *testing.T) {
	meta := &JobMeta{ToolID: "tool_a", Minutes: 10}

	tests := []struct {
		name    string
		summary map[string]any
		meta    *JobMeta
		want    models.MinutesRange
		wantOK  bool
	}{
		{
			name:    "explicit range wins",
			summary: map[string]any{"time_saved_minutes_min": 5.0, "time_saved_minutes_max": 9.0, "time_saved_minutes": 7.0},
			meta:    meta,
			want:    models.MinutesRange{Min: 5, Max: 9},
			wantOK:  true,
		},
		{
			name:    "average when no range",
			summary: map[string]any{"time_saved_minutes": 7.0},
			meta:    meta,
			want:    models.MinutesRange{Min: 7, Max: 7},
			wantOK:  true,
		},
		{
			name:   "tool fallback",
			meta:   meta,
			want:   models.MinutesRange{Min: 10, Max: 10},
			wantOK: true,
		},
		{
			name:    "lone min mirrors",
			summary: map[string]any{"time_saved_minutes_min": 4},
			want:    models.MinutesRange{Min: 4, Max: 4},
			wantOK:  true,
		},
		{
			name:    "lone max mirrors",
			summary: map[string]any{"time_saved_minutes_max": json.Number("6.5")},
			want:    models.MinutesRange{Min: 6.5, Max: 6.5},
			wantOK:  true,
		},
		{
			name:    "non-numeric values ignored",
			summary: map[string]any{"time_saved_minutes": "lots"},
			meta:    meta,
			want:    models.MinutesRange{Min: 10, Max: 10},
			wantOK:  true,
		},
		{
			name:   "nothing to go on",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveMinutes(tt.summary, tt.meta)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestMemoryCountedSet(t *testing.T) {
	set := NewMemoryCountedSet()
	ctx := context.Background()

	ok, err := set.MarkCounted(ctx, "j1")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = set.MarkCounted(ctx, "j1")
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, _ = set.MarkCounted(ctx, "j2")
	assert.True(t, ok)
}

func TestMemoryCountedSet_ConcurrentClaims(t *testing.T) {
	set := NewMemoryCountedSet()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := set.MarkCounted(context.Background(), "j1"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
