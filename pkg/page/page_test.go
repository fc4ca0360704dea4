package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginate(t *testing.T) {
	items := make([]int, 25)
	for i := range items {
		items[i] = i
	}

	tests := []struct {
		name       string
		startAt    int
		maxResults int
		wantLen    int
		wantTotal  int
		wantIsLast bool
		wantFirst  int
	}{
		{"tail page", 20, 10, 5, 25, true, 20},
		{"first page", 0, 10, 10, 25, false, 0},
		{"middle page", 10, 10, 10, 25, false, 10},
		{"exact end", 15, 10, 10, 25, true, 15},
		{"start past end", 100, 10, 0, 25, true, 0},
		{"default max results", 0, 0, 25, 25, true, 0},
		{"negative start treated as zero", -5, 10, 10, 25, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(items, tt.startAt, tt.maxResults)
			assert.Len(t, p.Values, tt.wantLen)
			assert.Equal(t, tt.wantTotal, p.Total)
			assert.Equal(t, tt.wantIsLast, p.IsLast)
			if tt.wantLen > 0 {
				assert.Equal(t, tt.wantFirst, p.Values[0])
			}
		})
	}
}

func TestPaginateClampsMaxResults(t *testing.T) {
	items := make([]string, 250)
	p := Paginate(items, 0, 500)
	assert.Equal(t, MaxMaxResults, p.MaxResults)
	assert.Len(t, p.Values, MaxMaxResults)
	assert.False(t, p.IsLast)
}

func TestPaginateEmpty(t *testing.T) {
	p := Paginate([]string{}, 0, 10)
	assert.Equal(t, 0, p.Total)
	assert.True(t, p.IsLast)
	assert.NotNil(t, p.Values)
}
