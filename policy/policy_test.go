package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name       string
		maxReposts int
		staleDays  int
		wantErr    error
	}{
		{"both disabled", 0, 0, ErrNoThresholds},
		{"only reposts", 100, 0, nil},
		{"only staleness", 0, 30, nil},
		{"both enabled", 100, 30, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.maxReposts, tt.staleDays, nil)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, p)
			} else {
				require.NoError(t, err)
				require.NotNil(t, p)
			}
		})
	}

	_, err := New(-1, 10, nil)
	require.Error(t, err)
	_, err = New(10, -1, nil)
	require.Error(t, err)
}

func TestDomainNormalization(t *testing.T) {
	p, err := New(1, 0, []string{" NYTimes.com ", "nytimes.com", ".example.org", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"example.org", "nytimes.com"}, p.ProtectedDomains())
}

func TestIsStaleBoundaries(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	p, err := New(0, 2, nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"exactly at the limit", now.AddDate(0, 0, -2), true},
		{"one second short of the limit", now.Add(-2*24*time.Hour + time.Second), false},
		{"one day short", now.AddDate(0, 0, -1), false},
		{"well past", now.AddDate(0, 0, -50), true},
		{"future timestamp", now.Add(time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsStale(tt.t, now))
		})
	}

	disabled := &Policy{}
	assert.False(t, disabled.IsStale(now.AddDate(-10, 0, 0), now))
}

func TestIsViralBoundaries(t *testing.T) {
	p, err := New(100, 0, nil)
	require.NoError(t, err)

	assert.False(t, p.IsViral(0))
	assert.False(t, p.IsViral(99))
	assert.False(t, p.IsViral(100), "count exactly at the limit is retained")
	assert.True(t, p.IsViral(101))
	assert.True(t, p.IsViral(100000))
}

func TestViralThresholdZeroMeansDisabled(t *testing.T) {
	// 0 turns the feature off; it is not a zero-tolerance limit.
	p, err := New(0, 7, nil)
	require.NoError(t, err)

	assert.False(t, p.IsViral(0))
	assert.False(t, p.IsViral(1))
	assert.False(t, p.IsViral(1000000))
}

func TestZeroPolicySelectsNothing(t *testing.T) {
	now := time.Now()
	p := &Policy{}

	assert.False(t, p.IsStale(now.AddDate(-1, 0, 0), now))
	assert.False(t, p.IsViral(1<<40))
	assert.False(t, p.TouchesProtectedDomain([]string{"example.com"}))
}

func TestTouchesProtectedDomain(t *testing.T) {
	p, err := New(1, 0, []string{"nytimes.com", "Example.ORG"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		domains []string
		want    bool
	}{
		{"exact match", []string{"nytimes.com"}, true},
		{"case-insensitive", []string{"NYTimes.COM"}, true},
		{"subdomain", []string{"www.nytimes.com"}, true},
		{"deep subdomain", []string{"a.b.example.org"}, true},
		{"unrelated", []string{"washingtonpost.com"}, false},
		{"suffix but not subdomain", []string{"notnytimes.com"}, false},
		{"second domain in list", []string{"washingtonpost.com", "example.org"}, true},
		{"empty post domains", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.TouchesProtectedDomain(tt.domains))
		})
	}

	unprotected, err := New(1, 0, nil)
	require.NoError(t, err)
	assert.False(t, unprotected.TouchesProtectedDomain([]string{"nytimes.com"}))
}
