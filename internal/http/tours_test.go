package httpserver

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTourFilters(t *testing.T) {
	t.Run("empty query", func(t *testing.T) {
		filters, err := buildTourFilters(url.Values{})
		require.NoError(t, err)
		assert.Nil(t, filters.Difficulty)
		assert.Nil(t, filters.MinRating)
		assert.Nil(t, filters.MaxPrice)
		assert.Empty(t, filters.Sort)
		assert.Zero(t, filters.Limit)
		assert.False(t, filters.IncludeSecret)
	})

	t.Run("all fields", func(t *testing.T) {
		query := url.Values{
			"difficulty": {"medium"},
			"minRating":  {"4.2"},
			"maxPrice":   {"1000"},
			"sort":       {"-price,name"},
			"limit":      {"7"},
		}
		filters, err := buildTourFilters(query)
		require.NoError(t, err)
		require.NotNil(t, filters.Difficulty)
		assert.Equal(t, "medium", *filters.Difficulty)
		require.NotNil(t, filters.MinRating)
		assert.Equal(t, 4.2, *filters.MinRating)
		require.NotNil(t, filters.MaxPrice)
		assert.Equal(t, 1000.0, *filters.MaxPrice)
		assert.Equal(t, "-price,name", filters.Sort)
		assert.Equal(t, 7, filters.Limit)
	})

	t.Run("invalid values", func(t *testing.T) {
		cases := map[string]url.Values{
			"bad difficulty":    {"difficulty": {"vertical"}},
			"bad minRating":     {"minRating": {"high"}},
			"bad maxPrice":      {"maxPrice": {"cheap"}},
			"negative maxPrice": {"maxPrice": {"-10"}},
			"bad limit":         {"limit": {"ten"}},
		}
		for name, query := range cases {
			_, err := buildTourFilters(query)
			assert.Error(t, err, name)
		}
	})
}

func TestVerifyBearer(t *testing.T) {
	s := &Server{}
	s.cfg.AuthToken = "secret"

	assert.True(t, s.verifyBearer("Bearer secret"))
	assert.False(t, s.verifyBearer(""))
	assert.False(t, s.verifyBearer("secret"))
	assert.False(t, s.verifyBearer("Bearer wrong"))
	assert.False(t, s.verifyBearer("Basic secret"))
}
