package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundwise/steward/internal/models"
	"github.com/fundwise/steward/internal/sheets"
)

func seededClient() *sheets.MockClient {
	client := sheets.NewMockClient()
	client.Seed(models.TableContributions, []models.Row{
		{"C001", "F001", "KA", "2026", "25000", "", "received", ""},
	})
	client.Seed(models.TableProspects, []models.Row{
		{"P001", "Acme Trust", "KA", "outreach", "10000", "0.4", ""},
	})
	return client
}

func callCount(client *sheets.MockClient, call string) int {
	n := 0
	for _, c := range client.Calls {
		if c == call {
			n++
		}
	}
	return n
}

func TestReadThroughServesFromCache(t *testing.T) {
	client := seededClient()
	c := New(client, time.Minute)
	ctx := context.Background()

	first, err := c.GetRows(ctx, models.TableContributions)
	require.NoError(t, err)
	second, err := c.GetRows(ctx, models.TableContributions)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, callCount(client, "GetRows:contributions"), "second read served from cache")

	hits, misses, cached := c.Stats()
	assert.EqualValues(t, 1, hits)
	assert.EqualValues(t, 1, misses)
	assert.Contains(t, cached, models.TableContributions)
}

func TestInvalidateForcesRefetch(t *testing.T) {
	client := seededClient()
	c := New(client, time.Minute)
	ctx := context.Background()

	_, err := c.GetRows(ctx, models.TableContributions)
	require.NoError(t, err)

	client.Seed(models.TableContributions, []models.Row{
		{"C001", "F001", "KA", "2026", "25000", "", "verified", ""},
	})
	c.Invalidate(models.TableContributions)

	rows, err := c.GetRows(ctx, models.TableContributions)
	require.NoError(t, err)
	assert.Equal(t, "verified", rows[0][6], "post-invalidation read sees the new state")
	assert.Equal(t, 2, callCount(client, "GetRows:contributions"))
}

func TestInvalidateAllDropsEveryTable(t *testing.T) {
	client := seededClient()
	c := New(client, time.Minute)
	ctx := context.Background()

	_, err := c.GetRows(ctx, models.TableContributions)
	require.NoError(t, err)
	_, err = c.GetRows(ctx, models.TableProspects)
	require.NoError(t, err)

	c.Invalidate(models.TableAll)

	_, _, cached := c.Stats()
	assert.Empty(t, cached)
}

func TestInvalidateIsScopedToOneTable(t *testing.T) {
	client := seededClient()
	c := New(client, time.Minute)
	ctx := context.Background()

	_, err := c.GetRows(ctx, models.TableContributions)
	require.NoError(t, err)
	_, err = c.GetRows(ctx, models.TableProspects)
	require.NoError(t, err)

	c.Invalidate(models.TableContributions)

	_, err = c.GetRows(ctx, models.TableProspects)
	require.NoError(t, err)
	assert.Equal(t, 1, callCount(client, "GetRows:prospects"), "untouched table stays cached")
}

func TestTTLExpiry(t *testing.T) {
	client := seededClient()
	c := New(client, 5*time.Millisecond)
	ctx := context.Background()

	_, err := c.GetRows(ctx, models.TableContributions)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = c.GetRows(ctx, models.TableContributions)
	require.NoError(t, err)
	assert.Equal(t, 2, callCount(client, "GetRows:contributions"), "expired entry refetched")
}

func TestCachedRowsAreIsolatedCopies(t *testing.T) {
	client := seededClient()
	c := New(client, time.Minute)
	ctx := context.Background()

	rows, err := c.GetRows(ctx, models.TableContributions)
	require.NoError(t, err)
	rows[0][0] = "tampered"

	again, err := c.GetRows(ctx, models.TableContributions)
	require.NoError(t, err)
	assert.Equal(t, "C001", again[0][0])
}
