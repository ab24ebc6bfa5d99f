package checks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statusops/idc-monitor/internal/awsapi"
	"github.com/statusops/idc-monitor/internal/models"
)

func deploymentAdmin() *fakeAdmin {
	psCreated := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return &fakeAdmin{
		listPermissionSets: func(context.Context, string) ([]string, error) {
			return []string{"ps-admin", "ps-readonly"}, nil
		},
		describePS: func(_ context.Context, _, arn string) (*awsapi.PermissionSet, error) {
			if arn == "ps-admin" {
				return &awsapi.PermissionSet{ARN: arn, Name: "AdminAccess", CreatedDate: &psCreated}, nil
			}
			return &awsapi.PermissionSet{ARN: arn, Name: "ReadOnly"}, nil
		},
		listProvisioned: func(_ context.Context, _, arn string) ([]string, error) {
			if arn == "ps-admin" {
				return []string{"111122223333", "444455556666"}, nil
			}
			return []string{"111122223333"}, nil
		},
		listAssignments: func(_ context.Context, _, accountID, arn string) ([]awsapi.AccountAssignment, error) {
			if arn == "ps-readonly" {
				return nil, nil
			}
			return []awsapi.AccountAssignment{
				{AccountID: accountID, PermissionSetARN: arn, PrincipalID: "user-1", PrincipalType: models.PrincipalTypeUser},
			}, nil
		},
	}
}

func deploymentStore() *fakeStore {
	return &fakeStore{
		listUsers: func(context.Context) ([]awsapi.User, error) {
			return []awsapi.User{
				{ID: "user-1", UserName: "alice", CreatedDate: "2024-06-15T10:30:00Z"},
				{ID: "user-2", UserName: "bob", CreatedDate: "not-a-date"},
			}, nil
		},
		listGroups: func(context.Context) ([]awsapi.Group, error) {
			return []awsapi.Group{
				{ID: "group-1", DisplayName: "engineers", CreatedDate: "2024-01-02"},
			}, nil
		},
	}
}

func newCollector(t *testing.T, admin *fakeAdmin, store *fakeStore, parallel bool) *SummaryStatisticsCollector {
	t.Helper()
	cfg := fastConfig()
	cfg.EnableParallelChecks = parallel
	c, err := NewSummaryStatisticsCollector(admin, store, testInstanceARN, cfg)
	require.NoError(t, err)
	return c
}

func TestSummaryCollectsAllAggregates(t *testing.T) {
	for _, parallel := range []bool{true, false} {
		name := "sequential"
		if parallel {
			name = "parallel"
		}
		t.Run(name, func(t *testing.T) {
			collector := newCollector(t, deploymentAdmin(), deploymentStore(), parallel)

			result, err := collector.CheckStatus(context.Background())
			require.NoError(t, err)

			status := result.(*models.SummaryStatus)
			assert.Equal(t, models.StatusHealthy, status.Status)

			stats := status.Statistics
			assert.Equal(t, 2, stats.TotalUsers)
			assert.Equal(t, 1, stats.TotalGroups)
			assert.Equal(t, 2, stats.TotalPermissionSets)
			// ps-admin has one assignment in each of its two accounts.
			assert.Equal(t, 2, stats.TotalAssignments)
			assert.Equal(t, 2, stats.ActiveAccounts)
			assert.Equal(t, 3, stats.TotalPrincipals())
			assert.Equal(t, 3, status.Details["total_principals"])
			assert.False(t, stats.LastUpdated.IsZero())

			// Unparseable dates are dropped from the maps, not the counts.
			assert.Len(t, stats.UserCreationDates, 1)
			assert.Len(t, stats.GroupCreationDates, 1)
			assert.Len(t, stats.PermissionSetCreationDates, 1)
		})
	}
}

func TestSummaryToleratesAggregateFailure(t *testing.T) {
	store := deploymentStore()
	store.listUsers = func(context.Context) ([]awsapi.User, error) {
		return nil, errors.New("ThrottlingException: rate exceeded")
	}

	collector := newCollector(t, deploymentAdmin(), store, true)
	result, err := collector.CheckStatus(context.Background())
	require.NoError(t, err)

	status := result.(*models.SummaryStatus)
	assert.Equal(t, models.StatusWarning, status.Status)
	assert.Contains(t, status.Message, "1 of 4 aggregates failed")
	require.Len(t, status.Errors, 1)
	assert.Contains(t, status.Errors[0], "users")

	// The other aggregates still landed.
	assert.Equal(t, 1, status.Statistics.TotalGroups)
	assert.Equal(t, 2, status.Statistics.TotalPermissionSets)
	assert.Equal(t, 2, status.Statistics.TotalAssignments)
}

func TestSummarySkipsFailedPermissionSetDetails(t *testing.T) {
	admin := deploymentAdmin()
	admin.describePS = func(context.Context, string, string) (*awsapi.PermissionSet, error) {
		return nil, errors.New("ThrottlingException: rate exceeded")
	}

	collector := newCollector(t, admin, deploymentStore(), false)
	result, err := collector.CheckStatus(context.Background())
	require.NoError(t, err)

	status := result.(*models.SummaryStatus)
	// Detail failures reduce the date map, not the count or the status.
	assert.Equal(t, models.StatusHealthy, status.Status)
	assert.Equal(t, 2, status.Statistics.TotalPermissionSets)
	assert.Empty(t, status.Statistics.PermissionSetCreationDates)
}

func TestParseCreationDate(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"2024-06-15T10:30:00Z", true},
		{"2024-06-15T10:30:00.123456789Z", true},
		{"2024-06-15T10:30:00", true},
		{"2024-06-15 10:30:00", true},
		{"2024-06-15", true},
		{"", false},
		{"15/06/2024", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, ok := parseCreationDate(tt.in)
			assert.Equal(t, tt.ok, ok)
		})
	}
}
