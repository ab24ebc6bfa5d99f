package checks

import (
	"context"
	"sync"

	"github.com/statusops/idc-monitor/internal/awsapi"
	"github.com/statusops/idc-monitor/internal/config"
	"github.com/statusops/idc-monitor/internal/models"
)

// fastConfig keeps test runs quick: short timeouts, no retry delay.
func fastConfig() config.StatusCheckConfig {
	return config.StatusCheckConfig{
		TimeoutSeconds:        5,
		RetryAttempts:         0,
		RetryDelaySeconds:     0,
		EnableParallelChecks:  true,
		MaxConcurrentChecks:   4,
		IncludeDetailedErrors: true,
	}
}

// fakeAdmin implements awsapi.IdentityCenterAdmin with overridable calls.
// Unset calls return empty results.
type fakeAdmin struct {
	listInstances      func(ctx context.Context) ([]awsapi.Instance, error)
	listPermissionSets func(ctx context.Context, instanceARN string) ([]string, error)
	describePS         func(ctx context.Context, instanceARN, psARN string) (*awsapi.PermissionSet, error)
	listProvisioned    func(ctx context.Context, instanceARN, psARN string) ([]string, error)
	listAssignments    func(ctx context.Context, instanceARN, accountID, psARN string) ([]awsapi.AccountAssignment, error)
	deleteAssignment   func(ctx context.Context, instanceARN, accountID, psARN, principalID, principalType string) error

	mu      sync.Mutex
	deleted []string
}

func (f *fakeAdmin) ListInstances(ctx context.Context) ([]awsapi.Instance, error) {
	if f.listInstances != nil {
		return f.listInstances(ctx)
	}
	return nil, nil
}

func (f *fakeAdmin) ListPermissionSets(ctx context.Context, instanceARN string) ([]string, error) {
	if f.listPermissionSets != nil {
		return f.listPermissionSets(ctx, instanceARN)
	}
	return nil, nil
}

func (f *fakeAdmin) DescribePermissionSet(ctx context.Context, instanceARN, psARN string) (*awsapi.PermissionSet, error) {
	if f.describePS != nil {
		return f.describePS(ctx, instanceARN, psARN)
	}
	return &awsapi.PermissionSet{ARN: psARN}, nil
}

func (f *fakeAdmin) ListAccountsForProvisionedPermissionSet(ctx context.Context, instanceARN, psARN string) ([]string, error) {
	if f.listProvisioned != nil {
		return f.listProvisioned(ctx, instanceARN, psARN)
	}
	return nil, nil
}

func (f *fakeAdmin) ListAccountAssignments(ctx context.Context, instanceARN, accountID, psARN string) ([]awsapi.AccountAssignment, error) {
	if f.listAssignments != nil {
		return f.listAssignments(ctx, instanceARN, accountID, psARN)
	}
	return nil, nil
}

func (f *fakeAdmin) DeleteAccountAssignment(ctx context.Context, instanceARN, accountID, psARN, principalID, principalType string) error {
	if f.deleteAssignment != nil {
		if err := f.deleteAssignment(ctx, instanceARN, accountID, psARN, principalID, principalType); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.deleted = append(f.deleted, models.AssignmentKey(psARN, principalID, accountID))
	f.mu.Unlock()
	return nil
}

func (f *fakeAdmin) deletedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// fakeStore implements awsapi.IdentityStore.
type fakeStore struct {
	describeUser  func(ctx context.Context, userID string) (*awsapi.User, error)
	describeGroup func(ctx context.Context, groupID string) (*awsapi.Group, error)
	listUsers     func(ctx context.Context) ([]awsapi.User, error)
	listGroups    func(ctx context.Context) ([]awsapi.Group, error)
}

func (f *fakeStore) DescribeUser(ctx context.Context, userID string) (*awsapi.User, error) {
	if f.describeUser != nil {
		return f.describeUser(ctx, userID)
	}
	return &awsapi.User{ID: userID}, nil
}

func (f *fakeStore) DescribeGroup(ctx context.Context, groupID string) (*awsapi.Group, error) {
	if f.describeGroup != nil {
		return f.describeGroup(ctx, groupID)
	}
	return &awsapi.Group{ID: groupID}, nil
}

func (f *fakeStore) ListUsers(ctx context.Context) ([]awsapi.User, error) {
	if f.listUsers != nil {
		return f.listUsers(ctx)
	}
	return nil, nil
}

func (f *fakeStore) ListGroups(ctx context.Context) ([]awsapi.Group, error) {
	if f.listGroups != nil {
		return f.listGroups(ctx)
	}
	return nil, nil
}

// fakeOrgs implements awsapi.OrgDirectory.
type fakeOrgs struct {
	listAccounts    func(ctx context.Context) ([]awsapi.Account, error)
	describeAccount func(ctx context.Context, accountID string) (*awsapi.Account, error)
}

func (f *fakeOrgs) ListAccounts(ctx context.Context) ([]awsapi.Account, error) {
	if f.listAccounts != nil {
		return f.listAccounts(ctx)
	}
	return nil, nil
}

func (f *fakeOrgs) DescribeAccount(ctx context.Context, accountID string) (*awsapi.Account, error) {
	if f.describeAccount != nil {
		return f.describeAccount(ctx, accountID)
	}
	return &awsapi.Account{ID: accountID, Name: "account-" + accountID}, nil
}

// fakeHistory implements CleanupHistoryStore and records every call.
type fakeHistory struct {
	mu       sync.Mutex
	recorded []models.CleanupResult
	recent   []models.CleanupResult
	recErr   error
	listErr  error
}

func (f *fakeHistory) RecordCleanup(_ context.Context, result models.CleanupResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recErr != nil {
		return f.recErr
	}
	f.recorded = append(f.recorded, result)
	return nil
}

func (f *fakeHistory) RecentCleanups(_ context.Context, limit int) ([]models.CleanupResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}
