package awsapi

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/identitystore"
	idtypes "github.com/aws/aws-sdk-go-v2/service/identitystore/types"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/ssoadmin"
	ssotypes "github.com/aws/aws-sdk-go-v2/service/ssoadmin/types"
	"golang.org/x/time/rate"
)

// defaultAPIRate caps calls per client to stay clear of Identity Center
// throttling. Each client owns its own limiter rather than sharing a
// process-wide timestamp.
var defaultAPIRate = rate.Limit(10)

func newLimiter() *rate.Limiter {
	return rate.NewLimiter(defaultAPIRate, 1)
}

func waitLimiter(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}

// AdminClient implements IdentityCenterAdmin over the sso-admin SDK.
type AdminClient struct {
	sso     *ssoadmin.Client
	limiter *rate.Limiter
}

// NewAdminClient creates an IdentityCenterAdmin backed by the SDK client.
func NewAdminClient(sso *ssoadmin.Client) *AdminClient {
	return &AdminClient{sso: sso, limiter: newLimiter()}
}

// ListInstances returns every Identity Center instance visible to the caller.
func (c *AdminClient) ListInstances(ctx context.Context) ([]Instance, error) {
	var instances []Instance
	p := ssoadmin.NewListInstancesPaginator(c.sso, &ssoadmin.ListInstancesInput{})
	for p.HasMorePages() {
		if err := waitLimiter(ctx, c.limiter); err != nil {
			return nil, err
		}
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ListInstances: %w", err)
		}
		for _, inst := range out.Instances {
			instances = append(instances, Instance{
				InstanceARN:     aws.ToString(inst.InstanceArn),
				IdentityStoreID: aws.ToString(inst.IdentityStoreId),
			})
		}
	}
	return instances, nil
}

// ListPermissionSets returns the ARNs of all permission sets in the instance.
func (c *AdminClient) ListPermissionSets(ctx context.Context, instanceARN string) ([]string, error) {
	var arns []string
	p := ssoadmin.NewListPermissionSetsPaginator(c.sso, &ssoadmin.ListPermissionSetsInput{
		InstanceArn: &instanceARN,
	})
	for p.HasMorePages() {
		if err := waitLimiter(ctx, c.limiter); err != nil {
			return nil, err
		}
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ListPermissionSets: %w", err)
		}
		arns = append(arns, out.PermissionSets...)
	}
	return arns, nil
}

// DescribePermissionSet returns the detail view of one permission set.
func (c *AdminClient) DescribePermissionSet(ctx context.Context, instanceARN, permissionSetARN string) (*PermissionSet, error) {
	if err := waitLimiter(ctx, c.limiter); err != nil {
		return nil, err
	}
	out, err := c.sso.DescribePermissionSet(ctx, &ssoadmin.DescribePermissionSetInput{
		InstanceArn:      &instanceARN,
		PermissionSetArn: &permissionSetARN,
	})
	if err != nil {
		return nil, fmt.Errorf("DescribePermissionSet: %w", err)
	}
	if out.PermissionSet == nil {
		return nil, fmt.Errorf("DescribePermissionSet returned nil for %s", permissionSetARN)
	}
	return &PermissionSet{
		ARN:         aws.ToString(out.PermissionSet.PermissionSetArn),
		Name:        aws.ToString(out.PermissionSet.Name),
		Description: aws.ToString(out.PermissionSet.Description),
		CreatedDate: out.PermissionSet.CreatedDate,
	}, nil
}

// ListAccountsForProvisionedPermissionSet returns the account IDs the
// permission set is provisioned to.
func (c *AdminClient) ListAccountsForProvisionedPermissionSet(ctx context.Context, instanceARN, permissionSetARN string) ([]string, error) {
	var accounts []string
	p := ssoadmin.NewListAccountsForProvisionedPermissionSetPaginator(c.sso,
		&ssoadmin.ListAccountsForProvisionedPermissionSetInput{
			InstanceArn:      &instanceARN,
			PermissionSetArn: &permissionSetARN,
		})
	for p.HasMorePages() {
		if err := waitLimiter(ctx, c.limiter); err != nil {
			return nil, err
		}
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ListAccountsForProvisionedPermissionSet: %w", err)
		}
		accounts = append(accounts, out.AccountIds...)
	}
	return accounts, nil
}

// ListAccountAssignments returns every assignment of the permission set in
// the account.
func (c *AdminClient) ListAccountAssignments(ctx context.Context, instanceARN, accountID, permissionSetARN string) ([]AccountAssignment, error) {
	var assignments []AccountAssignment
	p := ssoadmin.NewListAccountAssignmentsPaginator(c.sso, &ssoadmin.ListAccountAssignmentsInput{
		InstanceArn:      &instanceARN,
		AccountId:        &accountID,
		PermissionSetArn: &permissionSetARN,
	})
	for p.HasMorePages() {
		if err := waitLimiter(ctx, c.limiter); err != nil {
			return nil, err
		}
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ListAccountAssignments: %w", err)
		}
		for _, a := range out.AccountAssignments {
			assignments = append(assignments, AccountAssignment{
				AccountID:        aws.ToString(a.AccountId),
				PermissionSetARN: aws.ToString(a.PermissionSetArn),
				PrincipalID:      aws.ToString(a.PrincipalId),
				PrincipalType:    string(a.PrincipalType),
			})
		}
	}
	return assignments, nil
}

// DeleteAccountAssignment removes one assignment. The call is asynchronous
// on the AWS side; the returned request tracks to completion independently.
func (c *AdminClient) DeleteAccountAssignment(ctx context.Context, instanceARN, accountID, permissionSetARN, principalID, principalType string) error {
	if err := waitLimiter(ctx, c.limiter); err != nil {
		return err
	}
	_, err := c.sso.DeleteAccountAssignment(ctx, &ssoadmin.DeleteAccountAssignmentInput{
		InstanceArn:      &instanceARN,
		PermissionSetArn: &permissionSetARN,
		PrincipalId:      &principalID,
		PrincipalType:    ssotypes.PrincipalType(principalType),
		TargetId:         &accountID,
		TargetType:       ssotypes.TargetTypeAwsAccount,
	})
	if err != nil {
		return fmt.Errorf("DeleteAccountAssignment: %w", err)
	}
	return nil
}

// StoreClient implements IdentityStore over the identitystore SDK. The store
// ID is bound at construction.
type StoreClient struct {
	ids     *identitystore.Client
	storeID string
	limiter *rate.Limiter
}

// NewStoreClient creates an IdentityStore for the given store ID.
func NewStoreClient(ids *identitystore.Client, storeID string) *StoreClient {
	return &StoreClient{ids: ids, storeID: storeID, limiter: newLimiter()}
}

// DescribeUser returns one user record, or an error classifiable as
// not-found when the user is gone.
func (c *StoreClient) DescribeUser(ctx context.Context, userID string) (*User, error) {
	if err := waitLimiter(ctx, c.limiter); err != nil {
		return nil, err
	}
	out, err := c.ids.DescribeUser(ctx, &identitystore.DescribeUserInput{
		IdentityStoreId: &c.storeID,
		UserId:          &userID,
	})
	if err != nil {
		return nil, fmt.Errorf("DescribeUser: %w", err)
	}
	return &User{
		ID:          aws.ToString(out.UserId),
		UserName:    aws.ToString(out.UserName),
		DisplayName: aws.ToString(out.DisplayName),
	}, nil
}

// DescribeGroup returns one group record.
func (c *StoreClient) DescribeGroup(ctx context.Context, groupID string) (*Group, error) {
	if err := waitLimiter(ctx, c.limiter); err != nil {
		return nil, err
	}
	out, err := c.ids.DescribeGroup(ctx, &identitystore.DescribeGroupInput{
		IdentityStoreId: &c.storeID,
		GroupId:         &groupID,
	})
	if err != nil {
		return nil, fmt.Errorf("DescribeGroup: %w", err)
	}
	return &Group{
		ID:          aws.ToString(out.GroupId),
		DisplayName: aws.ToString(out.DisplayName),
	}, nil
}

// ListUsers returns every user in the store.
func (c *StoreClient) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	p := identitystore.NewListUsersPaginator(c.ids, &identitystore.ListUsersInput{
		IdentityStoreId: &c.storeID,
	})
	for p.HasMorePages() {
		if err := waitLimiter(ctx, c.limiter); err != nil {
			return nil, err
		}
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ListUsers: %w", err)
		}
		for _, u := range out.Users {
			users = append(users, User{
				ID:          aws.ToString(u.UserId),
				UserName:    aws.ToString(u.UserName),
				DisplayName: aws.ToString(u.DisplayName),
				CreatedDate: externalCreatedDate(u.ExternalIds),
			})
		}
	}
	return users, nil
}

// ListGroups returns every group in the store.
func (c *StoreClient) ListGroups(ctx context.Context) ([]Group, error) {
	var groups []Group
	p := identitystore.NewListGroupsPaginator(c.ids, &identitystore.ListGroupsInput{
		IdentityStoreId: &c.storeID,
	})
	for p.HasMorePages() {
		if err := waitLimiter(ctx, c.limiter); err != nil {
			return nil, err
		}
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ListGroups: %w", err)
		}
		for _, g := range out.Groups {
			groups = append(groups, Group{
				ID:          aws.ToString(g.GroupId),
				DisplayName: aws.ToString(g.DisplayName),
			})
		}
	}
	return groups, nil
}

// The identitystore API does not expose creation timestamps directly; some
// external directories surface them through external IDs. Absent dates are
// fine, the statistics collector drops unparseable entries.
func externalCreatedDate(_ []idtypes.ExternalId) string {
	return ""
}

// OrgClient implements OrgDirectory over the organizations SDK.
type OrgClient struct {
	orgs    *organizations.Client
	limiter *rate.Limiter
}

// NewOrgClient creates an OrgDirectory backed by the SDK client.
func NewOrgClient(orgs *organizations.Client) *OrgClient {
	return &OrgClient{orgs: orgs, limiter: newLimiter()}
}

// ListAccounts returns every account in the organization.
func (c *OrgClient) ListAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	p := organizations.NewListAccountsPaginator(c.orgs, &organizations.ListAccountsInput{})
	for p.HasMorePages() {
		if err := waitLimiter(ctx, c.limiter); err != nil {
			return nil, err
		}
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ListAccounts: %w", err)
		}
		for _, a := range out.Accounts {
			accounts = append(accounts, Account{
				ID:     aws.ToString(a.Id),
				Name:   aws.ToString(a.Name),
				Status: string(a.Status),
			})
		}
	}
	return accounts, nil
}

// DescribeAccount returns one account record.
func (c *OrgClient) DescribeAccount(ctx context.Context, accountID string) (*Account, error) {
	if err := waitLimiter(ctx, c.limiter); err != nil {
		return nil, err
	}
	out, err := c.orgs.DescribeAccount(ctx, &organizations.DescribeAccountInput{
		AccountId: &accountID,
	})
	if err != nil {
		return nil, fmt.Errorf("DescribeAccount: %w", err)
	}
	if out.Account == nil {
		return nil, fmt.Errorf("DescribeAccount returned nil for %s", accountID)
	}
	return &Account{
		ID:     aws.ToString(out.Account.Id),
		Name:   aws.ToString(out.Account.Name),
		Status: string(out.Account.Status),
	}, nil
}

// Interface conformance checks.
var (
	_ IdentityCenterAdmin = (*AdminClient)(nil)
	_ IdentityStore       = (*StoreClient)(nil)
	_ OrgDirectory        = (*OrgClient)(nil)
)
