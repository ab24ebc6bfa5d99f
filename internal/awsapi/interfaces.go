// Package awsapi defines the external capability interfaces the status
// engine consumes, plus their AWS SDK implementations. Checkers depend on
// the interfaces only; construction and credentials stay in the entry points.
package awsapi

import (
	"context"
	"time"
)

// Instance identifies one Identity Center deployment.
type Instance struct {
	InstanceARN     string `json:"instance_arn"`
	IdentityStoreID string `json:"identity_store_id"`
}

// PermissionSet is the detail view of a permission set.
type PermissionSet struct {
	ARN         string     `json:"arn"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatedDate *time.Time `json:"created_date,omitempty"`
}

// AccountAssignment binds a principal to a permission set in one account.
type AccountAssignment struct {
	AccountID        string `json:"account_id"`
	PermissionSetARN string `json:"permission_set_arn"`
	PrincipalID      string `json:"principal_id"`
	PrincipalType    string `json:"principal_type"`
}

// User is a directory user record. CreatedDate is a raw string because
// upstream directories emit several formats; callers parse it tolerantly.
type User struct {
	ID          string `json:"id"`
	UserName    string `json:"user_name"`
	DisplayName string `json:"display_name,omitempty"`
	CreatedDate string `json:"created_date,omitempty"`
}

// Group is a directory group record.
type Group struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	CreatedDate string `json:"created_date,omitempty"`
}

// Account is an organization member account.
type Account struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

// IdentityCenterAdmin abstracts sso-admin operations used by the checkers.
type IdentityCenterAdmin interface {
	ListInstances(ctx context.Context) ([]Instance, error)
	ListPermissionSets(ctx context.Context, instanceARN string) ([]string, error)
	DescribePermissionSet(ctx context.Context, instanceARN, permissionSetARN string) (*PermissionSet, error)
	ListAccountsForProvisionedPermissionSet(ctx context.Context, instanceARN, permissionSetARN string) ([]string, error)
	ListAccountAssignments(ctx context.Context, instanceARN, accountID, permissionSetARN string) ([]AccountAssignment, error)
	DeleteAccountAssignment(ctx context.Context, instanceARN, accountID, permissionSetARN, principalID, principalType string) error
}

// IdentityStore abstracts the directory backing Identity Center. The store
// ID is bound at construction.
type IdentityStore interface {
	DescribeUser(ctx context.Context, userID string) (*User, error)
	DescribeGroup(ctx context.Context, groupID string) (*Group, error)
	ListUsers(ctx context.Context) ([]User, error)
	ListGroups(ctx context.Context) ([]Group, error)
}

// OrgDirectory abstracts the organization account hierarchy.
type OrgDirectory interface {
	ListAccounts(ctx context.Context) ([]Account, error)
	DescribeAccount(ctx context.Context, accountID string) (*Account, error)
}
