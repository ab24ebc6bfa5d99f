package models

import (
	"fmt"
	"time"
)

// StatusLevel classifies the outcome of a status check, ordered by severity.
type StatusLevel string

const (
	StatusHealthy          StatusLevel = "HEALTHY"
	StatusWarning          StatusLevel = "WARNING"
	StatusCritical         StatusLevel = "CRITICAL"
	StatusConnectionFailed StatusLevel = "CONNECTION_FAILED"
)

// severityRank orders levels for aggregation. Higher is worse.
var severityRank = map[StatusLevel]int{
	StatusHealthy:          0,
	StatusWarning:          1,
	StatusCritical:         2,
	StatusConnectionFailed: 3,
}

// Severity returns the aggregation rank of the level. Unknown levels rank
// above everything so they are never silently treated as healthy.
func (l StatusLevel) Severity() int {
	if r, ok := severityRank[l]; ok {
		return r
	}
	return len(severityRank)
}

// WorseOf returns the more severe of two levels.
func WorseOf(a, b StatusLevel) StatusLevel {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// Principal type constants for account assignments.
const (
	PrincipalTypeUser  = "USER"
	PrincipalTypeGroup = "GROUP"
)

// ---------------------------------------------------------------------------
// Base result
// ---------------------------------------------------------------------------

// BaseStatusResult is the common shape of every check outcome. Timestamp is
// set at construction; Errors is append-only.
type BaseStatusResult struct {
	Timestamp time.Time      `json:"timestamp"`
	Status    StatusLevel    `json:"status"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Errors    []string       `json:"errors,omitempty"`
}

// NewBaseStatusResult creates a result stamped with the current time.
func NewBaseStatusResult(status StatusLevel, message string) BaseStatusResult {
	return BaseStatusResult{
		Timestamp: time.Now().UTC(),
		Status:    status,
		Message:   message,
		Details:   map[string]any{},
	}
}

// AddError appends an error description to the result.
func (r *BaseStatusResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// AddDetail records a named detail value.
func (r *BaseStatusResult) AddDetail(key string, value any) {
	if r.Details == nil {
		r.Details = map[string]any{}
	}
	r.Details[key] = value
}

// Base returns the embedded base result; it makes BaseStatusResult satisfy
// StatusResult so synthesized failure results need no wrapper type.
func (r *BaseStatusResult) Base() *BaseStatusResult { return r }

// StatusResult is implemented by every check result type.
type StatusResult interface {
	Base() *BaseStatusResult
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

// HealthStatus reports Identity Center connectivity and service availability.
type HealthStatus struct {
	BaseStatusResult
	ServiceAvailable    bool       `json:"service_available"`
	ConnectivityStatus  string     `json:"connectivity_status"`
	ResponseTimeMs      float64    `json:"response_time_ms"`
	LastSuccessfulCheck *time.Time `json:"last_successful_check,omitempty"`
}

// ---------------------------------------------------------------------------
// Orphaned assignments
// ---------------------------------------------------------------------------

// OrphanedAssignment is an account assignment whose principal no longer
// exists in the Identity Store.
type OrphanedAssignment struct {
	AssignmentID      string     `json:"assignment_id"`
	PermissionSetARN  string     `json:"permission_set_arn"`
	PermissionSetName string     `json:"permission_set_name"`
	AccountID         string     `json:"account_id"`
	AccountName       string     `json:"account_name"`
	PrincipalID       string     `json:"principal_id"`
	PrincipalType     string     `json:"principal_type"`
	PrincipalName     string     `json:"principal_name,omitempty"`
	ErrorMessage      string     `json:"error_message"`
	CreatedDate       time.Time  `json:"created_date"`
	LastAccessed      *time.Time `json:"last_accessed,omitempty"`
}

// AssignmentKey builds the composite key that uniquely identifies one
// (permission set, principal, account) triple.
func AssignmentKey(permissionSetARN, principalID, accountID string) string {
	return fmt.Sprintf("%s|%s|%s", permissionSetARN, principalID, accountID)
}

// OrphanedAssignmentStatus is the result of one detection run.
type OrphanedAssignmentStatus struct {
	BaseStatusResult
	OrphanedAssignments []OrphanedAssignment `json:"orphaned_assignments"`
	CleanupAvailable    bool                 `json:"cleanup_available"`
	LastCleanup         *time.Time           `json:"last_cleanup,omitempty"`
	CleanupHistory      []CleanupResult      `json:"cleanup_history,omitempty"`
}

// Count returns the number of orphaned assignments found.
func (s *OrphanedAssignmentStatus) Count() int {
	return len(s.OrphanedAssignments)
}

// CleanupResult accumulates the outcome of one cleanup invocation. Each
// assignment is processed independently, so successful and failed counts
// never exceed the attempted total.
type CleanupResult struct {
	TotalAttempted     int       `json:"total_attempted"`
	SuccessfulCleanups int       `json:"successful_cleanups"`
	FailedCleanups     int       `json:"failed_cleanups"`
	CleanupErrors      []string  `json:"cleanup_errors,omitempty"`
	CleanedAssignments []string  `json:"cleaned_assignments,omitempty"`
	DurationSeconds    float64   `json:"duration_seconds"`
	StartedAt          time.Time `json:"started_at"`
}

// SuccessRate returns the percentage of attempted cleanups that succeeded.
func (r *CleanupResult) SuccessRate() float64 {
	if r.TotalAttempted == 0 {
		return 0
	}
	return float64(r.SuccessfulCleanups) / float64(r.TotalAttempted) * 100
}

// ---------------------------------------------------------------------------
// Provisioning
// ---------------------------------------------------------------------------

// Provisioning operation status values. Transitions only flow
// IN_PROGRESS -> SUCCEEDED or IN_PROGRESS -> FAILED and are terminal once set.
const (
	OperationInProgress = "IN_PROGRESS"
	OperationSucceeded  = "SUCCEEDED"
	OperationFailed     = "FAILED"
)

// ProvisioningOperation tracks one asynchronous permission-set provisioning
// job.
type ProvisioningOperation struct {
	OperationID         string     `json:"operation_id"`
	OperationType       string     `json:"operation_type"`
	Status              string     `json:"status"`
	TargetID            string     `json:"target_id"`
	TargetType          string     `json:"target_type"`
	CreatedDate         time.Time  `json:"created_date"`
	CompletedDate       *time.Time `json:"completed_date,omitempty"`
	FailureReason       string     `json:"failure_reason,omitempty"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
}

// IsTerminal reports whether the operation has reached a final status.
func (o *ProvisioningOperation) IsTerminal() bool {
	return o.Status == OperationSucceeded || o.Status == OperationFailed
}

// ProvisioningStatus is the result of one monitor run.
type ProvisioningStatus struct {
	BaseStatusResult
	ActiveOperations    []ProvisioningOperation `json:"active_operations"`
	FailedOperations    []ProvisioningOperation `json:"failed_operations"`
	CompletedOperations []ProvisioningOperation `json:"completed_operations"`
	PendingCount        int                     `json:"pending_count"`
	EstimatedCompletion *time.Time              `json:"estimated_completion,omitempty"`
}

// ---------------------------------------------------------------------------
// Summary statistics
// ---------------------------------------------------------------------------

// SummaryStatistics aggregates deployment-wide counts. Creation-date maps may
// be sparser than the corresponding counts when individual dates failed to
// parse.
type SummaryStatistics struct {
	TotalUsers                 int                  `json:"total_users"`
	TotalGroups                int                  `json:"total_groups"`
	TotalPermissionSets        int                  `json:"total_permission_sets"`
	TotalAssignments           int                  `json:"total_assignments"`
	ActiveAccounts             int                  `json:"active_accounts"`
	LastUpdated                time.Time            `json:"last_updated"`
	UserCreationDates          map[string]time.Time `json:"user_creation_dates,omitempty"`
	GroupCreationDates         map[string]time.Time `json:"group_creation_dates,omitempty"`
	PermissionSetCreationDates map[string]time.Time `json:"permission_set_creation_dates,omitempty"`
}

// TotalPrincipals returns the combined user and group count.
func (s *SummaryStatistics) TotalPrincipals() int {
	return s.TotalUsers + s.TotalGroups
}

// AssignmentsPerAccount returns the mean assignment count per active account.
func (s *SummaryStatistics) AssignmentsPerAccount() float64 {
	if s.ActiveAccounts == 0 {
		return 0
	}
	return float64(s.TotalAssignments) / float64(s.ActiveAccounts)
}

// AssignmentsPerPermissionSet returns the mean assignment count per
// permission set.
func (s *SummaryStatistics) AssignmentsPerPermissionSet() float64 {
	if s.TotalPermissionSets == 0 {
		return 0
	}
	return float64(s.TotalAssignments) / float64(s.TotalPermissionSets)
}

// OldestUserCreation returns the earliest known user creation date, or nil
// when no dates were collected.
func (s *SummaryStatistics) OldestUserCreation() *time.Time {
	var oldest *time.Time
	for _, d := range s.UserCreationDates {
		d := d
		if oldest == nil || d.Before(*oldest) {
			oldest = &d
		}
	}
	return oldest
}

// NewestUserCreation returns the latest known user creation date, or nil when
// no dates were collected.
func (s *SummaryStatistics) NewestUserCreation() *time.Time {
	var newest *time.Time
	for _, d := range s.UserCreationDates {
		d := d
		if newest == nil || d.After(*newest) {
			newest = &d
		}
	}
	return newest
}

// SummaryStatus wraps the statistics aggregate in a check result.
type SummaryStatus struct {
	BaseStatusResult
	Statistics SummaryStatistics `json:"statistics"`
}

// ---------------------------------------------------------------------------
// Sync and resource probes
// ---------------------------------------------------------------------------

// SyncStatus reports whether the directory backing Identity Center responds.
type SyncStatus struct {
	BaseStatusResult
	UsersReachable  bool `json:"users_reachable"`
	GroupsReachable bool `json:"groups_reachable"`
}

// ResourceStatus reports core resource inventory counts.
type ResourceStatus struct {
	BaseStatusResult
	InstanceCount      int `json:"instance_count"`
	PermissionSetCount int `json:"permission_set_count"`
	AccountCount       int `json:"account_count"`
}

// ---------------------------------------------------------------------------
// Report
// ---------------------------------------------------------------------------

// StatusReport is the aggregate produced by one orchestration pass. All
// sub-results are always populated, even when their checkers failed.
type StatusReport struct {
	Timestamp                time.Time                 `json:"timestamp"`
	OverallHealth            *HealthStatus             `json:"overall_health"`
	ProvisioningStatus       *ProvisioningStatus       `json:"provisioning_status"`
	OrphanedAssignmentStatus *OrphanedAssignmentStatus `json:"orphaned_assignment_status"`
	SyncStatus               *SyncStatus               `json:"sync_status"`
	SummaryStatistics        *SummaryStatus            `json:"summary_statistics"`
	CheckDurationSeconds     float64                   `json:"check_duration_seconds"`
}
