package store

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID        int64
	FullName  string
	Email     string
	AvatarURL string
	Role      Role
	CreatedAt time.Time
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

type ProjectStatus string

const (
	ProjectActive      ProjectStatus = "active"
	ProjectDevelopment ProjectStatus = "development"
	ProjectArchive     ProjectStatus = "archive"
	ProjectIdeation    ProjectStatus = "ideation"
)

var ProjectStatuses = []ProjectStatus{ProjectActive, ProjectDevelopment, ProjectArchive, ProjectIdeation}

type Project struct {
	ID          int64
	Name        string
	Description string
	Status      ProjectStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProjectStats carries the fields derived from a project's tasks and
// accounts. None of them are persisted.
type ProjectStats struct {
	Project
	Progress    int // percent of tasks done
	TaskCount   int
	TeamSize    int
	Domains     []string
	SocialLinks []string
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

var TaskPriorities = []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
)

var TaskStatuses = []TaskStatus{StatusTodo, StatusInProgress, StatusDone}

// NormalizeTaskStatus maps the legacy "completed" value onto done.
func NormalizeTaskStatus(s string) TaskStatus {
	if s == "completed" {
		return StatusDone
	}
	return TaskStatus(s)
}

type Task struct {
	ID          int64
	Title       string
	Description string
	ProjectID   *int64
	AssigneeID  *int64
	Priority    TaskPriority
	Status      TaskStatus
	Deadline    *time.Time
	CreatedBy   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskInput is the writable part of a task.
type TaskInput struct {
	Title       string
	Description string
	ProjectID   *int64
	AssigneeID  *int64
	Priority    TaskPriority
	Status      TaskStatus
	Deadline    *time.Time
}

type Comment struct {
	ID        int64
	TaskID    int64
	AuthorID  int64
	Author    string
	Body      string
	CreatedAt time.Time
}

type AccountType string

const (
	AccountDomain      AccountType = "Domain"
	AccountSocialMedia AccountType = "SocialMedia"
	AccountEmail       AccountType = "Email"
	AccountRepository  AccountType = "Repository"
	AccountService     AccountType = "Service"
)

var AccountTypes = []AccountType{AccountDomain, AccountSocialMedia, AccountEmail, AccountRepository, AccountService}

var SocialPlatforms = []string{"Facebook", "Instagram", "Twitter", "LinkedIn", "TikTok", "YouTube", "Pinterest", "Reddit", "Other"}

type Account struct {
	ID          string
	Name        string
	Type        AccountType
	Platform    string // social network, empty unless set
	URL         string
	Username    string
	Password    string
	ExpiryDate  *time.Time
	ProjectID   *int64
	ProjectName string // joined from projects, empty without a project
	CreatedBy   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Domain  *DomainDetails
	Social  *SocialMediaDetails
	Service *ServiceDetails
}

type DomainDetails struct {
	HostingProvider string
	HostingPlan     string
	Registrar       string
	YearlyCost      *float64
}

type SocialMediaDetails struct {
	Platform   string
	Followers  int64
	ProfileURL string
}

type ServiceDetails struct {
	Provider     string
	Plan         string
	MonthlyCost  float64
	BillingCycle string
}

// AccountInput carries validated form values for creating or editing an
// account. Optional detail fields only matter for the matching type.
type AccountInput struct {
	Name       string
	Type       AccountType
	Platform   string
	URL        string
	Username   string
	Password   string
	ExpiryDate *time.Time
	ProjectID  *int64

	HostingProvider string
	HostingPlan     string
	Registrar       string
	YearlyCost      *float64

	Followers  int64
	ProfileURL string

	ServiceProvider string
	ServicePlan     string
	MonthlyCost     *float64
	BillingCycle    string
}

type Prompt struct {
	ID          int64
	Title       string
	Content     string
	Description string
	Tags        []string
	ProjectID   *int64
	CreatedBy   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type PromptInput struct {
	Title       string
	Content     string
	Description string
	Tags        []string
	ProjectID   *int64
}

type Notification struct {
	ID          int64
	UserID      int64
	Title       string
	Description string
	Variant     string
	Read        bool
	CreatedAt   time.Time
}

type Invitation struct {
	ID        int64
	Email     string
	Role      Role
	InvitedBy int64
	Status    string
	CreatedAt time.Time
}

type Setting struct {
	Key   string
	Value string
}
