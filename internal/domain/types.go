package domain

import "time"

// Worklog is a single time-tracking entry pulled from one of the two Jira
// instances. ID is the storage primary key and must be stable across passes:
// the matching engine tracks claimed worklogs by it, never by object identity.
type Worklog struct {
    ID               int64
    ExtID            string
    JiraInstance     string
    IssueKey         string
    IssueSummary     string
    IssueType        string
    AuthorEmail      string
    AuthorName       string
    StartedAt        time.Time
    TimeSpentSeconds int
    ParentKey        string
    ParentName       string
    ParentType       string
}

func (w Worklog) Hours() float64 { return float64(w.TimeSpentSeconds) / 3600 }

// WorklogGroup is a set of worklogs from both instances that record the same
// underlying unit of work, keyed by the derived linking key. A group with
// worklogs on only one side is a valid "solitary" group and signals a
// discrepancy, not bad data.
type WorklogGroup struct {
    LinkingKey        string
    PrimaryWorklogs   []Worklog
    SecondaryWorklogs []Worklog
    PrimaryHours      float64
    SecondaryHours    float64
    Delta             float64
    PrimaryIssues     []string
    SecondaryIssues   []string
    IsExcluded        bool
}

// GenericIssueRule configures a container issue on the primary side that
// collects worklogs of the listed secondary-side issue types. IssueType may
// hold several comma-separated type names. A nil TeamID means the rule applies
// globally; team-scoped rules claim worklogs before global ones.
type GenericIssueRule struct {
    ID          int64
    IssueCode   string
    IssueType   string
    TeamID      *int64
    Description string
}

type ExclusionPattern struct {
    ID      int64
    Pattern string
    Reason  string
}

// GroupReport is the per-group row of a reconciliation report.
type GroupReport struct {
    LinkingKey      string   `json:"linking_key"`
    PrimaryHours    float64  `json:"primary_hours"`
    SecondaryHours  float64  `json:"secondary_hours"`
    Delta           float64  `json:"delta"`
    DeltaPercent    float64  `json:"delta_percent"`
    PrimaryCount    int      `json:"primary_count"`
    SecondaryCount  int      `json:"secondary_count"`
    PrimaryIssues   []string `json:"primary_issues"`
    SecondaryIssues []string `json:"secondary_issues"`
    IsExcluded      bool     `json:"is_excluded"`
    IsSolitary      bool     `json:"is_solitary"`
    IsGeneric       bool     `json:"is_generic"`
}

type ReconReport struct {
    From                time.Time     `json:"from"`
    To                  time.Time     `json:"to"`
    Algorithm           string        `json:"algorithm"`
    Groups              []GroupReport `json:"groups"`
    TotalPrimaryHours   float64       `json:"total_primary_hours"`
    TotalSecondaryHours float64       `json:"total_secondary_hours"`
    SolitaryGroups      int           `json:"solitary_groups"`
    ExcludedGroups      int           `json:"excluded_groups"`
    GenericGroups       int           `json:"generic_groups"`
}
