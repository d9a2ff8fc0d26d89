package models

import (
	"database/sql/driver"
	"fmt"
)

// ProjectType identifies the content project variant.
type ProjectType string

const (
	ProjectTypeVideo ProjectType = "VIDEO"
	ProjectTypePrint ProjectType = "PRINT"
)

func (t ProjectType) Valid() bool {
	switch t {
	case ProjectTypeVideo, ProjectTypePrint:
		return true
	}
	return false
}

// JobType returns the job type used to publish a project of this type.
func (t ProjectType) JobType() JobType {
	switch t {
	case ProjectTypeVideo:
		return JobTypeVideoPublish
	case ProjectTypePrint:
		return JobTypePrintPublish
	}
	return ""
}

func (t ProjectType) Value() (driver.Value, error) { return enumValue("project type", string(t), t.Valid()) }
func (t *ProjectType) Scan(src any) error {
	return scanEnum(src, "project type", func(s string) bool { *t = ProjectType(s); return t.Valid() })
}

// ProjectStatus is the lifecycle state of a ContentProject.
type ProjectStatus string

const (
	ProjectStatusDraft      ProjectStatus = "DRAFT"
	ProjectStatusReady      ProjectStatus = "READY"
	ProjectStatusPublishing ProjectStatus = "PUBLISHING"
	ProjectStatusPublished  ProjectStatus = "PUBLISHED"
	ProjectStatusFailed     ProjectStatus = "FAILED"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusDraft, ProjectStatusReady, ProjectStatusPublishing, ProjectStatusPublished, ProjectStatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a project may move from s to next. Any
// settled state may start a new attempt; PUBLISHING may only settle.
func (s ProjectStatus) CanTransition(next ProjectStatus) bool {
	switch s {
	case ProjectStatusDraft, ProjectStatusReady, ProjectStatusPublished, ProjectStatusFailed:
		return next == ProjectStatusPublishing
	case ProjectStatusPublishing:
		return next == ProjectStatusPublished || next == ProjectStatusFailed
	}
	return false
}

func (s ProjectStatus) Value() (driver.Value, error) {
	return enumValue("project status", string(s), s.Valid())
}
func (s *ProjectStatus) Scan(src any) error {
	return scanEnum(src, "project status", func(v string) bool { *s = ProjectStatus(v); return s.Valid() })
}

// JobType is the kind of asynchronous operation a Job records.
type JobType string

const (
	JobTypeVideoPublish JobType = "VIDEO_PUBLISH"
	JobTypePrintPublish JobType = "PRINT_PUBLISH"
)

func (t JobType) Valid() bool {
	switch t {
	case JobTypeVideoPublish, JobTypePrintPublish:
		return true
	}
	return false
}

func (t JobType) Value() (driver.Value, error) { return enumValue("job type", string(t), t.Valid()) }
func (t *JobType) Scan(src any) error {
	return scanEnum(src, "job type", func(s string) bool { *t = JobType(s); return t.Valid() })
}

// JobStatus moves PENDING -> PROCESSING -> COMPLETED|FAILED.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a job may move from s to next. FAILED may
// re-enter PROCESSING when the queue redelivers the same job id. PENDING
// goes straight to FAILED when its task can never run.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing || next == JobStatusFailed
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed
	case JobStatusFailed:
		return next == JobStatusProcessing
	case JobStatusCompleted:
		return false
	}
	return false
}

// Terminal reports whether no further attempt will change the job.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

func (s JobStatus) Value() (driver.Value, error) { return enumValue("job status", string(s), s.Valid()) }
func (s *JobStatus) Scan(src any) error {
	return scanEnum(src, "job status", func(v string) bool { *s = JobStatus(v); return s.Valid() })
}

// ScheduleStatus is PENDING until the trigger fires, then EXECUTED.
type ScheduleStatus string

const (
	ScheduleStatusPending  ScheduleStatus = "PENDING"
	ScheduleStatusExecuted ScheduleStatus = "EXECUTED"
)

func (s ScheduleStatus) Valid() bool {
	switch s {
	case ScheduleStatusPending, ScheduleStatusExecuted:
		return true
	}
	return false
}

func (s ScheduleStatus) Value() (driver.Value, error) {
	return enumValue("schedule status", string(s), s.Valid())
}
func (s *ScheduleStatus) Scan(src any) error {
	return scanEnum(src, "schedule status", func(v string) bool { *s = ScheduleStatus(v); return s.Valid() })
}

func enumValue(kind, v string, valid bool) (driver.Value, error) {
	if !valid {
		return nil, fmt.Errorf("invalid %s %q", kind, v)
	}
	return v, nil
}

func scanEnum(src any, kind string, set func(string) bool) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into %s", src, kind)
	}
	if !set(s) {
		return fmt.Errorf("invalid %s %q", kind, s)
	}
	return nil
}
