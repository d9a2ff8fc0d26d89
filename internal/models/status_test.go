package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to ProjectStatus
		want     bool
	}{
		{ProjectStatusDraft, ProjectStatusPublishing, true},
		{ProjectStatusReady, ProjectStatusPublishing, true},
		{ProjectStatusPublishing, ProjectStatusPublished, true},
		{ProjectStatusPublishing, ProjectStatusFailed, true},
		{ProjectStatusFailed, ProjectStatusPublishing, true},
		{ProjectStatusPublished, ProjectStatusPublishing, true},
		{ProjectStatusPublished, ProjectStatusFailed, false},
		{ProjectStatusPublishing, ProjectStatusPublishing, false},
		{ProjectStatusDraft, ProjectStatusPublished, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestJobStatus_CanTransition(t *testing.T) {
	assert.True(t, JobStatusPending.CanTransition(JobStatusProcessing))
	assert.True(t, JobStatusProcessing.CanTransition(JobStatusCompleted))
	assert.True(t, JobStatusProcessing.CanTransition(JobStatusFailed))
	assert.True(t, JobStatusFailed.CanTransition(JobStatusProcessing))
	assert.True(t, JobStatusPending.CanTransition(JobStatusFailed))

	assert.False(t, JobStatusPending.CanTransition(JobStatusCompleted))
	assert.False(t, JobStatusCompleted.CanTransition(JobStatusProcessing))
	assert.False(t, JobStatusCompleted.CanTransition(JobStatusFailed))

	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.False(t, JobStatusProcessing.Terminal())
	assert.False(t, JobStatusPending.Terminal())
}

func TestEnumValue_RejectsUnknown(t *testing.T) {
	_, err := JobStatus("DONE").Value()
	assert.Error(t, err)

	v, err := JobStatusCompleted.Value()
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", v)

	_, err = ProjectType("AUDIO").Value()
	assert.Error(t, err)
}

func TestEnumScan(t *testing.T) {
	var s ScheduleStatus
	require.NoError(t, s.Scan([]byte("EXECUTED")))
	assert.Equal(t, ScheduleStatusExecuted, s)

	var js JobStatus
	assert.Error(t, js.Scan("done"))
	assert.Error(t, js.Scan(42))
}

func TestTypeMapping(t *testing.T) {
	assert.Equal(t, JobTypeVideoPublish, ProjectTypeVideo.JobType())
	assert.Equal(t, JobTypePrintPublish, ProjectTypePrint.JobType())
	assert.Equal(t, JobType(""), ProjectType("AUDIO").JobType())
}

func TestVariants_RoundTrip(t *testing.T) {
	in := ContentProject{Variants: []string{"1080p, landscape", `say "hi"`, `back\slash`}}
	v, err := in.Variants.Value()
	require.NoError(t, err)

	var out ContentProject
	require.NoError(t, out.Variants.Scan(v))
	assert.Equal(t, in.Variants, out.Variants)

	require.NoError(t, out.Variants.Scan(`["a","b"]`))
	assert.Equal(t, []string{"a", "b"}, []string(out.Variants))
}
