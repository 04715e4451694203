package orchestrators

import (
	"context"
	"errors"
	"testing"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inactiveMembers() []models.Member {
	return []models.Member{
		{ID: "m-a", EngagementScore: 80, LastDonationDate: daysAgo(200)},
		{ID: "m-b", EngagementScore: 50},
		{ID: "m-c", EngagementScore: 25, LastDonationDate: daysAgo(120)},
		{ID: "m-d", EngagementScore: 24},
		{ID: "m-e", EngagementScore: 0},
		{ID: "m-active", EngagementScore: 10, LastDonationDate: daysAgo(5)},
	}
}

func TestReengagement_BucketsAndSequences(t *testing.T) {
	f := newFixture(t, inactiveMembers()...)

	res := NewReengagement(f.deps).Run(context.Background(), ReengagementRequest{})

	require.True(t, res.Success, res.Errors)
	require.NotNil(t, res.SegmentationResults)
	assert.Equal(t, 5, res.SegmentationResults.MatchedMembers)
	assert.Equal(t, map[string]int{"high": 1, "medium": 2, "low": 2}, res.SegmentationResults.Buckets)
	assert.Equal(t, []string{"m-a"}, res.SegmentationResults.Groups["high"])

	assert.Len(t, f.transport.Sent, 5)
	assert.Len(t, res.ScheduledTasks, 2+2*2+2*1)
	assertNotBeforeNow(t, res.ScheduledTasks)
	for _, task := range res.ScheduledTasks {
		assert.Equal(t, models.TaskReengagementStep, task.TaskType)
		assert.NotEqual(t, "m-active", task.Data["memberId"])
	}
}

func TestReengagement_OneFailureDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t, inactiveMembers()...)
	f.transport.Fail = map[string]error{"m-b": errors.New("bounced")}

	res := NewReengagement(f.deps).Run(context.Background(), ReengagementRequest{})

	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "member m-b")
	assert.Len(t, f.transport.Sent, 4)
	assert.Len(t, res.ScheduledTasks, 8)
}

func TestReengagement_NoInactiveMembersIsSoftSkip(t *testing.T) {
	f := newFixture(t, models.Member{ID: "m-active", LastDonationDate: daysAgo(1)})

	res := NewReengagement(f.deps).Run(context.Background(), ReengagementRequest{})

	assert.True(t, res.Success)
	assert.Equal(t, []string{"No inactive members found, re-engagement skipped"}, res.ActionsExecuted)
}

func TestBucketFor_TotalDisjointPartition(t *testing.T) {
	counts := map[Bucket]int{}
	for score := models.MinEngagementScore; score <= models.MaxEngagementScore; score++ {
		counts[BucketFor(score)]++
	}

	assert.Equal(t, 101, counts[BucketHigh]+counts[BucketMedium]+counts[BucketLow])
	assert.Equal(t, 50, counts[BucketHigh])
	assert.Equal(t, 26, counts[BucketMedium])
	assert.Equal(t, 25, counts[BucketLow])

	assert.Len(t, ReengagementSequence(BucketHigh), 3)
	assert.Len(t, ReengagementSequence(BucketMedium), 3)
	assert.Len(t, ReengagementSequence(BucketLow), 2)
}
