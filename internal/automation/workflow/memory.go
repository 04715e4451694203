package workflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/errors"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

type NoopAnalytics struct{}

func (NoopAnalytics) Track(context.Context, models.TrackingEvent) error { return nil }

type NoopHook struct{}

func (NoopHook) Trigger(context.Context, string, map[string]interface{}) error { return nil }

type NoopStaffTasks struct{}

func (NoopStaffTasks) CreateTask(context.Context, models.StaffTask) error { return nil }

// MemoryMemberStore is an in-process MemberStore.
type MemoryMemberStore struct {
	mu        sync.Mutex
	members   map[string]models.Member
	donations map[string][]models.Donation
	now       func() time.Time
}

func NewMemoryMemberStore(now func() time.Time, members ...models.Member) *MemoryMemberStore {
	if now == nil {
		now = time.Now
	}
	s := &MemoryMemberStore{
		members:   make(map[string]models.Member),
		donations: make(map[string][]models.Donation),
		now:       now,
	}
	for _, m := range members {
		s.members[m.ID] = m
	}
	return s
}

func (s *MemoryMemberStore) Put(m models.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
}

func (s *MemoryMemberStore) AddDonation(d models.Donation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.donations[d.MemberID] = append(s.donations[d.MemberID], d)
}

func (s *MemoryMemberStore) GetMember(_ context.Context, id string) (models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return models.Member{}, errors.NewMemberNotFoundError(id)
	}
	return m, nil
}

func (s *MemoryMemberStore) UpdateMember(_ context.Context, id string, patch models.MemberPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return errors.NewMemberNotFoundError(id)
	}
	if patch.Tier != nil {
		m.Tier = *patch.Tier
	}
	if patch.EngagementScore != nil {
		m.EngagementScore = models.ClampEngagement(*patch.EngagementScore)
	}
	if patch.LastDonationDate != nil {
		at := *patch.LastDonationDate
		m.LastDonationDate = &at
	}
	if patch.EmailSubscribed != nil {
		m.EmailSubscribed = *patch.EmailSubscribed
	}
	s.members[id] = m
	return nil
}

func (s *MemoryMemberStore) GetMemberDonations(_ context.Context, memberID string) ([]models.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Donation(nil), s.donations[memberID]...), nil
}

// ListInactiveMembers returns members whose last donation is missing or older
// than the threshold, ordered by id.
func (s *MemoryMemberStore) ListInactiveMembers(_ context.Context, thresholdDays int) ([]models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().AddDate(0, 0, -thresholdDays)
	var out []models.Member
	for _, m := range s.members {
		if m.LastDonationDate == nil || !m.LastDonationDate.After(cutoff) {
			out = append(out, m)
		}
	}
	sortMembers(out)
	return out, nil
}

func (s *MemoryMemberStore) ListNewsletterSubscribers(_ context.Context) ([]models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Member
	for _, m := range s.members {
		if m.EmailSubscribed {
			out = append(out, m)
		}
	}
	sortMembers(out)
	return out, nil
}

func sortMembers(ms []models.Member) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].ID < ms[j].ID })
}

// MemoryTaskSink keeps enqueued tasks in order.
type MemoryTaskSink struct {
	mu    sync.Mutex
	Tasks []models.ScheduledTask
}

func (s *MemoryTaskSink) Enqueue(_ context.Context, task models.ScheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Tasks = append(s.Tasks, task)
	return nil
}

// MemoryCampaignStates enrolls each member/campaign pair once.
type MemoryCampaignStates struct {
	mu     sync.Mutex
	states map[string]models.CampaignState
}

func NewMemoryCampaignStates() *MemoryCampaignStates {
	return &MemoryCampaignStates{states: make(map[string]models.CampaignState)}
}

func (s *MemoryCampaignStates) SaveCampaignState(_ context.Context, state models.CampaignState) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := state.MemberID + "/" + state.CampaignID
	if _, ok := s.states[key]; ok {
		return false, nil
	}
	s.states[key] = state
	return true, nil
}

func (s *MemoryCampaignStates) Get(memberID, campaignID string) (models.CampaignState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[memberID+"/"+campaignID]
	return st, ok
}

// RecordingTransport records every send; Fail makes sends to a member fail.
type RecordingTransport struct {
	mu   sync.Mutex
	Sent []Sent
	Fail map[string]error
}

type Sent struct {
	Channel   models.Channel
	Recipient models.Recipient
	Message   models.Message
}

func (t *RecordingTransport) Send(_ context.Context, channel models.Channel, recipient models.Recipient, msg models.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.Fail[recipient.MemberID]; err != nil {
		return err
	}
	t.Sent = append(t.Sent, Sent{Channel: channel, Recipient: recipient, Message: msg})
	return nil
}

// MemoryExecutionLog is a non-atomic in-process ExecutionLog.
type MemoryExecutionLog struct {
	mu   sync.Mutex
	runs map[string][]time.Time
}

func NewMemoryExecutionLog() *MemoryExecutionLog {
	return &MemoryExecutionLog{runs: make(map[string][]time.Time)}
}

func (l *MemoryExecutionLog) RecordExecution(_ context.Context, memberID, event string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runs[memberID+":"+event] = append(l.runs[memberID+":"+event], at)
	return nil
}

func (l *MemoryExecutionLog) CountRecentExecutions(_ context.Context, memberID, event string, since time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, at := range l.runs[memberID+":"+event] {
		if !at.Before(since) {
			n++
		}
	}
	return n, nil
}
