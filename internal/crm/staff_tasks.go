// Package crm creates staff follow-up tasks in Zoho CRM, linked to the
// member's contact record.
package crm

import (
	"context"
	"fmt"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/errors"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/logger"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/zoho"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

const leadSource = "Charity Guild Automation"

type ZohoAPI interface {
	SearchContacts(ctx context.Context, email string) ([]zoho.Contact, error)
	CreateContact(ctx context.Context, contact *zoho.Contact) (string, error)
	CreateTask(ctx context.Context, task *zoho.Task) (string, error)
}

type MemberLookup interface {
	GetMember(ctx context.Context, id string) (models.Member, error)
}

// StaffTasks implements workflow.StaffTaskSink.
type StaffTasks struct {
	zoho    ZohoAPI
	members MemberLookup
	logger  logger.Logger
}

func NewStaffTasks(api ZohoAPI, members MemberLookup, log logger.Logger) *StaffTasks {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &StaffTasks{zoho: api, members: members, logger: log.WithFields(map[string]interface{}{"component": "crm"})}
}

func (s *StaffTasks) CreateTask(ctx context.Context, task models.StaffTask) error {
	record := &zoho.Task{
		Subject:     task.Subject,
		Description: task.Description,
		Priority:    zohoPriority(task.Priority),
	}
	if !task.DueDate.IsZero() {
		record.DueDate = task.DueDate.Format("2006-01-02")
	}

	if task.MemberID != "" {
		contactID, err := s.contactFor(ctx, task.MemberID)
		if err != nil {
			return errors.NewCRMTaskError(err)
		}
		if contactID != "" {
			record.Who = &zoho.Lookup{ID: contactID}
		}
	}

	id, err := s.zoho.CreateTask(ctx, record)
	if err != nil {
		return errors.NewCRMTaskError(err)
	}
	s.logger.Info("staff task created", map[string]interface{}{
		"taskId":   id,
		"memberId": task.MemberID,
		"subject":  task.Subject,
	})
	return nil
}

// contactFor finds the member's contact by email, creating it when missing.
// Members without an email get an unlinked task.
func (s *StaffTasks) contactFor(ctx context.Context, memberID string) (string, error) {
	member, err := s.members.GetMember(ctx, memberID)
	if err != nil {
		return "", fmt.Errorf("load member %s: %w", memberID, err)
	}
	if member.Email == "" {
		return "", nil
	}

	contacts, err := s.zoho.SearchContacts(ctx, member.Email)
	if err != nil {
		return "", err
	}
	if len(contacts) > 0 {
		return contacts[0].ID, nil
	}

	lastName := member.LastName
	if lastName == "" {
		// Zoho requires Last_Name
		lastName = member.FirstName
	}
	return s.zoho.CreateContact(ctx, &zoho.Contact{
		Email:     member.Email,
		FirstName: member.FirstName,
		LastName:  lastName,
		Phone:     member.Phone,
		Source:    leadSource,
	})
}

func zohoPriority(p models.Priority) string {
	switch p {
	case models.PriorityHigh:
		return "High"
	case models.PriorityLow:
		return "Low"
	default:
		return "Normal"
	}
}
