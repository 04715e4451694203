// Package delivery sends rendered messages over email (SES), SMS and push
// (SNS) and the in-app inbox.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/errors"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/logger"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/validation"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

type EmailSender interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
	SendRawEmail(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error)
}

type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// InboxWriter stores in-app messages.
type InboxWriter interface {
	Deliver(ctx context.Context, memberID, subject, content string) (string, error)
}

type Config struct {
	FromEmail   string
	SMSSenderID string
}

// Router implements workflow.Transport. A channel whose client is nil is
// reported as a delivery failure.
type Router struct {
	config Config
	email  EmailSender
	sns    Publisher
	inbox  InboxWriter
	logger logger.Logger
}

func NewRouter(config Config, email EmailSender, publisher Publisher, inbox InboxWriter, log logger.Logger) *Router {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Router{
		config: config,
		email:  email,
		sns:    publisher,
		inbox:  inbox,
		logger: log.WithFields(map[string]interface{}{"component": "delivery"}),
	}
}

func (r *Router) Send(ctx context.Context, channel models.Channel, recipient models.Recipient, msg models.Message) error {
	var err error
	switch channel {
	case models.ChannelEmail:
		err = r.sendEmail(ctx, recipient, msg)
	case models.ChannelSMS:
		err = r.sendSMS(ctx, recipient, msg)
	case models.ChannelPush:
		err = r.sendPush(ctx, recipient, msg)
	case models.ChannelInApp:
		err = r.sendInApp(ctx, recipient, msg)
	default:
		return errors.NewInvalidInputError(fmt.Sprintf("unknown channel %q", channel))
	}
	if err != nil {
		if _, ok := errors.AsStandardError(err); ok {
			return err
		}
		return errors.NewDeliveryFailedError(string(channel), err)
	}

	r.logger.Debug("message delivered", map[string]interface{}{
		"channel":  string(channel),
		"memberId": recipient.MemberID,
	})
	return nil
}

func (r *Router) sendEmail(ctx context.Context, to models.Recipient, msg models.Message) error {
	if r.email == nil {
		return errNotConfigured(models.ChannelEmail)
	}
	if !validation.ValidateEmail(to.Email) {
		return errNoAddress(models.ChannelEmail, to.MemberID)
	}

	if len(msg.Attachments) > 0 {
		raw, err := buildRawEmail(r.config.FromEmail, to, msg)
		if err != nil {
			return err
		}
		_, err = r.email.SendRawEmail(ctx, &ses.SendRawEmailInput{
			RawMessage: &sestypes.RawMessage{Data: raw},
		})
		return err
	}

	_, err := r.email.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: []string{to.Email},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(msg.Subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(msg.Content)},
			},
		},
		Source: aws.String(r.config.FromEmail),
	})
	return err
}

func (r *Router) sendSMS(ctx context.Context, to models.Recipient, msg models.Message) error {
	if r.sns == nil {
		return errNotConfigured(models.ChannelSMS)
	}
	if !validation.ValidatePhone(to.Phone) {
		return errNoAddress(models.ChannelSMS, to.MemberID)
	}

	attrs := map[string]snstypes.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
	}
	if r.config.SMSSenderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = snstypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(r.config.SMSSenderID),
		}
	}

	_, err := r.sns.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(to.Phone),
		Message:           aws.String(msg.Content),
		MessageAttributes: attrs,
	})
	return err
}

func (r *Router) sendPush(ctx context.Context, to models.Recipient, msg models.Message) error {
	if r.sns == nil {
		return errNotConfigured(models.ChannelPush)
	}
	if to.PushEndpointARN == "" {
		return errNoAddress(models.ChannelPush, to.MemberID)
	}

	body, err := pushMessage(msg)
	if err != nil {
		return err
	}

	_, err = r.sns.Publish(ctx, &sns.PublishInput{
		TargetArn:        aws.String(to.PushEndpointARN),
		Message:          aws.String(string(body)),
		MessageStructure: aws.String("json"),
	})
	return err
}

func (r *Router) sendInApp(ctx context.Context, to models.Recipient, msg models.Message) error {
	if r.inbox == nil {
		return errNotConfigured(models.ChannelInApp)
	}
	_, err := r.inbox.Deliver(ctx, to.MemberID, msg.Subject, msg.Content)
	return err
}

// pushMessage builds the per-platform JSON body SNS expects when
// MessageStructure is "json".
func pushMessage(msg models.Message) ([]byte, error) {
	alert := map[string]string{"title": msg.Subject, "body": msg.Content}
	gcm, err := json.Marshal(map[string]interface{}{"notification": alert})
	if err != nil {
		return nil, err
	}
	apns, err := json.Marshal(map[string]interface{}{"aps": map[string]interface{}{"alert": alert}})
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]string{
		"default": msg.Content,
		"GCM":     string(gcm),
		"APNS":    string(apns),
	})
}

func errNotConfigured(channel models.Channel) error {
	return errors.NewDeliveryFailedError(string(channel), fmt.Errorf("channel not configured"))
}

// errNoAddress is not retryable: the member record has to change first.
func errNoAddress(channel models.Channel, memberID string) error {
	return errors.NewBusinessRuleError("Recipient unreachable", fmt.Sprintf("member %s has no %s address", memberID, channel))
}
