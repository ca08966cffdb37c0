package dispatch

import (
	"context"
	"errors"
	"strings"

	"alivecheck-backend/internal/logging"
	"alivecheck-backend/internal/models"
)

// Step error codes recorded on StepResult.Error. NO_CONTACTS, NO_EMAIL,
// NO_PHONE_NUMBER and NO_CHAT_ID mean no eligible targets existed;
// INVALID_TOKEN and SEND_FAILED are provider rejections; NOT_IMPLEMENTED
// means the channel has no configured provider.
const (
	CodeNoContacts     = "NO_CONTACTS"
	CodeNoEmail        = "NO_EMAIL"
	CodeNoPhoneNumber  = "NO_PHONE_NUMBER"
	CodeNoChatID       = "NO_CHAT_ID"
	CodeNoFCMToken     = "NO_FCM_TOKEN"
	CodeUserNotFound   = "USER_NOT_FOUND"
	CodeInvalidToken   = "INVALID_TOKEN"
	CodeAllFailed      = "ALL_FAILED"
	CodeSendFailed     = "SEND_FAILED"
	CodeNotImplemented = "NOT_IMPLEMENTED"
)

// ErrInvalidToken is returned (wrapped) by a push sender when the provider
// rejects the device token as invalid or unregistered. The dispatcher
// reacts by deleting the stored token.
var ErrInvalidToken = errors.New("invalid or unregistered device token")

// PushSender delivers one push notification to one device token and returns
// the provider message id.
type PushSender interface {
	SendPush(ctx context.Context, token, title, body string, data map[string]string) (string, error)
}

// EmailSender delivers one email and returns the provider message id.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, textBody, htmlBody string) (string, error)
}

// SMSSender delivers one SMS and returns the provider message id.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// TelegramSender delivers one message to one chat.
type TelegramSender interface {
	SendTelegram(ctx context.Context, chatID int64, text string) (string, error)
}

// ContactResolver returns a subject's registered escalation targets of one
// type. Implemented by the store.
type ContactResolver interface {
	ListContacts(ctx context.Context, subjectID string, ctype models.ContactType) ([]models.Contact, error)
}

// SubjectDirectory resolves linked subjects for push fan-out and cleans up
// dead tokens. Implemented by the store.
type SubjectDirectory interface {
	GetSubjectsByIDs(ctx context.Context, ids []string) (map[string]models.Subject, error)
	DeleteFCMToken(ctx context.Context, subjectID string) error
}

// TargetResult is the per-recipient outcome of one step dispatch.
type TargetResult struct {
	ContactID       string            `json:"contact_id"`
	LinkedSubjectID string            `json:"linked_subject_id,omitempty"`
	Target          string            `json:"target,omitempty"`
	Status          models.StepStatus `json:"status"`
	MessageID       string            `json:"message_id,omitempty"`
	ErrorCode       string            `json:"error_code,omitempty"`
}

// StepOutcome aggregates the per-target results into the single outcome
// recorded on a StepResult. A step succeeds when at least one target was
// reached.
type StepOutcome struct {
	Success   bool
	Target    string
	MessageID string
	ErrorCode string
	Results   []TargetResult
}

// Dispatcher fans a single escalation step out to every resolved target of
// the step's channel. Providers left nil report NOT_IMPLEMENTED, so a
// partially configured deployment degrades per channel instead of failing.
type Dispatcher struct {
	resolver  ContactResolver
	directory SubjectDirectory
	push      PushSender
	email     EmailSender
	sms       SMSSender
	telegram  TelegramSender
	logger    *logging.Logger
}

func New(resolver ContactResolver, directory SubjectDirectory, push PushSender, email EmailSender, sms SMSSender, telegram TelegramSender, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		resolver:  resolver,
		directory: directory,
		push:      push,
		email:     email,
		sms:       sms,
		telegram:  telegram,
		logger:    logger,
	}
}

// Send dispatches one escalation step for an overdue subject via the given
// channel.
func (d *Dispatcher) Send(ctx context.Context, ch models.Channel, subj models.Subject) StepOutcome {
	switch ch {
	case models.ChannelPush:
		return d.sendPushToLinkedContacts(ctx, subj)
	case models.ChannelEmail:
		return d.sendEmailToContacts(ctx, subj)
	case models.ChannelSMS:
		return d.sendSMSToContacts(ctx, subj)
	case models.ChannelTelegram:
		return d.sendTelegramToContacts(ctx, subj)
	default:
		d.logger.Warnf("Unknown channel %q in stored plan for subject %s", ch, subj.ID)
		return StepOutcome{Success: false, ErrorCode: CodeNotImplemented}
	}
}

// sendPushToLinkedContacts notifies every linked (app-type) contact of the
// overdue subject. Linked subjects are fetched in one multi-get before the
// fan-out.
func (d *Dispatcher) sendPushToLinkedContacts(ctx context.Context, subj models.Subject) StepOutcome {
	if d.push == nil {
		return StepOutcome{Success: false, ErrorCode: CodeNotImplemented}
	}

	contacts, err := d.resolver.ListContacts(ctx, subj.ID, models.ContactApp)
	if err != nil {
		d.logger.Errorf("Failed to resolve linked contacts for subject %s: %v", subj.ID, err)
		return StepOutcome{Success: false, ErrorCode: CodeSendFailed}
	}

	var results []TargetResult
	var linkedIDs []string
	var linked []models.Contact
	for _, c := range contacts {
		if c.LinkedSubjectID == "" {
			results = append(results, TargetResult{
				ContactID: c.ID,
				Status:    models.StepFailed,
				ErrorCode: CodeUserNotFound,
			})
			continue
		}
		linked = append(linked, c)
		linkedIDs = append(linkedIDs, c.LinkedSubjectID)
	}

	if len(linked) == 0 {
		return StepOutcome{Success: false, ErrorCode: CodeNoContacts, Results: results}
	}

	recipients, err := d.directory.GetSubjectsByIDs(ctx, linkedIDs)
	if err != nil {
		d.logger.Errorf("Failed to fetch linked subjects for %s: %v", subj.ID, err)
		return StepOutcome{Success: false, ErrorCode: CodeSendFailed, Results: results}
	}

	name := displayName(subj)
	for _, c := range linked {
		recipient, ok := recipients[c.LinkedSubjectID]
		if !ok {
			results = append(results, TargetResult{
				ContactID:       c.ID,
				LinkedSubjectID: c.LinkedSubjectID,
				Status:          models.StepFailed,
				ErrorCode:       CodeUserNotFound,
			})
			continue
		}
		if recipient.FCMToken == "" {
			results = append(results, TargetResult{
				ContactID:       c.ID,
				LinkedSubjectID: c.LinkedSubjectID,
				Status:          models.StepFailed,
				ErrorCode:       CodeNoFCMToken,
			})
			continue
		}

		msgs := messagesFor(recipient.Language)
		data := map[string]string{
			"type":           "OVERDUE_ALERT",
			"from_user_id":   subj.ID,
			"from_user_name": name,
		}
		msgID, err := d.push.SendPush(ctx, recipient.FCMToken, msgs.AlertTitle, msgs.AlertBody(name), data)
		if err != nil {
			code := CodeSendFailed
			if errors.Is(err, ErrInvalidToken) {
				code = CodeInvalidToken
				// Dead token: drop it so the next sweep does not retry it.
				if cleanupErr := d.directory.DeleteFCMToken(ctx, c.LinkedSubjectID); cleanupErr != nil {
					d.logger.Errorf("Failed to delete invalid token for subject %s: %v", c.LinkedSubjectID, cleanupErr)
				} else {
					d.logger.Infof("Removed invalid token for subject %s", c.LinkedSubjectID)
				}
			}
			d.logger.Errorf("Push to contact %s of subject %s failed: %v", c.ID, subj.ID, err)
			results = append(results, TargetResult{
				ContactID:       c.ID,
				LinkedSubjectID: c.LinkedSubjectID,
				Status:          models.StepFailed,
				ErrorCode:       code,
			})
			continue
		}
		results = append(results, TargetResult{
			ContactID:       c.ID,
			LinkedSubjectID: c.LinkedSubjectID,
			Status:          models.StepSent,
			MessageID:       msgID,
		})
	}

	return aggregate(results, CodeNoContacts)
}

func (d *Dispatcher) sendEmailToContacts(ctx context.Context, subj models.Subject) StepOutcome {
	if d.email == nil {
		return StepOutcome{Success: false, ErrorCode: CodeNotImplemented}
	}

	contacts, err := d.resolver.ListContacts(ctx, subj.ID, models.ContactEmail)
	if err != nil {
		d.logger.Errorf("Failed to resolve email contacts for subject %s: %v", subj.ID, err)
		return StepOutcome{Success: false, ErrorCode: CodeSendFailed}
	}

	name := displayName(subj)
	var results []TargetResult
	for _, c := range contacts {
		if c.Address == "" {
			results = append(results, TargetResult{
				ContactID: c.ID,
				Status:    models.StepFailed,
				ErrorCode: CodeNoEmail,
			})
			continue
		}
		msgID, err := d.email.SendEmail(ctx, c.Address, alertEmailSubject(name), alertEmailText(name), alertEmailHTML(name))
		if err != nil {
			d.logger.Errorf("Email to %s for subject %s failed: %v", c.Address, subj.ID, err)
			results = append(results, TargetResult{
				ContactID: c.ID,
				Target:    c.Address,
				Status:    models.StepFailed,
				ErrorCode: CodeSendFailed,
			})
			continue
		}
		results = append(results, TargetResult{
			ContactID: c.ID,
			Target:    c.Address,
			Status:    models.StepSent,
			MessageID: msgID,
		})
	}

	return aggregate(results, CodeNoContacts)
}

func (d *Dispatcher) sendSMSToContacts(ctx context.Context, subj models.Subject) StepOutcome {
	if d.sms == nil {
		return StepOutcome{Success: false, ErrorCode: CodeNotImplemented}
	}

	contacts, err := d.resolver.ListContacts(ctx, subj.ID, models.ContactSMS)
	if err != nil {
		d.logger.Errorf("Failed to resolve sms contacts for subject %s: %v", subj.ID, err)
		return StepOutcome{Success: false, ErrorCode: CodeSendFailed}
	}

	name := displayName(subj)
	var results []TargetResult
	for _, c := range contacts {
		if c.PhoneNumber == "" {
			results = append(results, TargetResult{
				ContactID: c.ID,
				Status:    models.StepFailed,
				ErrorCode: CodeNoPhoneNumber,
			})
			continue
		}
		msgID, err := d.sms.SendSMS(ctx, c.PhoneNumber, alertSMSBody(name))
		if err != nil {
			d.logger.Errorf("SMS to %s for subject %s failed: %v", c.PhoneNumber, subj.ID, err)
			results = append(results, TargetResult{
				ContactID: c.ID,
				Target:    c.PhoneNumber,
				Status:    models.StepFailed,
				ErrorCode: CodeSendFailed,
			})
			continue
		}
		results = append(results, TargetResult{
			ContactID: c.ID,
			Target:    c.PhoneNumber,
			Status:    models.StepSent,
			MessageID: msgID,
		})
	}

	return aggregate(results, CodeNoContacts)
}

func (d *Dispatcher) sendTelegramToContacts(ctx context.Context, subj models.Subject) StepOutcome {
	if d.telegram == nil {
		return StepOutcome{Success: false, ErrorCode: CodeNotImplemented}
	}

	contacts, err := d.resolver.ListContacts(ctx, subj.ID, models.ContactTelegram)
	if err != nil {
		d.logger.Errorf("Failed to resolve telegram contacts for subject %s: %v", subj.ID, err)
		return StepOutcome{Success: false, ErrorCode: CodeSendFailed}
	}

	name := displayName(subj)
	var results []TargetResult
	for _, c := range contacts {
		if c.ChatID == 0 {
			results = append(results, TargetResult{
				ContactID: c.ID,
				Status:    models.StepFailed,
				ErrorCode: CodeNoChatID,
			})
			continue
		}
		msgID, err := d.telegram.SendTelegram(ctx, c.ChatID, alertTelegramText(name))
		if err != nil {
			d.logger.Errorf("Telegram to chat %d for subject %s failed: %v", c.ChatID, subj.ID, err)
			results = append(results, TargetResult{
				ContactID: c.ID,
				Status:    models.StepFailed,
				ErrorCode: CodeSendFailed,
			})
			continue
		}
		results = append(results, TargetResult{
			ContactID: c.ID,
			Status:    models.StepSent,
			MessageID: msgID,
		})
	}

	return aggregate(results, CodeNoContacts)
}

// SendReminder pushes a check-in reminder to the subject themselves.
func (d *Dispatcher) SendReminder(ctx context.Context, subj models.Subject) StepOutcome {
	if d.push == nil {
		return StepOutcome{Success: false, ErrorCode: CodeNotImplemented}
	}
	if subj.FCMToken == "" {
		return StepOutcome{Success: false, ErrorCode: CodeNoFCMToken}
	}

	msgs := messagesFor(subj.Language)
	data := map[string]string{"type": "CHECKIN_REMINDER"}
	msgID, err := d.push.SendPush(ctx, subj.FCMToken, msgs.ReminderTitle, msgs.ReminderBody, data)
	if err != nil {
		code := CodeSendFailed
		if errors.Is(err, ErrInvalidToken) {
			code = CodeInvalidToken
			if cleanupErr := d.directory.DeleteFCMToken(ctx, subj.ID); cleanupErr != nil {
				d.logger.Errorf("Failed to delete invalid token for subject %s: %v", subj.ID, cleanupErr)
			}
		}
		return StepOutcome{Success: false, ErrorCode: code}
	}
	return StepOutcome{Success: true, MessageID: msgID}
}

// aggregate folds per-target results into a step outcome: no targets at all
// is the given empty code, at least one sent is success, everything failed
// is ALL_FAILED.
func aggregate(results []TargetResult, emptyCode string) StepOutcome {
	if len(results) == 0 {
		return StepOutcome{Success: false, ErrorCode: emptyCode}
	}

	var sentIDs []string
	var targets []string
	for _, r := range results {
		if r.Status == models.StepSent {
			if r.MessageID != "" {
				sentIDs = append(sentIDs, r.MessageID)
			}
			if r.Target != "" {
				targets = append(targets, r.Target)
			}
		}
	}

	if len(sentIDs) == 0 && !anySent(results) {
		return StepOutcome{Success: false, ErrorCode: CodeAllFailed, Results: results}
	}

	return StepOutcome{
		Success:   true,
		Target:    strings.Join(targets, ","),
		MessageID: strings.Join(sentIDs, ","),
		Results:   results,
	}
}

func anySent(results []TargetResult) bool {
	for _, r := range results {
		if r.Status == models.StepSent {
			return true
		}
	}
	return false
}

func displayName(s models.Subject) string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	if s.Email != "" {
		return s.Email
	}
	return "Someone"
}
