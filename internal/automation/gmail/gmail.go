// Package gmail manages the user's mailbox through the Gmail API: listing,
// sending, reading, marking as read and deleting messages.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/mcravo/ava/internal/automation"
	"github.com/mcravo/ava/internal/automation/googleauth"
)

// Scope grants full mailbox access. Changing scopes invalidates the cached
// token; the user has to consent again.
const Scope = gmail.MailGoogleComScope

// bulk operations cap how many IDs a criteria search may return
const bulkFetchLimit = 500

const defaultListLimit = 5

// api is the slice of the Gmail service the module uses, kept narrow so tests
// can substitute a fake.
type api interface {
	ListMessageIDs(ctx context.Context, label, query string, max int64) ([]string, error)
	MessageMetadata(ctx context.Context, id string) (*gmail.Message, error)
	MessageFull(ctx context.Context, id string) (*gmail.Message, error)
	Send(ctx context.Context, raw string) (*gmail.Message, error)
	MarkRead(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// Module implements automation.Module backed by the Gmail API.
type Module struct {
	api api
}

// New authenticates against Google and builds the Gmail module. Calendar's
// scope is requested too so the shared token covers both modules.
func New(ctx context.Context, credentialsPath, tokenPath string, extraScopes ...string) (*Module, error) {
	scopes := append([]string{Scope}, extraScopes...)
	httpc, err := googleauth.Client(ctx, credentialsPath, tokenPath, scopes...)
	if err != nil {
		return nil, fmt.Errorf("gmail authentication: %w", err)
	}
	service, err := gmail.NewService(ctx, option.WithHTTPClient(httpc))
	if err != nil {
		return nil, fmt.Errorf("building gmail service: %w", err)
	}
	return &Module{api: &restAPI{service: service}}, nil
}

func (m *Module) Description() string {
	return "manage emails in Gmail (list, send, read, mark as read, delete)"
}

func (m *Module) Actions() map[string]automation.Action {
	return map[string]automation.Action{
		"list_emails": {
			Handler:     automation.Typed(m.listEmails),
			Description: "Lists emails from a specified label (e.g., 'INBOX', 'UNREAD', 'SENT'), optionally filtered by sender, date period, and unread status. Use 'all_results: true' if user asks for all emails.",
			Example:     `{"action":"list_emails","label":"INBOX","sender":"john.doe@example.com","date_period":"2025-07-28","max_results":5,"is_unread":true}`,
		},
		"send_email": {
			Handler:     automation.Typed(m.sendEmail),
			Description: "Sends an email to a recipient with a subject and body.",
			Example:     `{"action":"send_email","to":"recipient@example.com","subject":"Meeting Reminder","body":"Don't forget our meeting tomorrow."}`,
		},
		"read_email": {
			Handler:     automation.Typed(m.readEmail),
			Description: "Reads the content of a specific email by its ID.",
			Example:     `{"action":"read_email","email_id":"<email_id>"}`,
		},
		"mark_email_as_read": {
			Handler:     automation.Typed(m.markAsRead),
			Description: "Marks one or more emails as read by their IDs or by specified criteria (sender, date, unread status).",
			Example:     `{"action":"mark_email_as_read","email_ids":["<email_id_1>","<email_id_2>"],"sender":"john.doe@example.com","date_period":"2025-07-28","is_unread":true}`,
		},
		"delete_email": {
			Handler:     automation.Typed(m.deleteEmail),
			Description: "Deletes one or more emails by their IDs or by specified criteria (sender, date, unread status).",
			Example:     `{"action":"delete_email","email_ids":["<email_id_1>","<email_id_2>"],"sender":"old.spam@example.com","date_period":"2024-01-01/2024-01-31"}`,
		},
	}
}

// criteria are the shared search filters.
type criteria struct {
	Label      string `mapstructure:"label"`
	Sender     string `mapstructure:"sender"`
	DatePeriod string `mapstructure:"date_period"`
	IsUnread   bool   `mapstructure:"is_unread"`
}

func (c criteria) label() string {
	if c.Label == "" {
		return "INBOX"
	}
	return strings.ToUpper(c.Label)
}

func (c criteria) hasFilter() bool {
	return c.Sender != "" || c.DatePeriod != "" || c.IsUnread
}

// buildQuery turns criteria into a Gmail search query. The API's before: is
// exclusive, so the end date gets one day added to make the range inclusive.
func buildQuery(c criteria) (string, error) {
	var parts []string
	if c.Sender != "" {
		parts = append(parts, "from:"+c.Sender)
	}
	if c.DatePeriod != "" {
		start, end, err := parseDatePeriod(c.DatePeriod)
		if err != nil {
			return "", err
		}
		parts = append(parts, "after:"+start.Format("2006/01/02"))
		parts = append(parts, "before:"+end.AddDate(0, 0, 1).Format("2006/01/02"))
	}
	if c.IsUnread {
		parts = append(parts, "is:unread")
	}
	return strings.Join(parts, " "), nil
}

// parseDatePeriod accepts a single date (YYYY-MM-DD) or an inclusive range
// (YYYY-MM-DD/YYYY-MM-DD).
func parseDatePeriod(period string) (start, end time.Time, err error) {
	const layout = "2006-01-02"
	if before, after, found := strings.Cut(period, "/"); found {
		start, err = time.Parse(layout, before)
		if err == nil {
			end, err = time.Parse(layout, after)
		}
	} else {
		start, err = time.Parse(layout, period)
		end = start
	}
	if err != nil {
		err = fmt.Errorf("%w: invalid date_period %q, expected YYYY-MM-DD or YYYY-MM-DD/YYYY-MM-DD", automation.ErrInvalidArgs, period)
	}
	return start, end, err
}

type listRequest struct {
	criteria   `mapstructure:",squash"`
	MaxResults int64 `mapstructure:"max_results"`
	AllResults bool  `mapstructure:"all_results"`
}

func (m *Module) listEmails(ctx context.Context, req listRequest) (automation.Result, error) {
	query, err := buildQuery(req.criteria)
	if err != nil {
		return automation.Result{}, err
	}

	limit := req.MaxResults
	if limit <= 0 {
		limit = defaultListLimit
	}
	if req.AllResults {
		limit = bulkFetchLimit
	}

	ids, err := m.api.ListMessageIDs(ctx, req.label(), query, limit)
	if err != nil {
		return automation.Result{}, fmt.Errorf("listing emails: %w", err)
	}
	if len(ids) == 0 {
		if query != "" {
			return automation.OK(fmt.Sprintf("No emails found in '%s' matching the criteria: '%s'.", req.label(), query)), nil
		}
		return automation.OK(fmt.Sprintf("No emails found in '%s'.", req.label())), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Emails in '%s':\n", req.label())
	for i, id := range ids {
		msg, err := m.api.MessageMetadata(ctx, id)
		if err != nil {
			return automation.Result{}, fmt.Errorf("fetching email %s: %w", id, err)
		}
		fmt.Fprintf(&b, "\n%d. ID: %s\n", i+1, id)
		fmt.Fprintf(&b, "   From: %s\n", headerOr(msg, "From", "Unknown Sender"))
		fmt.Fprintf(&b, "   Subject: %s\n", headerOr(msg, "Subject", "No Subject"))
		fmt.Fprintf(&b, "   Date: %s\n", headerOr(msg, "Date", "Unknown Date"))
		fmt.Fprintf(&b, "   Snippet: %s\n", msg.Snippet)
		b.WriteString("----------------------------------------------------\n")
	}

	return automation.OK(strings.TrimRight(b.String(), "\n")), nil
}

type sendRequest struct {
	To      string `mapstructure:"to"`
	Subject string `mapstructure:"subject"`
	Body    string `mapstructure:"body"`
}

func (r sendRequest) Validate() error {
	if r.To == "" {
		return errors.New("to is required")
	}
	if r.Subject == "" {
		return errors.New("subject is required")
	}
	return nil
}

func (m *Module) sendEmail(ctx context.Context, req sendRequest) (automation.Result, error) {
	raw := fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s",
		req.To, req.Subject, req.Body)
	sent, err := m.api.Send(ctx, base64.URLEncoding.EncodeToString([]byte(raw)))
	if err != nil {
		return automation.Result{}, fmt.Errorf("sending email: %w", err)
	}
	msg := fmt.Sprintf("Email sent successfully to '%s' with subject '%s'. Message ID: %s", req.To, req.Subject, sent.Id)
	return automation.OKResource(msg, sent.Id), nil
}

type readRequest struct {
	EmailID string `mapstructure:"email_id"`
}

func (r readRequest) Validate() error {
	if r.EmailID == "" {
		return errors.New("email_id is required")
	}
	return nil
}

func (m *Module) readEmail(ctx context.Context, req readRequest) (automation.Result, error) {
	msg, err := m.api.MessageFull(ctx, req.EmailID)
	if err != nil {
		if isNotFound(err) {
			return automation.OK(fmt.Sprintf("Email with ID '%s' not found.", req.EmailID)), nil
		}
		return automation.Result{}, fmt.Errorf("reading email: %w", err)
	}

	body := plainTextBody(msg)
	text := fmt.Sprintf("Reading Email (ID: %s)\nFrom: %s\nSubject: %s\nDate: %s\nBody:\n---\n%s\n---",
		req.EmailID,
		headerOr(msg, "From", "N/A"),
		headerOr(msg, "Subject", "N/A"),
		headerOr(msg, "Date", "N/A"),
		body)
	return automation.OKResource(text, req.EmailID), nil
}

type bulkRequest struct {
	criteria `mapstructure:",squash"`
	EmailIDs []string `mapstructure:"email_ids"`
}

func (r bulkRequest) Validate() error {
	if len(r.EmailIDs) == 0 && !r.hasFilter() {
		return errors.New("provide either email_ids or criteria (sender, date_period, is_unread)")
	}
	return nil
}

func (m *Module) markAsRead(ctx context.Context, req bulkRequest) (automation.Result, error) {
	return m.forEachTarget(ctx, req, "mark as read", func(ctx context.Context, id string) (string, error) {
		if err := m.api.MarkRead(ctx, id); err != nil {
			return "", err
		}
		return fmt.Sprintf("Email with ID '%s' marked as read successfully.", id), nil
	})
}

func (m *Module) deleteEmail(ctx context.Context, req bulkRequest) (automation.Result, error) {
	return m.forEachTarget(ctx, req, "delete", func(ctx context.Context, id string) (string, error) {
		if err := m.api.Delete(ctx, id); err != nil {
			return "", err
		}
		return fmt.Sprintf("Email with ID '%s' deleted successfully.", id), nil
	})
}

// forEachTarget resolves the target IDs (explicit list or criteria search)
// and applies op to each, collecting one line per email. Not-found errors are
// reported per ID instead of aborting the batch.
func (m *Module) forEachTarget(ctx context.Context, req bulkRequest, verb string, op func(ctx context.Context, id string) (string, error)) (automation.Result, error) {
	ids := req.EmailIDs
	if len(ids) == 0 {
		query, err := buildQuery(req.criteria)
		if err != nil {
			return automation.Result{}, err
		}
		ids, err = m.api.ListMessageIDs(ctx, req.label(), query, bulkFetchLimit)
		if err != nil {
			return automation.Result{}, fmt.Errorf("searching emails: %w", err)
		}
		if len(ids) == 0 {
			return automation.OK(fmt.Sprintf("No emails found matching the specified criteria to %s.", verb)), nil
		}
	}

	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		line, err := op(ctx, id)
		if err != nil {
			if isNotFound(err) {
				lines = append(lines, fmt.Sprintf("Email with ID '%s' not found.", id))
				continue
			}
			return automation.Result{}, fmt.Errorf("%s email %s: %w", verb, id, err)
		}
		lines = append(lines, line)
	}
	return automation.OK(strings.Join(lines, "\n")), nil
}

func headerOr(msg *gmail.Message, name, fallback string) string {
	if msg.Payload == nil {
		return fallback
	}
	for _, h := range msg.Payload.Headers {
		if h.Name == name {
			return h.Value
		}
	}
	return fallback
}

// plainTextBody extracts the text/plain part, falling back to the top-level
// body for single-part messages.
func plainTextBody(msg *gmail.Message) string {
	if msg.Payload == nil {
		return ""
	}
	for _, part := range msg.Payload.Parts {
		if part.MimeType == "text/plain" && part.Body != nil {
			if text, err := decodeBody(part.Body.Data); err == nil {
				return text
			}
		}
	}
	if msg.Payload.Body != nil && msg.Payload.Body.Data != "" {
		if text, err := decodeBody(msg.Payload.Body.Data); err == nil {
			return text
		}
	}
	return ""
}

func decodeBody(data string) (string, error) {
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

// restAPI adapts *gmail.Service to the api interface.
type restAPI struct {
	service *gmail.Service
}

func (r *restAPI) ListMessageIDs(ctx context.Context, label, query string, max int64) ([]string, error) {
	call := r.service.Users.Messages.List("me").LabelIds(label).MaxResults(max).Context(ctx)
	if query != "" {
		call = call.Q(query)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		ids = append(ids, msg.Id)
	}
	return ids, nil
}

func (r *restAPI) MessageMetadata(ctx context.Context, id string) (*gmail.Message, error) {
	return r.service.Users.Messages.Get("me", id).
		Format("metadata").
		MetadataHeaders("From", "Subject", "Date").
		Context(ctx).Do()
}

func (r *restAPI) MessageFull(ctx context.Context, id string) (*gmail.Message, error) {
	return r.service.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
}

func (r *restAPI) Send(ctx context.Context, raw string) (*gmail.Message, error) {
	return r.service.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
}

func (r *restAPI) MarkRead(ctx context.Context, id string) error {
	_, err := r.service.Users.Messages.Modify("me", id, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	return err
}

func (r *restAPI) Delete(ctx context.Context, id string) error {
	return r.service.Users.Messages.Delete("me", id).Context(ctx).Do()
}
