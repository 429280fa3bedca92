package gmail

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"github.com/mcravo/ava/internal/automation"
)

type fakeAPI struct {
	ids      []string
	listErr  error
	messages map[string]*gmail.Message

	lastLabel string
	lastQuery string
	lastMax   int64

	sent    []string
	marked  []string
	deleted []string

	opErr map[string]error
}

func (f *fakeAPI) ListMessageIDs(ctx context.Context, label, query string, max int64) ([]string, error) {
	f.lastLabel, f.lastQuery, f.lastMax = label, query, max
	return f.ids, f.listErr
}

func (f *fakeAPI) MessageMetadata(ctx context.Context, id string) (*gmail.Message, error) {
	return f.lookup(id)
}

func (f *fakeAPI) MessageFull(ctx context.Context, id string) (*gmail.Message, error) {
	return f.lookup(id)
}

func (f *fakeAPI) lookup(id string) (*gmail.Message, error) {
	if msg, ok := f.messages[id]; ok {
		return msg, nil
	}
	return nil, &googleapi.Error{Code: http.StatusNotFound}
}

func (f *fakeAPI) Send(ctx context.Context, raw string) (*gmail.Message, error) {
	f.sent = append(f.sent, raw)
	return &gmail.Message{Id: "sent-123"}, nil
}

func (f *fakeAPI) MarkRead(ctx context.Context, id string) error {
	if err := f.opErr[id]; err != nil {
		return err
	}
	f.marked = append(f.marked, id)
	return nil
}

func (f *fakeAPI) Delete(ctx context.Context, id string) error {
	if err := f.opErr[id]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func metadata(from, subject, date, snippet string) *gmail.Message {
	return &gmail.Message{
		Snippet: snippet,
		Payload: &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{
			{Name: "From", Value: from},
			{Name: "Subject", Value: subject},
			{Name: "Date", Value: date},
		}},
	}
}

func call(t *testing.T, m *Module, action string, args map[string]any) (automation.Result, error) {
	t.Helper()
	act, ok := m.Actions()[action]
	require.True(t, ok, "action %s not registered", action)
	return act.Handler(context.Background(), args)
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name string
		in   criteria
		want string
	}{
		{"empty", criteria{}, ""},
		{"sender only", criteria{Sender: "a@b.com"}, "from:a@b.com"},
		{"single date spans one day", criteria{DatePeriod: "2025-07-28"},
			"after:2025/07/28 before:2025/07/29"},
		{"range end is inclusive", criteria{DatePeriod: "2024-01-01/2024-01-31"},
			"after:2024/01/01 before:2024/02/01"},
		{"unread", criteria{IsUnread: true}, "is:unread"},
		{"all combined", criteria{Sender: "a@b.com", DatePeriod: "2025-07-28", IsUnread: true},
			"from:a@b.com after:2025/07/28 before:2025/07/29 is:unread"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildQuery(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildQueryRejectsBadDate(t *testing.T) {
	_, err := buildQuery(criteria{DatePeriod: "28-07-2025"})
	assert.ErrorIs(t, err, automation.ErrInvalidArgs)
}

func TestListEmails(t *testing.T) {
	api := &fakeAPI{
		ids: []string{"m1", "m2"},
		messages: map[string]*gmail.Message{
			"m1": metadata("alice@example.com", "Hello", "Mon, 28 Jul 2025", "hi there"),
			"m2": metadata("bob@example.com", "Invoice", "Tue, 29 Jul 2025", "please pay"),
		},
	}
	m := &Module{api: api}

	res, err := call(t, m, "list_emails", map[string]any{
		"sender": "alice@example.com", "is_unread": true, "max_results": 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "INBOX", api.lastLabel)
	assert.Equal(t, "from:alice@example.com is:unread", api.lastQuery)
	assert.Equal(t, int64(10), api.lastMax)

	assert.Contains(t, res.Message, "Emails in 'INBOX':")
	assert.Contains(t, res.Message, "1. ID: m1")
	assert.Contains(t, res.Message, "From: alice@example.com")
	assert.Contains(t, res.Message, "Subject: Hello")
	assert.Contains(t, res.Message, "Snippet: hi there")
	assert.Contains(t, res.Message, "2. ID: m2")
}

func TestListEmailsDefaultsAndAllResults(t *testing.T) {
	api := &fakeAPI{}
	m := &Module{api: api}

	_, err := call(t, m, "list_emails", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), api.lastMax)

	_, err = call(t, m, "list_emails", map[string]any{"all_results": true, "max_results": 3})
	require.NoError(t, err)
	assert.Equal(t, int64(500), api.lastMax)
}

func TestListEmailsEmptyResults(t *testing.T) {
	m := &Module{api: &fakeAPI{}}

	res, err := call(t, m, "list_emails", map[string]any{"label": "sent"})
	require.NoError(t, err)
	assert.Equal(t, "No emails found in 'SENT'.", res.Message)

	res, err = call(t, m, "list_emails", map[string]any{"sender": "x@y.com"})
	require.NoError(t, err)
	assert.Equal(t, "No emails found in 'INBOX' matching the criteria: 'from:x@y.com'.", res.Message)
}

func TestSendEmail(t *testing.T) {
	api := &fakeAPI{}
	m := &Module{api: api}

	res, err := call(t, m, "send_email", map[string]any{
		"to": "dest@example.com", "subject": "Hi", "body": "See you soon.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Email sent successfully to 'dest@example.com' with subject 'Hi'. Message ID: sent-123", res.Message)
	assert.Equal(t, "sent-123", res.AffectedResource)

	require.Len(t, api.sent, 1)
	raw, err := base64.URLEncoding.DecodeString(api.sent[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), "To: dest@example.com\r\n")
	assert.Contains(t, string(raw), "Subject: Hi\r\n")
	assert.Contains(t, string(raw), "\r\n\r\nSee you soon.")
}

func TestSendEmailRequiresRecipient(t *testing.T) {
	m := &Module{api: &fakeAPI{}}

	_, err := call(t, m, "send_email", map[string]any{"subject": "Hi", "body": "x"})
	assert.ErrorIs(t, err, automation.ErrInvalidArgs)
}

func TestReadEmail(t *testing.T) {
	body := base64.URLEncoding.EncodeToString([]byte("plain text body"))
	api := &fakeAPI{messages: map[string]*gmail.Message{
		"m1": {
			Payload: &gmail.MessagePart{
				Headers: []*gmail.MessagePartHeader{
					{Name: "From", Value: "alice@example.com"},
					{Name: "Subject", Value: "Hello"},
					{Name: "Date", Value: "Mon, 28 Jul 2025"},
				},
				Parts: []*gmail.MessagePart{
					{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: "ignored"}},
					{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: body}},
				},
			},
		},
	}}
	m := &Module{api: api}

	res, err := call(t, m, "read_email", map[string]any{"email_id": "m1"})
	require.NoError(t, err)
	assert.Contains(t, res.Message, "Reading Email (ID: m1)")
	assert.Contains(t, res.Message, "From: alice@example.com")
	assert.Contains(t, res.Message, "Body:\n---\nplain text body\n---")
}

func TestReadEmailSinglePartFallback(t *testing.T) {
	body := base64.RawURLEncoding.EncodeToString([]byte("simple message"))
	api := &fakeAPI{messages: map[string]*gmail.Message{
		"m2": {Payload: &gmail.MessagePart{Body: &gmail.MessagePartBody{Data: body}}},
	}}
	m := &Module{api: api}

	res, err := call(t, m, "read_email", map[string]any{"email_id": "m2"})
	require.NoError(t, err)
	assert.Contains(t, res.Message, "simple message")
	assert.Contains(t, res.Message, "From: N/A")
}

func TestReadEmailNotFound(t *testing.T) {
	m := &Module{api: &fakeAPI{}}

	res, err := call(t, m, "read_email", map[string]any{"email_id": "missing"})
	require.NoError(t, err)
	assert.Equal(t, "Email with ID 'missing' not found.", res.Message)
}

func TestMarkAsReadByIDs(t *testing.T) {
	api := &fakeAPI{opErr: map[string]error{"m2": &googleapi.Error{Code: http.StatusNotFound}}}
	m := &Module{api: api}

	res, err := call(t, m, "mark_email_as_read", map[string]any{"email_ids": []any{"m1", "m2"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, api.marked)
	assert.Contains(t, res.Message, "Email with ID 'm1' marked as read successfully.")
	assert.Contains(t, res.Message, "Email with ID 'm2' not found.")
}

func TestMarkAsReadByCriteria(t *testing.T) {
	api := &fakeAPI{ids: []string{"a", "b"}}
	m := &Module{api: api}

	_, err := call(t, m, "mark_email_as_read", map[string]any{"is_unread": true})
	require.NoError(t, err)
	assert.Equal(t, "is:unread", api.lastQuery)
	assert.Equal(t, int64(500), api.lastMax)
	assert.Equal(t, []string{"a", "b"}, api.marked)
}

func TestMarkAsReadRequiresTargets(t *testing.T) {
	m := &Module{api: &fakeAPI{}}

	_, err := call(t, m, "mark_email_as_read", map[string]any{})
	assert.ErrorIs(t, err, automation.ErrInvalidArgs)
}

func TestDeleteEmailByCriteriaNoMatches(t *testing.T) {
	m := &Module{api: &fakeAPI{}}

	res, err := call(t, m, "delete_email", map[string]any{"sender": "spam@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "No emails found matching the specified criteria to delete.", res.Message)
}

func TestDeleteEmailByIDs(t *testing.T) {
	api := &fakeAPI{}
	m := &Module{api: api}

	res, err := call(t, m, "delete_email", map[string]any{"email_ids": []any{"m1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, api.deleted)
	assert.Equal(t, "Email with ID 'm1' deleted successfully.", res.Message)
}
