// Package mailbox adapts the Gmail API to the label-driven work list used by
// the ingestion pipeline.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/dvloznov/gmail-finance-sync/internal/domain"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// ErrNotFound is returned when a label name does not exist in the mailbox.
var ErrNotFound = errors.New("mailbox: not found")

// maxListResults is the largest page the API accepts. Only one page is read per cycle.
const maxListResults = 500

// Gmail is a pre-authenticated Gmail client scoped to one user.
type Gmail struct {
	svc  *gmail.Service
	user string
}

// NewGmail builds a client on top of an authenticated HTTP client.
func NewGmail(ctx context.Context, httpClient *http.Client, user string, opts ...option.ClientOption) (*Gmail, error) {
	if user == "" {
		user = "me"
	}
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewGmail: creating service: %w", err)
	}
	return &Gmail{svc: svc, user: user}, nil
}

// ResolveLabel maps a label name to its id. Names are matched case-insensitively.
func (g *Gmail) ResolveLabel(ctx context.Context, name string) (string, error) {
	resp, err := g.svc.Users.Labels.List(g.user).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("ResolveLabel: listing labels: %w", err)
	}

	for _, l := range resp.Labels {
		if strings.EqualFold(l.Name, name) {
			return l.Id, nil
		}
	}
	return "", fmt.Errorf("ResolveLabel %q: %w", name, ErrNotFound)
}

// ListByLabel returns the ids of messages currently carrying labelID, in the
// order the provider lists them.
func (g *Gmail) ListByLabel(ctx context.Context, labelID string) ([]string, error) {
	resp, err := g.svc.Users.Messages.List(g.user).
		LabelIds(labelID).
		MaxResults(maxListResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("ListByLabel %s: %w", labelID, err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// Fetch downloads one full message.
func (g *Gmail) Fetch(ctx context.Context, id string) (domain.Message, error) {
	msg, err := g.svc.Users.Messages.Get(g.user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return domain.Message{}, fmt.Errorf("Fetch %s: %w", id, err)
	}
	return toMessage(msg), nil
}

// RemoveLabel detaches labelID from one message.
func (g *Gmail) RemoveLabel(ctx context.Context, id, labelID string) error {
	return g.modify(ctx, id, &gmail.ModifyMessageRequest{RemoveLabelIds: []string{labelID}})
}

// MoveLabel replaces one label with another in a single call.
func (g *Gmail) MoveLabel(ctx context.Context, id, fromLabelID, toLabelID string) error {
	return g.modify(ctx, id, &gmail.ModifyMessageRequest{
		AddLabelIds:    []string{toLabelID},
		RemoveLabelIds: []string{fromLabelID},
	})
}

func (g *Gmail) modify(ctx context.Context, id string, req *gmail.ModifyMessageRequest) error {
	if _, err := g.svc.Users.Messages.Modify(g.user, id, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("modify %s: %w", id, err)
	}
	return nil
}

func toMessage(m *gmail.Message) domain.Message {
	out := domain.Message{ID: m.Id, InternalDate: m.InternalDate}
	if m.Payload != nil {
		out.Payload = toPart(m.Payload)
	}
	return out
}

func toPart(p *gmail.MessagePart) domain.Part {
	part := domain.Part{
		MimeType: p.MimeType,
		Charset:  headerCharset(p.Headers),
	}
	if p.Body != nil {
		part.Data = p.Body.Data
	}
	for _, child := range p.Parts {
		if child != nil {
			part.Parts = append(part.Parts, toPart(child))
		}
	}
	return part
}

func headerCharset(headers []*gmail.MessagePartHeader) string {
	for _, h := range headers {
		if !strings.EqualFold(h.Name, "Content-Type") {
			continue
		}
		_, params, err := mime.ParseMediaType(h.Value)
		if err != nil {
			return ""
		}
		return params["charset"]
	}
	return ""
}
