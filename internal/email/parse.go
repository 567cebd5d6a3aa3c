package email

import (
	"encoding/base64"
	"net/mail"
	"regexp"
	"strings"

	"google.golang.org/api/gmail/v1"
)

// Category precedence when a message carries several category labels.
// Spam wins over everything, Primary is the fallback.
var categoryLabels = []struct {
	labelID  string
	category string
}{
	{"SPAM", "Spam"},
	{"CATEGORY_PROMOTIONS", "Promotions"},
	{"CATEGORY_SOCIAL", "Social"},
	{"CATEGORY_UPDATES", "Updates"},
	{"CATEGORY_FORUMS", "Forums"},
}

// System labels that are never reported as user labels
var systemLabelIDs = map[string]bool{
	"UNREAD":    true,
	"IMPORTANT": true,
	"STARRED":   true,
	"SPAM":      true,
	"INBOX":     true,
	"SENT":      true,
	"DRAFT":     true,
	"TRASH":     true,
}

var (
	senderEmailRe = regexp.MustCompile(`<([^>]+)>`)
	htmlTagRe     = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// ParseMessage converts a raw Gmail API message into a Message
func ParseMessage(msg *gmail.Message, labels *LabelMap) *Message {
	out := &Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		LabelIDs: msg.LabelIds,
		Category: categoryFromLabels(msg.LabelIds),
	}

	if msg.Payload == nil {
		return out
	}

	for _, header := range msg.Payload.Headers {
		switch strings.ToLower(header.Name) {
		case "subject":
			out.Subject = header.Value
		case "from":
			out.Sender, out.SenderEmail = splitSender(header.Value)
		case "to":
			out.Recipient = header.Value
		case "date":
			if date, err := mail.ParseDate(header.Value); err == nil {
				out.Date = date
			}
		}
	}

	if labels != nil {
		out.GmailLabels = userLabelNames(msg.LabelIds, labels)
	}

	plain, html := extractContent(msg.Payload)
	if plain != "" {
		out.Content = plain
	} else if html != "" {
		out.Content = htmlToText(html)
	}

	return out
}

// categoryFromLabels picks the message category from its label ids
func categoryFromLabels(labelIDs []string) string {
	present := make(map[string]bool, len(labelIDs))
	for _, id := range labelIDs {
		present[id] = true
	}

	for _, entry := range categoryLabels {
		if present[entry.labelID] {
			return entry.category
		}
	}

	return "Primary"
}

// userLabelNames resolves non-system label ids to their display names
func userLabelNames(labelIDs []string, labels *LabelMap) []string {
	var names []string
	for _, id := range labelIDs {
		if systemLabelIDs[id] || strings.HasPrefix(id, "CATEGORY_") {
			continue
		}
		if label, ok := labels.ByID(id); ok {
			names = append(names, label.Name)
		}
	}
	return names
}

// splitSender separates a From header into display name and address
func splitSender(from string) (name, address string) {
	if match := senderEmailRe.FindStringSubmatch(from); match != nil {
		address = match[1]
		name = strings.Trim(strings.TrimSpace(strings.Split(from, "<")[0]), `"`)
		if name == "" {
			name = address
		}
		return name, address
	}
	return from, from
}

// extractContent walks the payload tree collecting text bodies,
// preferring text/plain over text/html
func extractContent(payload *gmail.MessagePart) (plainText, htmlText string) {
	if payload.Body != nil && payload.Body.Data != "" {
		if decoded, err := base64.URLEncoding.DecodeString(payload.Body.Data); err == nil {
			switch payload.MimeType {
			case "text/plain":
				plainText = string(decoded)
			case "text/html":
				htmlText = string(decoded)
			}
		}
	}

	for _, part := range payload.Parts {
		partPlain, partHTML := extractContent(part)
		if partPlain != "" && plainText == "" {
			plainText = partPlain
		}
		if partHTML != "" && htmlText == "" {
			htmlText = partHTML
		}
	}

	return plainText, htmlText
}

// htmlToText strips tags and decodes common entities
func htmlToText(html string) string {
	text := htmlTagRe.ReplaceAllString(html, " ")

	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", "\"")
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = strings.ReplaceAll(text, "&nbsp;", " ")

	text = whitespaceRe.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// TruncateContent caps body content before it is stored or shipped
// to the classifier
func TruncateContent(content string, maxBytes int) string {
	if maxBytes <= 0 || len(content) <= maxBytes {
		return content
	}
	return content[:maxBytes]
}
