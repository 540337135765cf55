// Package notify posts scan summaries to chat webhooks.
package notify

/*
rxsub — concurrent subdomain discovery from wordlists and Certificate Transparency logs
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"github.com/x-stp/rxsub/internal/core"
	"github.com/x-stp/rxsub/internal/output"
)

// MaxListedFindings caps how many findings are spelled out in a message.
const MaxListedFindings = 20

// DefaultTimeout bounds a single webhook post.
const DefaultTimeout = 10 * time.Second

// SlackNotifier posts a run summary to a Slack incoming webhook.
type SlackNotifier struct {
	WebhookURL string
	Client     *http.Client
	Timeout    time.Duration
}

// NewSlackNotifier returns nil for an empty webhook URL, and a nil notifier
// ignores Notify.
func NewSlackNotifier(webhookURL string, httpClient *http.Client) *SlackNotifier {
	if webhookURL == "" {
		return nil
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &SlackNotifier{WebhookURL: webhookURL, Client: httpClient, Timeout: DefaultTimeout}
}

// Notify posts the summary and the first findings. Errors are returned for the
// caller to log; a failed notification never changes the scan's outcome.
func (n *SlackNotifier) Notify(ctx context.Context, sum output.Summary, findings []core.Finding) error {
	if n == nil {
		return nil
	}
	timeout := n.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg := &slack.WebhookMessage{Text: FormatMessage(sum, findings)}
	if err := slack.PostWebhookCustomHTTPContext(ctx, n.WebhookURL, n.Client, msg); err != nil {
		return fmt.Errorf("posting slack webhook: %w", err)
	}
	logrus.Debugf("Posted scan summary for %s to Slack", sum.Domain)
	return nil
}

// FormatMessage renders the Slack message text.
func FormatMessage(sum output.Summary, findings []core.Finding) string {
	var b strings.Builder
	status := "complete"
	if sum.Interrupted {
		status = "interrupted"
	}
	fmt.Fprintf(&b, "*Subdomain scan %s for %s*\n", status, sum.Domain)
	fmt.Fprintf(&b, "*Findings:* %d (%d with HTTP, %d DNS only)\n", sum.Findings, sum.Probed, sum.DNSOnly)
	fmt.Fprintf(&b, "*Candidates:* %d in %s\n", sum.Candidates, sum.Duration.Round(time.Second))

	for i, f := range findings {
		if i == MaxListedFindings {
			fmt.Fprintf(&b, "... and %d more\n", len(findings)-MaxListedFindings)
			break
		}
		if p := f.Probe; p != nil {
			fmt.Fprintf(&b, "• %s [%d] %s\n", f.FQDN(), p.StatusCode, p.Title)
		} else {
			fmt.Fprintf(&b, "• %s [DNS Only]\n", f.FQDN())
		}
	}
	return b.String()
}
