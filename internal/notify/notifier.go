// Package notify is the outbound notification boundary. It subscribes to
// domain events and formats outgoing messages; failures here are logged and
// never propagate back into the workflow transaction that produced the event.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/transferdesk/transferdesk/internal/application/dispatcher"
	"github.com/transferdesk/transferdesk/internal/domain/event"
)

// Sender delivers a rendered message to a recipient. The default
// implementation logs; a mail or webhook sender plugs in behind it.
type Sender interface {
	Send(ctx context.Context, subject, body string) error
}

// LogSender writes notifications to the structured log. Used in development
// and as the fallback when no delivery channel is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a sender that logs instead of delivering
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, subject, body string) error {
	s.logger.Info("Notification",
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}

// Notifier turns domain events into notifications
type Notifier struct {
	sender Sender
	logger *zap.Logger
}

// NewNotifier creates a notifier backed by the given sender
func NewNotifier(sender Sender, logger *zap.Logger) *Notifier {
	return &Notifier{sender: sender, logger: logger}
}

// Register subscribes the notifier to every event type it handles
func (n *Notifier) Register(d dispatcher.Dispatcher) {
	d.Subscribe(event.TypeDeterminationExempt, "notify.exempt", n.handle)
	d.Subscribe(event.TypeLinksSent, "notify.links_sent", n.handle)
	d.Subscribe(event.TypePartySubmitted, "notify.party_submitted", n.handle)
	d.Subscribe(event.TypeReportReady, "notify.report_ready", n.handle)
	d.Subscribe(event.TypeReportFiled, "notify.report_filed", n.handle)
	d.Subscribe(event.TypeCorrectionRequested, "notify.correction", n.handle)
}

func (n *Notifier) handle(ctx context.Context, evt *event.Event) error {
	subject, body := render(evt)
	if err := n.sender.Send(ctx, subject, body); err != nil {
		// Delivery failure must not affect the operation that emitted the
		// event. Log and swallow.
		n.logger.Error("Notification delivery failed",
			zap.String("event_type", evt.Type.String()),
			zap.Int64("report_id", evt.ReportID),
			zap.Error(err))
	}
	return nil
}

func render(evt *event.Event) (subject, body string) {
	switch evt.Type {
	case event.TypeDeterminationExempt:
		subject = fmt.Sprintf("Report %d exempt", evt.ReportID)
		body = fmt.Sprintf("Report %d was determined exempt (%s), certificate %s.",
			evt.ReportID, evt.GetPayloadString("reason"), evt.GetPayloadString("certificate_id"))
	case event.TypeLinksSent:
		subject = fmt.Sprintf("Party links issued for report %d", evt.ReportID)
		body = fmt.Sprintf("%d party links were issued for report %d.",
			evt.GetPayloadInt("party_count"), evt.ReportID)
	case event.TypePartySubmitted:
		subject = fmt.Sprintf("Party submission received for report %d", evt.ReportID)
		body = fmt.Sprintf("Party %d submitted its information for report %d.",
			evt.GetPayloadInt("party_id"), evt.ReportID)
	case event.TypeReportReady:
		subject = fmt.Sprintf("Report %d ready to file", evt.ReportID)
		body = fmt.Sprintf("All required parties for report %d have submitted.", evt.ReportID)
	case event.TypeReportFiled:
		subject = fmt.Sprintf("Report %d filed", evt.ReportID)
		body = fmt.Sprintf("Report %d was filed, receipt %s.",
			evt.ReportID, evt.GetPayloadString("receipt_id"))
	case event.TypeCorrectionRequested:
		subject = fmt.Sprintf("Corrections requested on report %d", evt.ReportID)
		body = fmt.Sprintf("Corrections were requested from party %d on report %d: %s",
			evt.GetPayloadInt("party_id"), evt.ReportID, evt.GetPayloadString("note"))
	default:
		subject = fmt.Sprintf("Event %s on report %d", evt.Type, evt.ReportID)
		body = subject
	}
	return subject, body
}
