package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/taxline/whatsapp-engine/internal/appointments"
	"github.com/taxline/whatsapp-engine/internal/observability/metrics"
	"github.com/taxline/whatsapp-engine/internal/taxfilings"
	"github.com/taxline/whatsapp-engine/internal/tickets"
	"github.com/taxline/whatsapp-engine/internal/whatsapp"
)

// Sender delivers outbound WhatsApp messages. Implemented by
// whatsapp.Client; faked in tests.
type Sender interface {
	SendText(ctx context.Context, to, body string) (string, error)
	SendList(ctx context.Context, to string, list whatsapp.List) (string, error)
	SendButtons(ctx context.Context, to string, buttons whatsapp.Buttons) (string, error)
}

// AppointmentBooker creates confirmed appointments.
type AppointmentBooker interface {
	CreateScheduled(ctx context.Context, phoneNumber, date, timeOfDay string) (*appointments.Appointment, error)
}

// TicketOpener opens support tickets.
type TicketOpener interface {
	Open(ctx context.Context, phoneNumber, message string) (*tickets.Ticket, error)
}

// RefundLookup resolves the latest filing for a number.
type RefundLookup interface {
	LatestByPhone(ctx context.Context, phoneNumber string) (*taxfilings.Filing, error)
}

// DocumentArchiver flushes a finished upload session to durable storage.
type DocumentArchiver interface {
	SaveBatch(ctx context.Context, phoneNumber string, docs []DocumentRef) error
}

var (
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// EngineConfig wires the engine's collaborators. Store and Sender are
// required; everything else degrades gracefully when absent.
type EngineConfig struct {
	Store        *Store
	Cache        *Cache
	Sender       Sender
	Advisor      Advisor
	Appointments AppointmentBooker
	Tickets      TicketOpener
	Filings      RefundLookup
	Documents    DocumentArchiver
	History      *HistoryStore
	Metrics      *metrics.EngineMetrics
	Logger       *slog.Logger
	Now          func() time.Time
}

// Engine runs the per-phone-number state machine. All message handling for a
// given number is serialized; distinct numbers are handled concurrently.
type Engine struct {
	store        *Store
	cache        *Cache
	locks        *phoneLocks
	sender       Sender
	advisor      Advisor
	appointments AppointmentBooker
	tickets      TicketOpener
	filings      RefundLookup
	documents    DocumentArchiver
	history      *HistoryStore
	metrics      *metrics.EngineMetrics
	logger       *slog.Logger
	now          func() time.Time
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("conversation: engine requires a store")
	}
	if cfg.Sender == nil {
		return nil, errors.New("conversation: engine requires a sender")
	}
	if cfg.Advisor == nil {
		cfg.Advisor = NewCannedAdvisor()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		store:        cfg.Store,
		cache:        cfg.Cache,
		locks:        newPhoneLocks(),
		sender:       cfg.Sender,
		advisor:      cfg.Advisor,
		appointments: cfg.Appointments,
		tickets:      cfg.Tickets,
		filings:      cfg.Filings,
		documents:    cfg.Documents,
		history:      cfg.History,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}, nil
}

// Handle processes one inbound message for a phone number, mutating and
// persisting the conversation and sending whatever replies the transition
// calls for. Failed sends are logged but never roll back state; a failed
// durable side effect aborts before any state change.
func (e *Engine) Handle(ctx context.Context, phoneNumber string, msg Message) error {
	phone := whatsapp.NormalizeDigits(phoneNumber)
	if phone == "" {
		e.metrics.ObserveInbound(string(msg.Type), "rejected")
		return errors.New("conversation: phone number required")
	}

	release := e.locks.acquire(phone)
	defer release()

	conv, err := e.load(ctx, phone)
	if err != nil {
		e.metrics.ObserveInbound(string(msg.Type), "error")
		e.sendText(ctx, phone, loadFailedText)
		return err
	}

	e.recordInbound(ctx, conv, msg)

	if cmd, ok := globalCommand(msg); ok {
		err := e.handleCommand(ctx, conv, cmd)
		e.observeHandled(msg, err)
		return err
	}

	// A finished conversation wakes back up on any contact.
	if conv.State == StateEnded {
		e.transition(conv, StateMenu)
		conv.Context = Context{}
		e.sendText(ctx, phone, greetingText)
		e.sendList(ctx, phone, menuList())
		err := e.persist(ctx, conv)
		e.observeHandled(msg, err)
		return err
	}

	switch conv.State {
	case StateMenu:
		err = e.handleMenu(ctx, conv, msg)
	case StateTaxQuestion:
		err = e.handleTaxQuestion(ctx, conv, msg)
	case StateTaxResponse:
		err = e.handleTaxResponse(ctx, conv, msg)
	case StateAppointmentDate:
		err = e.handleAppointmentDate(ctx, conv, msg)
	case StateAppointmentTime:
		err = e.handleAppointmentTime(ctx, conv, msg)
	case StateAppointmentConfirm:
		err = e.handleAppointmentConfirm(ctx, conv, msg)
	case StateDocumentUpload:
		err = e.handleDocumentUpload(ctx, conv, msg)
	case StateSupport:
		err = e.handleSupport(ctx, conv, msg)
	default:
		// Unknown persisted state: recover to the menu rather than wedge.
		e.logger.Warn("resetting unknown conversation state",
			"phone_number", phone, "state", string(conv.State))
		e.transition(conv, StateMenu)
		conv.Context = Context{}
		e.sendList(ctx, phone, menuList())
		err = e.persist(ctx, conv)
	}
	e.observeHandled(msg, err)
	return err
}

func (e *Engine) observeHandled(msg Message, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.metrics.ObserveInbound(string(msg.Type), status)
}

// load retrieves the conversation from cache, then store, creating a fresh
// menu-state conversation for numbers never seen before.
func (e *Engine) load(ctx context.Context, phone string) (*Conversation, error) {
	if conv, ok := e.cache.Get(phone); ok {
		return conv, nil
	}
	conv, err := e.store.Get(ctx, phone)
	if err == nil {
		e.cache.Put(conv)
		return conv, nil
	}
	if errors.Is(err, ErrNotFound) {
		return NewConversation(phone, e.now().UTC()), nil
	}
	return nil, err
}

func (e *Engine) persist(ctx context.Context, conv *Conversation) error {
	conv.UpdatedAt = e.now().UTC()
	e.cache.Put(conv)
	if err := e.store.Put(ctx, conv); err != nil {
		e.logger.Error("persist conversation failed",
			"phone_number", conv.PhoneNumber, "state", string(conv.State), "error", err)
		return err
	}
	return nil
}

func (e *Engine) transition(conv *Conversation, to State) {
	if conv.State == to {
		return
	}
	e.metrics.ObserveTransition(string(conv.State), string(to))
	e.logger.Debug("conversation transition",
		"phone_number", conv.PhoneNumber, "from", string(conv.State), "to", string(to))
	conv.State = to
}

// globalCommand matches the text commands honored in every state.
func globalCommand(msg Message) (string, bool) {
	if msg.Type != MessageText {
		return "", false
	}
	switch strings.ToLower(strings.TrimSpace(msg.Text)) {
	case "hi", "hello", "menu":
		return "menu", true
	case "stop", "exit":
		return "stop", true
	}
	return "", false
}

func (e *Engine) handleCommand(ctx context.Context, conv *Conversation, cmd string) error {
	phone := conv.PhoneNumber
	switch cmd {
	case "menu":
		e.transition(conv, StateMenu)
		conv.Context = Context{}
		e.sendText(ctx, phone, greetingText)
		e.sendList(ctx, phone, menuList())
		return e.persist(ctx, conv)
	case "stop":
		e.transition(conv, StateEnded)
		conv.Context = Context{}
		e.sendText(ctx, phone, farewellText)
		if err := e.persist(ctx, conv); err != nil {
			return err
		}
		e.cache.Remove(phone)
		return nil
	}
	return fmt.Errorf("conversation: unknown command %q", cmd)
}

// menuSelection resolves an inbound message to a menu option id, accepting
// both list replies and the numeric text shortcuts.
func menuSelection(msg Message) (string, bool) {
	switch msg.Type {
	case MessageInteractive:
		switch msg.ReplyID {
		case menuTaxQuestion, menuAppointment, menuDocuments, menuRefundStatus, menuSupport:
			return msg.ReplyID, true
		}
	case MessageText:
		if id, ok := menuChoiceByNumber[strings.TrimSpace(msg.Text)]; ok {
			return id, true
		}
	}
	return "", false
}

func (e *Engine) handleMenu(ctx context.Context, conv *Conversation, msg Message) error {
	phone := conv.PhoneNumber
	choice, ok := menuSelection(msg)
	if !ok {
		if msg.Type == MessageText || msg.Type == MessageInteractive {
			e.sendText(ctx, phone, invalidChoiceText)
		} else {
			e.sendText(ctx, phone, cannotProcessText)
		}
		e.sendList(ctx, phone, menuList())
		return e.persist(ctx, conv)
	}

	switch choice {
	case menuTaxQuestion:
		e.transition(conv, StateTaxQuestion)
		e.sendText(ctx, phone, taxQuestionPrompt)
	case menuAppointment:
		e.transition(conv, StateAppointmentDate)
		e.sendText(ctx, phone, appointmentDatePrompt)
	case menuDocuments:
		e.transition(conv, StateDocumentUpload)
		e.sendText(ctx, phone, documentUploadPrompt)
	case menuSupport:
		e.transition(conv, StateSupport)
		e.sendText(ctx, phone, supportPrompt)
	case menuRefundStatus:
		// Immediate lookup; the conversation stays on the menu.
		if e.filings == nil {
			e.sendText(ctx, phone, refundNoFilingText)
			e.sendList(ctx, phone, menuList())
			return e.persist(ctx, conv)
		}
		filing, err := e.filings.LatestByPhone(ctx, phone)
		if err != nil {
			if errors.Is(err, taxfilings.ErrNoFiling) {
				e.sendText(ctx, phone, refundNoFilingText)
				e.sendList(ctx, phone, menuList())
				return e.persist(ctx, conv)
			}
			e.sendText(ctx, phone, refundFailedText)
			return err
		}
		e.sendText(ctx, phone, refundStatusText(filing.TaxYear, taxfilings.StatusLabel(filing.Status)))
		e.sendList(ctx, phone, menuList())
	}
	return e.persist(ctx, conv)
}

func (e *Engine) handleTaxQuestion(ctx context.Context, conv *Conversation, msg Message) error {
	phone := conv.PhoneNumber
	if msg.Type != MessageText || strings.TrimSpace(msg.Text) == "" {
		e.sendText(ctx, phone, cannotProcessText)
		return e.persist(ctx, conv)
	}

	question := strings.TrimSpace(msg.Text)
	answer, err := e.advisor.Answer(ctx, question)
	if err != nil {
		e.logger.Error("advisor answer failed", "phone_number", phone, "error", err)
		e.sendText(ctx, phone, taxAnswerFailedText)
		return e.persist(ctx, conv)
	}

	conv.Context.TaxQuestion = question
	e.transition(conv, StateTaxResponse)
	e.sendText(ctx, phone, answer)
	e.sendButtons(ctx, phone, taxFollowupButtons())
	return e.persist(ctx, conv)
}

func (e *Engine) handleTaxResponse(ctx context.Context, conv *Conversation, msg Message) error {
	phone := conv.PhoneNumber

	if msg.Type == MessageInteractive {
		switch msg.ReplyID {
		case replyAskAnother:
			e.transition(conv, StateTaxQuestion)
			conv.Context.TaxQuestion = ""
			e.sendText(ctx, phone, taxQuestionPrompt)
			return e.persist(ctx, conv)
		case replySpeakProfessional:
			if e.tickets == nil {
				e.sendText(ctx, phone, supportFailedText)
				return errors.New("conversation: no ticket opener configured")
			}
			body := "Tax professional follow-up requested."
			if conv.Context.TaxQuestion != "" {
				body = "Tax professional follow-up requested. Question: " + conv.Context.TaxQuestion
			}
			ticket, err := e.tickets.Open(ctx, phone, body)
			if err != nil {
				e.sendText(ctx, phone, supportFailedText)
				return err
			}
			e.transition(conv, StateMenu)
			conv.Context = Context{}
			e.sendText(ctx, phone, professionalTicketText(ticket.ID))
			e.sendList(ctx, phone, menuList())
			return e.persist(ctx, conv)
		case replyReturnMenu:
			e.transition(conv, StateMenu)
			conv.Context = Context{}
			e.sendList(ctx, phone, menuList())
			return e.persist(ctx, conv)
		}
	}

	// Anything other than the three follow-up buttons falls back to the menu.
	e.transition(conv, StateMenu)
	conv.Context = Context{}
	e.sendList(ctx, phone, menuList())
	return e.persist(ctx, conv)
}

func (e *Engine) handleAppointmentDate(ctx context.Context, conv *Conversation, msg Message) error {
	phone := conv.PhoneNumber
	if msg.Type != MessageText {
		e.sendText(ctx, phone, appointmentDateFormatErr)
		return e.persist(ctx, conv)
	}

	date := strings.TrimSpace(msg.Text)
	if !datePattern.MatchString(date) {
		e.sendText(ctx, phone, appointmentDateFormatErr)
		return e.persist(ctx, conv)
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		e.sendText(ctx, phone, appointmentDateFormatErr)
		return e.persist(ctx, conv)
	}
	// Date-only comparison: today is bookable, yesterday is not.
	if date < e.now().UTC().Format("2006-01-02") {
		e.sendText(ctx, phone, appointmentDatePastErr)
		return e.persist(ctx, conv)
	}

	conv.Context.AppointmentDate = date
	e.transition(conv, StateAppointmentTime)
	e.sendText(ctx, phone, appointmentTimePrompt)
	return e.persist(ctx, conv)
}

func (e *Engine) handleAppointmentTime(ctx context.Context, conv *Conversation, msg Message) error {
	phone := conv.PhoneNumber
	if msg.Type != MessageText {
		e.sendText(ctx, phone, appointmentTimeFormatErr)
		return e.persist(ctx, conv)
	}

	timeOfDay := strings.TrimSpace(msg.Text)
	if !timePattern.MatchString(timeOfDay) {
		e.sendText(ctx, phone, appointmentTimeFormatErr)
		return e.persist(ctx, conv)
	}

	conv.Context.AppointmentTime = timeOfDay
	e.transition(conv, StateAppointmentConfirm)
	e.sendButtons(ctx, phone, appointmentConfirmButtons(conv.Context.AppointmentDate, timeOfDay))
	return e.persist(ctx, conv)
}

func (e *Engine) handleAppointmentConfirm(ctx context.Context, conv *Conversation, msg Message) error {
	phone := conv.PhoneNumber
	if msg.Type != MessageInteractive {
		e.sendButtons(ctx, phone, appointmentConfirmButtons(conv.Context.AppointmentDate, conv.Context.AppointmentTime))
		return e.persist(ctx, conv)
	}

	switch msg.ReplyID {
	case replyConfirmYes:
		if e.appointments == nil {
			e.sendText(ctx, phone, appointmentFailedText)
			return errors.New("conversation: no appointment booker configured")
		}
		appt, err := e.appointments.CreateScheduled(ctx, phone, conv.Context.AppointmentDate, conv.Context.AppointmentTime)
		if err != nil {
			// Booking failed durably: stay on the confirm step so the user
			// can simply tap again.
			e.sendText(ctx, phone, appointmentFailedText)
			return err
		}
		date, timeOfDay := conv.Context.AppointmentDate, conv.Context.AppointmentTime
		e.transition(conv, StateMenu)
		conv.Context = Context{}
		e.sendText(ctx, phone, appointmentBookedText(appt.ID, date, timeOfDay))
		e.sendList(ctx, phone, menuList())
	case replyConfirmNo:
		e.transition(conv, StateAppointmentDate)
		conv.Context.AppointmentDate = ""
		conv.Context.AppointmentTime = ""
		e.sendText(ctx, phone, appointmentDatePrompt)
	default:
		e.sendButtons(ctx, phone, appointmentConfirmButtons(conv.Context.AppointmentDate, conv.Context.AppointmentTime))
	}
	return e.persist(ctx, conv)
}

func (e *Engine) handleDocumentUpload(ctx context.Context, conv *Conversation, msg Message) error {
	phone := conv.PhoneNumber

	switch msg.Type {
	case MessageDocument, MessageImage:
		filename := msg.Filename
		if filename == "" {
			filename = "photo-" + e.now().UTC().Format("20060102-150405") + ".jpg"
		}
		ref := DocumentRef{
			FileID:     msg.FileID,
			Filename:   filename,
			MimeType:   msg.MimeType,
			ReceivedAt: e.now().UTC(),
		}
		conv.Context.Documents = append(conv.Context.Documents, ref)
		e.sendText(ctx, phone, documentReceivedText(filename, len(conv.Context.Documents)))
		return e.persist(ctx, conv)

	case MessageText:
		if strings.EqualFold(strings.TrimSpace(msg.Text), "done") {
			docs := conv.Context.Documents
			if len(docs) == 0 {
				e.transition(conv, StateMenu)
				e.sendText(ctx, phone, documentNoneDoneText)
				e.sendList(ctx, phone, menuList())
				return e.persist(ctx, conv)
			}
			if e.documents != nil {
				if err := e.documents.SaveBatch(ctx, phone, docs); err != nil {
					e.sendText(ctx, phone, documentFlushFailedErr)
					return err
				}
			}
			e.transition(conv, StateMenu)
			conv.Context = Context{}
			e.sendText(ctx, phone, documentsDoneText(len(docs)))
			e.sendList(ctx, phone, menuList())
			return e.persist(ctx, conv)
		}
		e.sendText(ctx, phone, documentRedirectText)
		return e.persist(ctx, conv)

	default:
		e.sendText(ctx, phone, documentRedirectText)
		return e.persist(ctx, conv)
	}
}

func (e *Engine) handleSupport(ctx context.Context, conv *Conversation, msg Message) error {
	phone := conv.PhoneNumber
	if msg.Type != MessageText || strings.TrimSpace(msg.Text) == "" {
		e.sendText(ctx, phone, cannotProcessText)
		return e.persist(ctx, conv)
	}

	if e.tickets == nil {
		e.sendText(ctx, phone, supportFailedText)
		return errors.New("conversation: no ticket opener configured")
	}
	ticket, err := e.tickets.Open(ctx, phone, strings.TrimSpace(msg.Text))
	if err != nil {
		e.sendText(ctx, phone, supportFailedText)
		return err
	}
	e.transition(conv, StateMenu)
	conv.Context = Context{}
	e.sendText(ctx, phone, ticketOpenedText(ticket.ID))
	e.sendList(ctx, phone, menuList())
	return e.persist(ctx, conv)
}

// Outbound helpers. Send failures are logged and counted, never propagated:
// by the time a reply goes out the transition has already happened.

func (e *Engine) sendText(ctx context.Context, phone, body string) {
	id, err := e.sender.SendText(ctx, phone, body)
	e.recordOutbound(ctx, phone, "text", body, id, err)
}

func (e *Engine) sendList(ctx context.Context, phone string, list whatsapp.List) {
	id, err := e.sender.SendList(ctx, phone, list)
	e.recordOutbound(ctx, phone, "list", list.Body, id, err)
}

func (e *Engine) sendButtons(ctx context.Context, phone string, buttons whatsapp.Buttons) {
	id, err := e.sender.SendButtons(ctx, phone, buttons)
	e.recordOutbound(ctx, phone, "buttons", buttons.Body, id, err)
}

func (e *Engine) recordOutbound(ctx context.Context, phone, kind, body, providerID string, err error) {
	if err != nil {
		e.metrics.ObserveOutbound(kind, "error")
		e.logger.Error("outbound send failed", "phone_number", phone, "kind", kind, "error", err)
		return
	}
	e.metrics.ObserveOutbound(kind, "ok")
	if histErr := e.history.Append(ctx, phone, HistoryEntry{
		Role:              "assistant",
		Body:              body,
		ProviderMessageID: providerID,
	}); histErr != nil {
		e.logger.Warn("history append failed", "phone_number", phone, "error", histErr)
	}
}

func (e *Engine) recordInbound(ctx context.Context, conv *Conversation, msg Message) {
	body := msg.Text
	switch msg.Type {
	case MessageInteractive:
		body = msg.ReplyID
	case MessageDocument, MessageImage:
		body = msg.Filename
	}
	if err := e.history.Append(ctx, conv.PhoneNumber, HistoryEntry{
		Role:              "user",
		Body:              body,
		State:             string(conv.State),
		ProviderMessageID: msg.ProviderID,
	}); err != nil {
		e.logger.Warn("history append failed", "phone_number", conv.PhoneNumber, "error", err)
	}
}
