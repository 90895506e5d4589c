package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/TriNguyen2808/backend-eventapp/internal/logger"
	"github.com/TriNguyen2808/backend-eventapp/internal/models"
	"github.com/TriNguyen2808/backend-eventapp/internal/utils"
)

var (
	ErrAlreadyCheckedIn   = errors.New("tickets: ticket already checked in")
	ErrEventNotStarted    = errors.New("tickets: event has not started yet")
	ErrCodeSpaceExhausted = errors.New("tickets: could not find a free ticket code")
)

const codeRetries = 5

// DBLayer is the persistence surface the service needs.
type DBLayer interface {
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error)
	UpdateTicket(ctx context.Context, ticket *models.Ticket) error
	TicketCodeExists(ctx context.Context, code string) (bool, error)
	GetTicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error)
}

// Catalog resolves the event a ticket belongs to.
type Catalog interface {
	GetTicketClass(ctx context.Context, id int64) (*models.TicketClass, error)
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
}

// UserStore resolves the ticket holder for the check-in receipt.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

type Service struct {
	DB      DBLayer
	Catalog Catalog
	Users   UserStore
	Logger  *logger.Logger
}

func NewService(db DBLayer, catalog Catalog, users UserStore, log *logger.Logger) *Service {
	return &Service{DB: db, Catalog: catalog, Users: users, Logger: log}
}

// GenerateTicketCode builds a human-readable entry code from the event name
// initials, the event date and a random 6-digit suffix, retrying on the rare
// collision. Example: "HNCN-25122024-083914" for "Hội Nghị Công Nghệ" on
// 25 Dec 2024.
func (s *Service) GenerateTicketCode(ctx context.Context, event *models.Event) (string, error) {
	prefix := eventInitials(event.Name)
	datePart := event.StartTime.Format("02012006")

	for attempt := 0; attempt < codeRetries; attempt++ {
		code := fmt.Sprintf("%s-%s-%s", prefix, datePart, utils.RandomDigits(6))
		exists, err := s.DB.TicketCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check ticket code: %w", err)
		}
		if !exists {
			return code, nil
		}
		s.Logger.LogDatabase("COLLISION", "tickets", fmt.Sprintf("ticket code %s already taken, retrying", code))
	}
	return "", ErrCodeSpaceExhausted
}

// eventInitials folds the event name to unaccented ASCII and takes the first
// letter of each word, uppercased. Vietnamese đ/Đ does not decompose under
// NFD, so it gets mapped by hand.
func eventInitials(name string) string {
	stripped := stripDiacritics(name)

	var b strings.Builder
	for _, word := range strings.Fields(stripped) {
		r := []rune(word)[0]
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	if b.Len() == 0 {
		return "EVT"
	}
	return b.String()
}

func stripDiacritics(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case 'đ':
			return 'd'
		case 'Đ':
			return 'D'
		}
		return r
	}, s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// CheckInResult is the gate receipt: the updated ticket plus the holder,
// event and class names the scanner displays.
type CheckInResult struct {
	Ticket      *models.Ticket
	UserName    string
	EventName   string
	TicketClass string
}

// CheckIn marks a ticket as used at the gate. It rejects tickets for events
// that have not started and tickets that were already scanned.
func (s *Service) CheckIn(ctx context.Context, ticketCode string, now time.Time) (*CheckInResult, error) {
	ticket, err := s.DB.GetTicketByCode(ctx, ticketCode)
	if err != nil {
		return nil, err
	}

	tc, err := s.Catalog.GetTicketClass(ctx, ticket.TicketClassID)
	if err != nil {
		return nil, err
	}
	event, err := s.Catalog.GetEvent(ctx, tc.EventID)
	if err != nil {
		return nil, err
	}

	if now.Before(event.StartTime) {
		return nil, ErrEventNotStarted
	}
	if ticket.CheckedIn {
		return nil, ErrAlreadyCheckedIn
	}

	ticket.CheckedIn = true
	ticket.CheckedInTime = now
	if err := s.DB.UpdateTicket(ctx, ticket); err != nil {
		return nil, fmt.Errorf("record check-in: %w", err)
	}

	holder := ticket.UserID
	if user, err := s.Users.GetUser(ctx, ticket.UserID); err == nil {
		holder = user.FullName
		if holder == "" {
			holder = user.Username
		}
	}

	s.Logger.LogPayment("CHECK_IN", ticket.TicketID, fmt.Sprintf("ticket %s checked in", ticket.TicketCode))
	return &CheckInResult{
		Ticket:      ticket,
		UserName:    holder,
		EventName:   event.Name,
		TicketClass: tc.Name,
	}, nil
}

// MyTickets lists the caller's tickets, newest booking first.
func (s *Service) MyTickets(ctx context.Context, userID string) ([]models.Ticket, error) {
	return s.DB.GetTicketsByUser(ctx, userID)
}
