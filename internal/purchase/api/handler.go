package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/TriNguyen2808/backend-eventapp/internal/auth"
	"github.com/TriNguyen2808/backend-eventapp/internal/catalog"
	"github.com/TriNguyen2808/backend-eventapp/internal/identity"
	"github.com/TriNguyen2808/backend-eventapp/internal/inventory"
	"github.com/TriNguyen2808/backend-eventapp/internal/models"
	paydb "github.com/TriNguyen2808/backend-eventapp/internal/payment/db"
	"github.com/TriNguyen2808/backend-eventapp/internal/pricing"
	"github.com/TriNguyen2808/backend-eventapp/internal/purchase"
	"github.com/TriNguyen2808/backend-eventapp/internal/tickets"
	ticketdb "github.com/TriNguyen2808/backend-eventapp/internal/tickets/db"
	"github.com/TriNguyen2808/backend-eventapp/internal/utils"
)

type Handler struct {
	Purchase *purchase.Service
	Tickets  *tickets.Service
}

func NewHandler(purchaseSvc *purchase.Service, ticketSvc *tickets.Service) *Handler {
	return &Handler{Purchase: purchaseSvc, Tickets: ticketSvc}
}

// BuyTicket opens a payment session and returns the gateway redirect URL.
func (h *Handler) BuyTicket(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing user identity"))
		return
	}

	var req models.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if req.TicketClassID == 0 {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", "ticket_class_id is required"))
		return
	}

	resp, err := h.Purchase.Purchase(r.Context(), userID, req, clientIP(r))
	if err != nil {
		h.writePurchaseError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, utils.SuccessResponse("Payment session created", resp))
}

// SessionStatus reports the state of the caller's payment session.
func (h *Handler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	orderID := chi.URLParam(r, "orderId")

	status, err := h.Purchase.SessionStatus(r.Context(), userID, orderID)
	if errors.Is(err, paydb.ErrSessionNotFound) {
		writeJSON(w, http.StatusNotFound, utils.CodedErrorResponse("SESSION_NOT_FOUND", "Payment session not found", err.Error()))
		return
	}
	if errors.Is(err, purchase.ErrNotSessionOwner) {
		writeJSON(w, http.StatusForbidden, utils.CodedErrorResponse("NOT_OWNER", "Payment session belongs to another user", err.Error()))
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not load payment session", err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Payment session status", status))
}

// MyTickets lists the caller's tickets.
func (h *Handler) MyTickets(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing user identity"))
		return
	}

	list, err := h.Tickets.MyTickets(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not load tickets", err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Tickets", list))
}

// CheckIn marks a ticket as used at the gate.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req models.CheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TicketCode == "" {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", "ticket_code is required"))
		return
	}

	result, err := h.Tickets.CheckIn(r.Context(), req.TicketCode, time.Now())
	switch {
	case errors.Is(err, ticketdb.ErrTicketNotFound):
		writeJSON(w, http.StatusNotFound, utils.CodedErrorResponse("TICKET_NOT_FOUND", "Ticket not found", err.Error()))
		return
	case errors.Is(err, tickets.ErrAlreadyCheckedIn):
		writeJSON(w, http.StatusConflict, utils.CodedErrorResponse("ALREADY_CHECKED_IN", "Ticket already checked in", err.Error()))
		return
	case errors.Is(err, tickets.ErrEventNotStarted):
		writeJSON(w, http.StatusConflict, utils.CodedErrorResponse("EVENT_NOT_STARTED", "Event has not started yet", err.Error()))
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not check in ticket", err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Checked in", models.CheckInResponse{
		TicketCode:    result.Ticket.TicketCode,
		UserName:      result.UserName,
		EventName:     result.EventName,
		TicketClass:   result.TicketClass,
		CheckedInTime: result.Ticket.CheckedInTime.Format("2006-01-02 15:04:05"),
	}))
}

func (h *Handler) writePurchaseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, utils.CodedErrorResponse("USER_NOT_FOUND", "User not found", err.Error()))
	case errors.Is(err, catalog.ErrTicketClassNotFound), errors.Is(err, catalog.ErrEventNotFound):
		writeJSON(w, http.StatusNotFound, utils.CodedErrorResponse("TICKET_CLASS_NOT_FOUND", "Ticket class not found", err.Error()))
	case errors.Is(err, purchase.ErrEventNotOnSale):
		writeJSON(w, http.StatusConflict, utils.CodedErrorResponse("EVENT_NOT_ON_SALE", "Event is not on sale", err.Error()))
	case errors.Is(err, inventory.ErrSoldOut):
		writeJSON(w, http.StatusConflict, utils.CodedErrorResponse("SOLD_OUT", "Ticket class is sold out", err.Error()))
	case errors.Is(err, inventory.ErrTicketClassMissing):
		writeJSON(w, http.StatusNotFound, utils.CodedErrorResponse("TICKET_CLASS_NOT_FOUND", "Ticket class not found", err.Error()))
	case errors.Is(err, pricing.ErrDiscountInvalid):
		writeJSON(w, http.StatusUnprocessableEntity, utils.CodedErrorResponse("DISCOUNT_INVALID", "Discount code invalid or expired", err.Error()))
	case errors.Is(err, pricing.ErrDiscountAlreadyUsed):
		writeJSON(w, http.StatusUnprocessableEntity, utils.CodedErrorResponse("DISCOUNT_ALREADY_USED", "Discount code already used", err.Error()))
	case errors.Is(err, pricing.ErrDiscountNotApplicableToEvent):
		writeJSON(w, http.StatusUnprocessableEntity, utils.CodedErrorResponse("DISCOUNT_NOT_FOR_EVENT", "Discount code does not apply to this event", err.Error()))
	case errors.Is(err, pricing.ErrDiscountNotApplicableToGroup):
		writeJSON(w, http.StatusUnprocessableEntity, utils.CodedErrorResponse("DISCOUNT_NOT_FOR_GROUP", "Discount code does not apply to your customer group", err.Error()))
	case errors.Is(err, pricing.ErrDiscountUsageCapReached):
		writeJSON(w, http.StatusUnprocessableEntity, utils.CodedErrorResponse("DISCOUNT_CAP_REACHED", "Discount code usage cap reached", err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not create payment session", err.Error()))
	}
}

func writeJSON(w http.ResponseWriter, status int, body utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
