package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TriNguyen2808/backend-eventapp/internal/issuer"
	"github.com/TriNguyen2808/backend-eventapp/internal/logger"
	paydb "github.com/TriNguyen2808/backend-eventapp/internal/payment/db"
	payredis "github.com/TriNguyen2808/backend-eventapp/internal/payment/redis"
	"github.com/TriNguyen2808/backend-eventapp/internal/utils"
	"github.com/TriNguyen2808/backend-eventapp/internal/vnpay"
)

// VNPayHandler terminates the two gateway callbacks: the server-to-server
// IPN, which is the authoritative settlement trigger, and the browser
// return, which only reports the outcome to the customer.
type VNPayHandler struct {
	Adapter  *vnpay.Adapter
	Issuer   *issuer.Service
	Sessions *paydb.DB
	Lock     *payredis.Redis
	Logger   *logger.Logger
}

func NewVNPayHandler(adapter *vnpay.Adapter, issuerSvc *issuer.Service, sessions *paydb.DB, lock *payredis.Redis, log *logger.Logger) *VNPayHandler {
	return &VNPayHandler{
		Adapter:  adapter,
		Issuer:   issuerSvc,
		Sessions: sessions,
		Lock:     lock,
		Logger:   log,
	}
}

// IPN answers the gateway's instant payment notification. Whatever happens
// internally, the response is always HTTP 200 with one of the protocol's
// acknowledgment codes; anything else makes the gateway retry forever.
func (h *VNPayHandler) IPN(c *gin.Context) {
	query := c.Request.URL.Query()
	if len(query) == 0 {
		c.JSON(http.StatusOK, vnpay.Ack{RspCode: vnpay.RspInvalidRequest, Message: "Invalid request"})
		return
	}

	cb, err := h.Adapter.ParseCallback(query)
	if err != nil {
		if errors.Is(err, vnpay.ErrSignatureMismatch) || errors.Is(err, vnpay.ErrMissingSignature) {
			h.Logger.LogSecurity("IPN_SIGNATURE", fmt.Sprintf("rejected callback: %v", err))
			c.JSON(http.StatusOK, vnpay.Ack{RspCode: vnpay.RspInvalidSignature, Message: "Invalid signature"})
			return
		}
		c.JSON(http.StatusOK, vnpay.Ack{RspCode: vnpay.RspInvalidRequest, Message: "Invalid request"})
		return
	}

	session, err := h.Sessions.GetByID(c.Request.Context(), cb.OrderID)
	if errors.Is(err, paydb.ErrSessionNotFound) {
		c.JSON(http.StatusOK, vnpay.Ack{RspCode: vnpay.RspOrderNotFound, Message: "Order not found"})
		return
	}
	if err != nil {
		h.Logger.Error("GATEWAY", fmt.Sprintf("load session %s: %v", cb.OrderID, err))
		c.JSON(http.StatusOK, vnpay.Ack{RspCode: vnpay.RspInvalidRequest, Message: "Invalid request"})
		return
	}

	if !cb.Amount.Equal(session.Amount) {
		h.Logger.LogSecurity("IPN_AMOUNT", fmt.Sprintf("order %s: callback amount %s != session amount %s", cb.OrderID, cb.Amount, session.Amount))
		c.JSON(http.StatusOK, vnpay.Ack{RspCode: vnpay.RspInvalidAmount, Message: "Invalid amount"})
		return
	}

	// The lock only spares duplicate settlement work when IPN and browser
	// return race; correctness comes from the status compare-and-set.
	if h.Lock != nil {
		if ok, err := h.Lock.LockSession(c.Request.Context(), cb.OrderID, "ipn"); err == nil && ok {
			defer h.Lock.UnlockSession(c.Request.Context(), cb.OrderID, "ipn")
		}
	}

	transactionID := cb.TransactionNo
	if transactionID == "" {
		transactionID = utils.GenerateTransactionID()
	}

	if cb.Succeeded() {
		_, err = h.Issuer.SettleSuccess(c.Request.Context(), cb.OrderID, transactionID)
	} else {
		err = h.Issuer.SettleFailure(c.Request.Context(), cb.OrderID, transactionID)
	}
	if errors.Is(err, paydb.ErrAlreadySettled) {
		c.JSON(http.StatusOK, vnpay.Ack{RspCode: vnpay.RspOrderAlreadyUpdated, Message: "Order already updated"})
		return
	}
	if err != nil {
		h.Logger.Error("GATEWAY", fmt.Sprintf("settle %s: %v", cb.OrderID, err))
		c.JSON(http.StatusOK, vnpay.Ack{RspCode: vnpay.RspInvalidRequest, Message: "Invalid request"})
		return
	}

	h.Logger.LogGateway("IPN", cb.OrderID, fmt.Sprintf("settled with response code %s", cb.ResponseCode))
	c.JSON(http.StatusOK, vnpay.Ack{RspCode: vnpay.RspConfirmSuccess, Message: "Confirm success"})
}

// Return handles the customer's browser redirect back from the gateway. It
// settles too, so the customer sees their ticket even when the IPN is slow,
// but a replay is a harmless no-op.
func (h *VNPayHandler) Return(c *gin.Context) {
	cb, err := h.Adapter.ParseCallback(c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid payment callback", err.Error()))
		return
	}

	session, err := h.Sessions.GetByID(c.Request.Context(), cb.OrderID)
	if errors.Is(err, paydb.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, utils.ErrorResponse("Payment session not found", err.Error()))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Could not load payment session", err.Error()))
		return
	}

	// Same cross-check as the IPN: a callback whose signed amount disagrees
	// with the session must not settle anything.
	if !cb.Amount.Equal(session.Amount) {
		h.Logger.LogSecurity("RETURN_AMOUNT", fmt.Sprintf("order %s: callback amount %s != session amount %s", cb.OrderID, cb.Amount, session.Amount))
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid payment amount", "callback amount does not match the payment session"))
		return
	}

	if h.Lock != nil {
		if ok, err := h.Lock.LockSession(c.Request.Context(), cb.OrderID, "return"); err == nil && ok {
			defer h.Lock.UnlockSession(c.Request.Context(), cb.OrderID, "return")
		}
	}

	transactionID := cb.TransactionNo
	if transactionID == "" {
		transactionID = utils.GenerateTransactionID()
	}

	if cb.Succeeded() {
		ticket, err := h.Issuer.SettleSuccess(c.Request.Context(), cb.OrderID, transactionID)
		if err != nil && !errors.Is(err, paydb.ErrAlreadySettled) {
			c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Could not finalize payment", err.Error()))
			return
		}

		session, err = h.Sessions.GetByID(c.Request.Context(), cb.OrderID)
		if err != nil {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Payment session not found", err.Error()))
			return
		}
		data := gin.H{"order_id": session.OrderID, "status": session.Status}
		if ticket != nil {
			data["ticket_code"] = ticket.TicketCode
		} else if session.TicketID != "" {
			data["ticket_id"] = session.TicketID
		}
		c.JSON(http.StatusOK, utils.SuccessResponse("Payment successful", data))
		return
	}

	if err := h.Issuer.SettleFailure(c.Request.Context(), cb.OrderID, transactionID); err != nil && !errors.Is(err, paydb.ErrAlreadySettled) {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Could not record payment failure", err.Error()))
		return
	}
	c.JSON(http.StatusOK, utils.ErrorResponse("Payment failed", fmt.Sprintf("gateway response code %s", cb.ResponseCode)))
}
