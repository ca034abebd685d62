package main

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/autoparts-payments/internal/gateway"
	"github.com/MikeMC777/autoparts-payments/internal/httpx"
	ord "github.com/MikeMC777/autoparts-payments/internal/order"
	"github.com/MikeMC777/autoparts-payments/internal/payment"
	"github.com/MikeMC777/autoparts-payments/internal/product"
)

const signatureHeader = "X-Paymob-Signature"

type initiateRequest struct {
	CartItems      []payment.CartItem `json:"cartItems"`
	BillingData    map[string]any     `json:"billingData"`
	Amount         payment.FlexString `json:"amount"`
	InspectionFees payment.FlexString `json:"inspectionFees"`
}

// writeError is the single place errors become HTTP responses.
func writeError(c *gin.Context, err error) {
	status, msg, details := classify(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[http] rid=%s %s %s: %v", httpx.GetRequestID(c), c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"success": false, "error": msg, "details": details})
}

func classify(err error) (int, string, string) {
	var (
		ve  *payment.ValidationError
		ie  *ord.ItemError
		de  *ord.DuplicateOrderError
		ae  *gateway.AuthError
		oe  *gateway.OrderError
		vfe *gateway.VerificationError
		pe  *ord.PersistenceError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error(), ""
	case errors.Is(err, payment.ErrMissingOrderID):
		return http.StatusBadRequest, err.Error(), ""
	case errors.As(err, &ie):
		msg := "cart item " + strconv.Itoa(ie.Index) + " could not be saved"
		if errors.Is(ie, product.ErrNotFound) {
			msg = "cart item " + strconv.Itoa(ie.Index) + " references an unknown product"
		}
		return http.StatusBadRequest, msg, ie.Error()
	case errors.As(err, &de):
		return http.StatusConflict, de.Error(), ""
	case errors.Is(err, ord.ErrNotFound):
		return http.StatusNotFound, "order not found", ""
	case errors.As(err, &ae), errors.As(err, &oe), errors.As(err, &vfe):
		details := gateway.Detail(err)
		if details == "" {
			details = err.Error()
		}
		return http.StatusBadGateway, "payment gateway error", details
	case errors.As(err, &pe):
		return http.StatusInternalServerError, "could not save payment data", ""
	}
	return http.StatusInternalServerError, "internal error", ""
}

// initiateHandler godoc
// @Summary      Start a checkout
// @Description  Mints a gateway order and payment key and records a pending order.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-User-ID  header  string  false  "authenticated user id"
// @Success      201  {object}  map[string]any
// @Failure      400  {object}  map[string]any
// @Failure      409  {object}  map[string]any
// @Failure      502  {object}  map[string]any
// @Router       /payments/initiate [post]
func initiateHandler(co *payment.Checkout) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req initiateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body", "details": err.Error()})
			return
		}
		amount, err := parseAmount(req.Amount, "amount", true)
		if err != nil {
			writeError(c, err)
			return
		}
		fees, err := parseAmount(req.InspectionFees, "inspectionFees", false)
		if err != nil {
			writeError(c, err)
			return
		}

		res, err := co.Initiate(c.Request.Context(), payment.CheckoutInput{
			CartItems:      req.CartItems,
			Billing:        req.BillingData,
			Amount:         amount,
			InspectionFees: fees,
			UserID:         httpx.GetUserID(c),
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "paymentUrl": res.PaymentURL, "orderId": res.OrderID})
	}
}

func parseAmount(raw payment.FlexString, field string, required bool) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw.String())
	if s == "" {
		if required {
			return decimal.Zero, &payment.ValidationError{Field: field, Index: -1, Message: "is required"}
		}
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &payment.ValidationError{Field: field, Index: -1, Message: "must be a number"}
	}
	return d, nil
}

// webhookHandler godoc
// @Summary      Gateway push notification
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-Paymob-Signature  header  string  false  "hex HMAC-SHA512 of the body"
// @Param        hmac                query   string  false  "signature, when not sent as a header"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  map[string]any
// @Failure      401  {object}  map[string]any
// @Router       /payments/webhook [post]
func webhookHandler(rec *payment.Reconciler, repo ord.Repository, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "could not read body"})
			return
		}
		ctx := c.Request.Context()

		sig := c.GetHeader(signatureHeader)
		if sig == "" {
			sig = c.Query("hmac")
		}
		sigValid := secret != "" && gateway.VerifySignature(raw, sig, secret)
		if secret == "" {
			log.Printf("[webhook] rid=%s signature not enforced (PAYMOB_HMAC_SECRET unset)", httpx.GetRequestID(c))
		}

		cb, parseErr := payment.ParseWebhook(raw)
		ev := &ord.CallbackEvent{Channel: payment.ChannelWebhook, PayloadJSON: string(raw), SignatureValid: sigValid}
		if parseErr == nil && cb.OrderID > 0 {
			id := cb.OrderID
			ev.OrderID = &id
		}
		created, stored, err := repo.RecordCallbackEvent(ctx, ev)
		if err != nil {
			log.Printf("[webhook] rid=%s could not record event: %v", httpx.GetRequestID(c), err)
		}
		finish := func(procErr error) {
			if stored != nil {
				if err := repo.MarkCallbackProcessed(ctx, stored.ID, procErr); err != nil {
					log.Printf("[webhook] mark event %s processed: %v", stored.ID, err)
				}
			}
		}

		if secret != "" && !sigValid {
			finish(errors.New("invalid signature"))
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid signature"})
			return
		}
		if parseErr != nil {
			finish(parseErr)
			writeError(c, parseErr)
			return
		}

		out, err := rec.Apply(ctx, cb)
		finish(err)
		if err != nil {
			writeError(c, err)
			return
		}
		duplicate := stored != nil && !created
		if duplicate {
			log.Printf("[webhook] order %d: duplicate delivery applied again", out.OrderID)
		}
		c.JSON(http.StatusOK, gin.H{
			"success":       out.Success,
			"orderId":       out.OrderID,
			"paymentStatus": out.Status,
			"duplicate":     duplicate,
		})
	}
}

// resultHandler godoc
// @Summary      Browser return after payment
// @Tags         payments
// @Produce      json
// @Param        order           query  int     true   "order id"
// @Param        transaction_id  query  string  false  "gateway transaction id (or id)"
// @Success      200  {object}  map[string]any
// @Router       /payments/result [get]
func resultHandler(rec *payment.Reconciler, repo ord.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := applyRedirect(c, rec)
		if err != nil {
			status, msg, _ := classify(err)
			c.JSON(status, gin.H{"success": false, "error": msg})
			return
		}
		o, _, err := repo.GetByID(c.Request.Context(), out.OrderID)
		if err != nil {
			status, msg, _ := classify(err)
			c.JSON(status, gin.H{"success": false, "error": msg})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": out.Success,
			"order": gin.H{
				"id":     o.ID,
				"total":  o.TotalPrice,
				"status": o.PaymentStatus,
			},
		})
	}
}

// paymobCallbackHandler godoc
// @Summary      Gateway redirect callback
// @Tags         payments
// @Produce      json
// @Param        order           query  int     true   "order id"
// @Param        transaction_id  query  string  false  "gateway transaction id (or id)"
// @Success      200  {object}  map[string]any
// @Router       /payments/paymob-callback [get]
func paymobCallbackHandler(rec *payment.Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := applyRedirect(c, rec)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, outcomeJSON(out))
	}
}

func applyRedirect(c *gin.Context, rec *payment.Reconciler) (*payment.Outcome, error) {
	cb, err := payment.ParseRedirect(c.Request.URL.Query())
	if err != nil {
		return nil, err
	}
	return rec.Apply(c.Request.Context(), cb)
}

func outcomeJSON(out *payment.Outcome) gin.H {
	return gin.H{
		"success":       out.Success,
		"orderId":       out.OrderID,
		"transactionId": out.TransactionID,
		"status":        out.Status,
		"isRefunded":    out.IsRefunded,
		"amount":        out.Amount,
	}
}

// pollStatusHandler godoc
// @Summary      Poll the gateway for an order's transaction
// @Tags         payments
// @Produce      json
// @Param        id              path   int     true  "order id"
// @Param        transaction_id  query  string  true  "gateway transaction id"
// @Success      200  {object}  map[string]any
// @Router       /payments/orders/{id}/status [get]
func pollStatusHandler(rec *payment.Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderIDParam(c)
		if !ok {
			return
		}
		txID := strings.TrimSpace(c.Query("transaction_id"))
		if txID == "" {
			writeError(c, &payment.ValidationError{Field: "transaction_id", Index: -1, Message: "is required"})
			return
		}
		out, err := rec.Poll(c.Request.Context(), id, txID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, outcomeJSON(out))
	}
}

// getOrderHandler godoc
// @Summary      Order with its items
// @Tags         orders
// @Produce      json
// @Param        id  path  int  true  "order id"
// @Success      200  {object}  map[string]any
// @Failure      404  {object}  map[string]any
// @Router       /payments/orders/{id} [get]
func getOrderHandler(repo ord.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderIDParam(c)
		if !ok {
			return
		}
		o, items, err := repo.GetByID(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		// owned orders look missing to anyone but the owner
		if uid := httpx.GetUserID(c); o.UserID != nil && (uid == nil || *uid != *o.UserID) {
			writeError(c, ord.ErrNotFound)
			return
		}
		if items == nil {
			items = []ord.Item{}
		}
		c.JSON(http.StatusOK, gin.H{"order": o, "items": items})
	}
}

// listOrdersHandler godoc
// @Summary      Orders of the calling user
// @Tags         orders
// @Produce      json
// @Param        X-User-ID  header  string  true   "authenticated user id"
// @Param        limit      query   int     false  "page size (max 100)"
// @Param        offset     query   int     false  "offset"
// @Success      200  {object}  map[string]any
// @Failure      401  {object}  map[string]any
// @Router       /payments/orders [get]
func listOrdersHandler(repo ord.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := httpx.GetUserID(c)
		if uid == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		orders, err := repo.ListByUser(c.Request.Context(), *uid, limit, offset)
		if err != nil {
			writeError(c, err)
			return
		}
		if orders == nil {
			orders = []ord.Order{}
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders})
	}
}

func orderIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid order id"})
		return 0, false
	}
	return id, true
}
