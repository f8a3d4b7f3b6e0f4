package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"lovespark.app/admin/internal/common"
	"lovespark.app/admin/internal/features/admin"
	"lovespark.app/admin/internal/features/coins"
	"lovespark.app/admin/internal/features/premium"
	"lovespark.app/admin/internal/features/users"
)

type handlers struct {
	svc Services
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type fakeRequest struct {
	IsFake bool `json:"isFake"`
}

type userCoinsResponse struct {
	*coins.Summary
	Recent []*coins.Transaction `json:"recent"`
}

func (h *handlers) health(c *gin.Context) {
	if h.svc.Health != nil {
		if err := h.svc.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Password == "" {
		fail(c, common.ErrInvalidInput.WithMessage("нужен пароль"))
		return
	}
	session, err := h.svc.Auth.Login(c.Request.Context(), admin.WebSubject(c.ClientIP()), req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, loginResponse{Token: session.SessionToken, ExpiresAt: session.ExpiresAt})
}

// --- Монеты ---

func (h *handlers) adjustCoins(c *gin.Context) {
	var in coins.AdjustInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, common.ErrInvalidInput.WithMessage("некорректное тело запроса: %v", err))
		return
	}
	// Тип по знаку, если не указан; списание админом принимаем и положительной суммой
	if in.Type == "" {
		in.Type = coins.TxAdminAdd
		if in.Amount < 0 {
			in.Type = coins.TxAdminRemove
		}
	}
	if (in.Type == coins.TxAdminRemove || in.Type == coins.TxSpend) && in.Amount > 0 {
		in.Amount = -in.Amount
	}

	result, err := h.svc.Coins.ApplyAdjustment(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, result)
}

func (h *handlers) reverseTransaction(c *gin.Context) {
	id, ok := pathID(c, common.ErrTransactionNotFound)
	if !ok {
		return
	}
	if err := h.svc.Coins.ReverseAdminTransaction(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"success": true, "id": id})
}

func (h *handlers) listTransactions(c *gin.Context) {
	var f coins.ListFilter
	var err error

	if f.UserID, err = queryInt64(c, "userId"); err != nil {
		fail(c, err)
		return
	}
	if f.PackageID, err = queryInt64(c, "packageId"); err != nil {
		fail(c, err)
		return
	}
	if v := c.Query("type"); v != "" {
		t := coins.TxType(v)
		f.Type = &t
	}
	if v := c.Query("referenceType"); v != "" {
		f.ReferenceType = &v
	}
	if f.From, err = queryTime(c, "from"); err != nil {
		fail(c, err)
		return
	}
	if f.To, err = queryTime(c, "to"); err != nil {
		fail(c, err)
		return
	}
	if f.Page, f.Limit, err = queryPaging(c); err != nil {
		fail(c, err)
		return
	}

	page, err := h.svc.Coins.ListTransactions(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, page)
}

// --- Пользователи ---

func (h *handlers) listUsers(c *gin.Context) {
	var f users.ListFilter
	var err error
	if f.IsPremium, err = queryBool(c, "isPremium"); err != nil {
		fail(c, err)
		return
	}
	if f.IsFake, err = queryBool(c, "isFake"); err != nil {
		fail(c, err)
		return
	}
	if f.Page, f.Limit, err = queryPaging(c); err != nil {
		fail(c, err)
		return
	}

	list, total, err := h.svc.Users.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"users": list, "totalCount": total})
}

func (h *handlers) getUser(c *gin.Context) {
	id, ok := pathID(c, common.ErrUserNotFound)
	if !ok {
		return
	}
	u, err := h.svc.Users.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, u)
}

func (h *handlers) userCoins(c *gin.Context) {
	id, ok := pathID(c, common.ErrUserNotFound)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	summary, err := h.svc.Coins.Summary(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	page, err := h.svc.Coins.ListTransactions(ctx, coins.ListFilter{UserID: &id, Limit: 10})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, userCoinsResponse{Summary: summary, Recent: page.Transactions})
}

func (h *handlers) markFake(c *gin.Context) {
	id, ok := pathID(c, common.ErrUserNotFound)
	if !ok {
		return
	}
	var req fakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, common.ErrInvalidInput.WithMessage("некорректное тело запроса: %v", err))
		return
	}
	if err := h.svc.Users.MarkFake(c.Request.Context(), id, req.IsFake); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": id, "isFake": req.IsFake})
}

// --- Подписки ---

func (h *handlers) purchase(c *gin.Context) {
	var in premium.PurchaseInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, common.ErrInvalidInput.WithMessage("некорректное тело запроса: %v", err))
		return
	}
	sub, err := h.svc.Premium.Purchase(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, h.svc.Premium.View(sub))
}

func (h *handlers) renew(c *gin.Context) {
	id, ok := pathID(c, common.ErrSubscriptionNotFound)
	if !ok {
		return
	}
	var in premium.RenewInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, common.ErrInvalidInput.WithMessage("некорректное тело запроса: %v", err))
		return
	}
	in.SubscriptionID = id

	sub, err := h.svc.Premium.Renew(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, h.svc.Premium.View(sub))
}

func (h *handlers) cancel(c *gin.Context) {
	id, ok := pathID(c, common.ErrSubscriptionNotFound)
	if !ok {
		return
	}
	sub, err := h.svc.Premium.Cancel(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, h.svc.Premium.View(sub))
}

func (h *handlers) getSubscription(c *gin.Context) {
	id, ok := pathID(c, common.ErrSubscriptionNotFound)
	if !ok {
		return
	}
	view, err := h.svc.Premium.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, view)
}

func (h *handlers) listSubscriptions(c *gin.Context) {
	var f premium.ListFilter
	var err error
	if f.UserID, err = queryInt64(c, "userId"); err != nil {
		fail(c, err)
		return
	}
	if f.PackageID, err = queryInt64(c, "packageId"); err != nil {
		fail(c, err)
		return
	}
	if v := c.Query("status"); v != "" {
		st := premium.Status(v)
		f.Status = &st
	}
	if f.Page, f.Limit, err = queryPaging(c); err != nil {
		fail(c, err)
		return
	}

	page, err := h.svc.Premium.ListSubscriptions(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, page)
}

func (h *handlers) listPackages(c *gin.Context) {
	onlyActive := c.Query("all") != "true"
	list, err := h.svc.Premium.ListPackages(c.Request.Context(), onlyActive)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, list)
}

// --- Разбор параметров ---

// pathID читает :id; нечисловой или неположительный id — notFound.
func pathID(c *gin.Context, notFound *common.Error) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		fail(c, notFound.WithMessage("%s: некорректный id %q", notFound.Message, raw))
		return 0, false
	}
	return id, true
}

func queryInt64(c *gin.Context, name string) (*int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, common.ErrInvalidInput.WithMessage("параметр %s: ожидалось целое число", name)
	}
	return &v, nil
}

func queryBool(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, common.ErrInvalidInput.WithMessage("параметр %s: ожидалось true/false", name)
	}
	return &v, nil
}

func queryTime(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, common.ErrInvalidInput.WithMessage("параметр %s: ожидалась дата RFC3339", name)
	}
	return &v, nil
}

func queryPaging(c *gin.Context) (int, int, error) {
	page, limit := 0, 0
	if p, err := queryInt64(c, "page"); err != nil {
		return 0, 0, err
	} else if p != nil {
		page = int(*p)
	}
	if l, err := queryInt64(c, "limit"); err != nil {
		return 0, 0, err
	} else if l != nil {
		limit = int(*l)
	}
	return page, limit, nil
}
