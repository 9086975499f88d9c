package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"escrow-market/internal/auth"
	"escrow-market/internal/database/dbtest"
	"escrow-market/internal/models"
	"escrow-market/internal/repository"
	"escrow-market/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const testWebhookSecret = "hook-secret"

type testServer struct {
	router *gin.Engine
	repo   *repository.Repository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth.InitJWT("test-secret")

	db := dbtest.New(t)
	repo := repository.NewRepository(db)
	activity := repository.NewSQLActivityLog(db)
	log := zap.NewNop()
	fees := services.DefaultFeeSchedule()

	adminService := services.NewAdminService(repo, activity, log)
	dealService := services.NewDealService(repo, fees, activity, log)
	disputeService := services.NewDisputeService(repo, dealService, activity, log)

	router := gin.New()
	router.Use(RequestLogger(log))
	RegisterRoutes(router, &Handlers{
		Auth:      NewAuthHandler(services.NewAuthService(repo, log)),
		User:      NewUserHandler(services.NewUserService(repo), adminService),
		Deal:      NewDealHandler(dealService, adminService),
		Dispute:   NewDisputeHandler(disputeService, adminService),
		Wallet:    NewWalletHandler(services.NewWalletService(repo, fees, activity, log), testWebhookSecret),
		Chat:      NewChatHandler(services.NewChatService(repo), services.NewNotificationService(repo)),
		Dashboard: NewDashboardHandler(services.NewDashboardService(repo)),
		Admin:     NewAdminHandler(adminService, disputeService),
	})
	return &testServer{router: router, repo: repo}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}, headers ...string) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s response %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code, out
}

func (s *testServer) signup(t *testing.T, username string) (string, uint) {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/auth/signup", "", gin.H{
		"username":  username,
		"email":     username + "@example.com",
		"full_name": username,
		"password":  "secret123",
	})
	if code != http.StatusCreated {
		t.Fatalf("signup %s: %d %v", username, code, body)
	}
	user := body["user"].(map[string]interface{})
	return body["token"].(string), uint(user["id"].(float64))
}

func field(m map[string]interface{}, keys ...string) interface{} {
	var cur interface{} = m
	for _, k := range keys {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = obj[k]
	}
	return cur
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	code, body := s.do(t, http.MethodGet, "/health", "", nil)
	if code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", code, body)
	}
}

func TestSignupLoginAndDuplicates(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signup(t, "amina")

	code, body := s.do(t, http.MethodGet, "/auth/me", token, nil)
	if code != http.StatusOK || field(body, "user", "username") != "amina" {
		t.Fatalf("me = %d %v", code, body)
	}
	if _, ok := field(body, "user").(map[string]interface{})["password_hash"]; ok {
		t.Fatal("password hash must never be serialized")
	}

	code, _ = s.do(t, http.MethodPost, "/api/save-user", "", gin.H{
		"username": "amina", "email": "x@example.com", "full_name": "X", "password": "secret123",
	})
	if code != http.StatusConflict {
		t.Fatalf("duplicate signup = %d, want 409", code)
	}

	code, body = s.do(t, http.MethodPost, "/auth/login", "", gin.H{"identifier": "amina@example.com", "password": "secret123"})
	if code != http.StatusOK || body["token"] == "" {
		t.Fatalf("login = %d %v", code, body)
	}
	code, _ = s.do(t, http.MethodPost, "/auth/login", "", gin.H{"identifier": "amina", "password": "nope-nope"})
	if code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d, want 401", code)
	}

	code, _ = s.do(t, http.MethodGet, "/api/wallet", "", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("no token = %d, want 401", code)
	}
}

func TestDealFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	buyerToken, buyerID := s.signup(t, "buyer")
	sellerToken, sellerID := s.signup(t, "seller")
	if err := s.repo.CreditWallet(ctx, buyerID, decimal.NewFromInt(60000)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	code, body := s.do(t, http.MethodPost, "/api/deals", buyerToken, gin.H{
		"title":         "Used laptop",
		"description":   "ThinkPad, 16GB",
		"amount":        "50000",
		"timeline_days": 7,
	})
	if code != http.StatusCreated {
		t.Fatalf("create = %d %v", code, body)
	}
	dealID := field(body, "deal", "id").(string)
	invite := field(body, "deal", "invite_code").(string)
	if field(body, "deal", "total_amount") != "51000" {
		t.Fatalf("total = %v", field(body, "deal", "total_amount"))
	}

	code, body = s.do(t, http.MethodGet, "/api/deals/invite/"+invite, sellerToken, nil)
	if code != http.StatusOK || field(body, "invite", "title") != "Used laptop" {
		t.Fatalf("preview = %d %v", code, body)
	}

	code, body = s.do(t, http.MethodPost, "/api/deals/invite/"+invite+"/accept", sellerToken, nil)
	if code != http.StatusOK || field(body, "deal", "status") != string(models.DealStatusPendingPayment) {
		t.Fatalf("accept invite = %d %v", code, body)
	}

	code, _ = s.do(t, http.MethodPost, "/api/deals/"+dealID+"/pay", sellerToken, nil)
	if code != http.StatusConflict {
		t.Fatalf("seller pay = %d, want 409", code)
	}

	for i := 0; i < 2; i++ {
		code, body = s.do(t, http.MethodPost, "/api/deals/"+dealID+"/pay", buyerToken, nil, "Idempotency-Key", "pay-once")
		if code != http.StatusOK || field(body, "deal", "status") != string(models.DealStatusInProgress) {
			t.Fatalf("pay #%d = %d %v", i+1, code, body)
		}
	}

	code, body = s.do(t, http.MethodGet, "/api/wallet", buyerToken, nil)
	if code != http.StatusOK || field(body, "wallet", "balance") != "9000" || field(body, "wallet", "held_in_escrow") != "51000" {
		t.Fatalf("wallet = %d %v", code, body)
	}

	code, body = s.do(t, http.MethodPost, "/api/deals/"+dealID+"/complete", buyerToken, nil)
	if code != http.StatusOK || field(body, "deal", "status") != string(models.DealStatusCompleted) {
		t.Fatalf("complete = %d %v", code, body)
	}

	seller, err := s.repo.GetUserByID(ctx, sellerID)
	if err != nil || !seller.WalletBalance.Equal(decimal.NewFromInt(50000)) {
		t.Fatalf("seller balance = %v, %v", seller, err)
	}

	code, body = s.do(t, http.MethodGet, "/api/deals?tab=completed", sellerToken, nil)
	if code != http.StatusOK || len(body["deals"].([]interface{})) != 1 {
		t.Fatalf("list = %d %v", code, body)
	}

	strangerToken, _ := s.signup(t, "stranger")
	code, _ = s.do(t, http.MethodGet, "/api/deals/"+dealID, strangerToken, nil)
	if code != http.StatusNotFound {
		t.Fatalf("stranger view = %d, want 404", code)
	}

	code, _ = s.do(t, http.MethodGet, "/api/deals/not-a-uuid", buyerToken, nil)
	if code != http.StatusBadRequest {
		t.Fatalf("bad id = %d, want 400", code)
	}
}

func TestWalletWebhook(t *testing.T) {
	s := newTestServer(t)
	token, userID := s.signup(t, "amina")

	code, body := s.do(t, http.MethodPost, "/api/wallet/topup", token, gin.H{
		"amount": "1500", "method": "mpesa", "phone_number": "+254700000001",
	})
	if code != http.StatusAccepted {
		t.Fatalf("topup = %d %v", code, body)
	}
	ref := field(body, "transaction", "reference").(string)

	cb := gin.H{"reference": ref, "status": "success"}
	code, _ = s.do(t, http.MethodPost, "/api/webhooks/mobile-money", "", cb)
	if code != http.StatusUnauthorized {
		t.Fatalf("webhook without secret = %d, want 401", code)
	}
	code, _ = s.do(t, http.MethodPost, "/api/webhooks/mobile-money", "", cb, "X-Webhook-Secret", "wrong")
	if code != http.StatusUnauthorized {
		t.Fatalf("webhook with wrong secret = %d, want 401", code)
	}

	code, body = s.do(t, http.MethodPost, "/api/webhooks/mobile-money", "", cb, "X-Webhook-Secret", testWebhookSecret)
	if code != http.StatusOK || body["applied"] != true {
		t.Fatalf("webhook = %d %v", code, body)
	}
	code, body = s.do(t, http.MethodPost, "/api/webhooks/mobile-money", "", cb, "X-Webhook-Secret", testWebhookSecret)
	if code != http.StatusOK || body["applied"] != false {
		t.Fatalf("replayed webhook = %d %v", code, body)
	}

	code, body = s.do(t, http.MethodGet, "/api/wallet", token, nil)
	if code != http.StatusOK || field(body, "wallet", "balance") != "1500" {
		t.Fatalf("wallet = %d %v", code, body)
	}

	withdraw := gin.H{"amount": "1500", "method": "mpesa", "phone_number": "+254700000001"}
	code, _ = s.do(t, http.MethodPost, "/api/wallet/withdraw", token, withdraw)
	if code != http.StatusForbidden {
		t.Fatalf("unverified withdraw = %d, want 403", code)
	}

	if err := s.repo.UpdateUserFields(context.Background(), userID, map[string]interface{}{"verified": true}); err != nil {
		t.Fatalf("verify: %v", err)
	}
	code, _ = s.do(t, http.MethodPost, "/api/wallet/withdraw", token, withdraw)
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("withdraw over balance = %d, want 422", code)
	}

	code, body = s.do(t, http.MethodGet, "/api/wallet/transactions?type=deposit", token, nil)
	if code != http.StatusOK || body["total"] != float64(1) {
		t.Fatalf("transactions = %d %v", code, body)
	}
}

func TestSupportRoutes(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	memberToken, memberID := s.signup(t, "member")
	staffToken, staffID := s.signup(t, "staff")

	code, _ := s.do(t, http.MethodGet, "/api/admin/users", memberToken, nil)
	if code != http.StatusForbidden {
		t.Fatalf("member on admin route = %d, want 403", code)
	}

	if err := s.repo.CreateAdminUser(ctx, &models.AdminUser{UserID: staffID, Role: models.AdminRoleSupport}); err != nil {
		t.Fatalf("create staff: %v", err)
	}

	code, body := s.do(t, http.MethodGet, "/api/admin/users?search=mem", staffToken, nil)
	if code != http.StatusOK || body["total"] != float64(1) {
		t.Fatalf("admin users = %d %v", code, body)
	}

	code, body = s.do(t, http.MethodPost, "/api/admin/users/"+uintString(memberID)+"/verify", staffToken, gin.H{"verified": true})
	if code != http.StatusOK || field(body, "data", "verified") != true {
		t.Fatalf("verify = %d %v", code, body)
	}

	code, body = s.do(t, http.MethodGet, "/api/admin/logs", staffToken, nil)
	if code != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("logs = %d %v", code, body)
	}

	code, _ = s.do(t, http.MethodPost, "/api/admin/staff", staffToken, gin.H{"username": "member", "role": "SUPPORT"})
	if code != http.StatusForbidden {
		t.Fatalf("support granting roles = %d, want 403", code)
	}

	code, body = s.do(t, http.MethodGet, "/api/user/profile", staffToken, nil)
	if code != http.StatusOK || body["role"] != "support" {
		t.Fatalf("staff profile = %d %v", code, body)
	}
}

func TestMessagesAndNotifications(t *testing.T) {
	s := newTestServer(t)
	aToken, aID := s.signup(t, "amina")
	bToken, bID := s.signup(t, "baraka")

	code, _ := s.do(t, http.MethodPost, "/api/messages", aToken, gin.H{"receiver_id": aID, "text": "me"})
	if code != http.StatusBadRequest {
		t.Fatalf("self message = %d, want 400", code)
	}
	code, body := s.do(t, http.MethodPost, "/api/messages", aToken, gin.H{"receiver_id": bID, "text": "Hello"})
	if code != http.StatusCreated {
		t.Fatalf("send = %d %v", code, body)
	}

	code, body = s.do(t, http.MethodGet, "/api/messages/conversations", bToken, nil)
	convs, _ := body["conversations"].([]interface{})
	if code != http.StatusOK || len(convs) != 1 {
		t.Fatalf("conversations = %d %v", code, body)
	}

	code, body = s.do(t, http.MethodGet, "/api/messages/"+uintString(aID), bToken, nil)
	if code != http.StatusOK || len(body["messages"].([]interface{})) != 1 {
		t.Fatalf("thread = %d %v", code, body)
	}

	code, body = s.do(t, http.MethodGet, "/api/dashboard", bToken, nil)
	if code != http.StatusOK || field(body, "dashboard", "unread_messages") != float64(0) {
		t.Fatalf("dashboard = %d %v", code, body)
	}

	code, body = s.do(t, http.MethodPost, "/api/notifications/read-all", bToken, nil)
	if code != http.StatusOK || body["updated"] != float64(0) {
		t.Fatalf("read-all = %d %v", code, body)
	}
}
