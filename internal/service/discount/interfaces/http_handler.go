package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"mercato/internal/service/discount/application"
	"mercato/internal/service/discount/domain"
)

// DiscountHandler 封装了 discount 服务的 HTTP 处理器。
// 这里只做协议转换，业务逻辑全部在应用服务里。
type DiscountHandler struct {
	query   *application.DiscountQueryService
	pricing *application.PricingService
	usage   *application.UsageRecorder
	admin   *application.PolicyAdminService
}

// NewDiscountHandler 创建一个新的 HTTP 处理器实例。
func NewDiscountHandler(query *application.DiscountQueryService, pricing *application.PricingService, usage *application.UsageRecorder, admin *application.PolicyAdminService) *DiscountHandler {
	return &DiscountHandler{query: query, pricing: pricing, usage: usage, admin: admin}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *DiscountHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/discounts/resolve", h.handleResolve)
	mux.HandleFunc("/discounts/resolve_batch", h.handleResolveBatch)
	mux.HandleFunc("/discounts/quote", h.handleQuote)
	mux.HandleFunc("/discounts/apply", h.handleApply)
	mux.HandleFunc("/discounts/policies", h.handleCreatePolicy)
	mux.HandleFunc("/discounts/policies/change", h.handleChangeDetails)
	mux.HandleFunc("/discounts/policies/set_active", h.handleSetActive)
}

func extractContext(r *http.Request) *http.Request {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	return r.WithContext(ctx)
}

func (h *DiscountHandler) handleResolve(w http.ResponseWriter, r *http.Request) {
	r = extractContext(r)

	productGroupID, _ := strconv.ParseInt(r.URL.Query().Get("product_group_id"), 10, 64)
	sellerID, _ := strconv.ParseInt(r.URL.Query().Get("seller_id"), 10, 64)

	snap, err := h.query.ResolveBestDiscount(r.Context(), application.TargetDescriptor{
		ProductGroupID: productGroupID,
		SellerID:       sellerID,
	})
	if err != nil {
		// 展示层约定：存储故障不向用户透出内部错误，
		// 但接口必须把失败如实上报给调用方，降级与否由调用方决定。
		http.Error(w, "discount resolution failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if snap == nil {
		// 查不到可用折扣是正常结果，返回空对象而不是 404
		w.Write([]byte(`{}`))
		return
	}
	json.NewEncoder(w).Encode(snap)
}

func (h *DiscountHandler) handleResolveBatch(w http.ResponseWriter, r *http.Request) {
	r = extractContext(r)

	var req application.ResolveBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	snaps, err := h.query.ResolveBestDiscounts(r.Context(), req.ProductGroupIDs, req.SellerIDs)
	if err != nil {
		http.Error(w, "discount resolution failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snaps)
}

func (h *DiscountHandler) handleQuote(w http.ResponseWriter, r *http.Request) {
	r = extractContext(r)

	var req application.QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.pricing.QuoteDiscounts(r.Context(), &req)
	if err != nil {
		if errors.Is(err, domain.ErrNegativeOrderAmount) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "discount quote failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *DiscountHandler) handleApply(w http.ResponseWriter, r *http.Request) {
	r = extractContext(r)

	var req application.ApplyDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	policy, err := h.admin.GetPolicy(r.Context(), req.PolicyID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.usage.ApplyDiscount(r.Context(), policy, req.OrderID, req.UserID, req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(application.ApplyDiscountResponse{
		Success:  true,
		PolicyID: req.PolicyID,
		Amount:   req.Amount,
		Message:  "Discount applied successfully",
	})
}

func (h *DiscountHandler) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	r = extractContext(r)

	var req application.CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	policy, err := h.admin.CreatePolicy(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"policy_id": policy.ID,
	})
}

func (h *DiscountHandler) handleChangeDetails(w http.ResponseWriter, r *http.Request) {
	r = extractContext(r)

	policyID, err := strconv.ParseInt(r.URL.Query().Get("policy_id"), 10, 64)
	if err != nil {
		http.Error(w, "policy_id is required", http.StatusBadRequest)
		return
	}

	var req application.ChangeDetailsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if _, err := h.admin.ChangeDetails(r.Context(), policyID, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

func (h *DiscountHandler) handleSetActive(w http.ResponseWriter, r *http.Request) {
	r = extractContext(r)

	policyID, err := strconv.ParseInt(r.URL.Query().Get("policy_id"), 10, 64)
	if err != nil {
		http.Error(w, "policy_id is required", http.StatusBadRequest)
		return
	}
	active := r.URL.Query().Get("active") == "true"

	if err := h.admin.SetActive(r.Context(), policyID, active); err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

// writeDomainError 根据错误类型返回不同的 HTTP 状态码。
func writeDomainError(w http.ResponseWriter, err error) {
	var statusCode int
	switch {
	case errors.Is(err, domain.ErrPolicyNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrUsageLimitExceeded):
		// 用量超限是一个明确的拒绝结果，与"没查到"严格区分
		statusCode = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidRate),
		errors.Is(err, domain.ErrInvalidPeriod),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidUsageLimit),
		errors.Is(err, domain.ErrInvalidCostShare),
		errors.Is(err, domain.ErrInvalidTarget),
		errors.Is(err, domain.ErrInvalidUsage),
		errors.Is(err, domain.ErrMissingRate),
		errors.Is(err, domain.ErrMissingAmount),
		errors.Is(err, domain.ErrMissingName),
		errors.Is(err, domain.ErrMissingGroup):
		statusCode = http.StatusBadRequest
	case errors.Is(err, domain.ErrPolicyDeleted):
		statusCode = http.StatusConflict
	default:
		statusCode = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), statusCode)
}
