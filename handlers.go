package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/fulfillment_backend/config"
	"bitbucket.org/mmdatafocus/fulfillment_backend/middlewares"
	"bitbucket.org/mmdatafocus/fulfillment_backend/models"
	"bitbucket.org/mmdatafocus/fulfillment_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// bindJSON decodes the request body and turns field validation failures into a
// per-field error map instead of the raw validator message.
func bindJSON(c *gin.Context, obj interface{}) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(err)})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	return false
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func queryIntList(c *gin.Context, name string) ([]int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
			return nil, false
		}
		ids = append(ids, n)
	}
	return ids, true
}

// allocationErrorStatus maps validation failures to HTTP statuses. Conflicting
// writes (stale, duplicate, over-capacity) surface as 409 so clients know to
// re-propose rather than retry blindly.
func allocationErrorStatus(kind models.AllocationErrorKind) int {
	switch kind {
	case models.NotFound:
		return http.StatusNotFound
	case models.CapacityExceeded, models.StaleProposal, models.DuplicateAllocation:
		return http.StatusConflict
	case models.StorageError:
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}

func respondError(c *gin.Context, err error) {
	ae := models.AsAllocationError(err)
	if ae.Kind == models.StorageError {
		if err.Error() == "record not found" {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(allocationErrorStatus(ae.Kind), gin.H{"error": ae.Message, "kind": ae.Kind})
}

type signupInput struct {
	BusinessName string `json:"business_name" binding:"required"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	Name         string `json:"name" binding:"required"`
	Username     string `json:"username" binding:"required"`
	Password     string `json:"password" binding:"required"`
}

func signupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input signupInput
		if !bindJSON(c, &input) {
			return
		}
		ctx := c.Request.Context()

		business, err := models.CreateBusiness(ctx, &models.NewBusiness{
			Name:    input.BusinessName,
			Email:   input.Email,
			Phone:   input.Phone,
			Address: input.Address,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		user, err := models.CreateUser(ctx, &models.NewUser{
			BusinessId: business.ID.String(),
			Name:       input.Name,
			Username:   input.Username,
			Password:   input.Password,
			Role:       "A",
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"business": business, "user_id": user.ID})
	}
}

type signinInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func signinHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input signinInput
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.Signin(c.Request.Context(), input.Username, input.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// signoutHandler revokes the caller's bearer token for the remainder of its
// lifetime. Revoked tokens are rejected by the auth middleware.
func signoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := utils.GetTokenFromContext(c.Request.Context())
		if !ok || token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ttl := 24 * time.Hour
		if lifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN")); err == nil && lifespan > 0 {
			ttl = time.Hour * time.Duration(lifespan)
		}
		if err := config.SetRedisValue("revoked_token:"+token, "1", ttl); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "signed out"})
	}
}

func getBusinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := models.GetBusiness(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func listProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := utils.NilIfEmpty(c.Query("name"))
		results, err := models.GetProducts(c.Request.Context(), name)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	}
}

func getProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		result, err := models.GetProduct(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func createProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProduct
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.CreateProduct(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

func listCustomersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := utils.NilIfEmpty(c.Query("name"))
		results, err := models.GetCustomers(c.Request.Context(), name)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	}
}

func getCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		result, err := models.GetCustomer(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func createCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewCustomer
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.CreateCustomer(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

type purchaseOrderListRow struct {
	*models.PurchaseOrder
	CustomerName string `json:"customer_name"`
}

func listPurchaseOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		number := utils.NilIfEmpty(c.Query("order_number"))
		ctx := c.Request.Context()
		results, err := models.GetPurchaseOrders(ctx, number)
		if err != nil {
			respondError(c, err)
			return
		}
		rows := make([]purchaseOrderListRow, 0, len(results))
		for _, po := range results {
			customer, err := middlewares.GetCustomer(ctx, po.CustomerId)
			if err != nil {
				respondError(c, err)
				return
			}
			rows = append(rows, purchaseOrderListRow{PurchaseOrder: po, CustomerName: customer.Name})
		}
		c.JSON(http.StatusOK, rows)
	}
}

func createPurchaseOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPurchaseOrder
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.CreatePurchaseOrder(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

func getPurchaseOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		result, err := models.GetPurchaseOrder(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func updatePurchaseOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewPurchaseOrder
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.UpdatePurchaseOrder(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func deletePurchaseOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		result, err := models.DeletePurchaseOrder(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func purchaseOrderStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		status, err := models.GetPurchaseOrderStatus(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "current_status": status})
	}
}

type findMatchesInput struct {
	ReceiptIds []int `json:"receipt_ids"`
}

// proposalProductNames resolves display names for every product referenced by
// the proposals, batched through the request loaders.
func proposalProductNames(ctx context.Context, candidates []models.MatchCandidate) map[int]string {
	seen := make(map[int]bool)
	ids := make([]int, 0)
	for _, cand := range candidates {
		for _, p := range cand.Proposals {
			if !seen[p.ProductId] {
				seen[p.ProductId] = true
				ids = append(ids, p.ProductId)
			}
		}
	}
	names := make(map[int]string, len(ids))
	products, _ := middlewares.GetProducts(ctx, ids)
	for _, p := range products {
		if p != nil {
			names[p.ID] = p.Name
		}
	}
	return names
}

func findMatchesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input findMatchesInput
		if c.Request.ContentLength > 0 {
			if !bindJSON(c, &input) {
				return
			}
		}
		ctx := c.Request.Context()
		candidates, err := models.FindMatches(ctx, id, input.ReceiptIds)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"purchase_order_id": id,
			"candidates":        candidates,
			"product_names":     proposalProductNames(ctx, candidates),
		})
	}
}

type deliveryReceiptListRow struct {
	*models.DeliveryReceipt
	CustomerName string `json:"customer_name"`
}

func listDeliveryReceiptsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		number := utils.NilIfEmpty(c.Query("receipt_number"))
		var customerId *int
		if v := c.Query("customer_id"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer_id"})
				return
			}
			customerId = &n
		}
		ctx := c.Request.Context()
		results, err := models.GetDeliveryReceipts(ctx, number, customerId)
		if err != nil {
			respondError(c, err)
			return
		}
		rows := make([]deliveryReceiptListRow, 0, len(results))
		for _, dr := range results {
			customer, err := middlewares.GetCustomer(ctx, dr.CustomerId)
			if err != nil {
				respondError(c, err)
				return
			}
			rows = append(rows, deliveryReceiptListRow{DeliveryReceipt: dr, CustomerName: customer.Name})
		}
		c.JSON(http.StatusOK, rows)
	}
}

func createDeliveryReceiptHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewDeliveryReceipt
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.CreateDeliveryReceipt(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

func getDeliveryReceiptHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		result, err := models.GetDeliveryReceipt(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func updateDeliveryReceiptHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewDeliveryReceipt
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.UpdateDeliveryReceipt(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func deleteDeliveryReceiptHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		result, err := models.DeleteDeliveryReceipt(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func deliveryReceiptStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		status, err := models.GetDeliveryReceiptStatus(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "current_status": status})
	}
}

type commitAllocationsInput struct {
	Allocations []models.NewAllocation `json:"allocations" binding:"required"`
}

func commitAllocationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input commitAllocationsInput
		if !bindJSON(c, &input) {
			return
		}
		if len(input.Allocations) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "allocations must not be empty"})
			return
		}
		results, err := models.CommitAllocations(c.Request.Context(), input.Allocations)
		if err != nil {
			respondError(c, err)
			return
		}
		// 207-style: the batch always succeeds as a batch; each entry carries
		// its own outcome.
		c.JSON(http.StatusMultiStatus, gin.H{"results": results})
	}
}

func unlinkAllocationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if id == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		result, err := models.UnlinkAllocation(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func getAllocationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		ctx := c.Request.Context()
		result, err := models.GetFulfillment(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		product, err := middlewares.GetProduct(ctx, result.ProductId)
		if err != nil {
			respondError(c, err)
			return
		}
		order, err := middlewares.GetPurchaseOrder(ctx, result.PurchaseOrderId)
		if err != nil {
			respondError(c, err)
			return
		}
		receipt, err := middlewares.GetDeliveryReceipt(ctx, result.DeliveryReceiptId)
		if err != nil {
			respondError(c, err)
			return
		}
		body := gin.H{
			"allocation":     result,
			"product_name":   product.Name,
			"order_number":   order.OrderNumber,
			"receipt_number": receipt.ReceiptNumber,
		}
		if items, err := middlewares.GetPurchaseOrderDetails(ctx, result.PurchaseOrderId); err == nil {
			for _, item := range items {
				if item != nil && item.ID == result.PoItemId {
					body["ordered_qty"] = item.OrderedQty
				}
			}
		}
		if items, err := middlewares.GetDeliveryReceiptDetails(ctx, result.DeliveryReceiptId); err == nil {
			for _, item := range items {
				if item != nil && item.ID == result.DeliveryItemId {
					body["delivered_qty"] = item.DeliveredQty
				}
			}
		}
		c.JSON(http.StatusOK, body)
	}
}

func allocationHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		results, err := models.GetHistories(c.Request.Context(), "fulfillments", id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	}
}

func unaccountedReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		receiptIds, ok := queryIntList(c, "receipt_ids")
		if !ok {
			return
		}
		items, err := models.FindUnaccounted(c.Request.Context(), receiptIds)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
	}
}

func unaccountedReportXLSXHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		receiptIds, ok := queryIntList(c, "receipt_ids")
		if !ok {
			return
		}
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=unaccounted.xlsx")
		if err := models.ExportUnaccountedXLSX(c.Request.Context(), receiptIds, c.Writer); err != nil {
			c.Status(http.StatusInternalServerError)
		}
	}
}
