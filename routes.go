package main

import (
	"errors"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/parts_backend/models"
	"bitbucket.org/mmdatafocus/parts_backend/utils"
	"bitbucket.org/mmdatafocus/parts_backend/workflow"
	"github.com/gin-gonic/gin"
)

func registerRoutes(r *gin.Engine, service *workflow.FulfillmentService) {
	parts := r.Group("/parts")
	{
		parts.POST("", createPartHandler())
		parts.GET("", listPartsHandler())
		parts.GET("/:id", getPartHandler())
		parts.PUT("/:id", updatePartHandler())
		parts.DELETE("/:id", deletePartHandler())

		parts.POST("/:id/order", orderPartHandler(service))
		parts.POST("/:id/receive", receivePartHandler(service))
		parts.POST("/:id/receive-assign", receiveAssignHandler(service))
		parts.POST("/:id/assign-installer", assignInstallerHandler(service))
		parts.POST("/:id/install", markInstalledHandler(service))
		parts.POST("/:id/status", setStatusHandler(service))
		parts.POST("/:id/assign", assignOwnerHandler(service))

		parts.POST("/bulk", bulkHandler(service))
	}

	inventory := r.Group("/inventory")
	{
		inventory.POST("", createInventoryItemHandler())
		inventory.GET("", listInventoryItemsHandler())
		inventory.GET("/:id", getInventoryItemHandler())
		inventory.PUT("/:id", updateInventoryItemHandler())
		inventory.DELETE("/:id", deleteInventoryItemHandler())

		inventory.POST("/:id/checkout", checkoutHandler(service))
		inventory.POST("/:id/restock", restockHandler(service))
		inventory.POST("/:id/reconcile", reconcileHandler(service))
		inventory.GET("/:id/transactions", listTransactionsHandler())
	}

	members := r.Group("/team-members")
	{
		members.POST("", createTeamMemberHandler())
		members.PUT("/:id", updateTeamMemberHandler())
		members.DELETE("/:id", deactivateTeamMemberHandler())
	}
}

// statusForError maps the domain error taxonomy onto HTTP statuses. The
// response body always carries the reason so the caller can decide whether
// to use the override or adjust the request.
func statusForError(err error) int {
	var validationErr *models.ValidationError
	var transitionErr *models.InvalidTransitionError
	var stockErr *models.InsufficientStockError
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		return http.StatusNotFound
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &transitionErr), errors.As(err, &stockErr):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func createPartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPart
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		part, err := models.CreatePart(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, part)
	}
}

func listPartsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var projectId *int
		if raw := c.Query("project_id"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project_id"})
				return
			}
			projectId = &n
		}
		parts, err := models.GetParts(c.Request.Context(), projectId)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, parts)
	}
}

func getPartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		part, err := models.GetPart(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"part":            part,
			"order_proof_url": utils.ResolveObjectReadURL(c.Request.Context(), part.OrderProof),
		})
	}
}

func updatePartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewPart
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		part, err := models.UpdatePart(c.Request.Context(), id, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, part)
	}
}

func deletePartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		part, err := models.DeletePart(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, part)
	}
}

func orderPartHandler(service *workflow.FulfillmentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.OrderPartInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		part, err := service.OrderPart(c.Request.Context(), id, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, part)
	}
}

func receivePartHandler(service *workflow.FulfillmentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.ReceivePartInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		part, err := service.ReceivePart(c.Request.Context(), id, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, part)
	}
}

func receiveAssignHandler(service *workflow.FulfillmentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req workflow.InstallerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := service.ReceiveAndAssignInstaller(c.Request.Context(), id, &req)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func assignInstallerHandler(service *workflow.FulfillmentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req workflow.InstallerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := service.AssignInstaller(c.Request.Context(), id, &req)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func markInstalledHandler(service *workflow.FulfillmentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		part, err := service.MarkInstalled(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, part)
	}
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required,partstatus"`
}

func setStatusHandler(service *workflow.FulfillmentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req setStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		part, err := service.SetStatus(c.Request.Context(), id, models.PartStatus(req.Status))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, part)
	}
}

type assignOwnerRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func assignOwnerHandler(service *workflow.FulfillmentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req assignOwnerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		part, err := service.AssignOwner(c.Request.Context(), id, req.Email)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, part)
	}
}

type bulkRequest struct {
	Ids       []int  `json:"ids" binding:"required,min=1"`
	Operation string `json:"operation" binding:"required,oneof=assign set_status delete"`
	Email     string `json:"email"`
	Status    string `json:"status"`
}

func bulkHandler(service *workflow.FulfillmentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bulkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var op workflow.BulkOperation
		switch req.Operation {
		case "assign":
			if req.Email == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "email is required for bulk assign"})
				return
			}
			op = workflow.BulkAssign{Email: req.Email}
		case "set_status":
			status := models.PartStatus(req.Status)
			if !status.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status for bulk set_status"})
				return
			}
			op = workflow.BulkSetStatus{Status: status}
		case "delete":
			op = workflow.BulkDelete{}
		}

		result, err := service.Bulk.ApplyBulk(c.Request.Context(), req.Ids, op)
		if err != nil {
			// The batch was cut short by cancellation; report what ran.
			c.JSON(http.StatusOK, gin.H{"result": result, "cancelled": true})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func createInventoryItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewInventoryItem
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		item, err := models.CreateInventoryItem(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	}
}

func listInventoryItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := models.GetInventoryItems(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		// Derived flags are computed, not stored.
		out := make([]gin.H, 0, len(items))
		for _, item := range items {
			out = append(out, gin.H{
				"item":         item,
				"out_of_stock": item.OutOfStock(),
				"low_stock":    item.LowStock(),
			})
		}
		c.JSON(http.StatusOK, out)
	}
}

func getInventoryItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		item, err := models.GetInventoryItem(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"item":         item,
			"out_of_stock": item.OutOfStock(),
			"low_stock":    item.LowStock(),
		})
	}
}

func updateInventoryItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewInventoryItem
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		item, err := models.UpdateInventoryItem(c.Request.Context(), id, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func deleteInventoryItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		item, err := models.DeleteInventoryItem(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func checkoutHandler(service *workflow.FulfillmentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.CheckoutInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		item, transaction, err := service.Checkout(c.Request.Context(), id, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"item": item, "transaction": transaction})
	}
}

func restockHandler(service *workflow.FulfillmentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.RestockInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		item, transaction, err := service.Restock(c.Request.Context(), id, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"item": item, "transaction": transaction})
	}
}

func reconcileHandler(service *workflow.FulfillmentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		onHand, repaired, err := service.Reconcile(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"on_hand": onHand, "repaired": repaired})
	}
}

func listTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		transactions, err := models.GetInventoryTransactions(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, transactions)
	}
}

func createTeamMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewTeamMember
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		member, err := models.CreateTeamMember(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, member)
	}
}

func deactivateTeamMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		member, err := models.DeactivateTeamMember(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, member)
	}
}

func updateTeamMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewTeamMember
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		member, err := models.UpdateTeamMember(c.Request.Context(), id, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, member)
	}
}
