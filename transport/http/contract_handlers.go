package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pharos-rwa/pharos/core"
	"github.com/pharos-rwa/pharos/gateway"
)

// ContractHandlers contains HTTP handlers for the invoice contract endpoints
type ContractHandlers struct {
	gw *gateway.Gateway
}

// NewContractHandlers creates new contract handlers
func NewContractHandlers(gw *gateway.Gateway) *ContractHandlers {
	return &ContractHandlers{
		gw: gw,
	}
}

// Read handles read-only contract calls
func (h *ContractHandlers) Read(c *gin.Context) {
	var req struct {
		Method string        `json:"method" binding:"required"`
		Params []interface{} `json:"params"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.gw.Read(c.Request.Context(), core.ContractCallRequest{
		Method: req.Method,
		Params: req.Params,
		Kind:   core.CallRead,
	})
	if err != nil {
		status, msg := contractErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"method": req.Method,
		"result": result.ReturnData,
	})
}

// Write handles state-changing contract calls. The idempotency key makes
// retried requests converge on a single on-chain transaction.
func (h *ContractHandlers) Write(c *gin.Context) {
	var req struct {
		IdempotencyKey string         `json:"idempotency_key" binding:"required"`
		Method         string         `json:"method" binding:"required"`
		Params         []interface{}  `json:"params"`
		Gas            core.GasPolicy `json:"gas_policy"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.gw.Write(c.Request.Context(), core.ContractCallRequest{
		IdempotencyKey: req.IdempotencyKey,
		Method:         req.Method,
		Params:         req.Params,
		Kind:           core.CallWrite,
		Gas:            req.Gas,
	})
	if err != nil {
		status, msg := contractErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusAccepted, callResponse(req.IdempotencyKey, result))
}

// Status returns the current state of a previously submitted write
func (h *ContractHandlers) Status(c *gin.Context) {
	key := c.Param("key")

	result, err := h.gw.Status(key)
	if err != nil {
		if errors.Is(err, core.ErrCallNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up call"})
		return
	}

	c.JSON(http.StatusOK, callResponse(key, result))
}

func callResponse(key string, result *core.ContractCallResult) gin.H {
	resp := gin.H{
		"idempotency_key": key,
		"status":          result.Status,
	}
	if result.TxHash != "" {
		resp["tx_hash"] = result.TxHash
	}
	if result.BlockNumber != 0 {
		resp["block_number"] = result.BlockNumber
	}
	if result.ErrorDetail != "" {
		resp["error_detail"] = result.ErrorDetail
	}
	if !result.CompletedAt.IsZero() {
		resp["completed_at"] = result.CompletedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func contractErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrUnknownMethod):
		return http.StatusBadRequest, "Unknown contract method"
	case errors.Is(err, core.ErrAlreadyInFlight):
		return http.StatusConflict, "Call with this idempotency key is already in flight"
	case errors.Is(err, core.ErrAdmissionLimitExceeded):
		return http.StatusTooManyRequests, "Too many in-flight submissions"
	case errors.Is(err, core.ErrContractReverted):
		return http.StatusUnprocessableEntity, "Contract call reverted"
	case errors.Is(err, core.ErrGasEstimationFailed):
		return http.StatusUnprocessableEntity, "Gas estimation failed"
	case errors.Is(err, core.ErrRpcTimeout):
		return http.StatusGatewayTimeout, "Chain node timed out"
	case errors.Is(err, core.ErrRpcUnavailable):
		return http.StatusBadGateway, "Chain node unavailable"
	default:
		return http.StatusInternalServerError, "Contract call failed"
	}
}
