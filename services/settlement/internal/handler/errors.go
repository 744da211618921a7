package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/settlement/pkg/logger"
	"example.com/settlement/services/settlement/internal/domain"
)

// ErrorResponse — стандартный формат ошибки API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorMapping — доменная ошибка → HTTP статус и код.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
	{domain.ErrNoResolvableItems, http.StatusBadRequest, "no_resolvable_items"},
	{domain.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{domain.ErrInvalidPaymentMethod, http.StatusBadRequest, "invalid_payment_method"},
	{domain.ErrZeroOnlineTotal, http.StatusBadRequest, "zero_total"},
	{domain.ErrOrderNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrOrderForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrCheckoutInProgress, http.StatusConflict, "checkout_in_progress"},
	{domain.ErrGatewayUnavailable, http.StatusBadGateway, "gateway_unavailable"},
}

// HandleError преобразует ошибку сервиса в HTTP ответ.
// Неизвестные ошибки логируются и отдаются клиенту как 500 без деталей.
func HandleError(c *gin.Context, err error, method string) {
	log := logger.FromContext(c.Request.Context())

	if err == nil {
		log.Error().Str("method", method).Msg("HandleError вызван с nil ошибкой")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Внутренняя ошибка сервера"})
		return
	}

	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				log.Error().Err(err).Str("method", method).Msg("Ошибка внешнего сервиса")
			}
			c.JSON(m.status, ErrorResponse{Error: m.code, Message: m.err.Error()})
			return
		}
	}

	log.Error().Err(err).Str("method", method).Msg("Внутренняя ошибка")
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Внутренняя ошибка сервера",
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: message})
}
