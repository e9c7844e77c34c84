package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/scan-console/internal/application"
	"github.com/wms-platform/scan-console/pkg/errors"
	"github.com/wms-platform/scan-console/pkg/logging"
	"github.com/wms-platform/scan-console/pkg/middleware"
)

func decodeHandler(service *application.ScanConsoleService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Barcode string `json:"barcode" binding:"barcode"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		c.JSON(http.StatusOK, service.Decode(req.Barcode))
	}
}

func probeHandler(service *application.ScanConsoleService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Mode        string         `json:"mode" binding:"required,scan_mode"`
			Barcode     string         `json:"barcode" binding:"barcode"`
			WarehouseID int            `json:"warehouseId" binding:"omitempty,min=1"`
			Qty         *int           `json:"qty" binding:"omitempty,min=1"`
			Ctx         map[string]any `json:"ctx"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"scan.mode":    req.Mode,
			"warehouse.id": req.WarehouseID,
		})

		result, err := service.Probe(c.Request.Context(), application.ProbeCommand{
			Mode:        req.Mode,
			Barcode:     req.Barcode,
			WarehouseID: req.WarehouseID,
			Qty:         req.Qty,
			Ctx:         req.Ctx,
		})
		if err != nil {
			// a failed resolver call still answers with the ERROR result
			if result.Status != "" {
				c.JSON(errors.MapDomainError(err).HTTPStatus, result)
				return
			}
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func getDiffHandler(service *application.ScanConsoleService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		taskID, ok := taskIDParam(c, responder)
		if !ok {
			return
		}

		diff, err := service.GetPickTaskDiff(c.Request.Context(), application.GetPickTaskDiffQuery{TaskID: taskID})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, diff)
	}
}

func getConfirmationCodeHandler(service *application.ScanConsoleService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		taskID, ok := taskIDParam(c, responder)
		if !ok {
			return
		}

		code, err := service.GetConfirmationCode(c.Request.Context(), application.GetConfirmationCodeQuery{TaskID: taskID})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, code)
	}
}

func submitScanHandler(service *application.ScanConsoleService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		taskID, ok := taskIDParam(c, responder)
		if !ok {
			return
		}

		var req struct {
			Barcode       string `json:"barcode" binding:"required,barcode"`
			Qty           *int   `json:"qty" binding:"omitempty,min=1"`
			BatchOverride string `json:"batchOverride" binding:"max=64"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		result, err := service.SubmitPickScan(c.Request.Context(), application.SubmitPickScanCommand{
			TaskID:        taskID,
			Barcode:       req.Barcode,
			Qty:           req.Qty,
			BatchOverride: req.BatchOverride,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"item.id":  *result.Probe.ItemID,
			"scan.qty": result.Qty,
		})

		c.JSON(http.StatusOK, result)
	}
}

func commitHandler(service *application.ScanConsoleService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		taskID, ok := taskIDParam(c, responder)
		if !ok {
			return
		}

		var req struct {
			ConfirmationCode string `json:"confirmationCode" binding:"required"`
			Platform         string `json:"platform" binding:"required"`
			ShopID           string `json:"shopId" binding:"required"`
			TraceID          string `json:"traceId"`
			AllowDiff        bool   `json:"allowDiff"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"commit.platform":   req.Platform,
			"commit.allow_diff": req.AllowDiff,
		})

		result, err := service.CommitPickTask(c.Request.Context(), application.CommitPickTaskCommand{
			TaskID:           taskID,
			ConfirmationCode: req.ConfirmationCode,
			Platform:         req.Platform,
			ShopID:           req.ShopID,
			TraceID:          req.TraceID,
			AllowDiff:        req.AllowDiff,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func taskIDParam(c *gin.Context, responder *middleware.ErrorResponder) (int, bool) {
	raw := c.Param("taskId")
	taskID, err := strconv.Atoi(raw)
	if err != nil || taskID < 1 {
		responder.RespondValidationError("invalid task id", map[string]string{"taskId": "must be a positive integer"})
		return 0, false
	}

	middleware.AddSpanAttributes(c, map[string]interface{}{
		"task.id": taskID,
	})
	return taskID, true
}
