// Package handlers provides HTTP request handlers for the API server
package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/aisleworks/shelfsync/app/dto"
	businessflow "github.com/aisleworks/shelfsync/business_flow"
	"github.com/aisleworks/shelfsync/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type SyncHandlerInterface interface {
	RequestSync(c fiber.Ctx) error
	RequestBulkSync(c fiber.Ctx) error
	GetSyncState(c fiber.Ctx) error
	GetImage(c fiber.Ctx) error
	GetGroup(c fiber.Ctx) error
}

type SyncHandler struct {
	flow      businessflow.SyncFlow
	validator *validator.Validate
}

func NewSyncHandler(flow businessflow.SyncFlow) SyncHandlerInterface {
	return &SyncHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

func (h *SyncHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: errorCode, Details: details},
	})
}

func (h *SyncHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: true, Message: message, Data: data})
}

// RequestSync submits one render pipeline for a tag
// @Router /api/v1/tags/:id/sync [post]
func (h *SyncHandler) RequestSync(c fiber.Ctx) error {
	tagID, err := parseIDParam(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid tag id", "INVALID_TAG_ID", nil)
	}

	var req dto.SyncTagRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST_BODY", err.Error())
		}
		if err := h.validator.Struct(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_FAILED", err.Error())
		}
	}

	ctx := h.createRequestContext(c, "/api/v1/tags/:id/sync")
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	res, err := h.flow.RequestSync(ctx, tagID, &req, metadata)
	if err != nil {
		switch {
		case businessflow.IsTagNotFound(err):
			return h.ErrorResponse(c, fiber.StatusNotFound, "Tag not found", "TAG_NOT_FOUND", nil)
		case businessflow.IsTagNotSyncable(err):
			return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Tag has no paired product or hardware profile", "TAG_NOT_SYNCABLE", nil)
		default:
			log.Println("Request sync failed", err)
			return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to request sync", "REQUEST_SYNC_FAILED", nil)
		}
	}
	return h.SuccessResponse(c, fiber.StatusAccepted, "Sync task submitted", res)
}

// RequestBulkSync fans out one pipeline per syncable tag of the target
// @Router /api/v1/sync/bulk [post]
func (h *SyncHandler) RequestBulkSync(c fiber.Ctx) error {
	var req dto.BulkSyncRequest
	if err := c.Bind().Body(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST_BODY", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_FAILED", err.Error())
	}

	ctx := h.createRequestContextWithTimeout(c, "/api/v1/sync/bulk", 2*time.Minute)
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	res, err := h.flow.RequestBulkSync(ctx, &req, metadata)
	if err != nil {
		switch {
		case businessflow.IsBulkTargetRequired(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Bulk sync requires a store, product, or tag list", "BULK_TARGET_REQUIRED", nil)
		case businessflow.IsBulkNoSyncableTags(err):
			return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "No syncable tags matched the target", "BULK_NO_SYNCABLE_TAGS", nil)
		default:
			log.Println("Request bulk sync failed", err)
			return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to request bulk sync", "REQUEST_BULK_SYNC_FAILED", nil)
		}
	}
	return h.SuccessResponse(c, fiber.StatusAccepted, "Bulk sync submitted", res)
}

// GetSyncState returns a tag's sync lifecycle read model
// @Router /api/v1/tags/:id/sync-state [get]
func (h *SyncHandler) GetSyncState(c fiber.Ctx) error {
	tagID, err := parseIDParam(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid tag id", "INVALID_TAG_ID", nil)
	}

	ctx := h.createRequestContext(c, "/api/v1/tags/:id/sync-state")
	res, err := h.flow.TagSyncState(ctx, tagID)
	if err != nil {
		if businessflow.IsTagNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Tag not found", "TAG_NOT_FOUND", nil)
		}
		log.Println("Get sync state failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read sync state", "TAG_SYNC_STATE_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Tag sync state retrieved", res)
}

// GetImage serves the last rendered label for a tag
// @Router /api/v1/tags/:id/image [get]
func (h *SyncHandler) GetImage(c fiber.Ctx) error {
	tagID, err := parseIDParam(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid tag id", "INVALID_TAG_ID", nil)
	}

	ctx := h.createRequestContext(c, "/api/v1/tags/:id/image")
	image, format, err := h.flow.TagImage(ctx, tagID)
	if err != nil {
		switch {
		case businessflow.IsTagNotFound(err):
			return h.ErrorResponse(c, fiber.StatusNotFound, "Tag not found", "TAG_NOT_FOUND", nil)
		case businessflow.IsNoImageToDispatch(err):
			return h.ErrorResponse(c, fiber.StatusNotFound, "Tag has no rendered image", "TAG_IMAGE_MISSING", nil)
		default:
			log.Println("Get tag image failed", err)
			return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read tag image", "TAG_IMAGE_FAILED", nil)
		}
	}

	if format == "" {
		format = "bmp"
	}
	c.Set(fiber.HeaderContentType, "image/"+format)
	return c.Status(fiber.StatusOK).Send(image)
}

// GetGroup reports bulk group progress
// @Router /api/v1/sync-groups/:id [get]
func (h *SyncHandler) GetGroup(c fiber.Ctx) error {
	groupUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid group uuid", "INVALID_GROUP_UUID", nil)
	}

	ctx := h.createRequestContext(c, "/api/v1/sync-groups/:id")
	res, err := h.flow.GroupProgress(ctx, groupUUID)
	if err != nil {
		if businessflow.IsSyncGroupNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Sync group not found", "SYNC_GROUP_NOT_FOUND", nil)
		}
		log.Println("Get sync group failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read sync group", "GROUP_PROGRESS_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Sync group progress retrieved", res)
}

func parseIDParam(c fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func (h *SyncHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *SyncHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
