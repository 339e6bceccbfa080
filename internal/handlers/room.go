package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mrbooking/backend/internal/events"
	"github.com/mrbooking/backend/internal/logging"
	"github.com/mrbooking/backend/internal/models"
	"github.com/mrbooking/backend/internal/response"
	"github.com/mrbooking/backend/internal/service/search"
	"github.com/mrbooking/backend/internal/util"
)

type RoomHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
	ES       *elasticsearch.Client
	Index    string
}

type roomRequest struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Location    string `json:"location"`
	Capacity    int    `json:"capacity"`
	Equipment   string `json:"equipment"`
	Description string `json:"description"`
}

func (h *RoomHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "room_events", fmt.Sprint(event["roomID"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

// index mirrors the room into the search index best-effort; the SQL
// store stays the source of truth.
func (h *RoomHandler) index(c echo.Context, room *models.MeetingRoom) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.IndexRoom(ctx, h.ES, h.Index, room); err != nil {
		logging.FromContext(c.Request().Context()).Error("es index error", "error", err, "roomID", room.ID)
	}
}

func (h *RoomHandler) deindex(c echo.Context, id uint) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.DeleteRoom(ctx, h.ES, h.Index, id); err != nil {
		logging.FromContext(c.Request().Context()).Error("es delete error", "error", err, "roomID", id)
	}
}

func (h *RoomHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	pageNum := util.ParseIntDefault(c.QueryParam("pageNum"), 1)
	pageSize := util.ParseIntDefault(c.QueryParam("pageSize"), util.DefaultPageSize)
	offset, limit := util.Page(pageNum, pageSize)

	query := func(tx *gorm.DB) *gorm.DB {
		q := tx.Model(&models.MeetingRoom{})
		if name := c.QueryParam("name"); name != "" {
			q = q.Where("name LIKE ?", "%"+name+"%")
		}
		if capacity := util.ParseIntDefault(c.QueryParam("capacity"), 0); capacity > 0 {
			q = q.Where("capacity = ?", capacity)
		}
		if equipment := c.QueryParam("equipment"); equipment != "" {
			q = q.Where("equipment LIKE ?", "%"+equipment+"%")
		}
		return q
	}

	var total int64
	var rooms []models.MeetingRoom
	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := query(tx).Count(&total).Error; err != nil {
			return err
		}
		return query(tx).Order("id ASC").Offset(offset).Limit(limit).Find(&rooms).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return response.OK(c, echo.Map{
		"total": total,
		"list":  rooms,
	})
}

func (h *RoomHandler) Info(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid room id")
	}

	var room models.MeetingRoom
	if err := h.DB.WithContext(ctx).First(&room, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "meeting room does not exist")
	}

	return response.OK(c, room)
}

func (h *RoomHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "room_create")

	var req roomRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "room name required")
	}

	var existing models.MeetingRoom
	err := h.DB.WithContext(ctx).Where("name = ?", req.Name).First(&existing).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "meeting room already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		l.Error("room_create_failed", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	room := models.MeetingRoom{
		Name:        req.Name,
		Location:    req.Location,
		Capacity:    req.Capacity,
		Equipment:   req.Equipment,
		Description: req.Description,
	}
	if err := h.DB.WithContext(ctx).Create(&room).Error; err != nil {
		l.Error("room_create_failed", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "create failed")
	}

	h.index(c, &room)
	h.publish(c, map[string]any{
		"type":   "room_created",
		"roomID": room.ID,
		"name":   room.Name,
	})

	l.Info("room_create_success", "roomID", room.ID)
	return response.OK(c, "create successful")
}

func (h *RoomHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "room_update")

	var req roomRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var room models.MeetingRoom
	if err := h.DB.WithContext(ctx).First(&room, req.ID).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "meeting room does not exist")
	}

	room.Name = req.Name
	room.Location = req.Location
	room.Capacity = req.Capacity
	room.Equipment = req.Equipment
	room.Description = req.Description

	// Last write wins; no version token on rooms.
	if err := h.DB.WithContext(ctx).Save(&room).Error; err != nil {
		l.Error("room_update_failed", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "update failed")
	}

	h.index(c, &room)
	h.publish(c, map[string]any{
		"type":   "room_updated",
		"roomID": room.ID,
		"name":   room.Name,
	})

	l.Info("room_update_success", "roomID", room.ID)
	return response.OK(c, "update successful")
}

func (h *RoomHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "room_delete")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid room id")
	}

	var room models.MeetingRoom
	if err := h.DB.WithContext(ctx).First(&room, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "meeting room does not exist")
	}

	if err := h.DB.WithContext(ctx).Delete(&room).Error; err != nil {
		l.Error("room_delete_failed", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "delete failed")
	}

	h.deindex(c, room.ID)
	h.publish(c, map[string]any{
		"type":   "room_deleted",
		"roomID": room.ID,
	})

	l.Info("room_delete_success", "roomID", room.ID)
	return response.OK(c, "delete successful")
}

func (h *RoomHandler) Search(c echo.Context) error {
	if h.ES == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search unavailable")
	}

	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}

	pageNum := util.ParseIntDefault(c.QueryParam("pageNum"), 1)
	pageSize := util.ParseIntDefault(c.QueryParam("pageSize"), util.DefaultPageSize)
	from, size := util.Page(pageNum, pageSize)

	total, rooms, err := search.Search(c.Request().Context(), h.ES, h.Index, q, from, size)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}

	return response.OK(c, echo.Map{
		"total": total,
		"list":  rooms,
	})
}
