package main

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nordbooking/nordbooking/shared/availability"
	"github.com/nordbooking/nordbooking/shared/middleware"
	"github.com/nordbooking/nordbooking/shared/models"
	"github.com/nordbooking/nordbooking/shared/utils"
)

// OwnerDirectory confirms a tenant can currently take bookings
type OwnerDirectory interface {
	IsActiveOwner(ctx context.Context, tenantID uint) (bool, error)
}

type availabilityDeps struct {
	engine    *availability.Engine
	schedules *availability.ScheduleManager
	bookings  *availability.BookingService
	tenants   OwnerDirectory
}

// SlotView is one slot as shown by the booking form
type SlotView struct {
	DisplayLabel string `json:"display_label"`
	Start        string `json:"start"`
	End          string `json:"end"`
	Available    bool   `json:"available"`
}

// ExceptionRequest represents a date override
type ExceptionRequest struct {
	IsClosed bool                `json:"is_closed"`
	Slots    []models.TimeWindow `json:"slots"`
	Reason   string              `json:"reason"`
}

// CreateBookingRequest represents a public booking request
type CreateBookingRequest struct {
	Date            string  `json:"date" binding:"required"`
	StartTime       string  `json:"start_time" binding:"required"`
	DurationMinutes int     `json:"duration_minutes"`
	CustomerName    string  `json:"customer_name" binding:"required"`
	CustomerEmail   string  `json:"customer_email" binding:"required"`
	CustomerPhone   string  `json:"customer_phone"`
	DiscountCode    string  `json:"discount_code"`
	TotalPrice      float64 `json:"total_price"`
	Notes           string  `json:"notes"`
}

// writeAvailabilityError maps domain errors onto status codes
func writeAvailabilityError(c *gin.Context, err error, fallback string) {
	switch {
	case availability.IsValidation(err):
		utils.BadRequestResponse(c, err.Error())
	case errors.Is(err, availability.ErrSlotUnavailable):
		utils.ConflictResponse(c, "The requested time is no longer available")
	case errors.Is(err, availability.ErrInvalidTransition):
		utils.ConflictResponse(c, err.Error())
	case errors.Is(err, availability.ErrStaffNotInTenant):
		utils.BadRequestResponse(c, "Staff member does not work for this business")
	case errors.Is(err, availability.ErrBookingNotFound):
		utils.NotFoundResponse(c, "Booking not found")
	case errors.Is(err, availability.ErrExceptionNotFound):
		utils.NotFoundResponse(c, "No exception on that date")
	case errors.Is(err, availability.ErrStoreUnavailable):
		logrus.WithError(err).Error(fallback)
		utils.ServiceUnavailableResponse(c, fallback)
	default:
		logrus.WithError(err).Error(fallback)
		utils.InternalServerErrorResponse(c, fallback)
	}
}

// publicTenant parses :tenant_id and checks the tenant is an active business
func publicTenant(c *gin.Context, deps *availabilityDeps) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("tenant_id"), 10, 64)
	if err != nil || id == 0 {
		utils.NotFoundResponse(c, "Business not found")
		return 0, false
	}

	active, err := deps.tenants.IsActiveOwner(c.Request.Context(), uint(id))
	if err != nil {
		logrus.WithError(err).Error("Failed to check tenant")
		utils.ServiceUnavailableResponse(c, "Failed to load business")
		return 0, false
	}
	if !active {
		utils.NotFoundResponse(c, "Business not found")
		return 0, false
	}
	return uint(id), true
}

func bookingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.NotFoundResponse(c, "Booking not found")
		return uuid.Nil, false
	}
	return id, true
}

func actorID(c *gin.Context) *uint {
	if p := middleware.GetPrincipal(c); p != nil {
		id := p.UserID
		return &id
	}
	return nil
}

// handleGetSchedule returns a tenant's weekly schedule
func handleGetSchedule(deps *availabilityDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := publicTenant(c, deps)
		if !ok {
			return
		}

		week, err := deps.engine.GetRecurringSchedule(c.Request.Context(), tenantID)
		if err != nil {
			writeAvailabilityError(c, err, "Failed to load schedule")
			return
		}
		utils.OKResponse(c, "Schedule retrieved", week)
	}
}

// handlePutSchedule replaces the caller's weekly schedule
func handlePutSchedule(deps *availabilityDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _ := middleware.GetTenantID(c)

		var week availability.WeekSchedule
		if err := c.ShouldBindJSON(&week); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		saved, err := deps.schedules.SaveSchedule(c.Request.Context(), tenantID, week)
		if err != nil {
			writeAvailabilityError(c, err, "Failed to save schedule")
			return
		}
		utils.OKResponse(c, "Schedule saved", saved)
	}
}

func handleListExceptions(deps *availabilityDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _ := middleware.GetTenantID(c)

		exceptions, err := deps.schedules.ListExceptions(c.Request.Context(), tenantID, c.Query("from"), c.Query("to"))
		if err != nil {
			writeAvailabilityError(c, err, "Failed to load exceptions")
			return
		}
		utils.OKResponse(c, "Exceptions retrieved", exceptions)
	}
}

func handlePutException(deps *availabilityDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _ := middleware.GetTenantID(c)

		var req ExceptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		exception, err := deps.schedules.PutException(c.Request.Context(), tenantID, availability.ExceptionInput{
			Date:     c.Param("date"),
			IsClosed: req.IsClosed,
			Slots:    req.Slots,
			Reason:   req.Reason,
		})
		if err != nil {
			writeAvailabilityError(c, err, "Failed to save exception")
			return
		}
		utils.OKResponse(c, "Exception saved", exception)
	}
}

func handleDeleteException(deps *availabilityDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _ := middleware.GetTenantID(c)

		if err := deps.schedules.DeleteException(c.Request.Context(), tenantID, c.Param("date")); err != nil {
			writeAvailabilityError(c, err, "Failed to delete exception")
			return
		}
		utils.OKResponse(c, "Exception deleted", nil)
	}
}

// handleGetSlots lists bookable slots for a date
func handleGetSlots(deps *availabilityDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := publicTenant(c, deps)
		if !ok {
			return
		}

		duration, err := strconv.Atoi(c.Query("duration"))
		if err != nil {
			utils.BadRequestResponse(c, "duration must be a number of minutes")
			return
		}
		availableOnly, _ := strconv.ParseBool(c.DefaultQuery("available_only", "false"))

		slots, err := deps.engine.ComputeAvailableSlots(c.Request.Context(), availability.SlotQuery{
			TenantID:        tenantID,
			Date:            c.Query("date"),
			DurationMinutes: duration,
		})
		if err != nil {
			writeAvailabilityError(c, err, "Failed to compute availability")
			return
		}

		views := make([]SlotView, 0, len(slots))
		for _, s := range slots {
			if availableOnly && !s.Available {
				continue
			}
			views = append(views, SlotView{
				DisplayLabel: s.Label(),
				Start:        s.Start,
				End:          s.End,
				Available:    s.Available,
			})
		}
		utils.OKResponse(c, "Slots retrieved", views)
	}
}

// handleCreateBooking books a slot through the locked insert
func handleCreateBooking(deps *availabilityDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := publicTenant(c, deps)
		if !ok {
			return
		}

		var req CreateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		var customerID *uint
		if p := middleware.GetPrincipal(c); p != nil && p.Role == models.RoleCustomer {
			customerID = &p.UserID
		}

		booking, err := deps.bookings.Create(c.Request.Context(), availability.NewBooking{
			TenantID:        tenantID,
			Date:            req.Date,
			StartTime:       req.StartTime,
			DurationMinutes: req.DurationMinutes,
			CustomerID:      customerID,
			CustomerName:    req.CustomerName,
			CustomerEmail:   req.CustomerEmail,
			CustomerPhone:   req.CustomerPhone,
			DiscountCode:    req.DiscountCode,
			TotalPrice:      req.TotalPrice,
			Notes:           req.Notes,
		})
		if err != nil {
			writeAvailabilityError(c, err, "Failed to create booking")
			return
		}
		utils.CreatedResponse(c, "Booking created", booking)
	}
}

// handleListBookings lists the tenant's bookings; workers only see their assignments
func handleListBookings(deps *availabilityDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := middleware.GetPrincipal(c)
		filter := availability.BookingFilter{
			TenantID: *principal.TenantID,
			Date:     c.Query("date"),
			Status:   models.BookingStatus(c.Query("status")),
		}
		if principal.IsWorker() {
			filter.AssignedStaffID = &principal.UserID
		}

		bookings, err := deps.bookings.List(c.Request.Context(), filter)
		if err != nil {
			writeAvailabilityError(c, err, "Failed to list bookings")
			return
		}
		utils.OKResponse(c, "Bookings retrieved", bookings)
	}
}

func handleGetBooking(deps *availabilityDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := middleware.GetPrincipal(c)
		id, ok := bookingID(c)
		if !ok {
			return
		}

		booking, err := deps.bookings.Get(c.Request.Context(), *principal.TenantID, id)
		if err != nil {
			writeAvailabilityError(c, err, "Failed to load booking")
			return
		}
		if principal.IsWorker() && (booking.AssignedStaffID == nil || *booking.AssignedStaffID != principal.UserID) {
			utils.NotFoundResponse(c, "Booking not found")
			return
		}
		utils.OKResponse(c, "Booking retrieved", booking)
	}
}

func handleUpdateStatus(deps *availabilityDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _ := middleware.GetTenantID(c)
		id, ok := bookingID(c)
		if !ok {
			return
		}

		var req struct {
			Status models.BookingStatus `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		booking, err := deps.bookings.UpdateStatus(c.Request.Context(), tenantID, id, req.Status, actorID(c))
		if err != nil {
			writeAvailabilityError(c, err, "Failed to update booking")
			return
		}
		utils.OKResponse(c, "Booking updated", booking)
	}
}

func handleReschedule(deps *availabilityDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _ := middleware.GetTenantID(c)
		id, ok := bookingID(c)
		if !ok {
			return
		}

		var req struct {
			Date      string `json:"date" binding:"required"`
			StartTime string `json:"start_time" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		booking, err := deps.bookings.Reschedule(c.Request.Context(), tenantID, id, req.Date, req.StartTime, actorID(c))
		if err != nil {
			writeAvailabilityError(c, err, "Failed to reschedule booking")
			return
		}
		utils.OKResponse(c, "Booking rescheduled", booking)
	}
}

func handleAssignStaff(deps *availabilityDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _ := middleware.GetTenantID(c)
		id, ok := bookingID(c)
		if !ok {
			return
		}

		// a null staff_id clears the assignment
		var req struct {
			StaffID *uint `json:"staff_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		booking, err := deps.bookings.AssignStaff(c.Request.Context(), tenantID, id, req.StaffID, actorID(c))
		if err != nil {
			writeAvailabilityError(c, err, "Failed to assign staff")
			return
		}
		utils.OKResponse(c, "Staff assigned", booking)
	}
}
