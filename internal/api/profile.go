package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"taskmind-sync/internal/models"
	"taskmind-sync/internal/security"
	"taskmind-sync/internal/store"
)

const profileCacheTTL = 5 * time.Minute

func profileCacheKey(userID string) string {
	return "profile:" + userID
}

func (s *Server) getProfile(c *gin.Context) {
	userID := c.Param("user_id")
	if err := security.ValidateUserID(userID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_user_id", "message": "malformed user id"},
		})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, profileCacheKey(userID)); err == nil {
			var p models.Profile
			if json.Unmarshal([]byte(cached), &p) == nil {
				c.Header("X-Cache", "HIT")
				c.JSON(http.StatusOK, p)
				return
			}
		}
	}

	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{"code": "not_found", "message": "profile not found"},
			})
			return
		}
		s.log.Error("profile_fetch_failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal_error", "message": "could not load profile"},
		})
		return
	}

	if s.redis != nil {
		if data, err := json.Marshal(p); err == nil {
			_ = s.redis.Set(ctx, profileCacheKey(userID), data, profileCacheTTL)
		}
	}

	c.Header("X-Cache", "MISS")
	c.JSON(http.StatusOK, p)
}

type settingsRequest struct {
	MilitaryTime *bool    `json:"militaryTime" binding:"required"`
	WorkType     string   `json:"workType" binding:"required,oneof=full-time part-time"`
	Categories   []string `json:"categories" binding:"required,min=1,max=20,dive,min=1,max=50"`
}

func (s *Server) updateSettings(c *gin.Context) {
	userID := c.Param("user_id")
	if err := security.ValidateUserID(userID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_user_id", "message": "malformed user id"},
		})
		return
	}

	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_settings", "message": err.Error()},
		})
		return
	}

	settings := models.UserSettings{
		MilitaryTime: *req.MilitaryTime,
		WorkType:     req.WorkType,
		Categories:   req.Categories,
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	updated, err := s.store.UpdateSettings(ctx, userID, settings)
	if err != nil {
		s.log.Error("settings_update_failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal_error", "message": "could not update settings"},
		})
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{"code": "not_found", "message": "profile not found"},
		})
		return
	}

	s.invalidateProfileCache(c, userID)
	s.writeAudit(c, userID, "settings.updated", map[string]any{"workType": settings.WorkType})
	s.tel.Metric("settings_updated", 1, map[string]any{"user_id": userID})

	c.JSON(http.StatusOK, gin.H{"success": true, "settings": settings})
}

type workingDayRequest struct {
	Start        string `json:"start" binding:"required,hhmm"`
	End          string `json:"end" binding:"required,hhmm"`
	IsWorkingDay *bool  `json:"isWorkingDay" binding:"required"`
}

type workingDaysRequest struct {
	Monday    workingDayRequest `json:"monday" binding:"required"`
	Tuesday   workingDayRequest `json:"tuesday" binding:"required"`
	Wednesday workingDayRequest `json:"wednesday" binding:"required"`
	Thursday  workingDayRequest `json:"thursday" binding:"required"`
	Friday    workingDayRequest `json:"friday" binding:"required"`
	Saturday  workingDayRequest `json:"saturday" binding:"required"`
	Sunday    workingDayRequest `json:"sunday" binding:"required"`
}

func (r workingDaysRequest) toModel() (models.WorkingDays, error) {
	days := map[string]workingDayRequest{
		"monday": r.Monday, "tuesday": r.Tuesday, "wednesday": r.Wednesday,
		"thursday": r.Thursday, "friday": r.Friday, "saturday": r.Saturday, "sunday": r.Sunday,
	}
	for name, d := range days {
		start, err := parseClockMinutes(d.Start)
		if err != nil {
			return models.WorkingDays{}, errors.New(name + ": " + err.Error())
		}
		end, err := parseClockMinutes(d.End)
		if err != nil {
			return models.WorkingDays{}, errors.New(name + ": " + err.Error())
		}
		// ordering only matters for days that are actually worked; disabled
		// days may carry zeroed times
		if *d.IsWorkingDay && start >= end {
			return models.WorkingDays{}, errors.New(name + ": start must be before end")
		}
	}

	conv := func(d workingDayRequest) models.WorkingDay {
		return models.WorkingDay{Start: d.Start, End: d.End, IsWorkingDay: *d.IsWorkingDay}
	}
	return models.WorkingDays{
		Monday:    conv(r.Monday),
		Tuesday:   conv(r.Tuesday),
		Wednesday: conv(r.Wednesday),
		Thursday:  conv(r.Thursday),
		Friday:    conv(r.Friday),
		Saturday:  conv(r.Saturday),
		Sunday:    conv(r.Sunday),
	}, nil
}

func (s *Server) updateWorkingDays(c *gin.Context) {
	userID := c.Param("user_id")
	if err := security.ValidateUserID(userID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_user_id", "message": "malformed user id"},
		})
		return
	}

	var req workingDaysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_working_days", "message": err.Error()},
		})
		return
	}

	wd, err := req.toModel()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_working_days", "message": err.Error()},
		})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	updated, err := s.store.UpdateWorkingDays(ctx, userID, wd)
	if err != nil {
		s.log.Error("working_days_update_failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal_error", "message": "could not update working days"},
		})
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{"code": "not_found", "message": "profile not found"},
		})
		return
	}

	s.invalidateProfileCache(c, userID)
	s.writeAudit(c, userID, "working_days.updated", nil)
	s.tel.Metric("working_days_updated", 1, map[string]any{"user_id": userID})

	c.JSON(http.StatusOK, gin.H{"success": true, "workingDays": wd})
}

func (s *Server) listAuditLogs(c *gin.Context) {
	userID := c.Param("user_id")
	if err := security.ValidateUserID(userID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_user_id", "message": "malformed user id"},
		})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	ctx, cancel := s.ctx(c)
	defer cancel()

	entries, err := s.store.ListAuditLogs(ctx, userID, limit, offset)
	if err != nil {
		s.log.Error("audit_logs_fetch_failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal_error", "message": "could not load audit logs"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	dbStatus := "connected"
	if s.db == nil {
		dbStatus = "not_configured"
	} else if err := s.db.Pool.Ping(ctx); err != nil {
		dbStatus = "disconnected"
	}

	redisStatus := "connected"
	if s.redis == nil {
		redisStatus = "not_configured"
	} else if err := s.redis.RDB().Ping(ctx).Err(); err != nil {
		redisStatus = "disconnected"
	}

	var processedToday int64
	if s.redis != nil && redisStatus == "connected" {
		key := "events:processed:" + time.Now().Format("2006-01-02")
		processedToday, _ = s.redis.GetInt(ctx, key)
	}

	status := http.StatusOK
	overall := "healthy"
	if dbStatus == "disconnected" {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(status, gin.H{
		"status":                 overall,
		"database":               dbStatus,
		"redis":                  redisStatus,
		"events_processed_today": processedToday,
	})
}

func (s *Server) invalidateProfileCache(c *gin.Context, userID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(c.Request.Context(), profileCacheKey(userID)); err != nil {
		s.log.Debug("profile_cache_invalidate_failed", "user_id", userID, "error", err)
	}
}

// writeAudit records an API mutation. Best-effort: the mutation already
// committed, so an audit failure only gets a warning.
func (s *Server) writeAudit(c *gin.Context, userID, action string, details map[string]any) {
	entry := models.AuditLogEntry{
		UserID:    userID,
		Action:    action,
		Resource:  "user_profile",
		Details:   details,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Status:    models.AuditStatusSuccess,
	}
	if err := s.store.InsertAuditLog(c.Request.Context(), entry); err != nil {
		s.log.Warn("audit_log_failed", "user_id", userID, "action", action, "error", err)
	}
}
