package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/zaqqye/defense_backend_v1/internal/apperror"
	"github.com/zaqqye/defense_backend_v1/internal/middleware"
	"github.com/zaqqye/defense_backend_v1/internal/models"
	"github.com/zaqqye/defense_backend_v1/internal/stage"
)

// ProgressController serves the read side of the completion cascade.
type ProgressController struct {
	DB *gorm.DB
}

func (pc *ProgressController) ListDefenses(c *gin.Context) {
	limit := 20
	page := 1
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}

	sortBy := strings.ToLower(c.DefaultQuery("sort_by", "created_at"))
	sortDir := strings.ToUpper(c.DefaultQuery("sort_dir", "DESC"))
	if sortDir != "ASC" && sortDir != "DESC" {
		sortDir = "DESC"
	}
	allowedSorts := map[string]string{
		"created_at":      "created_at",
		"status":          "status",
		"event_id":        "event_id",
		"evaluation_type": "evaluation_type",
	}
	sortCol, ok := allowedSorts[sortBy]
	if !ok {
		sortCol = "created_at"
	}

	base := pc.DB.WithContext(c.Request.Context()).Model(&models.Defense{})
	if v := strings.TrimSpace(c.Query("status")); v != "" {
		base = base.Where("status = ?", v)
	}
	if v := strings.TrimSpace(c.Query("evaluation_type")); v != "" {
		typ, err := stage.ParseType(v)
		if err != nil {
			middleware.Fail(c, apperror.Validation(err.Error()))
			return
		}
		base = base.Where("evaluation_type = ?", typ)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		middleware.Fail(c, err)
		return
	}
	var defenses []models.Defense
	if err := base.Order(fmt.Sprintf("%s %s", sortCol, sortDir)).
		Limit(limit).Offset((page - 1) * limit).
		Find(&defenses).Error; err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    defenses,
		"meta": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
		"timestamp": time.Now().UTC(),
	})
}

type roomProgress struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	IsCompleted bool       `json:"isCompleted"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Projects    int        `json:"projects"`
}

func (pc *ProgressController) DefenseProgress(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	db := pc.DB.WithContext(c.Request.Context())

	var defense models.Defense
	if err := db.First(&defense, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			middleware.Fail(c, apperror.NotFound("defense not found"))
			return
		}
		middleware.Fail(c, err)
		return
	}

	var rooms []models.Room
	if err := db.Where("defense_id_ref = ?", id).Order("name").Find(&rooms).Error; err != nil {
		middleware.Fail(c, err)
		return
	}
	var links []models.RoomProject
	roomIDs := lo.Map(rooms, func(r models.Room, _ int) string { return r.ID })
	if len(roomIDs) > 0 {
		if err := db.Where("room_id_ref IN ?", roomIDs).Find(&links).Error; err != nil {
			middleware.Fail(c, err)
			return
		}
	}
	perRoom := lo.CountValuesBy(links, func(l models.RoomProject) string { return l.RoomIDRef })

	out := lo.Map(rooms, func(r models.Room, _ int) roomProgress {
		return roomProgress{ID: r.ID, Name: r.Name, IsCompleted: r.IsCompleted, CompletedAt: r.CompletedAt, Projects: perRoom[r.ID]}
	})
	completed := lo.CountBy(rooms, func(r models.Room) bool { return r.IsCompleted })

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"defense":        defense,
			"rooms":          out,
			"roomsCompleted": completed,
			"roomsTotal":     len(rooms),
		},
		"timestamp": time.Now().UTC(),
	})
}

type projectProgress struct {
	ProjectID     string                 `json:"projectId"`
	Title         string                 `json:"title"`
	Status        models.ProjectStatus   `json:"status"`
	Satisfied     bool                   `json:"satisfied"`
	DefenseObject *models.ProjectDefense `json:"defenseObject,omitempty"`
}

// RoomProgress lists the room's projects with their defense-object for the
// room's defense. A project is satisfied once any of its defense-objects for
// the evaluation type is graded.
func (pc *ProgressController) RoomProgress(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	db := pc.DB.WithContext(c.Request.Context())

	var room models.Room
	if err := db.First(&room, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			middleware.Fail(c, apperror.NotFound("room not found"))
			return
		}
		middleware.Fail(c, err)
		return
	}
	var defense models.Defense
	if err := db.First(&defense, "id = ?", room.DefenseIDRef).Error; err != nil {
		middleware.Fail(c, err)
		return
	}
	typ := defense.EvaluationType
	if v := strings.TrimSpace(c.Query("evaluation_type")); v != "" {
		if typ, err = stage.ParseType(v); err != nil {
			middleware.Fail(c, apperror.Validation(err.Error()))
			return
		}
	}

	var projects []models.Project
	sub := db.Model(&models.RoomProject{}).Select("project_id_ref").Where("room_id_ref = ?", room.ID)
	if err := db.Where("id IN (?)", sub).Order("title").Find(&projects).Error; err != nil {
		middleware.Fail(c, err)
		return
	}
	projectIDs := lo.Map(projects, func(p models.Project, _ int) string { return p.ID })

	var defenseObjects []models.ProjectDefense
	if len(projectIDs) > 0 {
		if err := db.Preload("Evaluators").
			Where("project_id_ref IN ? AND evaluation_type = ?", projectIDs, typ).
			Find(&defenseObjects).Error; err != nil {
			middleware.Fail(c, err)
			return
		}
	}
	byProject := lo.GroupBy(defenseObjects, func(pd models.ProjectDefense) string { return pd.ProjectIDRef })

	out := lo.Map(projects, func(p models.Project, _ int) projectProgress {
		pds := byProject[p.ID]
		pp := projectProgress{
			ProjectID: p.ID,
			Title:     p.Title,
			Status:    p.Status,
			Satisfied: lo.SomeBy(pds, func(pd models.ProjectDefense) bool { return pd.IsGraded }),
		}
		if pd, ok := lo.Find(pds, func(pd models.ProjectDefense) bool { return pd.DefenseIDRef == room.DefenseIDRef }); ok {
			pp.DefenseObject = &pd
		}
		return pp
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"room":           room,
			"evaluationType": typ,
			"projects":       out,
		},
		"timestamp": time.Now().UTC(),
	})
}
