package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/okhamid/interviewly/internal/models"
	"github.com/okhamid/interviewly/internal/services"
	"github.com/okhamid/interviewly/internal/utils"
)

type ProfileHandler struct {
	svc services.ProfileService
}

func NewProfileHandler(svc services.ProfileService) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

func (h *ProfileHandler) GetProfile(c *gin.Context) {
	p, err := h.svc.GetProfile(c.Request.Context(), c.Param("profile_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProfileHandler) SaveProfile(c *gin.Context) {
	var p models.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ProfileHandler.SaveProfile", "invalid request body", err))
		return
	}
	p.ProfileID = c.Param("profile_id")

	saved, err := h.svc.SaveProfile(c.Request.Context(), &p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *ProfileHandler) GetJobDescription(c *gin.Context) {
	jd, err := h.svc.GetJobDescription(c.Request.Context(), c.Param("jd_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, jd)
}

func (h *ProfileHandler) SaveJobDescription(c *gin.Context) {
	var jd models.JobDescription
	if err := c.ShouldBindJSON(&jd); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ProfileHandler.SaveJobDescription", "invalid request body", err))
		return
	}
	jd.JDID = c.Param("jd_id")

	saved, err := h.svc.SaveJobDescription(c.Request.Context(), &jd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}
