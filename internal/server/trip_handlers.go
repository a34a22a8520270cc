package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tripledger/tripledger/internal/models"
	"github.com/tripledger/tripledger/internal/service"
)

// TripHandlers serves trip and member CRUD.
type TripHandlers struct {
	trips *service.TripService
}

type createTripRequest struct {
	Name         string   `json:"name"`
	BaseCurrency string   `json:"base_currency"`
	Members      []string `json:"members"`
}

func (h *TripHandlers) Create(c *gin.Context) {
	var req createTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c)
		return
	}

	trip, err := h.trips.CreateTrip(c.Request.Context(), req.Name, req.BaseCurrency, req.Members)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, trip)
}

func (h *TripHandlers) List(c *gin.Context) {
	trips, err := h.trips.ListTrips(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if trips == nil {
		trips = []*models.Trip{}
	}
	c.JSON(http.StatusOK, gin.H{"trips": trips})
}

func (h *TripHandlers) Get(c *gin.Context) {
	trip, err := h.trips.GetTrip(c.Request.Context(), c.Param("tripID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

type addMemberRequest struct {
	Name string `json:"name"`
}

func (h *TripHandlers) AddMember(c *gin.Context) {
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c)
		return
	}

	member, err := h.trips.AddMember(c.Request.Context(), c.Param("tripID"), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, member)
}

func (h *TripHandlers) ListMembers(c *gin.Context) {
	members, err := h.trips.ListMembers(c.Request.Context(), c.Param("tripID"))
	if err != nil {
		respondError(c, err)
		return
	}
	if members == nil {
		members = []*models.Member{}
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}
