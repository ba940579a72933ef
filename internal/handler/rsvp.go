package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"wedding-rsvp/internal/directory"
	"wedding-rsvp/internal/models"
)

// User facing messages
const (
	MsgRunning       = "Wedding RSVP API is running"
	MsgGroupFound    = "Guest group found"
	MsgNotFound      = "Nessun ospite trovato con questo nome"
	MsgEmptySearch   = "Inserisci un nome da cercare"
	MsgConfirmed     = "Conferma registrata con successo!"
	MsgConfirmFailed = "Errore durante la conferma: "
	MsgGiftSaved     = "Messaggio inviato con successo!"
	MsgGiftFailed    = "Errore durante l'invio del messaggio: "
	MsgSearchFailed  = "Errore durante la ricerca: "
	MsgInvalidAction = "Invalid action"
	MsgErrorPrefix   = "Error: "
)

// Directory is the guest directory the handler serves
type Directory interface {
	Search(ctx context.Context, term string) (*models.GuestGroup, error)
	Confirm(ctx context.Context, updates []directory.Update, foodIntolerance string) error
	SaveGift(ctx context.Context, msg models.GiftMessage) error
}

type RSVPHandler struct {
	directory Directory
	config    *Config
	log       zerolog.Logger
}

type Config struct {
	AllowedOrigin string
}

// Response is the envelope returned by every action
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Request carries the fields of every action; only those of Action are read
type Request struct {
	Action string `json:"action"`

	SearchTerm string `json:"searchTerm"`

	Guests          []GuestUpdate `json:"guests"`
	FoodIntolerance string        `json:"foodIntolerance"`

	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
}

type GuestUpdate struct {
	Row       int  `json:"row"`
	Attending bool `json:"attending"`
}

// SearchData is the data payload of a successful search
type SearchData struct {
	GroupName       string       `json:"groupName"`
	Guests          []GuestEntry `json:"guests"`
	FoodIntolerance string       `json:"foodIntolerance"`
}

type GuestEntry struct {
	Row       int    `json:"row"`
	Name      string `json:"name"`
	Attending bool   `json:"attending"`
}

// NewRSVPHandler creates a new RSVP handler
func NewRSVPHandler(dir Directory, logger zerolog.Logger, cfg *Config) *RSVPHandler {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "*"
	}
	return &RSVPHandler{
		directory: dir,
		config:    cfg,
		log:       logger.With().Str("component", "http").Logger(),
	}
}

// Router builds the gin engine serving the RSVP endpoint
func (h *RSVPHandler) Router() *gin.Engine {
	router := gin.New()
	router.Use(h.recovery(), h.requestLogger(), h.cors())

	router.GET("/", h.HandleStatus)
	router.POST("/", h.HandleAction)

	// Apps Script deployments answer on /exec; keep old client URLs working
	router.GET("/exec", h.HandleStatus)
	router.POST("/exec", h.HandleAction)

	return router
}

// HandleStatus answers liveness checks
func (h *RSVPHandler) HandleStatus(c *gin.Context) {
	c.String(http.StatusOK, MsgRunning)
}

// HandleAction dispatches on the action field. The response is always 200;
// success or failure is carried by the envelope.
func (h *RSVPHandler) HandleAction(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond(c, "", Response{Success: false, Message: MsgErrorPrefix + err.Error()})
		return
	}

	var resp Response
	switch req.Action {
	case "search":
		resp = h.search(c.Request.Context(), req)
	case "confirm":
		resp = h.confirm(c.Request.Context(), req)
	case "gift":
		resp = h.gift(c.Request.Context(), req)
	default:
		resp = Response{Success: false, Message: MsgInvalidAction}
	}
	h.respond(c, req.Action, resp)
}

func (h *RSVPHandler) search(ctx context.Context, req Request) Response {
	group, err := h.directory.Search(ctx, req.SearchTerm)
	switch {
	case errors.Is(err, directory.ErrGuestNotFound):
		return Response{Success: false, Message: MsgNotFound}
	case errors.Is(err, directory.ErrEmptySearchTerm):
		return Response{Success: false, Message: MsgEmptySearch}
	case err != nil:
		h.log.Error().Err(err).Str("term", req.SearchTerm).Msg("Search failed")
		return Response{Success: false, Message: MsgSearchFailed + err.Error()}
	}

	data := SearchData{
		GroupName:       group.Name,
		Guests:          make([]GuestEntry, 0, len(group.Guests)),
		FoodIntolerance: group.FoodIntolerance(),
	}
	for _, guest := range group.Guests {
		data.Guests = append(data.Guests, GuestEntry{Row: guest.Row, Name: guest.Name, Attending: guest.Attending})
	}
	return Response{Success: true, Message: MsgGroupFound, Data: data}
}

func (h *RSVPHandler) confirm(ctx context.Context, req Request) Response {
	updates := make([]directory.Update, 0, len(req.Guests))
	for _, g := range req.Guests {
		updates = append(updates, directory.Update{Row: g.Row, Attending: g.Attending})
	}

	if err := h.directory.Confirm(ctx, updates, req.FoodIntolerance); err != nil {
		h.log.Error().Err(err).Int("rows", len(updates)).Msg("Confirm failed")
		return Response{Success: false, Message: MsgConfirmFailed + err.Error()}
	}
	return Response{Success: true, Message: MsgConfirmed}
}

func (h *RSVPHandler) gift(ctx context.Context, req Request) Response {
	msg := models.GiftMessage{From: req.From, To: req.To, Message: req.Message}
	if err := h.directory.SaveGift(ctx, msg); err != nil {
		h.log.Error().Err(err).Str("from", req.From).Msg("Saving gift message failed")
		return Response{Success: false, Message: MsgGiftFailed + err.Error()}
	}
	return Response{Success: true, Message: MsgGiftSaved}
}

func (h *RSVPHandler) respond(c *gin.Context, action string, resp Response) {
	c.Set("action", action)
	c.Set("success", resp.Success)
	c.JSON(http.StatusOK, resp)
}

// recovery turns panics into a failure envelope instead of a 500
func (h *RSVPHandler) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		h.log.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("Recovered from panic")
		c.AbortWithStatusJSON(http.StatusOK, Response{Success: false, Message: fmt.Sprintf("%s%v", MsgErrorPrefix, recovered)})
	})
}
