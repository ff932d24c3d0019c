package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	pkgerrors "github.com/pkg/errors"

	"github.com/hrygo/remindbot/internal/errors"
	"github.com/hrygo/remindbot/plugin/reminder"
)

type textRequest struct {
	ChatID int64  `json:"chat_id"`
	UserID int64  `json:"user_id"`
	Text   string `json:"text"`
}

type commandRequest struct {
	Command string `json:"command"`
}

type matchView struct {
	Strategy string `json:"strategy"`
	Span     string `json:"span"`
}

type previewResponse struct {
	Date     string      `json:"date"`
	Time     string      `json:"time"`
	Timezone string      `json:"timezone"`
	FireAt   time.Time   `json:"fire_at"`
	Text     string      `json:"text"`
	Matches  []matchView `json:"matches"`
}

type reminderView struct {
	ID       int64     `json:"id"`
	UID      string    `json:"uid"`
	ChatID   int64     `json:"chat_id"`
	UserID   int64     `json:"user_id"`
	Date     string    `json:"date"`
	Time     string    `json:"time"`
	Timezone string    `json:"timezone"`
	Text     string    `json:"text"`
	Repeat   string    `json:"repeat"`
	Notified bool      `json:"notified"`
	FireAt   time.Time `json:"fire_at"`
}

type reminderResponse struct {
	Reminder reminderView     `json:"reminder"`
	Summary  reminder.Summary `json:"summary"`
	// Describe is the rendered summary line.
	Describe string `json:"describe"`
}

type commandResponse struct {
	Command string `json:"command"`
	Action  string `json:"action"`
	Copied  bool   `json:"copied"`
	reminderResponse
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newReminderView(r *reminder.Reminder) reminderView {
	return reminderView{
		ID:       r.ID,
		UID:      r.UID,
		ChatID:   r.ChatID,
		UserID:   r.UserID,
		Date:     r.Date.ISO(),
		Time:     r.Time.String(),
		Timezone: r.Timezone,
		Text:     r.Text,
		Repeat:   r.Repeat.Encode(),
		Notified: r.Notified,
		FireAt:   r.FireAt(),
	}
}

func (s *Server) newReminderResponse(r *reminder.Reminder, summary reminder.Summary) reminderResponse {
	return reminderResponse{
		Reminder: newReminderView(r),
		Summary:  summary,
		Describe: summary.Describe(),
	}
}

// parseReminder previews how text would be scheduled without storing it.
func (s *Server) parseReminder(c echo.Context) error {
	req := &textRequest{}
	if err := c.Bind(req); err != nil {
		return errors.WrongInput("invalid request body")
	}
	result, loc, err := s.Service.Preview(c.Request().Context(), req.ChatID, req.UserID, req.Text)
	if err != nil {
		return err
	}

	matches := make([]matchView, 0, len(result.Matches))
	for _, m := range result.Matches {
		matches = append(matches, matchView{Strategy: m.Strategy, Span: m.Span})
	}
	return c.JSON(http.StatusOK, previewResponse{
		Date:     result.Date.ISO(),
		Time:     result.Time.String(),
		Timezone: loc.String(),
		FireAt:   result.At(loc),
		Text:     result.Text,
		Matches:  matches,
	})
}

func (s *Server) createReminder(c echo.Context) error {
	req := &textRequest{}
	if err := c.Bind(req); err != nil {
		return errors.WrongInput("invalid request body")
	}
	r, err := s.Service.Create(c.Request().Context(), &reminder.CreateRequest{
		ChatID: req.ChatID,
		UserID: req.UserID,
		Text:   req.Text,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, s.newReminderResponse(r, reminder.Summarize(r, s.Service.Now())))
}

func (s *Server) executeCommand(c echo.Context) error {
	req := &commandRequest{}
	if err := c.Bind(req); err != nil {
		return errors.WrongInput("invalid request body")
	}
	out, err := s.Service.Execute(c.Request().Context(), req.Command)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if out.Copied {
		status = http.StatusCreated
	}
	return c.JSON(status, commandResponse{
		Command:          out.Command.String(),
		Action:           string(out.Command.Action),
		Copied:           out.Copied,
		reminderResponse: s.newReminderResponse(out.Reminder, out.Summary),
	})
}

func (s *Server) getReminder(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	r, err := s.Service.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.newReminderResponse(r, reminder.Summarize(r, s.Service.Now())))
}

func (s *Server) deleteReminder(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := s.Service.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.WrongInputf("invalid reminder id %q", c.Param("id"))
	}
	return id, nil
}

// handleError renders coded errors as JSON with the matching status.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if pkgerrors.As(err, &he) {
		_ = c.JSON(he.Code, errorResponse{
			Code:    strings.ToUpper(strings.ReplaceAll(http.StatusText(he.Code), " ", "_")),
			Message: http.StatusText(he.Code),
		})
		return
	}

	code := errors.CodeOf(err, errors.ErrCodeInternal)
	status := http.StatusInternalServerError
	message := "internal error"
	switch code {
	case errors.ErrCodeWrongInput:
		status, message = http.StatusBadRequest, err.Error()
	case errors.ErrCodeGone:
		status, message = http.StatusGone, err.Error()
	default:
		slog.Error("request failed", slog.String("path", c.Path()), slog.String("error", err.Error()))
	}
	_ = c.JSON(status, errorResponse{Code: string(code), Message: message})
}
