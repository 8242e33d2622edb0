package web

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/tripkit/internal/app"
	"github.com/hpungsan/tripkit/internal/checklist"
	"github.com/hpungsan/tripkit/internal/errors"
	"github.com/hpungsan/tripkit/internal/expense"
	"github.com/hpungsan/tripkit/internal/itinerary"
	"github.com/hpungsan/tripkit/internal/trip"
	"github.com/hpungsan/tripkit/internal/voucher"
	"github.com/hpungsan/tripkit/internal/weather"
)

// Handlers contains HTTP route handlers for the API.
type Handlers struct {
	app *app.App
	log logrus.FieldLogger
}

// ItineraryResponse is the body of GET /api/itinerary.
type ItineraryResponse struct {
	Info     trip.Info          `json:"info"`
	Days     []trip.Day         `json:"days"`
	Progress itinerary.Progress `json:"progress"`
}

// ItemResponse is the body of the single-stop routes. Found is false when
// the mutation matched no stop.
type ItemResponse struct {
	Found bool               `json:"found"`
	Item  *itinerary.ItemRef `json:"item,omitempty"`
}

// AddItemResponse is the body of POST /api/days/{id}/items.
type AddItemResponse struct {
	ID  int64     `json:"id"`
	Day *trip.Day `json:"day,omitempty"`
}

// ChecklistResponse is the body of the checklist routes.
type ChecklistResponse struct {
	Groups   []checklist.Group `json:"groups"`
	Progress int               `json:"progress"`
}

// ExpensesResponse is the body of GET /api/expenses.
type ExpensesResponse struct {
	Summary  expense.Summary   `json:"summary"`
	Expenses []expense.Expense `json:"expenses"`
}

// WeatherResponse is the body of GET /api/weather.
type WeatherResponse struct {
	weather.Result
	Daily []weather.DaySummary `json:"daily"`
}

// CheckInBody is the body of POST and PUT /api/items/{id}/checkin.
// Time is only read by PUT; null clears the check-in.
type CheckInBody struct {
	Kind string  `json:"kind,omitempty"`
	Time *string `json:"time"`
}

// ItemBody is the body of POST /api/days/{id}/items and PATCH /api/items/{id}.
type ItemBody struct {
	Time     *string       `json:"time,omitempty"`
	Location *string       `json:"location,omitempty"`
	Desc     *string       `json:"desc,omitempty"`
	Type     *string       `json:"type,omitempty"`
	Details  *trip.Details `json:"details,omitempty"`
}

// HandleItinerary handles GET /api/itinerary.
func (h *Handlers) HandleItinerary(w http.ResponseWriter, r *http.Request) {
	var resp ItineraryResponse
	_ = h.app.Do(func() error {
		it := h.app.Itinerary
		resp = ItineraryResponse{Info: it.Info(), Days: it.Schedule(), Progress: it.Progress()}
		return nil
	})
	writeJSON(w, http.StatusOK, resp)
}

// HandleDay handles GET /api/days/{id}.
func (h *Handlers) HandleDay(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}

	var day trip.Day
	err = h.app.Do(func() error {
		var ok bool
		if day, ok = h.app.Itinerary.Day(int(id)); !ok {
			return errors.NewNotFound("day", fmt.Sprint(id))
		}
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

// HandleItem handles GET /api/items/{id}.
func (h *Handlers) HandleItem(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}

	var ref itinerary.ItemRef
	err = h.app.Do(func() error {
		var ok bool
		if ref, ok = h.app.Itinerary.Item(id); !ok {
			return errors.NewNotFound("item", fmt.Sprint(id))
		}
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

// HandleCheckIn handles POST /api/items/{id}/checkin: stamp the current time.
func (h *Handlers) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	var body CheckInBody
	if err := readJSON(r, &body, true); err != nil {
		h.writeError(w, err)
		return
	}
	kind, err := parseKind(body.Kind)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.itemMutation(w, r, id, func() error {
		return h.app.Itinerary.CheckIn(r.Context(), id, kind)
	})
}

// HandleSetCheckIn handles PUT /api/items/{id}/checkin: set or clear a time.
func (h *Handlers) HandleSetCheckIn(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	var body CheckInBody
	if err := readJSON(r, &body, false); err != nil {
		h.writeError(w, err)
		return
	}
	kind, err := parseKind(body.Kind)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if body.Time == nil {
		h.itemMutation(w, r, id, func() error {
			return h.app.Itinerary.ClearCheckIn(r.Context(), id, kind)
		})
		return
	}
	if !trip.ValidClock(*body.Time) {
		h.writeError(w, errors.NewInvalidRequest("time must be HH:MM (24-hour) or null"))
		return
	}
	h.itemMutation(w, r, id, func() error {
		return h.app.Itinerary.UpdateCheckInTime(r.Context(), id, *body.Time, kind)
	})
}

// HandleAddItem handles POST /api/days/{id}/items.
func (h *Handlers) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	dayID, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	var body ItemBody
	if err := readJSON(r, &body, false); err != nil {
		h.writeError(w, err)
		return
	}
	if body.Time == nil || !trip.ValidClock(*body.Time) {
		h.writeError(w, errors.NewInvalidRequest("time is required as HH:MM (24-hour)"))
		return
	}

	fields := itinerary.ItemFields{Time: *body.Time, Details: body.Details}
	if body.Location != nil {
		fields.Location = *body.Location
	}
	if body.Desc != nil {
		fields.Desc = *body.Desc
	}
	if body.Type != nil {
		fields.Type = trip.Category(*body.Type)
	}

	var resp AddItemResponse
	err = h.app.Do(func() error {
		newID, err := h.app.Itinerary.AddItem(r.Context(), int(dayID), fields)
		if err != nil {
			return err
		}
		resp.ID = newID
		if day, ok := h.app.Itinerary.Day(int(dayID)); ok && newID != 0 {
			resp.Day = &day
		}
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	status := http.StatusCreated
	if resp.ID == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

// HandleUpdateItem handles PATCH /api/items/{id}.
func (h *Handlers) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	var body ItemBody
	if err := readJSON(r, &body, false); err != nil {
		h.writeError(w, err)
		return
	}
	if body.Time != nil && !trip.ValidClock(*body.Time) {
		h.writeError(w, errors.NewInvalidRequest("time must be HH:MM (24-hour)"))
		return
	}

	patch := itinerary.ItemPatch{Time: body.Time, Location: body.Location, Desc: body.Desc, Details: body.Details}
	if body.Type != nil {
		c := trip.Category(*body.Type)
		patch.Type = &c
	}
	if patch.IsEmpty() {
		h.writeError(w, errors.NewInvalidRequest("at least one editable field must be provided"))
		return
	}

	h.itemMutation(w, r, id, func() error {
		return h.app.Itinerary.UpdateItem(r.Context(), id, patch)
	})
}

// HandleDeleteItem handles DELETE /api/items/{id}.
func (h *Handlers) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}

	var found bool
	err = h.app.Do(func() error {
		_, found = h.app.Itinerary.Item(id)
		return h.app.Itinerary.DeleteItem(r.Context(), id)
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ItemResponse{Found: found})
}

func (h *Handlers) itemMutation(w http.ResponseWriter, r *http.Request, id int64, mutate func() error) {
	var resp ItemResponse
	err := h.app.Do(func() error {
		if err := mutate(); err != nil {
			return err
		}
		if ref, ok := h.app.Itinerary.Item(id); ok {
			resp = ItemResponse{Found: true, Item: &ref}
		}
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleChecklist handles GET /api/checklist.
func (h *Handlers) HandleChecklist(w http.ResponseWriter, r *http.Request) {
	var resp ChecklistResponse
	_ = h.app.Do(func() error {
		resp = ChecklistResponse{Groups: h.app.Checklist.Groups(), Progress: h.app.Checklist.Progress()}
		return nil
	})
	writeJSON(w, http.StatusOK, resp)
}

// HandleChecklistToggle handles POST /api/checklist/{group}/{item}/toggle.
func (h *Handlers) HandleChecklistToggle(w http.ResponseWriter, r *http.Request) {
	itemID, err := intParam(r, "item")
	if err != nil {
		h.writeError(w, err)
		return
	}
	group := chi.URLParam(r, "group")

	var resp ChecklistResponse
	err = h.app.Do(func() error {
		if err := h.app.Checklist.Toggle(r.Context(), group, itemID); err != nil {
			return err
		}
		resp = ChecklistResponse{Groups: h.app.Checklist.Groups(), Progress: h.app.Checklist.Progress()}
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleExpenses handles GET /api/expenses.
func (h *Handlers) HandleExpenses(w http.ResponseWriter, r *http.Request) {
	var resp ExpensesResponse
	_ = h.app.Do(func() error {
		resp = ExpensesResponse{Summary: h.app.Expenses.Summarize(), Expenses: h.app.Expenses.Ledger().Expenses}
		return nil
	})
	writeJSON(w, http.StatusOK, resp)
}

// HandleVouchers handles GET /api/vouchers.
func (h *Handlers) HandleVouchers(w http.ResponseWriter, r *http.Request) {
	var list []voucher.Voucher
	_ = h.app.Do(func() error {
		list = h.app.Vouchers.List()
		return nil
	})
	writeJSON(w, http.StatusOK, list)
}

// HandleWeather handles GET /api/weather. ?refresh=true bypasses the cache.
func (h *Handlers) HandleWeather(w http.ResponseWriter, r *http.Request) {
	var res weather.Result
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		res = h.app.Weather.Refresh(r.Context())
	} else {
		res = h.app.Weather.Forecast(r.Context())
	}

	var dates []string
	_ = h.app.Do(func() error {
		dates = h.app.Itinerary.Dates()
		return nil
	})
	writeJSON(w, http.StatusOK, WeatherResponse{Result: res, Daily: weather.Daily(res.Forecast, dates)})
}

// Helpers

func intParam(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("%s must be an integer", name))
	}
	return v, nil
}

func parseKind(s string) (trip.CheckInKind, error) {
	kind, ok := trip.ParseCheckInKind(s)
	if !ok {
		return "", errors.NewInvalidRequest(fmt.Sprintf("kind must be arrival or departure, got %q", s))
	}
	return kind, nil
}

// readJSON decodes the request body into v. An empty body is accepted when
// optional is true.
func readJSON(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && stderrors.Is(err, io.EOF) {
			return nil
		}
		return errors.NewInvalidRequest(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and an {"error": {...}} body.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := errors.StatusOf(err)

	var tErr *errors.TripError
	if !stderrors.As(err, &tErr) || tErr.Code == errors.ErrInternal {
		h.log.WithError(err).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  http.StatusInternalServerError,
			},
		})
		return
	}

	errorObj := map[string]any{
		"code":    tErr.Code,
		"message": tErr.Message,
		"status":  status,
	}
	if tErr.Details != nil {
		errorObj["details"] = tErr.Details
	}
	writeJSON(w, status, map[string]any{"error": errorObj})
}
